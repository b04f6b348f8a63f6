package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"parley/internal/presence"
	"parley/internal/router"
	"parley/internal/server"
	"parley/internal/store/boltstore"
)

const shutdownGrace = 10 * time.Second

// Server is the assembled relay daemon.
type Server struct {
	cfg  ServerConfig
	log  zerolog.Logger
	db   *boltstore.Store
	hub  *presence.Hub
	http *http.Server
}

// NewServer opens the database and builds the HTTP server from cfg.
func NewServer(cfg ServerConfig, log zerolog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := boltstore.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	metrics := server.NewMetrics()
	hub := presence.NewHub(db, presence.WithLogger(log), presence.WithMetrics(metrics))
	rt := router.New(db, db, hub, router.WithLogger(log), router.WithMetrics(metrics))
	srv := server.New(server.Deps{
		Users:    db,
		Messages: db,
		Groups:   db,
		Hub:      hub,
		Router:   rt,
		Auth:     server.NewAuth(cfg.JWTSecret, cfg.TokenTTL),
		Metrics:  metrics,
		Log:      log,
	}, server.Options{RSABits: cfg.RSABits, AllowedOrigins: cfg.AllowedOrigins})

	h := srv.Handler()
	if !cfg.Metrics {
		h = withoutMetrics(h)
	}
	return &Server{
		cfg: cfg,
		log: log,
		db:  db,
		hub: hub,
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves until ctx is cancelled, then drains connections and closes the
// database.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		_ = s.db.Close()
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- s.http.Serve(ln) }()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("relay listening")

	select {
	case err := <-errc:
		_ = s.close()
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	// Closing the hub ends every live socket; Shutdown does not track them.
	_ = s.hub.Close()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	err := s.http.Shutdown(sctx)
	if cerr := s.close(); err == nil {
		err = cerr
	}
	if serr := <-errc; err == nil && !errors.Is(serr, http.ErrServerClosed) {
		err = serr
	}
	return err
}

func (s *Server) close() error {
	_ = s.hub.Close()
	return s.db.Close()
}

func withoutMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
