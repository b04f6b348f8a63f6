package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"parley/internal/crypto"
	"parley/internal/domain"
	"parley/internal/presence"
	"parley/internal/router"
)

// Deps are the collaborators a Server is built from.
type Deps struct {
	Users    domain.UserStore
	Messages domain.MessageStore
	Groups   domain.GroupStore
	Hub      *presence.Hub
	Router   *router.Router
	Auth     *Auth
	Metrics  *Metrics
	Log      zerolog.Logger
}

// Options tune a Server.
type Options struct {
	// RSABits is the modulus size of identities generated at signup.
	RSABits int
	// AllowedOrigins restricts WebSocket origins; empty allows any.
	AllowedOrigins []string
}

// Server serves the relay API.
type Server struct {
	Deps
	opts     Options
	upgrader websocket.Upgrader
}

// New returns a Server.
func New(deps Deps, opts Options) *Server {
	if opts.RSABits == 0 {
		opts.RSABits = crypto.DefaultRSABits
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	s := &Server{Deps: deps, opts: opts}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the root handler with logging and metrics applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	authed := func(h http.HandlerFunc) http.Handler { return s.Auth.Require(h) }

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", s.Metrics.Handler())

	mux.HandleFunc("POST /api/auth/signup", s.signup)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/auth/logout", s.logout)
	mux.Handle("GET /api/auth/me", authed(s.me))

	mux.Handle("GET /api/messages/users", authed(s.users))
	mux.Handle("GET /api/messages/publickey/{id}", authed(s.publicKey))
	mux.Handle("GET /api/messages/privatekey/me", authed(s.privateKey))
	mux.Handle("GET /api/messages/pinned/chats", authed(s.pinnedChats))
	mux.Handle("GET /api/messages/archived/chats", authed(s.archivedChats))
	mux.Handle("POST /api/messages/pin/{id}", authed(s.setPinned(true)))
	mux.Handle("POST /api/messages/unpin/{id}", authed(s.setPinned(false)))
	mux.Handle("POST /api/messages/archive/{id}", authed(s.setArchived(true)))
	mux.Handle("POST /api/messages/unarchive/{id}", authed(s.setArchived(false)))
	mux.Handle("GET /api/messages/{id}", authed(s.conversation))
	mux.Handle("POST /api/messages/send/{id}", authed(s.sendMessage))
	mux.Handle("PUT /api/messages/edit/{id}", authed(s.editMessage))
	mux.Handle("DELETE /api/messages/delete/{id}", authed(s.deleteMessage))

	mux.Handle("POST /api/groups/create", authed(s.createGroup))
	mux.Handle("POST /api/groups/{groupId}/add-members", authed(s.addMembers))
	mux.Handle("POST /api/groups/{groupId}/remove-members", authed(s.removeMembers))
	mux.Handle("POST /api/groups/{groupId}/leave-group", authed(s.leaveGroup))
	mux.Handle("GET /api/groups/my-groups", authed(s.myGroups))
	mux.Handle("GET /api/group-messages/{groupId}", authed(s.groupConversation))
	mux.Handle("POST /api/group-messages/send/{groupId}", authed(s.sendGroupMessage))

	ws := authed(s.serveWS)
	logged := s.Metrics.accessLog()(mux)
	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The upgrade needs the raw writer, so /ws skips the access wrapper.
		if r.URL.Path == "/ws" {
			ws.ServeHTTP(w, r)
			return
		}
		logged.ServeHTTP(w, r)
	})
	return hlog.NewHandler(s.Log)(hlog.RequestIDHandler("req_id", "X-Request-Id")(root))
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.opts.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}
