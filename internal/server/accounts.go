package server

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"parley/internal/crypto"
	"parley/internal/domain"
)

const minPasswordLength = 6

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req domain.Signup
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	switch {
	case req.FullName == "" || req.Email == "" || req.Password == "":
		writeError(w, r, domain.InvalidArg("all fields are required"))
		return
	case len(req.Password) < minPasswordLength:
		writeError(w, r, domain.InvalidArg("password must be at least 6 characters"))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, r, domain.InvalidArg("invalid email"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, domain.Internal("hash password", err))
		return
	}
	id := domain.UserID(uuid.NewString())
	ident, err := crypto.NewIdentity(id, s.opts.RSABits)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.Users.CreateUser(r.Context(), domain.User{
		ID:            id,
		FullName:      req.FullName,
		Email:         req.Email,
		PasswordHash:  hash,
		PublicKeyPEM:  ident.PublicKeyPEM,
		PrivateKeyPEM: ident.PrivateKeyPEM,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.Log.Info().Str("user", u.ID.String()).Msg("account created")
	s.issue(w, r, http.StatusCreated, u)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req domain.Login
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.Users.GetUserByEmail(r.Context(), req.Email)
	if err == nil {
		err = bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password))
	}
	if err != nil {
		writeError(w, r, domain.InvalidArg("invalid credentials"))
		return
	}
	s.issue(w, r, http.StatusOK, u)
}

func (s *Server) issue(w http.ResponseWriter, r *http.Request, status int, u domain.User) {
	tok, err := s.Auth.Issue(u.ID)
	if err != nil {
		writeError(w, r, domain.Internal("issue token", err))
		return
	}
	http.SetCookie(w, s.Auth.Cookie(tok))
	writeJSON(w, status, domain.Session{User: u.Public(), Token: tok})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	c := s.Auth.Cookie("")
	c.MaxAge = -1
	http.SetCookie(w, c)
	writeJSON(w, http.StatusOK, messageBody{Message: "logged out successfully"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, err := s.Users.GetUser(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u.Public())
}

func (s *Server) users(w http.ResponseWriter, r *http.Request) {
	list, err := s.Users.ListUsers(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]domain.PublicUser, 0, len(list))
	for _, u := range list {
		out = append(out, u.Public())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) publicKey(w http.ResponseWriter, r *http.Request) {
	u, err := s.Users.GetUser(r.Context(), domain.UserID(r.PathValue("id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if u.PublicKeyPEM == "" {
		writeError(w, r, domain.NotFound("user has no public key"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": u.PublicKeyPEM})
}

// privateKey serves the caller's own private key; the token identifies the
// owner, so no other user's key is reachable here.
func (s *Server) privateKey(w http.ResponseWriter, r *http.Request) {
	u, err := s.Users.GetUser(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if u.PrivateKeyPEM == "" {
		writeError(w, r, domain.NotFound("no private key on file"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"privateKey": u.PrivateKeyPEM})
}

func (s *Server) setPinned(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := s.Users.SetPinned(r.Context(), UserFrom(r.Context()), domain.UserID(r.PathValue("id")), on)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"pinnedChats": nonNil(u.Pinned)})
	}
}

func (s *Server) setArchived(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := s.Users.SetArchived(r.Context(), UserFrom(r.Context()), domain.UserID(r.PathValue("id")), on)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"archivedChats": nonNil(u.Archived)})
	}
}

func (s *Server) pinnedChats(w http.ResponseWriter, r *http.Request) {
	s.chatList(w, r, func(u domain.User) []domain.UserID { return u.Pinned })
}

func (s *Server) archivedChats(w http.ResponseWriter, r *http.Request) {
	s.chatList(w, r, func(u domain.User) []domain.UserID { return u.Archived })
}

func (s *Server) chatList(w http.ResponseWriter, r *http.Request, pick func(domain.User) []domain.UserID) {
	ctx := r.Context()
	me, err := s.Users.GetUser(ctx, UserFrom(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := []domain.PublicUser{}
	for _, id := range pick(me) {
		u, err := s.Users.GetUser(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, u.Public())
	}
	writeJSON(w, http.StatusOK, out)
}

func nonNil(ids []domain.UserID) []domain.UserID {
	if ids == nil {
		return []domain.UserID{}
	}
	return ids
}
