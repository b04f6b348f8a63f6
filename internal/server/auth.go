package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"parley/internal/domain"
)

const tokenCookie = "token"

type ctxKey struct{}

// claims is the JWT payload.
type claims struct {
	UserID domain.UserID `json:"userId"`
	jwt.RegisteredClaims
}

// Auth issues and verifies HS256 identity tokens.
type Auth struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewAuth returns an Auth signing with secret. Tokens live for ttl.
func NewAuth(secret string, ttl time.Duration) *Auth {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Auth{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for id.
func (a *Auth) Issue(id domain.UserID) (string, error) {
	now := a.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	})
	return tok.SignedString(a.secret)
}

// Verify parses tok and returns the user it was issued for.
func (a *Auth) Verify(tok string) (domain.UserID, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(tok, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.Unauthorized("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return "", domain.Wrap(domain.CodeUnauthenticated, "invalid token", err)
	}
	if c.UserID == "" {
		return "", domain.Unauthorized("invalid token claims")
	}
	return c.UserID, nil
}

// Cookie returns the session cookie carrying tok.
func (a *Auth) Cookie(tok string) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookie,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(a.ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

// Require rejects requests without a valid token and stores the caller's id
// in the request context.
func (a *Auth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := tokenFrom(r)
		if tok == "" {
			writeError(w, r, domain.Unauthorized("unauthorized - no token provided"))
			return
		}
		id, err := a.Verify(tok)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// UserFrom returns the authenticated caller stored by Require.
func UserFrom(ctx context.Context) domain.UserID {
	id, _ := ctx.Value(ctxKey{}).(domain.UserID)
	return id
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "Bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return h[len(prefix):]
		}
	}
	if c, err := r.Cookie(tokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}
