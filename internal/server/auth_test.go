package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/domain"
)

func TestAuthIssueVerify(t *testing.T) {
	a := NewAuth("unit-secret", time.Hour)
	tok, err := a.Issue("u-1")
	require.NoError(t, err)

	id, err := a.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u-1"), id)

	_, err = NewAuth("other-secret", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestAuthExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	a := NewAuth("unit-secret", time.Minute)
	a.now = func() time.Time { return now }
	tok, err := a.Issue("u-1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = a.Verify(tok)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestRequireReadsHeaderCookieAndQuery(t *testing.T) {
	a := NewAuth("unit-secret", time.Hour)
	tok, err := a.Issue("u-9")
	require.NoError(t, err)

	var seen domain.UserID
	h := a.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFrom(r.Context())
	}))

	reqs := map[string]*http.Request{
		"header": httptest.NewRequest(http.MethodGet, "/", nil),
		"cookie": httptest.NewRequest(http.MethodGet, "/", nil),
		"query":  httptest.NewRequest(http.MethodGet, "/?token="+tok, nil),
	}
	reqs["header"].Header.Set("Authorization", "Bearer "+tok)
	reqs["cookie"].AddCookie(a.Cookie(tok))

	for name, r := range reqs {
		seen = ""
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code, name)
		assert.Equal(t, domain.UserID("u-9"), seen, name)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
