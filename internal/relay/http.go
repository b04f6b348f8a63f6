package relay

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"parley/internal/domain"
)

// HTTP talks to one relay server over its REST API.
type HTTP struct {
	base string
	rc   *resty.Client

	mu    sync.RWMutex
	token string
}

var _ domain.RelayClient = (*HTTP)(nil)

// Option configures an HTTP client.
type Option func(*HTTP)

// WithToken starts the client with an existing session token.
func WithToken(tok string) Option { return func(c *HTTP) { c.token = tok } }

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option { return func(c *HTTP) { c.rc.SetTimeout(d) } }

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTP) { c.rc = resty.NewWithClient(hc).SetBaseURL(c.base) }
}

// NewHTTP returns a client for the server at base, e.g. http://localhost:5001.
func NewHTTP(base string, opts ...Option) *HTTP {
	base = strings.TrimRight(base, "/")
	c := &HTTP{base: base}
	c.rc = resty.New().SetBaseURL(base).SetTimeout(15 * time.Second)
	for _, o := range opts {
		o(c)
	}
	c.rc.SetHeader("Accept", "application/json")
	return c
}

// Base returns the server URL.
func (c *HTTP) Base() string { return c.base }

// Token returns the current session token.
func (c *HTTP) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the session token.
func (c *HTTP) SetToken(tok string) {
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}

func (c *HTTP) Signup(ctx context.Context, req domain.Signup) (domain.Session, error) {
	var out domain.Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", req, &out); err != nil {
		return domain.Session{}, err
	}
	c.SetToken(out.Token)
	return out, nil
}

func (c *HTTP) Login(ctx context.Context, req domain.Login) (domain.Session, error) {
	var out domain.Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &out); err != nil {
		return domain.Session{}, err
	}
	c.SetToken(out.Token)
	return out, nil
}

func (c *HTTP) Me(ctx context.Context) (domain.PublicUser, error) {
	var out domain.PublicUser
	return out, c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out)
}

func (c *HTTP) Users(ctx context.Context) ([]domain.PublicUser, error) {
	var out []domain.PublicUser
	return out, c.do(ctx, http.MethodGet, "/api/messages/users", nil, &out)
}

// PublicKey fetches the SPKI PEM of id.
func (c *HTTP) PublicKey(ctx context.Context, id domain.UserID) (string, error) {
	var out struct {
		PublicKey string `json:"publicKey"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/messages/publickey/"+url.PathEscape(id.String()), nil, &out); err != nil {
		return "", err
	}
	if out.PublicKey == "" {
		return "", domain.NotFound("empty public key")
	}
	return out.PublicKey, nil
}

// PrivateKey fetches the caller's own PKCS#8 PEM.
func (c *HTTP) PrivateKey(ctx context.Context) (string, error) {
	var out struct {
		PrivateKey string `json:"privateKey"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/messages/privatekey/me", nil, &out); err != nil {
		return "", err
	}
	if out.PrivateKey == "" {
		return "", domain.NotFound("empty private key")
	}
	return out.PrivateKey, nil
}

func (c *HTTP) SendMessage(ctx context.Context, peer domain.UserID, env domain.OutgoingEnvelope) (domain.Message, error) {
	var out domain.Message
	return out, c.do(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(peer.String()), env, &out)
}

func (c *HTTP) Conversation(ctx context.Context, peer domain.UserID) ([]domain.Message, error) {
	var out []domain.Message
	return out, c.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(peer.String()), nil, &out)
}

func (c *HTTP) EditMessage(ctx context.Context, id domain.MessageID, text string) (domain.Message, error) {
	var out domain.Message
	body := map[string]string{"text": text}
	return out, c.do(ctx, http.MethodPut, "/api/messages/edit/"+url.PathEscape(id.String()), body, &out)
}

func (c *HTTP) DeleteMessage(ctx context.Context, id domain.MessageID) error {
	return c.do(ctx, http.MethodDelete, "/api/messages/delete/"+url.PathEscape(id.String()), nil, nil)
}

func (c *HTTP) Pin(ctx context.Context, peer domain.UserID) error {
	return c.chatFlag(ctx, "pin", peer)
}

func (c *HTTP) Unpin(ctx context.Context, peer domain.UserID) error {
	return c.chatFlag(ctx, "unpin", peer)
}

func (c *HTTP) Archive(ctx context.Context, peer domain.UserID) error {
	return c.chatFlag(ctx, "archive", peer)
}

func (c *HTTP) Unarchive(ctx context.Context, peer domain.UserID) error {
	return c.chatFlag(ctx, "unarchive", peer)
}

func (c *HTTP) chatFlag(ctx context.Context, action string, peer domain.UserID) error {
	return c.do(ctx, http.MethodPost, "/api/messages/"+action+"/"+url.PathEscape(peer.String()), nil, nil)
}

func (c *HTTP) Pinned(ctx context.Context) ([]domain.PublicUser, error) {
	var out []domain.PublicUser
	return out, c.do(ctx, http.MethodGet, "/api/messages/pinned/chats", nil, &out)
}

func (c *HTTP) Archived(ctx context.Context) ([]domain.PublicUser, error) {
	var out []domain.PublicUser
	return out, c.do(ctx, http.MethodGet, "/api/messages/archived/chats", nil, &out)
}

func (c *HTTP) CreateGroup(ctx context.Context, req domain.NewGroup) (domain.Group, error) {
	var out domain.Group
	return out, c.do(ctx, http.MethodPost, "/api/groups/create", req, &out)
}

func (c *HTTP) AddMembers(ctx context.Context, id domain.GroupID, members []domain.UserID) (domain.Group, error) {
	var out domain.Group
	path := "/api/groups/" + url.PathEscape(id.String()) + "/add-members"
	return out, c.do(ctx, http.MethodPost, path, domain.MemberChange{Members: members}, &out)
}

func (c *HTTP) LeaveGroup(ctx context.Context, id domain.GroupID) error {
	return c.do(ctx, http.MethodPost, "/api/groups/"+url.PathEscape(id.String())+"/leave-group", nil, nil)
}

func (c *HTTP) MyGroups(ctx context.Context) ([]domain.Group, error) {
	var out []domain.Group
	return out, c.do(ctx, http.MethodGet, "/api/groups/my-groups", nil, &out)
}

func (c *HTTP) SendGroupMessage(ctx context.Context, id domain.GroupID, text string) (domain.Message, error) {
	var out domain.Message
	env := domain.OutgoingEnvelope{Text: text}
	return out, c.do(ctx, http.MethodPost, "/api/group-messages/send/"+url.PathEscape(id.String()), env, &out)
}

func (c *HTTP) GroupConversation(ctx context.Context, id domain.GroupID) ([]domain.Message, error) {
	var out []domain.Message
	return out, c.do(ctx, http.MethodGet, "/api/group-messages/"+url.PathEscape(id.String()), nil, &out)
}

type errorBody struct {
	Message string      `json:"message"`
	Code    domain.Code `json:"code"`
}

func (c *HTTP) do(ctx context.Context, method, path string, in, out any) error {
	var apiErr errorBody
	req := c.rc.R().SetContext(ctx).SetError(&apiErr)
	if tok := c.Token(); tok != "" {
		req.SetAuthToken(tok)
	}
	if in != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(in)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return domain.TransportError(method+" "+path, err)
	}
	if !resp.IsError() {
		return nil
	}
	return responseError(resp.StatusCode(), apiErr, method+" "+path)
}

// responseError rebuilds the server's error from its body, falling back to
// the status code when the body carries no code.
func responseError(status int, body errorBody, op string) error {
	msg := body.Message
	if msg == "" {
		msg = op + ": " + http.StatusText(status)
	}
	if body.Code != "" {
		return domain.New(body.Code, msg)
	}
	switch status {
	case http.StatusBadRequest:
		return domain.InvalidArg(msg)
	case http.StatusUnauthorized:
		return domain.Unauthorized(msg)
	case http.StatusForbidden:
		return domain.Forbidden(msg)
	case http.StatusNotFound:
		return domain.NotFound(msg)
	case http.StatusConflict:
		return domain.AlreadyExists(msg)
	}
	if status >= http.StatusInternalServerError {
		return domain.TransportError(msg, nil)
	}
	return domain.New(domain.CodeInternal, msg)
}
