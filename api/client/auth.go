package client

import (
	"context"
	"encoding/json"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/campus/api/transport"
	"github.com/fastygo/campus/domain"
)

const (
	pathCSRF     = "/auth/csrf/"
	pathVerify   = "/auth/verify/"
	pathUser     = "/auth/user/"
	pathLogin    = "/auth/login/"
	pathRegister = "/auth/register/"
	pathLogout   = "/auth/logout/"
	pathRefresh  = "/auth/refresh/"
)

// FetchCSRF refreshes the csrftoken cookie.
func (c *Client) FetchCSRF(ctx context.Context) error {
	return c.do(ctx, call{method: fasthttp.MethodGet, path: pathCSRF}, nil)
}

// Verify asks the backend whether the cookie session is valid.
func (c *Client) Verify(ctx context.Context) (*domain.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, call{method: fasthttp.MethodGet, path: pathVerify}, &raw); err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// CurrentUser fetches the user behind the current credential. When token is
// empty only cookies are sent.
func (c *Client) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, call{method: fasthttp.MethodGet, path: pathUser, token: token}, &raw); err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, req transport.LoginRequest) (*transport.AuthResponse, error) {
	var out transport.AuthResponse
	if err := c.do(ctx, call{method: fasthttp.MethodPost, path: pathLogin, body: req}, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, domain.NewError(domain.ErrCodeInternal, "login response carries no user")
	}
	return &out, nil
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, req transport.RegisterRequest) (*transport.AuthResponse, error) {
	var out transport.AuthResponse
	if err := c.do(ctx, call{method: fasthttp.MethodPost, path: pathRegister, body: req}, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, domain.NewError(domain.ErrCodeInternal, "register response carries no user")
	}
	return &out, nil
}

// Logout invalidates the server session within the short logout timeout.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, call{
		method:  fasthttp.MethodPost,
		path:    pathLogout,
		token:   token,
		timeout: c.cfg.LogoutTimeout,
	}, nil)
}

// Refresh rotates the session and returns the new token, if any.
func (c *Client) Refresh(ctx context.Context, token string) (string, error) {
	var out transport.RefreshResponse
	if err := c.do(ctx, call{method: fasthttp.MethodPost, path: pathRefresh, token: token}, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// decodeUser accepts both a bare user object and {"user": {...}}.
func decodeUser(raw json.RawMessage) (*domain.User, error) {
	var wrapped struct {
		User *domain.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "malformed user payload", err)
	}
	if user.ID == 0 && user.Username == "" && user.Email == "" {
		return nil, domain.WrapError(domain.ErrCodeUnauthorized, "backend returned no user", &HTTPError{Status: fasthttp.StatusOK})
	}
	return &user, nil
}

// Ping reports whether the backend answers. Any response below 500 counts
// as reachable.
func (c *Client) Ping(ctx context.Context) error {
	err := c.FetchCSRF(ctx)
	if err == nil {
		return nil
	}
	if status := StatusCode(err); status > 0 && status < 500 {
		return nil
	}
	return err
}
