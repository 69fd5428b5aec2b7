package session

import (
	"context"

	"github.com/fastygo/campus/api/transport"
	"github.com/fastygo/campus/domain"
	"github.com/fastygo/campus/internal/cookies"
)

// AuthAPI is the slice of the backend the session manager talks to.
type AuthAPI interface {
	FetchCSRF(ctx context.Context) error
	Verify(ctx context.Context) (*domain.User, error)
	CurrentUser(ctx context.Context, token string) (*domain.User, error)
	Login(ctx context.Context, req transport.LoginRequest) (*transport.AuthResponse, error)
	Register(ctx context.Context, req transport.RegisterRequest) (*transport.AuthResponse, error)
	Logout(ctx context.Context, token string) error
	Refresh(ctx context.Context, token string) (string, error)
}

// CookieJar is the cookie view the manager resets and persists.
type CookieJar interface {
	cookies.Store
	ClearNonEssential(keep ...string) int
	ClearScriptVisible(keep ...string) int
	Export() []cookies.StoredCookie
	Import(stored []cookies.StoredCookie)
}
