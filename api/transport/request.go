package transport

import "github.com/fastygo/campus/domain"

// LoginRequest is the body of POST /auth/login/. Exactly one of Username or
// Email is set.
type LoginRequest struct {
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
	Password     string `json:"password"`
	IncludeToken bool   `json:"include_token"`
}

// RegisterRequest is the body of POST /auth/register/.
type RegisterRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Password2    string `json:"password2"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	IncludeToken bool   `json:"include_token"`
}

// AuthResponse is returned by login, register and verify.
type AuthResponse struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token,omitempty"`
}

// RefreshResponse is returned by POST /auth/refresh/.
type RefreshResponse struct {
	Token string `json:"token,omitempty"`
}

// ChatRequest is the body of POST /chat/.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ErrorBody covers the error shapes the backend produces.
type ErrorBody struct {
	Detail  string `json:"detail"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Text returns the first non-empty message.
func (b ErrorBody) Text() string {
	switch {
	case b.Detail != "":
		return b.Detail
	case b.Error != "":
		return b.Error
	default:
		return b.Message
	}
}

// SessionLoginRequest is the agent's POST /session/login body.
type SessionLoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// CheckRequest is the agent's POST /session/check body.
type CheckRequest struct {
	ForceRedirect bool `json:"force_redirect"`
}

// NavigateRequest is the agent's POST /navigate body.
type NavigateRequest struct {
	Path string `json:"path"`
}

// VisibilityRequest is the agent's POST /visibility body.
type VisibilityRequest struct {
	Visible bool `json:"visible"`
}

// RouteResponse reports the route after a navigation.
type RouteResponse struct {
	Route   string          `json:"route"`
	Session domain.Snapshot `json:"session"`
}
