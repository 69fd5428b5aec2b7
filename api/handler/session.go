package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/campus/api/transport"
	"github.com/fastygo/campus/domain"
	"github.com/fastygo/campus/pkg/httpcontext"
)

// SessionService is the session manager as seen by the agent.
type SessionService interface {
	Snapshot() domain.Snapshot
	CheckAuth(ctx context.Context, forceRedirect bool) domain.Snapshot
	Login(ctx context.Context, identifier, password string) (domain.Snapshot, error)
	Logout(ctx context.Context) domain.Snapshot
	Refresh(ctx context.Context) error
	OnVisibilityChange(ctx context.Context, visible bool) error
}

// RouteEmitter records client route changes.
type RouteEmitter interface {
	Current() string
	Navigate(to string)
}

type SessionHandler struct {
	baseHandler
	session SessionService
	routes  RouteEmitter
}

func NewSessionHandler(session SessionService, routes RouteEmitter, adapter *httpcontext.Adapter, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		baseHandler: newBaseHandler(adapter, logger),
		session:     session,
		routes:      routes,
	}
}

// Get returns the current session without contacting the backend.
func (h *SessionHandler) Get(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.session.Snapshot())
}

func (h *SessionHandler) Check(ctx *fasthttp.RequestCtx) {
	var req transport.CheckRequest
	if !h.decode(ctx, &req) {
		return
	}
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	h.respondSuccess(ctx, http.StatusOK, h.session.CheckAuth(stdCtx, req.ForceRedirect))
}

func (h *SessionHandler) Login(ctx *fasthttp.RequestCtx) {
	var req transport.SessionLoginRequest
	if !h.decode(ctx, &req) {
		return
	}
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	snap, err := h.session.Login(stdCtx, req.Identifier, req.Password)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, snap)
}

// Logout always succeeds locally.
func (h *SessionHandler) Logout(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	h.respondSuccess(ctx, http.StatusOK, h.session.Logout(stdCtx))
}

func (h *SessionHandler) Refresh(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.session.Refresh(stdCtx); err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, h.session.Snapshot())
}

// Navigate records a client-side route change. Re-verification runs in the
// background through the route subscription.
func (h *SessionHandler) Navigate(ctx *fasthttp.RequestCtx) {
	var req transport.NavigateRequest
	if !h.decode(ctx, &req) {
		return
	}
	path := strings.TrimSpace(req.Path)
	if !strings.HasPrefix(path, "/") {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "path must start with /", nil))
		return
	}
	h.routes.Navigate(path)
	h.respondSuccess(ctx, http.StatusAccepted, transport.RouteResponse{
		Route:   h.routes.Current(),
		Session: h.session.Snapshot(),
	})
}

func (h *SessionHandler) Visibility(ctx *fasthttp.RequestCtx) {
	var req transport.VisibilityRequest
	if !h.decode(ctx, &req) {
		return
	}
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.session.OnVisibilityChange(stdCtx, req.Visible); err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, h.session.Snapshot())
}
