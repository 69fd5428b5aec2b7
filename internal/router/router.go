package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/campus/api/handler"
)

type Handlers struct {
	Session *apiHandler.SessionHandler
	Health  *apiHandler.HealthHandler
	Metrics fasthttp.RequestHandler
}

// New builds the agent routes. Health and metrics stay open; session routes
// go through auth.
func New(handlers Handlers, auth func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	if auth == nil {
		auth = func(next fasthttp.RequestHandler) fasthttp.RequestHandler { return next }
	}
	r := router.New()

	r.GET("/health", handlers.Health.Check)
	if handlers.Metrics != nil {
		r.GET("/metrics", handlers.Metrics)
	}

	r.GET("/session", auth(handlers.Session.Get))
	r.POST("/session/check", auth(handlers.Session.Check))
	r.POST("/session/login", auth(handlers.Session.Login))
	r.POST("/session/logout", auth(handlers.Session.Logout))
	r.POST("/session/refresh", auth(handlers.Session.Refresh))
	r.POST("/navigate", auth(handlers.Session.Navigate))
	r.POST("/visibility", auth(handlers.Session.Visibility))

	return r
}
