package middleware

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/campus/pkg/httpcontext"
)

// AccessLog logs one line per agent request, tagged with its request id.
func AccessLog(logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			started := time.Now()
			reqID := httpcontext.RequestID(ctx)
			next(ctx)
			ctx.Response.Header.Set(httpcontext.HeaderRequestID, reqID)
			logger.Debug("agent request",
				zap.String("request_id", reqID),
				zap.ByteString("method", ctx.Method()),
				zap.ByteString("path", ctx.Path()),
				zap.Int("status", ctx.Response.StatusCode()),
				zap.Duration("elapsed", time.Since(started)),
			)
		}
	}
}
