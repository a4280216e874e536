package observability

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Hemanshudhaduk/Velora/internal/platform/httpx"
	"github.com/Hemanshudhaduk/Velora/internal/platform/requestctx"
)

// CallbackLogger attaches a request-scoped logger to the context and logs each
// completed callback with its route, status and latency.
func CallbackLogger(base *zap.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With(
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", methodLabel(r.Method)),
			)
			r = r.WithContext(requestctx.WithLogger(r.Context(), logger))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := zap.DebugLevel
			if status >= http.StatusInternalServerError {
				level = zap.ErrorLevel
			} else if status >= http.StatusBadRequest {
				level = zap.WarnLevel
			}
			logger.Log(level, "callback handled",
				zap.String("route", routeLabel(routePattern(r))),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
			)
		})
	}
}

// Recover turns a handler panic into a 500 JSON error.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil || rec == http.ErrAbortHandler {
				return
			}
			requestctx.Logger(r.Context()).Error("panic in callback handler",
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			httpx.WriteError(r.Context(), w, httpx.NewError("internal_error", "internal error", http.StatusInternalServerError))
		}()
		next.ServeHTTP(w, r)
	})
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		return rc.RoutePattern()
	}
	return r.URL.Path
}
