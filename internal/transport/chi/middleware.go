package chi

import (
	"net/http"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicedex/internal/logger"
)

// JSONRecoverer turns a handler panic into a JSON 500.
func JSONRecoverer(log *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler { //nolint:errorlint // sentinel re-panic, compared by identity
					panic(rvr)
				}
				logger.FromContextOr(r.Context(), log).Error("panic recovered",
					zap.Any("panic", rvr),
					zap.Stack("stacktrace"),
				)
				writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// WideEvent emits one canonical log line per request, echoes X-Request-ID
// and puts a request-scoped logger into the context.
// It expects middleware.RequestID earlier in the chain.
func WideEvent(log *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := middleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set(middleware.RequestIDHeader, requestID)
			}

			reqLogger := log.With(zap.String("request_id", requestID))
			ctx := logger.ContextWithLogger(r.Context(), reqLogger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			route := ""
			if rc := gochi.RouteContext(r.Context()); rc != nil {
				route = rc.RoutePattern()
			}

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.Int("response_bytes", ww.BytesWritten()),
			}
			if v := ww.Header().Get(HeaderExtractionTokens); v != "" {
				fields = append(fields, zap.String("extraction_tokens", v))
			}
			if v := ww.Header().Get(HeaderEmbeddingTokens); v != "" {
				fields = append(fields, zap.String("embedding_tokens", v))
			}
			reqLogger.Info("http_request", fields...)
		})
	}
}

// Router builds the full middleware chain around the API routes.
func (s *Server) Router(mw ...func(http.Handler) http.Handler) http.Handler {
	r := gochi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(middleware.RequestID)
	r.Use(WideEvent(s.logger))
	r.Use(mw...)
	s.Routes(r)
	return r
}
