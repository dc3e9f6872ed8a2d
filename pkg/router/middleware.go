package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	apperrors "github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/httpx"
	"github.com/unrolled/secure"
)

// MiddlewareConfig configures the middleware chain of the admin API.
type MiddlewareConfig struct {
	CORSOrigins []string
	RateLimit   int
	RateWindow  time.Duration
	Production  bool
}

// Middlewares returns the chain in the order it is applied: request id, real
// ip, panic recovery, request log, security headers, CORS, rate limit.
func Middlewares(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		STSSeconds:         stsSeconds(cfg.Production),
		IsDevelopment:      !cfg.Production,
	})

	chain := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		RequestLogger,
		secureMiddleware.Handler,
	}
	if len(cfg.CORSOrigins) > 0 {
		chain = append(chain, cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if cfg.RateLimit > 0 && cfg.RateWindow > 0 {
		chain = append(chain, httprate.Limit(cfg.RateLimit, cfg.RateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Error(w, r, apperrors.New(apperrors.ErrCodeRateLimited, "too many requests"))
			}),
		))
	}
	return chain
}

// RequestLogger logs one line per request with slog.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		} else if status >= http.StatusBadRequest {
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"remote_ip", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func stsSeconds(production bool) int64 {
	if production {
		return 31536000
	}
	return 0
}
