// Package router wires the public HTTP surface of §6 behind the
// teacher's middleware chain shape: CORS, security headers, request ID,
// panic recovery, request logger, body-size limit, then auth and the
// per-route handlers.
package router

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/relayforge/gateway/config"
	"github.com/relayforge/gateway/handler"
	gwmw "github.com/relayforge/gateway/middleware"
)

// NewRouter returns a configured chi Router with the full middleware
// chain and §6's routes mounted.
func NewRouter(cfg *config.Config, appLogger zerolog.Logger, proxyHandler *handler.ProxyHandler) http.Handler {
	r := chi.NewRouter()

	// --- Middleware chain (order matters) ---
	r.Use(gwmw.CORSMiddleware([]string{"*"}))
	r.Use(gwmw.SecurityHeadersMiddleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(mwRequestLogger(appLogger))
	r.Use(mwMaxBodySize(cfg.MaxBodyBytes))

	// --- Unauthenticated health and metrics endpoints ---
	r.Get("/health", proxyHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	headerNorm := gwmw.NewHeaderNormalization(appLogger)
	timeoutMW := gwmw.NewTimeoutMiddleware(appLogger, cfg)
	authMW := gwmw.NewAuthMiddleware(appLogger, cfg.APIKeyHeader, cfg.APIKeyPrefix)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMW.Handler)
		r.Use(headerNorm.Handler)
		r.Use(timeoutMW.Handler)

		r.Post("/chat/completions", proxyHandler.ChatCompletions)
		r.Get("/models", proxyHandler.ListModels)
		r.Get("/models/{id}", proxyHandler.GetModel)

		r.Route("/admin", func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler { return gwmw.RequireAdmin(cfg.AdminAPIKey, next) })
			r.Put("/models/{id}", proxyHandler.UpdateModel)
		})
	})

	return r
}

// mwMaxBodySize returns middleware that limits the request body size.
func mwMaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = 1 * 1024 * 1024
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			max := maxBytes
			if v := os.Getenv("GATEWAY_MAX_BODY_BYTES"); v != "" {
				if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
					max = parsed
				}
			}

			if r.ContentLength > 0 && r.ContentLength > max {
				http.Error(w, `{"error":{"message":"request body too large","type":"api_error","code":413}}`, http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}

func mwRequestLogger(appLogger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			dur := time.Since(start)
			reqID := chimw.GetReqID(r.Context())
			appLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("req_id", reqID).
				Int("status", rw.Status()).
				Dur("duration", dur).
				Msg("request completed")
		})
	}
}
