/*
Package handler provides the HTTP handlers and routing setup for the relay server.

This file defines the main Router, applying middleware for logging, CORS and
panic recovery, and rate limiting WebSocket upgrades per client IP before
delegating to the health and WebSocket handlers.
*/
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"relaychat/internal/pkg/limiter"
	"relaychat/internal/pkg/logx"
)

const (
	ServiceName = "Relay Chat Server"

	// healthTimeout bounds the presence query made by /health.
	healthTimeout = 2 * time.Second
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// The upgrade limiter's janitor stops when ctx is cancelled.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	upgradeLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(deps.Config.UpgradeRate), deps.Config.UpgradeBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", HandleHealth(deps))

	r.With(upgradeLimiter.Middleware).Get("/ws", HandleWebSocket(deps, wsUpgrader))

	return r
}
