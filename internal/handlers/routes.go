package handlers

import (
	"net/http"

	"github.com/ukydev/bridge-traffic-sim/internal/middleware"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
)

// NewRouter mounts the operator API. Login is rate limited per client IP.
func NewRouter(authHandler *AuthHandler, api *APIHandler, authMW *middleware.AuthMiddleware, limiter *middleware.RateLimitMiddleware) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", api.Health)
	mux.Handle("/api/auth/login", limiter.RateLimit(10, 60)(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("/api/auth/me", authHandler.Me)
	mux.Handle("/api/state", authMW.RequirePermission(models.ActionViewState)(http.HandlerFunc(api.State)))
	mux.Handle("/api/lights", authMW.RequirePermission(models.ActionCommandLights)(http.HandlerFunc(api.Lights)))
	mux.Handle("/api/events", authMW.RequirePermission(models.ActionViewEvents)(http.HandlerFunc(api.Events)))

	return middleware.Logging(authMW.Authenticate(mux))
}
