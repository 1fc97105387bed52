package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/lifedash-auth/internal/domain"
	"github.com/utafrali/lifedash-auth/internal/ratelimit"
	"github.com/utafrali/lifedash-auth/internal/service"
	"github.com/utafrali/lifedash-auth/pkg/health"
	"github.com/utafrali/lifedash-auth/pkg/httputil"
	"github.com/utafrali/lifedash-auth/pkg/middleware"
)

// MsgServiceRunning is the /health message.
const MsgServiceRunning = "Auth service is running"

// RouterConfig holds the HTTP edge settings.
type RouterConfig struct {
	Environment          string
	CORSAllowedOrigins   []string
	TrustProxyHeaders    bool
	UserListRequireAdmin bool
	PprofEnabled         bool
	PprofAllowedCIDRs    []string
}

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	Service *service.UserService
	Health  *health.Handler
	// Limiter throttles register and login. Nil disables throttling.
	Limiter  ratelimit.Limiter
	Metrics  *service.Metrics
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// NewRouter creates a chi router with all auth service routes registered.
func NewRouter(deps Dependencies, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	logger := deps.Logger

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.Environment = cfg.Environment

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.NewHTTPMetrics(deps.Registry, "auth").Handler)
	r.Use(middleware.CORS(cors))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteFailure(w, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteFailure(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	// Health check endpoints
	r.Get("/health", deps.Health.ServiceHandler(MsgServiceRunning))
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{Registry: deps.Registry}))

	if cfg.PprofEnabled {
		middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)
	}

	// Credential endpoints (public)
	authHandler := NewAuthHandler(deps.Service, logger, cfg.TrustProxyHeaders)
	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.NoStore)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireJSON)
			if deps.Limiter != nil {
				keyFn := func(req *http.Request) string {
					return middleware.ClientIP(req, cfg.TrustProxyHeaders)
				}
				r.Use(ratelimit.Middleware(deps.Limiter, keyFn, deps.Metrics.RateLimited))
			}
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})
		// Logout ignores its body and always succeeds.
		r.Post("/logout", authHandler.Logout)
	})

	// User endpoints (token required)
	userHandler := NewUserHandler(deps.Service, logger)
	r.Route("/user", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(middleware.Auth(deps.Service.VerifyToken))

		r.Get("/me", userHandler.Me)
		if cfg.UserListRequireAdmin {
			r.With(middleware.RequireRole(domain.RoleAdmin)).Get("/all", userHandler.All)
		} else {
			r.Get("/all", userHandler.All)
		}
	})

	return r
}
