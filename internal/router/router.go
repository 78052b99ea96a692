package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mytune-auth/internal/config"
	"mytune-auth/internal/handler"
	"mytune-auth/internal/middleware"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	User    *handler.UserHandler
	Health  *handler.HealthHandler
	Metrics http.Handler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.AuthRateLimitRPM)

	r.Use(middleware.ClientIP(cfg.TrustedProxies))
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", h.Health.Health)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/api/auth", func(auth chi.Router) {
		auth.Use(middleware.Timeout(cfg.RequestTimeout))

		auth.With(rateLimitMiddleware.Handler).Post("/register", h.Auth.Register)
		auth.With(rateLimitMiddleware.Handler).Post("/login", h.Auth.Login)
		auth.Post("/refresh", h.Auth.Refresh)

		auth.Group(func(private chi.Router) {
			private.Use(authMiddleware.RequireAuth)

			private.Post("/logout", h.Auth.Logout)
			private.Post("/logout-all", h.Auth.LogoutAll)
			private.Get("/profile", h.User.Profile)
			private.Get("/sessions", h.User.Sessions)
			private.With(rateLimitMiddleware.Handler).Post("/change-password", h.User.ChangePassword)
		})
	})

	return r
}
