package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-contacts-api/internal/config"
	"go-contacts-api/internal/handler"
	"go-contacts-api/internal/metrics"
	"go-contacts-api/internal/middleware"
)

type Handlers struct {
	Auth     *handler.AuthHandler
	Contacts *handler.ContactHandler
	Health   *handler.HealthHandler
	Docs     *handler.DocsHandler
}

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	contactsLimiter middleware.WindowLimiter,
	m *metrics.Metrics,
	h Handlers,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	if m != nil {
		r.Use(middleware.Metrics(m))
	}
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/", h.Health.Root)
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}
	if h.Docs != nil {
		r.Get("/openapi.yaml", h.Docs.OpenAPI)
		r.Get("/swagger", h.Docs.SwaggerUI)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Get("/healthchecker", h.Health.HealthChecker)

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/signup", h.Auth.Signup)
			auth.Post("/login", h.Auth.Login)
			auth.Get("/refresh_token", h.Auth.Refresh)
			auth.Get("/confirmed_email/{token}", h.Auth.ConfirmEmail)
			auth.Post("/request_email", h.Auth.RequestEmail)
			auth.With(authMiddleware.RequireAuth).Post("/logout", h.Auth.Logout)
			auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
			auth.With(authMiddleware.RequireAuth).Get("/activity", h.Auth.Activity)
		})

		api.Route("/contacts", func(contacts chi.Router) {
			if contactsLimiter != nil {
				contacts.Use(middleware.Throttle(contactsLimiter, "contacts"))
			}
			contacts.Use(authMiddleware.RequireAuth)

			contacts.Get("/", h.Contacts.List)
			contacts.Post("/", h.Contacts.Create)
			contacts.Get("/search", h.Contacts.Search)
			contacts.Get("/birthdays", h.Contacts.Birthdays)
			contacts.Get("/{id}", h.Contacts.Get)
			contacts.Put("/{id}", h.Contacts.Update)
			contacts.Delete("/{id}", h.Contacts.Delete)
		})
	})

	return r
}
