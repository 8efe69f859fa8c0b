package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/pteroctrl-be/internal/api/handlers"
	"github.com/isdelr/pteroctrl-be/internal/auth"
	"github.com/isdelr/pteroctrl-be/internal/services"
	"github.com/isdelr/pteroctrl-be/internal/websocket"
)

// Dependencies bundles everything the HTTP layer talks to.
type Dependencies struct {
	Hub               *websocket.Hub
	ServerService     services.ServerServiceProvider
	EventService      services.EventServiceProvider
	UserService       services.UserServiceProvider
	WebhookService    services.WebhookServiceProvider
	ScheduleService   services.ScheduleServiceProvider
	AutomationService services.AutomationServiceProvider

	// Metrics serves /metrics when set.
	Metrics http.Handler

	CORSOrigins  []string
	SecureCookie bool
	DiskPath     string
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	serverHandler := handlers.NewServerHandler(deps.ServerService, deps.EventService)
	automationHandler := handlers.NewAutomationHandler(deps.AutomationService)
	eventHandler := handlers.NewEventHandler(deps.EventService)
	userHandler := handlers.NewUserHandler(deps.UserService, deps.SecureCookie)
	webhookHandler := handlers.NewWebhookHandler(deps.WebhookService)
	scheduleHandler := handlers.NewScheduleHandler(deps.ScheduleService, deps.ServerService)
	systemHandler := handlers.NewSystemHandler(deps.DiskPath)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.CORSOrigins)

	r.Get("/api/health", systemHandler.Health)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users/login", userHandler.Login)
		r.Post("/users/logout", userHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(auth.JWTMiddleware())

			r.Get("/ws", wsHandler.Serve)

			r.Route("/users/me", func(r chi.Router) {
				r.Get("/", userHandler.GetMe)
				r.Put("/password", userHandler.ChangePassword)
			})

			r.Route("/servers", func(r chi.Router) {
				r.Get("/", serverHandler.GetAll)
				r.Post("/", serverHandler.Create)
				r.Post("/sync", serverHandler.Sync)
				r.Post("/bulk-action", serverHandler.BulkAction)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", serverHandler.Get)
					r.Put("/", serverHandler.Update)
					r.Delete("/", serverHandler.Delete)
					r.Post("/action", serverHandler.PerformAction)
					r.Get("/history", serverHandler.History)
					r.Get("/logs", serverHandler.Logs)
					r.Get("/ws", wsHandler.Serve)

					r.Route("/schedules", func(r chi.Router) {
						r.Get("/", scheduleHandler.GetAllForServer)
						r.Post("/", scheduleHandler.Create)
						r.Put("/{scheduleId}", scheduleHandler.Update)
						r.Delete("/{scheduleId}", scheduleHandler.Delete)
					})
				})
			})

			r.Route("/automation", func(r chi.Router) {
				r.Post("/check", automationHandler.Check)
				r.Get("/summary", automationHandler.Summary)
				r.Get("/rules", automationHandler.Rules)
			})

			r.Get("/events", eventHandler.GetRecent)

			r.Route("/webhooks", func(r chi.Router) {
				r.Get("/", webhookHandler.GetAll)
				r.Post("/", webhookHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", webhookHandler.Get)
					r.Put("/", webhookHandler.Update)
					r.Delete("/", webhookHandler.Delete)
					r.Post("/test", webhookHandler.Test)
				})
			})

			r.Get("/system", systemHandler.Get)
		})
	})

	return r
}
