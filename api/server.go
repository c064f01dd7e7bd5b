/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  Under /api additionally:
  5. Authenticator: Bearer JWT -> leave.Actor (except /api/scenarios)
  6. Rate limit:    Per-user token bucket on mutating routes

ROUTE GROUPS:
  /healthz              Liveness + storage ping
  /api/leave-requests/* Request lifecycle
  /api/me/*             Caller's balances and notifications
  /api/users/*          Balances by user
  /api/leave-types      Leave type catalogue
  /api/admin/*          Admin operations
  /api/scenarios/*      Demo data (only when enabled)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Identity middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	CORSOrigins []string
	// Zero RateLimitRPS disables rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, auth *Authenticator, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	// Browsers refuse credentialed responses for a wildcard origin.
	credentials := !slices.Contains(origins, "*")

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: credentials,
	}))

	limit := func(next http.Handler) http.Handler { return next }
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limit = RateLimitByActor(NewKeyedRateLimiter(rate.Limit(opts.RateLimitRPS), burst))
	}

	r.Get("/healthz", h.Healthz)

	r.Route("/api", func(r chi.Router) {
		// Scenario routes are unauthenticated; they hand out dev tokens.
		if h.scenariosEnabled() {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			// Leave request routes
			r.Route("/leave-requests", func(r chi.Router) {
				r.Get("/", h.ListLeaveRequests)
				r.With(limit).Post("/", h.CreateLeaveRequest)
				r.Get("/{id}", h.GetLeaveRequest)
				r.With(limit).Post("/{id}/decision", h.DecideLeaveRequest)
			})

			// Caller routes
			r.Route("/me", func(r chi.Router) {
				r.Get("/balances", h.GetMyBalances)
				r.Get("/notifications", h.ListNotifications)
				r.With(limit).Post("/notifications/{id}/read", h.MarkNotificationRead)
			})

			r.Get("/users/{id}/balances", h.GetUserBalances)
			r.Get("/leave-types", h.ListLeaveTypes)

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(limit)
				r.Get("/leave-requests", h.ListAllLeaveRequests)
				r.Put("/leave-requests/{id}", h.UpdateLeaveRequestStatus)
				r.Post("/balances", h.SetBalance)
				r.Post("/balances/release", h.ReleaseBalance)
				r.Get("/leave-types", h.ListLeaveTypes)
				r.Post("/leave-types", h.CreateLeaveType)
				r.Get("/users", h.ListUsers)
				r.Get("/users/pending", h.ListPendingUsers)
				r.Post("/users/{id}/approve", h.ApproveUser)
			})
		})
	})

	return r
}
