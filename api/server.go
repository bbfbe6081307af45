/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from X-Forwarded-For / X-Real-IP
  3. Logger:     zap request logging (see middleware.go)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the scheduling UI
  6. RateLimit:  Token bucket per client IP (see middleware.go)

ROUTE GROUPS:
  /api/periods/*      Payroll period sequence, summaries, conflicts
  /api/shifts/*       Shift CRUD, import, auto-fill
  /api/conflicts      Conflict scan by date range
  /api/exclusions/*   Blackout windows
  /api/hour-limits    Weekly hour caps
  /api/budgets        Child budgets
  /api/rates          Employee hourly rates
  /api/allocations    Planned hours per period
  /api/forecast/*     Patterns, projections, availability, recommendations
  /api/scenarios/*    Demo data loaders (resets the store)
  /api/health         Liveness

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	AllowOrigins []string
	RateLimitRPS float64
	RateBurst    int
	Logger       *zap.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(RateLimit(opts.RateLimitRPS, opts.RateBurst, logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/periods", func(r chi.Router) {
			r.Get("/", h.ListPeriods)
			r.Post("/configure", h.ConfigurePeriods)
			r.Get("/current", h.CurrentPeriod)
			r.Get("/{id}/next", h.NextPeriod)
			r.Get("/{id}/previous", h.PreviousPeriod)
			r.Get("/{id}/summary", h.PeriodSummary)
			r.Get("/{id}/conflicts", h.PeriodConflicts)
		})

		r.Route("/shifts", func(r chi.Router) {
			r.Get("/", h.ListShifts)
			r.Post("/", h.CreateShift)
			r.Post("/import", h.ImportShifts)
			r.Post("/auto-fill", h.AutoFill)
			r.Put("/{id}", h.UpdateShift)
			r.Delete("/{id}", h.DeleteShift)
		})

		r.Get("/conflicts", h.ListConflicts)

		r.Route("/exclusions", func(r chi.Router) {
			r.Get("/", h.ListExclusions)
			r.Post("/", h.CreateExclusion)
			r.Delete("/{id}", h.DeleteExclusion)
		})

		r.Route("/hour-limits", func(r chi.Router) {
			r.Get("/", h.ListHourLimits)
			r.Post("/", h.SaveHourLimit)
		})

		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", h.ListBudgets)
			r.Post("/", h.CreateBudget)
		})

		r.Route("/rates", func(r chi.Router) {
			r.Get("/", h.ListRates)
			r.Post("/", h.AddRate)
		})

		r.Route("/allocations", func(r chi.Router) {
			r.Get("/", h.ListAllocations)
			r.Post("/", h.SaveAllocation)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		r.Route("/forecast", func(r chi.Router) {
			r.Get("/patterns", h.Patterns)
			r.Get("/projections", h.Projections)
			r.Get("/available-hours", h.AvailableHours)
			r.Get("/recommendations", h.Recommendations)
			r.Get("/summary", h.ForecastSummary)
		})
	})

	return r
}
