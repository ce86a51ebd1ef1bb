package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/lettuce/party-app/internal/metrics"
	"github.com/lettuce/party-app/internal/ratelimit"
)

// NewRouter builds the chi router for the API server. The limiter applies
// per-IP throttling to every /api/v1 route; join attempts carry an extra
// per-user limit inside the handler.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimitMiddleware(h.limiter, ratelimit.RuleAPI))
		r.Use(metricsMiddleware)

		r.Route("/recommendations", func(r chi.Router) {
			r.Get("/events", h.RecommendEvents)
			r.Get("/people", h.RecommendPeople)
		})

		r.Route("/events", func(r chi.Router) {
			r.Post("/", h.CreateEvent)
			r.Post("/join", h.JoinEvent)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetEvent)
				r.Get("/attendees", h.EventAttendees)
				r.Post("/leave", h.LeaveEvent)
				r.Delete("/", h.DeactivateEvent)
			})
		})

		r.Route("/me", func(r chi.Router) {
			r.Put("/profile", h.UpsertProfile)
			r.Get("/interests", h.GetInterests)
			r.Put("/interests", h.SetInterests)
			r.Post("/interests", h.AddInterest)
			r.Delete("/interests/{interest}", h.RemoveInterest)

			r.Route("/socials", func(r chi.Router) {
				r.Get("/", h.ListSocials)
				r.Post("/", h.AddSocial)
				r.Delete("/{platformID}", h.RemoveSocial)
				r.Put("/{platformID}/visibility", h.SetSocialVisibility)
			})
		})
	})

	return r
}

// Health reports liveness for load balancer checks.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
