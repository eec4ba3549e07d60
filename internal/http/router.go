package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/rail-booking/internal/observability"
	"github.com/robertarktes/rail-booking/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, auth *Authenticator, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(MetricsMiddleware)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1/sessions/{sid}/booking", func(r chi.Router) {
		r.Use(TracingMiddleware)
		r.Use(JWTMiddleware(auth))
		r.Use(RateLimitMiddleware(rl))

		r.Post("/", h.StartBooking)
		r.Get("/", h.GetBooking)
		r.Put("/criteria", h.PutCriteria)
		r.Put("/passenger-count", h.PutPassengerCount)
		r.Post("/search", h.Search)
		r.Post("/search/retry", h.RetrySearch)
		r.Post("/selection", h.SelectTrain)
		r.Patch("/passengers/{id}", h.PatchPassenger)
		r.Post("/advance", h.Advance)
		r.Post("/back", h.Back)
		r.Post("/home", h.GoHome)
	})

	r.Route("/v1/bookings", func(r chi.Router) {
		r.Use(TracingMiddleware)
		r.Use(JWTMiddleware(auth))
		r.Use(RateLimitMiddleware(rl))

		r.Get("/{ref}", h.GetSubmission)
	})

	return r
}
