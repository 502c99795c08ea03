package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tipstream/internal/api/http/mw"
	"tipstream/internal/metrics"
)

func BuildRouter(
	api *API,
	logMW *mw.LoggingMiddleware,
	gzipMW *mw.GzipMiddleware,
	corsMW *mw.CORSMiddleware,
	authMW *mw.AuthMiddleware,
	rateLimitMW *mw.RateLimitMiddleware,
) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if logMW != nil {
		r.Use(logMW.Handler)
	}
	if gzipMW != nil {
		r.Use(gzipMW.Handler)
	}
	if corsMW != nil {
		r.Use(corsMW.Handler())
	}

	// tech endpoints, no auth
	r.Get("/healthz", api.Healthz)
	r.Get("/readiness", api.Readiness)
	r.Mount("/metrics", metrics.Handler())

	r.Route("/api", func(apiR chi.Router) {
		// webhook write path: auth rejects before the body is parsed
		apiR.Group(func(hook chi.Router) {
			if rateLimitMW != nil {
				hook.Use(rateLimitMW.Handler)
			}
			if authMW != nil {
				hook.Use(authMW.Handler)
			}
			hook.Post("/chainhook/events", api.IngestEvents)
		})

		// public query surface
		apiR.Get("/tips", api.ListTips)
		apiR.Get("/tips/user/{address}", api.TipsByUser)
		apiR.Get("/tips/{tipID:[0-9]+}", api.TipByID)
		apiR.Get("/stats", api.Stats)
		apiR.Get("/leaderboard", api.Leaderboard)
	})

	return r
}
