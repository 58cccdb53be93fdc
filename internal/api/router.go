package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dealhub/dealhub/internal/api/handlers"
	"github.com/dealhub/dealhub/internal/api/middleware"
	"github.com/dealhub/dealhub/internal/config"
	"github.com/dealhub/dealhub/internal/service"
)

// NewRouter creates a chi router with all routes and middleware configured.
// postgres may be nil (tests); the db health probe then reports unavailable.
func NewRouter(
	dealSvc *service.DealService,
	claimSvc *service.ClaimService,
	postgres *sqlx.DB,
	cfg *config.Config,
	logger *zap.Logger,
) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.Identity)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	dealsHandler := handlers.NewDealsHandler(dealSvc, logger)
	claimsHandler := handlers.NewClaimsHandler(claimSvc, logger)
	healthHandler := handlers.NewHealthHandler(postgres)

	submitLimiter := middleware.NewRateLimiter(
		cfg.Claims.SubmitRatePerUser, cfg.Claims.SubmitBurst)

	r.Route("/api/v1", func(r chi.Router) {
		// Deal catalog
		r.Get("/deals", dealsHandler.List)
		r.Get("/deals/{dealID}", dealsHandler.Get)
		r.With(middleware.RequireUser, middleware.RequireAdmin).Post("/deals", dealsHandler.Create)
		r.With(middleware.RequireUser, middleware.RequireAdmin).Put("/deals/{dealID}", dealsHandler.Update)
		r.With(middleware.RequireUser, middleware.RequireAdmin).Delete("/deals/{dealID}", dealsHandler.Delete)

		// Claim admission
		r.With(middleware.RequireUser, submitLimiter.Limit).Post("/deals/{dealID}/claim", claimsHandler.Submit)

		// Claim reads
		r.With(middleware.RequireUser).Get("/claims/my", claimsHandler.ListMine)
		r.With(middleware.RequireUser).Get("/claims/{claimID}", claimsHandler.Get)

		// Review workflow
		r.With(middleware.RequireUser, middleware.RequireAdmin).Get("/claims", claimsHandler.ListAll)
		r.With(middleware.RequireUser, middleware.RequireAdmin).Put("/claims/{claimID}/approve", claimsHandler.Approve)
		r.With(middleware.RequireUser, middleware.RequireAdmin).Put("/claims/{claimID}/reject", claimsHandler.Reject)
	})

	// Health and metrics endpoints
	r.Get("/health", healthHandler.Handle)
	r.Get("/health/db", healthHandler.HandleDB)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
