package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/food-facility-search/internal/core/config"
	"github.com/mohammed-shakir/food-facility-search/internal/core/health"
	middleware "github.com/mohammed-shakir/food-facility-search/internal/core/middleware"
	"github.com/mohammed-shakir/food-facility-search/internal/core/router"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Searcher router.Searcher
	// Ready holds the checks behind /readyz, keyed by dependency name.
	Ready map[string]health.Pinger
	// Metrics overrides the default Prometheus handler.
	Metrics http.Handler
}

func NewHandler(cfg config.Config, logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	metrics := d.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(3*time.Second, d.Ready))
	r.Method(http.MethodGet, "/metrics", metrics)
	r.Get("/", router.Home())

	limiter := middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	r.Group(func(r chi.Router) {
		r.Use(limiter.Handler)
		r.Post("/search_applicant", router.SearchApplicant(logger, d.Searcher))
		r.Post("/search_nearby", router.SearchNearby(logger, d.Searcher))
	})
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(cfg, logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
