// Package app wires the search service and its dependencies from config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/food-facility-search/internal/cache"
	"github.com/mohammed-shakir/food-facility-search/internal/cache/memory"
	"github.com/mohammed-shakir/food-facility-search/internal/cache/redisstore"
	"github.com/mohammed-shakir/food-facility-search/internal/core/config"
	"github.com/mohammed-shakir/food-facility-search/internal/core/health"
	"github.com/mohammed-shakir/food-facility-search/internal/core/httpclient"
	"github.com/mohammed-shakir/food-facility-search/internal/core/server"
	"github.com/mohammed-shakir/food-facility-search/internal/db"
	"github.com/mohammed-shakir/food-facility-search/internal/distance"
	"github.com/mohammed-shakir/food-facility-search/internal/invalidation/kafkaconsumer"
	h3mapper "github.com/mohammed-shakir/food-facility-search/internal/mapper/h3"
	"github.com/mohammed-shakir/food-facility-search/internal/permits"
	"github.com/mohammed-shakir/food-facility-search/internal/search"
	"github.com/mohammed-shakir/food-facility-search/internal/searchevents"
)

type App struct {
	Config   config.Config
	Logger   *slog.Logger
	DB       *db.Handle
	Store    *permits.Store
	Cache    cache.Interface
	Matrix   distance.Matrix
	Search   *search.Service
	Events   *searchevents.Publisher
	Consumer *kafkaconsumer.Consumer

	closers []func() error
}

// New opens every dependency named by cfg. On error anything already
// opened is closed.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	h, err := db.Open(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	a.DB = h
	a.closers = append(a.closers, h.Close)
	a.Store = permits.NewStore(h.Gorm)

	switch cfg.CacheDriver {
	case "redis":
		rc, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("redis client: %w", err)
		}
		a.Cache = rc
		a.closers = append(a.closers, rc.Close)
	default:
		a.Cache = memory.New(cfg.CacheSize, cfg.CacheTTL)
	}

	if cfg.GoogleAPIKey != "" {
		a.Matrix = distance.NewGoogleMatrix(httpclient.NewOutbound(), cfg.DistanceMatrixURL, cfg.GoogleAPIKey, logger)
	} else {
		logger.Warn("GOOGLE_API_KEY not set, using straight-line distances")
		a.Matrix = distance.Haversine{}
	}

	opts := search.Options{
		CacheTTL:       cfg.CacheTTL,
		CacheOpTimeout: cfg.CacheOpTimeout,
		BatchSize:      cfg.DistanceBatchSize,
		Workers:        cfg.DistanceWorkers,
		NearbyLimit:    cfg.NearbyLimit,
		ApplicantLimit: cfg.ApplicantLimit,
	}
	if cfg.H3PrefilterK > 0 {
		mp, err := h3mapper.New(cfg.H3Res, cfg.H3PrefilterK)
		if err != nil {
			return nil, fmt.Errorf("h3 prefilter: %w", err)
		}
		opts.Prefilter = mp
	}
	if cfg.SearchEvents.Enabled {
		p, err := searchevents.NewPublisher(cfg.SearchEvents.Brokers, cfg.SearchEvents.Topic, cfg.SearchEvents.QueueSize, logger)
		if err != nil {
			return nil, err
		}
		a.Events = p
		a.closers = append(a.closers, p.Close)
		opts.Events = p
	}
	a.Search = search.New(logger, a.Store, a.Cache, a.Matrix, opts)

	if cfg.Invalidation.Enabled {
		a.Consumer = kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Invalidation), logger, a.Cache)
	}
	return a, nil
}

// ReadyChecks are the dependencies /readyz waits on.
func (a *App) ReadyChecks() map[string]health.Pinger {
	checks := map[string]health.Pinger{"db": a.DB}
	if p, ok := a.Cache.(health.Pinger); ok {
		checks["cache"] = p
	}
	if a.Consumer != nil {
		checks["invalidation"] = a.Consumer
	}
	return checks
}

// Run serves HTTP and, when enabled, consumes invalidation events until ctx
// is done.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, a.Config, a.Logger, server.Deps{
			Searcher: a.Search,
			Ready:    a.ReadyChecks(),
		})
	})
	if a.Consumer != nil {
		g.Go(func() error { return a.Consumer.Start(ctx) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// Close releases dependencies in reverse open order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
