package distance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/food-facility-search/internal/core/apperr"
	"github.com/mohammed-shakir/food-facility-search/internal/core/model"
	"github.com/mohammed-shakir/food-facility-search/internal/core/observability"
)

type ResolveOptions struct {
	BatchSize int
	Workers   int
	Logger    *slog.Logger
}

// Resolve fans permits out to m in batches with at most Workers batches in
// flight. A failed batch counts as empty; if every batch fails the result is
// an upstream error. Output keeps batch order.
func Resolve(ctx context.Context, m Matrix, origin string, permits []model.Permit, opts ResolveOptions) ([]model.NearbyResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 25
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	batches := Chunk(permits, opts.BatchSize)
	if len(batches) == 0 {
		return []model.NearbyResult{}, nil
	}

	parts := make([][]model.NearbyResult, len(batches))
	var (
		mu       sync.Mutex
		failed   int
		firstErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, b := range batches {
		g.Go(func() error {
			bctx, span := observability.Tracer().Start(gctx, "distance.batch")
			span.SetAttributes(
				attribute.String("provider", m.Name()),
				attribute.Int("batch.index", i),
				attribute.Int("batch.size", len(b)),
			)
			defer span.End()

			res, err := m.Distances(bctx, origin, b)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				span.RecordError(err)
				span.SetStatus(codes.Error, "batch failed")
				observability.IncDistanceBatch(m.Name(), "error")
				logger.WarnContext(ctx, "distance batch failed", "batch", i, "err", err)
				mu.Lock()
				failed++
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return nil
			}
			if len(res) == 0 {
				observability.IncDistanceBatch(m.Name(), "empty")
			} else {
				observability.IncDistanceBatch(m.Name(), "ok")
			}
			parts[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve distances: %w", err)
	}

	if failed == len(batches) {
		err := firstErr
		if err == nil {
			err = errors.New("all distance batches failed")
		}
		return nil, apperr.Upstream("distance lookup failed", err).WithOp("distance.Resolve")
	}

	out := make([]model.NearbyResult, 0, len(permits))
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

// Nearest sorts by ascending distance (ties keep input order) and keeps at
// most limit results. limit <= 0 keeps all.
func Nearest(rs []model.NearbyResult, limit int) []model.NearbyResult {
	out := slices.Clone(rs)
	slices.SortStableFunc(out, func(a, b model.NearbyResult) int {
		switch {
		case a.DistanceKM < b.DistanceKM:
			return -1
		case a.DistanceKM > b.DistanceKM:
			return 1
		default:
			return 0
		}
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []model.NearbyResult{}
	}
	return out
}
