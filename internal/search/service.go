// Package search implements the applicant and nearby food facility searches.
package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mohammed-shakir/food-facility-search/internal/cache"
	"github.com/mohammed-shakir/food-facility-search/internal/cache/keys"
	"github.com/mohammed-shakir/food-facility-search/internal/core/apperr"
	"github.com/mohammed-shakir/food-facility-search/internal/core/model"
	"github.com/mohammed-shakir/food-facility-search/internal/core/observability"
	"github.com/mohammed-shakir/food-facility-search/internal/distance"
	mylog "github.com/mohammed-shakir/food-facility-search/internal/logger"
	h3mapper "github.com/mohammed-shakir/food-facility-search/internal/mapper/h3"
	"github.com/mohammed-shakir/food-facility-search/internal/searchevents"
)

const (
	KindNearby    = "nearby"
	KindApplicant = "applicant"
)

// Messages returned to clients for invalid input.
const (
	MsgCoordinatesRequired = "Latitude and longitude are required"
	MsgCoordinatesNumeric  = "Latitude and longitude must be numeric"
	MsgStatusesNotList     = "statuses must be a list"
)

// PermitStore is the subset of permits.Store the service reads from.
type PermitStore interface {
	ByStatuses(ctx context.Context, statuses []string) ([]model.Permit, error)
	SearchApplicant(ctx context.Context, q model.ApplicantQuery, limit int) ([]model.Permit, error)
}

// EventSink receives one event per completed search.
type EventSink interface {
	Publish(ev searchevents.Event)
}

type Options struct {
	CacheTTL       time.Duration
	CacheOpTimeout time.Duration
	BatchSize      int
	Workers        int
	NearbyLimit    int
	ApplicantLimit int
	// Prefilter, when set, drops permits outside an H3 grid disk around the
	// origin before distances are requested.
	Prefilter *h3mapper.Mapper
	Events    EventSink
}

type Service struct {
	logger  *slog.Logger
	store   PermitStore
	cache   cache.Interface
	matrix  distance.Matrix
	opts    Options
	nowFunc func() time.Time
}

func New(logger *slog.Logger, store PermitStore, c cache.Interface, m distance.Matrix, opts Options) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.BatchSize <= 0 || opts.BatchSize > 25 {
		opts.BatchSize = 25
	}
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.NearbyLimit <= 0 {
		opts.NearbyLimit = 5
	}
	if opts.ApplicantLimit <= 0 {
		opts.ApplicantLimit = 30
	}
	return &Service{
		logger:  logger,
		store:   store,
		cache:   c,
		matrix:  m,
		opts:    opts,
		nowFunc: time.Now,
	}
}

// SearchApplicant returns permits whose applicant (and address, when given)
// contain the query text, restricted to the status set.
func (s *Service) SearchApplicant(ctx context.Context, q model.ApplicantQuery) ([]model.FoodTruck, error) {
	ctx = mylog.WithSearchKind(ctx, KindApplicant)
	ctx, span := observability.Tracer().Start(ctx, "search.applicant")
	defer span.End()

	q.Applicant = strings.ToLower(strings.TrimSpace(q.Applicant))
	q.Address = strings.ToLower(strings.TrimSpace(q.Address))
	q.Statuses = model.NormalizeStatuses(q.Statuses)
	span.SetAttributes(
		attribute.String("applicant", q.Applicant),
		attribute.StringSlice("statuses", q.Statuses),
	)

	ps, err := s.store.SearchApplicant(ctx, q, s.opts.ApplicantLimit)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "applicant search failed", "err", err)
		return nil, apperr.Internal("applicant search failed", err).WithOp("search.SearchApplicant")
	}

	out := make([]model.FoodTruck, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.FoodTruck())
	}
	observability.ObserveSearchResults(KindApplicant, len(out))
	s.publish(searchevents.Event{
		Kind:      KindApplicant,
		Applicant: q.Applicant,
		Statuses:  q.Statuses,
		Results:   len(out),
	})
	return out, nil
}

// SearchNearby returns the closest permits to the origin by road distance,
// nearest first. Results are cached per origin and status set.
func (s *Service) SearchNearby(ctx context.Context, q model.NearbyQuery) ([]model.NearbyResult, error) {
	ctx = mylog.WithSearchKind(ctx, KindNearby)
	ctx, span := observability.Tracer().Start(ctx, "search.nearby")
	defer span.End()

	q.Latitude = strings.TrimSpace(q.Latitude)
	q.Longitude = strings.TrimSpace(q.Longitude)
	if q.Latitude == "" || q.Longitude == "" {
		return nil, apperr.Validation(MsgCoordinatesRequired)
	}
	lat, errLat := strconv.ParseFloat(q.Latitude, 64)
	lon, errLon := strconv.ParseFloat(q.Longitude, 64)
	if errLat != nil || errLon != nil || !validCoordinate(lat, 90) || !validCoordinate(lon, 180) {
		return nil, apperr.Validation(MsgCoordinatesNumeric)
	}
	q.Statuses = model.NormalizeStatuses(q.Statuses)
	span.SetAttributes(
		attribute.String("origin", q.Origin()),
		attribute.StringSlice("statuses", q.Statuses),
	)

	key := keys.Nearby(q.Latitude, q.Longitude, q.Statuses)
	if cached, ok := s.cacheGet(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		s.publishNearby(q, len(cached), true)
		return cached, nil
	}

	ps, err := s.store.ByStatuses(ctx, q.Statuses)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "loading permits failed", "err", err)
		return nil, apperr.Internal("nearby search failed", err).WithOp("search.SearchNearby")
	}

	if s.opts.Prefilter != nil {
		filtered, err := s.opts.Prefilter.Filter(lat, lon, ps)
		if err != nil {
			s.logger.WarnContext(ctx, "h3 prefilter failed, using all permits", "err", err)
		} else {
			s.logger.DebugContext(ctx, "h3 prefilter", "before", len(ps), "after", len(filtered))
			ps = filtered
		}
	}

	rs, err := distance.Resolve(ctx, s.matrix, q.Origin(), ps, distance.ResolveOptions{
		BatchSize: s.opts.BatchSize,
		Workers:   s.opts.Workers,
		Logger:    s.logger,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	out := distance.Nearest(rs, s.opts.NearbyLimit)

	s.cacheSet(ctx, key, out)
	s.publishNearby(q, len(out), false)
	return out, nil
}

// ParseFloat accepts NaN and Inf, which no distance provider can place.
func validCoordinate(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= limit
}

func (s *Service) cacheGet(ctx context.Context, key string) ([]model.NearbyResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()

	b, ok, err := s.cache.Get(cctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "cache get failed", "err", err, "key", key)
		observability.IncCacheMiss(s.cache.Name())
		return nil, false
	}
	if !ok {
		observability.IncCacheMiss(s.cache.Name())
		return nil, false
	}
	var out []model.NearbyResult
	if err := json.Unmarshal(b, &out); err != nil {
		s.logger.WarnContext(ctx, "cache entry undecodable", "err", err, "key", key)
		observability.IncCacheMiss(s.cache.Name())
		return nil, false
	}
	observability.IncCacheHit(s.cache.Name())
	if out == nil {
		out = []model.NearbyResult{}
	}
	return out, true
}

// cache writes are best effort
func (s *Service) cacheSet(ctx context.Context, key string, rs []model.NearbyResult) {
	if s.cache == nil {
		return
	}
	b, err := json.Marshal(rs)
	if err != nil {
		s.logger.WarnContext(ctx, "cache encode failed", "err", err)
		return
	}
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.cache.Set(cctx, key, b, s.opts.CacheTTL); err != nil {
		s.logger.WarnContext(ctx, "cache set failed", "err", err, "key", key)
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.CacheOpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.CacheOpTimeout)
}

func (s *Service) publishNearby(q model.NearbyQuery, n int, hit bool) {
	observability.ObserveSearchResults(KindNearby, n)
	s.publish(searchevents.Event{
		Kind:     KindNearby,
		Lat:      q.Latitude,
		Lon:      q.Longitude,
		Statuses: q.Statuses,
		Results:  n,
		CacheHit: hit,
	})
}

func (s *Service) publish(ev searchevents.Event) {
	if s.opts.Events == nil {
		return
	}
	ev.TS = s.nowFunc().UTC()
	s.opts.Events.Publish(ev)
}
