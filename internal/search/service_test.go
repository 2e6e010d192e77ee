package search_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/food-facility-search/internal/cache/memory"
	"github.com/mohammed-shakir/food-facility-search/internal/core/apperr"
	"github.com/mohammed-shakir/food-facility-search/internal/core/model"
	"github.com/mohammed-shakir/food-facility-search/internal/db"
	"github.com/mohammed-shakir/food-facility-search/internal/distance"
	h3mapper "github.com/mohammed-shakir/food-facility-search/internal/mapper/h3"
	"github.com/mohammed-shakir/food-facility-search/internal/permits"
	"github.com/mohammed-shakir/food-facility-search/internal/search"
	"github.com/mohammed-shakir/food-facility-search/internal/searchevents"
)

type countingMatrix struct {
	calls atomic.Int32
	err   error
	inner distance.Matrix
}

func (m *countingMatrix) Name() string { return "counting" }

func (m *countingMatrix) Distances(ctx context.Context, origin string, batch []model.Permit) ([]model.NearbyResult, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.inner.Distances(ctx, origin, batch)
}

type recordSink struct {
	mu     sync.Mutex
	events []searchevents.Event
}

func (r *recordSink) Publish(ev searchevents.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func newStore(t *testing.T) *permits.Store {
	t.Helper()
	g, err := db.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := g.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	s := permits.NewStore(g)
	_, err = s.Upsert(context.Background(), []model.Permit{
		{LocationID: 1, Applicant: "Taco Truck", Status: "APPROVED", Address: "123 Main St", Latitude: 37.7749, Longitude: -122.4194},
		{LocationID: 2, Applicant: "Burger Truck", Status: "APPROVED", Address: "456 Market St", Latitude: 37.7849, Longitude: -122.4094},
		{LocationID: 3, Applicant: "Pizza Truck", Status: "EXPIRED", Address: "789 Mission St", Latitude: 37.7649, Longitude: -122.4294},
		{LocationID: 4, Applicant: "Far Truck", Status: "APPROVED", Address: "1 Oakland Ave", Latitude: 37.8044, Longitude: -122.2712},
		{LocationID: 5, Applicant: "Ghost Truck", Status: "APPROVED", Address: "unknown"},
	})
	require.NoError(t, err)
	return s
}

func newService(t *testing.T, m distance.Matrix, opts search.Options) *search.Service {
	t.Helper()
	return search.New(nil, newStore(t), memory.New(64, time.Hour), m, opts)
}

func TestSearchNearby_SortedAndLimited(t *testing.T) {
	m := &countingMatrix{inner: distance.Haversine{}}
	svc := newService(t, m, search.Options{NearbyLimit: 2, BatchSize: 2, Workers: 2})

	got, err := svc.SearchNearby(context.Background(), model.NearbyQuery{
		Latitude: "37.7749", Longitude: "-122.4194", Statuses: model.Statuses{"approved"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Taco Truck", got[0].Applicant)
	assert.Equal(t, "Burger Truck", got[1].Applicant)
	assert.LessOrEqual(t, got[0].DistanceKM, got[1].DistanceKM)
	// 3 located APPROVED permits plus one unlocated, batches of 2
	assert.Equal(t, int32(2), m.calls.Load())
}

func TestSearchNearby_SecondCallServedFromCache(t *testing.T) {
	m := &countingMatrix{inner: distance.Haversine{}}
	sink := &recordSink{}
	svc := newService(t, m, search.Options{Events: sink})
	ctx := context.Background()

	q := model.NearbyQuery{Latitude: "37.7749", Longitude: "-122.4194", Statuses: model.Statuses{"APPROVED"}}
	first, err := svc.SearchNearby(ctx, q)
	require.NoError(t, err)

	q.Statuses = model.Statuses{" approved "}
	second, err := svc.SearchNearby(ctx, q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), m.calls.Load(), "distance provider called once")

	require.Len(t, sink.events, 2)
	assert.False(t, sink.events[0].CacheHit)
	assert.True(t, sink.events[1].CacheHit)
	assert.Equal(t, search.KindNearby, sink.events[1].Kind)
}

func TestSearchNearby_Validation(t *testing.T) {
	svc := newService(t, distance.Haversine{}, search.Options{})
	ctx := context.Background()

	_, err := svc.SearchNearby(ctx, model.NearbyQuery{Latitude: "37.77", Longitude: " "})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	code, msg := apperr.StatusAndMessage(err)
	assert.Equal(t, 400, code)
	assert.Equal(t, search.MsgCoordinatesRequired, msg)

	for _, c := range [][2]string{
		{"north", "-122"},
		{"NaN", "-122.4"},
		{"37.7", "Inf"},
		{"-Infinity", "-122.4"},
		{"91", "-122.4"},
		{"37.7", "-180.5"},
	} {
		_, err = svc.SearchNearby(ctx, model.NearbyQuery{Latitude: c[0], Longitude: c[1]})
		code, msg = apperr.StatusAndMessage(err)
		assert.Equal(t, 400, code, "lat=%s lon=%s", c[0], c[1])
		assert.Equal(t, search.MsgCoordinatesNumeric, msg, "lat=%s lon=%s", c[0], c[1])
	}

	_, err = svc.SearchNearby(ctx, model.NearbyQuery{Latitude: "-90", Longitude: "180", Statuses: model.Statuses{"APPROVED"}})
	require.NoError(t, err, "boundary values are valid")
}

// cacheOpSamples sums the cache_op_duration_seconds sample count for op.
func cacheOpSamples(t *testing.T, op string) uint64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	var n uint64
	for _, mf := range mfs {
		if mf.GetName() != "cache_op_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "op" && lp.GetValue() == op {
					n += m.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	return n
}

func TestSearchNearby_OneCacheSamplePerOp(t *testing.T) {
	svc := newService(t, distance.Haversine{}, search.Options{})
	gets, sets := cacheOpSamples(t, "get"), cacheOpSamples(t, "set")

	_, err := svc.SearchNearby(context.Background(), model.NearbyQuery{
		Latitude: "37.7749", Longitude: "-122.4194", Statuses: model.Statuses{"APPROVED"},
	})
	require.NoError(t, err)

	assert.Equal(t, gets+1, cacheOpSamples(t, "get"))
	assert.Equal(t, sets+1, cacheOpSamples(t, "set"))
}

func TestSearchNearby_AllBatchesFailIsUpstream(t *testing.T) {
	m := &countingMatrix{err: errors.New("quota")}
	svc := newService(t, m, search.Options{})

	_, err := svc.SearchNearby(context.Background(), model.NearbyQuery{
		Latitude: "37.7749", Longitude: "-122.4194", Statuses: model.Statuses{"APPROVED"},
	})
	require.Error(t, err)
	code, _ := apperr.StatusAndMessage(err)
	assert.Equal(t, 502, code)
}

func TestSearchNearby_EmptyStatusesMatchNothing(t *testing.T) {
	m := &countingMatrix{inner: distance.Haversine{}}
	svc := newService(t, m, search.Options{})

	got, err := svc.SearchNearby(context.Background(), model.NearbyQuery{
		Latitude: "37.7749", Longitude: "-122.4194", Statuses: model.Statuses{},
	})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, int32(0), m.calls.Load())
}

func TestSearchNearby_H3PrefilterDropsFarPermits(t *testing.T) {
	mp, err := h3mapper.New(8, 5)
	require.NoError(t, err)
	svc := newService(t, distance.Haversine{}, search.Options{Prefilter: mp, NearbyLimit: 10})

	got, err := svc.SearchNearby(context.Background(), model.NearbyQuery{
		Latitude: "37.7749", Longitude: "-122.4194", Statuses: model.Statuses{"APPROVED"},
	})
	require.NoError(t, err)
	for _, r := range got {
		assert.NotEqual(t, "Far Truck", r.Applicant)
	}
	assert.NotEmpty(t, got)
}

func TestSearchApplicant(t *testing.T) {
	sink := &recordSink{}
	svc := newService(t, distance.Haversine{}, search.Options{Events: sink})
	ctx := context.Background()

	got, err := svc.SearchApplicant(ctx, model.ApplicantQuery{
		Applicant: "  TRUCK ", Statuses: model.Statuses{"approved", "expired"},
	})
	require.NoError(t, err)
	assert.Len(t, got, 5)

	got, err = svc.SearchApplicant(ctx, model.ApplicantQuery{
		Applicant: "truck", Address: "main", Statuses: model.Statuses{"APPROVED"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Taco Truck", got[0].Applicant)
	assert.Equal(t, "123 Main St", got[0].Address)

	require.Len(t, sink.events, 2)
	assert.Equal(t, search.KindApplicant, sink.events[0].Kind)
}

func TestSearchApplicant_Limit(t *testing.T) {
	svc := newService(t, distance.Haversine{}, search.Options{ApplicantLimit: 2})
	got, err := svc.SearchApplicant(context.Background(), model.ApplicantQuery{
		Statuses: model.Statuses{"APPROVED", "EXPIRED"},
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
