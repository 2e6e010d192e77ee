package searchview

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/food-facility-search/internal/core/model"
	mylog "github.com/mohammed-shakir/food-facility-search/internal/logger"
)

type recorded struct {
	path string
	body map[string]any
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recorded
	respond  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(b, &body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{path: r.URL.Path, body: body})
	f.mu.Unlock()
	f.respond(w, r)
}

func (f *fakeAPI) all() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.requests...)
}

func jsonResponse(body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

const oneTruck = `[{"applicant":"Test Food Truck","status":"APPROVED","address":"123 Test Street","latitude":37.7749,"longitude":-122.4194,"zipcodes":"94103"}]`

func newView(t *testing.T, api *fakeAPI) (*View, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	var buf bytes.Buffer
	zl := mylog.Build(mylog.Config{Level: "debug"}, &buf)
	return New(NewClient(srv.URL, srv.Client()), mylog.NewSlog(&zl)), &buf
}

func opt(v string) model.StatusOption {
	o, _ := model.LookupStatus(v)
	return o
}

func TestSearchNearby_ExampleRequestAndRendering(t *testing.T) {
	api := &fakeAPI{respond: jsonResponse(oneTruck)}
	v, _ := newView(t, api)

	v.SetLatitude("37.7749")
	v.SetLongitude("-122.4194")
	require.NoError(t, v.SearchNearby(context.Background()))

	reqs := api.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/search_nearby", reqs[0].path)
	assert.Equal(t, map[string]any{
		"latitude":  "37.7749",
		"longitude": "-122.4194",
		"statuses":  []any{},
	}, reqs[0].body)

	assert.Equal(t, []string{"Test Food Truck — 123 Test Street (APPROVED)"}, v.Lines())
	assert.Equal(t, 37.7749, v.Results()[0].Latitude)
}

func TestStatusesInSelectionOrder(t *testing.T) {
	api := &fakeAPI{respond: jsonResponse(`[]`)}
	v, _ := newView(t, api)

	v.ApplicantStatuses.Select(opt("SUSPENDED"))
	v.ApplicantStatuses.Select(opt("APPROVED"))
	v.ApplicantStatuses.Select(opt("EXPIRED"))
	v.ApplicantStatuses.Deselect(opt("APPROVED"))
	v.NearbyStatuses.Select(opt("REQUESTED"))

	require.NoError(t, v.SearchApplicant(context.Background()))
	require.NoError(t, v.SearchNearby(context.Background()))

	reqs := api.all()
	require.Len(t, reqs, 2)
	assert.Equal(t, []any{"SUSPENDED", "EXPIRED"}, reqs[0].body["statuses"])
	assert.Equal(t, []any{"REQUESTED"}, reqs[1].body["statuses"])
}

func TestEmptyFieldsSentVerbatim(t *testing.T) {
	api := &fakeAPI{respond: jsonResponse(`[]`)}
	v, _ := newView(t, api)

	require.NoError(t, v.SearchApplicant(context.Background()))
	reqs := api.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/search_applicant", reqs[0].path)
	assert.Equal(t, map[string]any{"applicant": "", "address": "", "statuses": []any{}}, reqs[0].body)
	assert.Equal(t, []string{NoResults}, v.Lines())
}

func TestSecondSearchReplacesResults(t *testing.T) {
	responses := []string{
		`[{"applicant":"A","status":"APPROVED","address":"1 St"},{"applicant":"B","status":"EXPIRED","address":"2 St"}]`,
		`[{"applicant":"C","status":"REQUESTED","address":"3 St"}]`,
	}
	var n atomic.Int32
	api := &fakeAPI{respond: func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(responses[n.Add(1)-1])(w, r)
	}}
	v, _ := newView(t, api)

	require.NoError(t, v.SearchApplicant(context.Background()))
	assert.Equal(t, []string{"A — 1 St (APPROVED)", "B — 2 St (EXPIRED)"}, v.Lines())

	require.NoError(t, v.SearchNearby(context.Background()))
	assert.Equal(t, []string{"C — 3 St (REQUESTED)"}, v.Lines())
}

func TestFailureKeepsResultsAndLogs(t *testing.T) {
	cases := map[string]func(http.ResponseWriter, *http.Request){
		"server error": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
		},
		"malformed body": jsonResponse(`{"not":"a list"`),
	}
	for name, failing := range cases {
		t.Run(name, func(t *testing.T) {
			var fail atomic.Bool
			api := &fakeAPI{respond: func(w http.ResponseWriter, r *http.Request) {
				if fail.Load() {
					failing(w, r)
					return
				}
				jsonResponse(oneTruck)(w, r)
			}}
			v, logs := newView(t, api)

			require.NoError(t, v.SearchNearby(context.Background()))
			before := v.Lines()

			fail.Store(true)
			err := v.SearchNearby(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSearchFailed)
			assert.Equal(t, before, v.Lines())
			assert.Contains(t, logs.String(), "Nearby search failed")

			err = v.SearchApplicant(context.Background())
			require.Error(t, err)
			assert.Contains(t, logs.String(), "Applicant search failed")
			assert.Equal(t, before, v.Lines())
		})
	}
}

func TestFailureOnEmptyStateKeepsNoResults(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused
	v := New(NewClient(srv.URL, nil), nil)

	require.Error(t, v.SearchNearby(context.Background()))
	assert.Equal(t, []string{NoResults}, v.Lines())
}

func TestNewerSearchOfSameKindWins(t *testing.T) {
	firstStarted := make(chan struct{})
	var calls int
	var mu sync.Mutex
	api := &fakeAPI{respond: func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(firstStarted)
			<-r.Context().Done()
			return
		}
		jsonResponse(`[{"applicant":"second","status":"APPROVED","address":"x"}]`)(w, r)
	}}
	v, _ := newView(t, api)

	errCh := make(chan error, 1)
	go func() { errCh <- v.SearchNearby(context.Background()) }()
	<-firstStarted

	require.NoError(t, v.SearchNearby(context.Background()))
	err := <-errCh
	assert.True(t, IsSuperseded(err), "err=%v", err)
	assert.Equal(t, []string{"second — x (APPROVED)"}, v.Lines())
}

func TestSubmitAndWait(t *testing.T) {
	api := &fakeAPI{respond: jsonResponse(oneTruck)}
	v, _ := newView(t, api)

	got := make(chan []model.FoodTruck, 2)
	v.OnResults(func(rs []model.FoodTruck) { got <- rs })

	v.SubmitApplicant(context.Background())
	v.SubmitNearby(context.Background())
	v.Wait()

	assert.Len(t, api.all(), 2)
	assert.Len(t, got, 2)
	assert.Len(t, v.Results(), 1)
}

func TestRender(t *testing.T) {
	v := New(nil, nil)
	var b strings.Builder
	require.NoError(t, v.Render(&b))
	assert.Equal(t, "No results found.\n", b.String())

	lines := Lines([]model.FoodTruck{
		{Applicant: "A", Address: "1 St", Status: "APPROVED"},
		{Applicant: "B", Address: "2 St", Status: "EXPIRED"},
	})
	assert.Equal(t, []string{"A — 1 St (APPROVED)", "B — 2 St (EXPIRED)"}, lines)
}
