// Package searchview is the view-model behind the food facility search form:
// two sets of search inputs and one result list fed by whichever search
// completed last.
package searchview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/mohammed-shakir/food-facility-search/internal/core/model"
	mylog "github.com/mohammed-shakir/food-facility-search/internal/logger"
)

const NoResults = "No results found."

type kind int

const (
	kindNearby kind = iota
	kindApplicant
)

func (k kind) String() string {
	if k == kindNearby {
		return "nearby"
	}
	return "applicant"
}

func (k kind) failureMsg() string {
	if k == kindNearby {
		return "Nearby search failed"
	}
	return "Applicant search failed"
}

// inflight tracks the newest request of one search kind.
type inflight struct {
	token  uint64
	cancel context.CancelFunc
}

type View struct {
	client Searcher
	logger *slog.Logger

	NearbyStatuses    *MultiSelect[model.StatusOption]
	ApplicantStatuses *MultiSelect[model.StatusOption]

	mu        sync.Mutex
	latitude  string
	longitude string
	applicant string
	address   string
	results   []model.FoodTruck
	pending   [2]inflight
	onResults []func([]model.FoodTruck)

	wg sync.WaitGroup
}

func New(client Searcher, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &View{
		client:            client,
		logger:            logger,
		NearbyStatuses:    NewMultiSelect(model.StatusOptions()),
		ApplicantStatuses: NewMultiSelect(model.StatusOptions()),
		results:           []model.FoodTruck{},
	}
}

// Field setters store input verbatim.

func (v *View) SetLatitude(s string)  { v.set(&v.latitude, s) }
func (v *View) SetLongitude(s string) { v.set(&v.longitude, s) }
func (v *View) SetApplicant(s string) { v.set(&v.applicant, s) }
func (v *View) SetAddress(s string)   { v.set(&v.address, s) }

func (v *View) set(field *string, s string) {
	v.mu.Lock()
	*field = s
	v.mu.Unlock()
}

// Results returns a copy of the current result set.
func (v *View) Results() []model.FoodTruck {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.results)
}

// OnResults registers fn to run after every result replacement.
func (v *View) OnResults(fn func([]model.FoodTruck)) {
	if fn == nil {
		return
	}
	v.mu.Lock()
	v.onResults = append(v.onResults, fn)
	v.mu.Unlock()
}

// NearbyRequest builds the request body from the current form state.
func (v *View) NearbyRequest() NearbyRequest {
	v.mu.Lock()
	lat, lon := v.latitude, v.longitude
	v.mu.Unlock()
	return NearbyRequest{Latitude: lat, Longitude: lon, Statuses: values(v.NearbyStatuses.Selected())}
}

func (v *View) ApplicantRequest() ApplicantRequest {
	v.mu.Lock()
	app, addr := v.applicant, v.address
	v.mu.Unlock()
	return ApplicantRequest{Applicant: app, Address: addr, Statuses: values(v.ApplicantStatuses.Selected())}
}

// SearchNearby runs one nearby search and blocks until it completes. On
// failure the error is logged and returned and the results stay as they were.
func (v *View) SearchNearby(ctx context.Context) error {
	req := v.NearbyRequest()
	return v.run(ctx, kindNearby, func(ctx context.Context) ([]model.FoodTruck, error) {
		return v.client.SearchNearby(ctx, req)
	})
}

func (v *View) SearchApplicant(ctx context.Context) error {
	req := v.ApplicantRequest()
	return v.run(ctx, kindApplicant, func(ctx context.Context) ([]model.FoodTruck, error) {
		return v.client.SearchApplicant(ctx, req)
	})
}

// SubmitNearby starts a nearby search in the background.
func (v *View) SubmitNearby(ctx context.Context) {
	v.submit(func() { _ = v.SearchNearby(ctx) })
}

func (v *View) SubmitApplicant(ctx context.Context) {
	v.submit(func() { _ = v.SearchApplicant(ctx) })
}

// Wait blocks until every submitted search has finished.
func (v *View) Wait() { v.wg.Wait() }

func (v *View) submit(fn func()) {
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		fn()
	}()
}

// errSuperseded marks a response dropped because a newer search of the same
// kind was started.
var errSuperseded = errors.New("superseded by a newer search")

func (v *View) run(ctx context.Context, k kind, call func(context.Context) ([]model.FoodTruck, error)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctx = mylog.WithComponent(ctx, "searchview")
	ctx = mylog.WithSearchKind(ctx, k.String())

	v.mu.Lock()
	prev := v.pending[k]
	token := prev.token + 1
	v.pending[k] = inflight{token: token, cancel: cancel}
	v.mu.Unlock()
	if prev.cancel != nil {
		prev.cancel()
	}

	rs, err := call(ctx)

	v.mu.Lock()
	if v.pending[k].token != token {
		v.mu.Unlock()
		v.logger.DebugContext(ctx, "discarding stale response", "token", token)
		return errSuperseded
	}
	v.pending[k].cancel = nil
	if err != nil {
		v.mu.Unlock()
		v.logger.ErrorContext(ctx, k.failureMsg(), "err", err)
		return fmt.Errorf("%s: %w", k.failureMsg(), err)
	}
	if rs == nil {
		rs = []model.FoodTruck{}
	}
	v.results = rs
	listeners := slices.Clone(v.onResults)
	snapshot := slices.Clone(rs)
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return nil
}

// Lines renders the result set, one line per record in server order.
func (v *View) Lines() []string {
	return Lines(v.Results())
}

func Lines(rs []model.FoodTruck) []string {
	if len(rs) == 0 {
		return []string{NoResults}
	}
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, fmt.Sprintf("%s — %s (%s)", r.Applicant, r.Address, r.Status))
	}
	return out
}

// Render writes Lines to w.
func (v *View) Render(w io.Writer) error {
	_, err := io.WriteString(w, strings.Join(v.Lines(), "\n")+"\n")
	return err
}

func values(opts []model.StatusOption) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.Value)
	}
	return out
}

// IsSuperseded reports whether err means a newer search of the same kind
// replaced this one.
func IsSuperseded(err error) bool { return errors.Is(err, errSuperseded) }
