package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammed-shakir/food-facility-search/internal/core/model"
	"github.com/mohammed-shakir/food-facility-search/internal/core/observability"
)

const DefaultMatrixURL = "https://maps.googleapis.com/maps/api/distancematrix/json"

type matrixElement struct {
	Status   string `json:"status"`
	Distance struct {
		Value float64 `json:"value"` // meters
	} `json:"distance"`
}

type matrixResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Rows         []struct {
		Elements []matrixElement `json:"elements"`
	} `json:"rows"`
}

// GoogleMatrix calls the Google Distance Matrix API, one origin per call.
type GoogleMatrix struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

func NewGoogleMatrix(client *http.Client, baseURL, apiKey string, logger *slog.Logger) *GoogleMatrix {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultMatrixURL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GoogleMatrix{client: client, baseURL: baseURL, apiKey: apiKey, logger: logger}
}

func (g *GoogleMatrix) Name() string { return "google" }

// Distances sends the located permits of batch as destinations. A non-200
// response or a top-level status other than OK yields an empty batch.
func (g *GoogleMatrix) Distances(ctx context.Context, origin string, batch []model.Permit) ([]model.NearbyResult, error) {
	sent := make([]model.Permit, 0, len(batch))
	dests := make([]string, 0, len(batch))
	for _, p := range batch {
		if !p.HasLocation() {
			continue
		}
		sent = append(sent, p)
		dests = append(dests, p.LatLng())
	}
	if len(sent) == 0 {
		return []model.NearbyResult{}, nil
	}

	params := url.Values{}
	params.Set("origins", origin)
	params.Set("destinations", strings.Join(dests, "|"))
	params.Set("key", g.apiKey)
	params.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build distance matrix request: %w", err)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	observability.ObserveUpstreamLatency("distance_matrix", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("distance matrix request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		g.logger.WarnContext(ctx, "distance matrix upstream error",
			"status", resp.StatusCode, "body", string(b), "destinations", len(sent))
		return []model.NearbyResult{}, nil
	}

	var body matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode distance matrix: %w", err)
	}
	if body.Status != "OK" {
		g.logger.WarnContext(ctx, "distance matrix rejected request",
			"api_status", body.Status, "error_message", body.ErrorMessage)
		return []model.NearbyResult{}, nil
	}
	if len(body.Rows) == 0 {
		return []model.NearbyResult{}, nil
	}

	elems := body.Rows[0].Elements
	out := make([]model.NearbyResult, 0, len(sent))
	for i, p := range sent {
		if i >= len(elems) {
			break
		}
		if elems[i].Status != "OK" {
			continue
		}
		out = append(out, model.NearbyResult{
			FoodTruck:  p.FoodTruck(),
			DistanceKM: RoundKM(elems[i].Distance.Value),
		})
	}
	return out, nil
}
