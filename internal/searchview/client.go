package searchview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mohammed-shakir/food-facility-search/internal/core/httpclient"
	"github.com/mohammed-shakir/food-facility-search/internal/core/model"
)

// ErrSearchFailed covers connection errors, non-2xx responses and
// undecodable bodies alike.
var ErrSearchFailed = errors.New("network or server failure")

type NearbyRequest struct {
	Latitude  string   `json:"latitude"`
	Longitude string   `json:"longitude"`
	Statuses  []string `json:"statuses"`
}

type ApplicantRequest struct {
	Applicant string   `json:"applicant"`
	Address   string   `json:"address"`
	Statuses  []string `json:"statuses"`
}

// Searcher is the remote search API as seen by the view.
type Searcher interface {
	SearchNearby(ctx context.Context, req NearbyRequest) ([]model.FoodTruck, error)
	SearchApplicant(ctx context.Context, req ApplicantRequest) ([]model.FoodTruck, error)
}

type Client struct {
	base string
	http *http.Client
}

// NewClient talks to the search API at baseURL. A nil hc gets a pooled
// client without a request timeout.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = httpclient.NewOutbound(httpclient.WithTimeout(0))
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) SearchNearby(ctx context.Context, req NearbyRequest) ([]model.FoodTruck, error) {
	if req.Statuses == nil {
		req.Statuses = []string{}
	}
	return c.post(ctx, "/search_nearby", req)
}

func (c *Client) SearchApplicant(ctx context.Context, req ApplicantRequest) ([]model.FoodTruck, error) {
	if req.Statuses == nil {
		req.Statuses = []string{}
	}
	return c.post(ctx, "/search_applicant", req)
}

func (c *Client) post(ctx context.Context, path string, body any) ([]model.FoodTruck, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", ErrSearchFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrSearchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: POST %s: status %d: %s",
			ErrSearchFailed, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out []model.FoodTruck
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrSearchFailed, err)
	}
	if out == nil {
		out = []model.FoodTruck{}
	}
	return out, nil
}
