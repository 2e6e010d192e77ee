// Package distance resolves road or straight-line distances from an origin
// to permit locations.
package distance

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/food-facility-search/internal/core/model"
)

// Matrix resolves distances for one batch. Permits the provider cannot
// place are left out of the result.
type Matrix interface {
	Name() string
	Distances(ctx context.Context, origin string, batch []model.Permit) ([]model.NearbyResult, error)
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		out = append(out, items[i:end:end])
	}
	return out
}

// RoundKM converts meters to kilometers with two decimals.
func RoundKM(meters float64) float64 {
	return math.Round(meters/10) / 100
}

// ParseOrigin parses "lat,lon" text.
func ParseOrigin(origin string) (lat, lon float64, err error) {
	latS, lonS, ok := strings.Cut(origin, ",")
	if !ok {
		return 0, 0, fmt.Errorf("origin %q: want lat,lon", origin)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("origin latitude: %w", err)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(lonS), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("origin longitude: %w", err)
	}
	return lat, lon, nil
}
