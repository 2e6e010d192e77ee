package distance

import (
	"context"
	"math"

	"github.com/mohammed-shakir/food-facility-search/internal/core/model"
)

const earthRadius = 6371000.0 // meters

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// HaversineMeters is the great-circle distance between two points.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := toRadians(lat1)
	lat2Rad := toRadians(lat2)
	dLat := lat2Rad - lat1Rad
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// Haversine is the offline provider used when no Distance Matrix key is set.
type Haversine struct{}

func (Haversine) Name() string { return "haversine" }

func (Haversine) Distances(ctx context.Context, origin string, batch []model.Permit) ([]model.NearbyResult, error) {
	lat, lon, err := ParseOrigin(origin)
	if err != nil {
		return nil, err
	}
	out := make([]model.NearbyResult, 0, len(batch))
	for _, p := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !p.HasLocation() {
			continue
		}
		out = append(out, model.NearbyResult{
			FoodTruck:  p.FoodTruck(),
			DistanceKM: RoundKM(HaversineMeters(lat, lon, p.Latitude, p.Longitude)),
		})
	}
	return out, nil
}
