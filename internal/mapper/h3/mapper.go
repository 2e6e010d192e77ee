// Package h3mapper narrows permit candidates to the H3 grid disk around an origin.
package h3mapper

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/food-facility-search/internal/core/model"
)

type Mapper struct {
	res int
	k   int
}

// New returns a mapper that keeps permits within k rings of the origin cell
// at resolution res.
func New(res, k int) (*Mapper, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	if k < 0 {
		return nil, fmt.Errorf("invalid grid disk radius %d", k)
	}
	return &Mapper{res: res, k: k}, nil
}

func (m *Mapper) Res() int { return m.res }
func (m *Mapper) K() int   { return m.k }

// Cell returns the H3 index of a point as a hex string.
func (m *Mapper) Cell(lat, lng float64) (string, error) {
	c, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lng}, m.res)
	if err != nil {
		return "", fmt.Errorf("h3 cell: %w", err)
	}
	return c.String(), nil
}

func (m *Mapper) disk(lat, lng float64) (map[h3.Cell]struct{}, error) {
	origin, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lng}, m.res)
	if err != nil {
		return nil, fmt.Errorf("h3 origin cell: %w", err)
	}
	cells, err := h3.GridDisk(origin, m.k)
	if err != nil {
		return nil, fmt.Errorf("h3 grid disk: %w", err)
	}
	out := make(map[h3.Cell]struct{}, len(cells))
	for _, c := range cells {
		out[c] = struct{}{}
	}
	return out, nil
}

// Filter keeps located permits whose cell falls inside the disk, in input order.
func (m *Mapper) Filter(lat, lng float64, ps []model.Permit) ([]model.Permit, error) {
	disk, err := m.disk(lat, lng)
	if err != nil {
		return nil, err
	}
	out := make([]model.Permit, 0, len(ps))
	for _, p := range ps {
		if !p.HasLocation() {
			continue
		}
		c, err := h3.LatLngToCell(h3.LatLng{Lat: p.Latitude, Lng: p.Longitude}, m.res)
		if err != nil {
			continue
		}
		if _, ok := disk[c]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
