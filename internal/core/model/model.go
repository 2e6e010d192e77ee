// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"slices"
	"strings"
)

// FoodTruck is one search result row as returned by both search endpoints.
type FoodTruck struct {
	Applicant string  `json:"applicant"`
	Status    string  `json:"status"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zipcodes  string  `json:"zipcodes"`
}

// NearbyResult is a FoodTruck annotated with its road distance from the origin.
type NearbyResult struct {
	FoodTruck
	DistanceKM float64 `json:"distance_km"`
}

// Permit is a row of the mobile_food_facility_permit table.
type Permit struct {
	LocationID int64   `gorm:"column:locationid;primaryKey;autoIncrement:false" json:"locationid"`
	Applicant  string  `gorm:"column:applicant" json:"applicant"`
	Status     string  `gorm:"column:status;index" json:"status"`
	Address    string  `gorm:"column:address" json:"address"`
	Latitude   float64 `gorm:"column:latitude" json:"latitude"`
	Longitude  float64 `gorm:"column:longitude" json:"longitude"`
	Zipcodes   string  `gorm:"column:zipcodes" json:"zipcodes"`
}

func (Permit) TableName() string { return "mobile_food_facility_permit" }

// HasLocation reports whether the permit carries usable coordinates.
// The public export uses 0,0 for unlocated permits.
func (p Permit) HasLocation() bool {
	return p.Latitude != 0 && p.Longitude != 0
}

// LatLng formats the permit position as "lat,lon" for distance providers.
func (p Permit) LatLng() string {
	return fmt.Sprintf("%v,%v", p.Latitude, p.Longitude)
}

func (p Permit) FoodTruck() FoodTruck {
	return FoodTruck{
		Applicant: p.Applicant,
		Status:    p.Status,
		Address:   p.Address,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Zipcodes:  p.Zipcodes,
	}
}

// Status values of the permit dataset.
const (
	StatusApproved  = "APPROVED"
	StatusExpired   = "EXPIRED"
	StatusRequested = "REQUESTED"
	StatusSuspended = "SUSPENDED"
)

// StatusOption is a selectable status filter value.
type StatusOption struct {
	Value string
	Label string
}

var statusOptions = []StatusOption{
	{Value: StatusApproved, Label: StatusApproved},
	{Value: StatusExpired, Label: StatusExpired},
	{Value: StatusRequested, Label: StatusRequested},
	{Value: StatusSuspended, Label: StatusSuspended},
}

// StatusOptions returns the fixed filter options in display order.
func StatusOptions() []StatusOption {
	return slices.Clone(statusOptions)
}

// LookupStatus finds the option for a value, ignoring case and surrounding space.
func LookupStatus(v string) (StatusOption, bool) {
	v = strings.ToUpper(strings.TrimSpace(v))
	for _, o := range statusOptions {
		if o.Value == v {
			return o, true
		}
	}
	return StatusOption{}, false
}

// Statuses is a normalized status filter: trimmed, upper-cased, deduplicated,
// first occurrence order preserved.
type Statuses []string

func NormalizeStatuses(in []string) Statuses {
	out := make(Statuses, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Sorted returns a sorted copy, used where filter order must not matter.
func (s Statuses) Sorted() []string {
	out := slices.Clone([]string(s))
	slices.Sort(out)
	return out
}

// DefaultStatuses is applied when a request omits the statuses field.
func DefaultStatuses() Statuses { return Statuses{StatusApproved} }

type NearbyQuery struct {
	Latitude  string
	Longitude string
	Statuses  Statuses
}

// Origin is the "lat,lon" text sent to the distance provider.
func (q NearbyQuery) Origin() string {
	return q.Latitude + "," + q.Longitude
}

type ApplicantQuery struct {
	Applicant string
	Address   string
	Statuses  Statuses
}
