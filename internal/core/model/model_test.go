package model

import (
	"reflect"
	"testing"
)

func TestNormalizeStatuses_TrimUpperDedup(t *testing.T) {
	got := NormalizeStatuses([]string{" approved", "EXPIRED ", "Approved", "requested"})
	want := Statuses{"APPROVED", "EXPIRED", "REQUESTED"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestNormalizeStatuses_EmptyIsNonNil(t *testing.T) {
	got := NormalizeStatuses(nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", got)
	}
}

func TestStatuses_SortedDoesNotMutate(t *testing.T) {
	s := Statuses{"REQUESTED", "APPROVED"}
	sorted := s.Sorted()
	if sorted[0] != "APPROVED" || sorted[1] != "REQUESTED" {
		t.Fatalf("sorted=%v", sorted)
	}
	if s[0] != "REQUESTED" {
		t.Fatalf("receiver mutated: %v", s)
	}
}

func TestLookupStatus(t *testing.T) {
	o, ok := LookupStatus(" suspended ")
	if !ok || o.Value != StatusSuspended {
		t.Fatalf("got %+v ok=%v", o, ok)
	}
	if _, ok := LookupStatus("PENDING"); ok {
		t.Fatal("unexpected option for PENDING")
	}
	if len(StatusOptions()) != 4 {
		t.Fatalf("want 4 options")
	}
}

func TestPermit_LocationAndFoodTruck(t *testing.T) {
	p := Permit{LocationID: 1, Applicant: "Taco Truck", Status: "APPROVED", Address: "123 Main St",
		Latitude: 37.7749, Longitude: -122.4194, Zipcodes: "94102"}
	if !p.HasLocation() {
		t.Fatal("expected location")
	}
	if got := p.LatLng(); got != "37.7749,-122.4194" {
		t.Fatalf("LatLng=%q", got)
	}
	ft := p.FoodTruck()
	if ft.Applicant != "Taco Truck" || ft.Zipcodes != "94102" {
		t.Fatalf("FoodTruck=%+v", ft)
	}
	if (Permit{}).HasLocation() {
		t.Fatal("zero permit must not have a location")
	}
}
