package maps

import (
	"context"
	"errors"
	"testing"

	"googlemaps.github.io/maps"
)

type fakeGeocoder struct {
	results []maps.GeocodingResult
	err     error
	got     *maps.GeocodingRequest
}

func (f *fakeGeocoder) Geocode(_ context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	f.got = r
	return f.results, f.err
}

func result(lat, lng float64) maps.GeocodingResult {
	var r maps.GeocodingResult
	r.Geometry.Location = maps.LatLng{Lat: lat, Lng: lng}
	return r
}

func TestGeocode_FirstResult(t *testing.T) {
	f := &fakeGeocoder{results: []maps.GeocodingResult{result(27.7041, 85.3145), result(0, 0)}}
	s := &GeocodeService{client: f, region: "np"}

	p, err := s.Geocode(context.Background(), "  Bir Hospital, Kathmandu ")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if p == nil || p.Lat != 27.7041 || p.Lng != 85.3145 {
		t.Fatalf("unexpected point %+v", p)
	}
	if f.got.Address != "Bir Hospital, Kathmandu" || f.got.Region != "np" {
		t.Fatalf("unexpected request %+v", f.got)
	}
}

func TestGeocode_NoResults(t *testing.T) {
	s := &GeocodeService{client: &fakeGeocoder{}}
	p, err := s.Geocode(context.Background(), "nowhere")
	if err != nil || p != nil {
		t.Fatalf("expected nil point and nil error, got %+v, %v", p, err)
	}
}

func TestGeocode_EmptyAddressSkipsAPI(t *testing.T) {
	f := &fakeGeocoder{}
	s := &GeocodeService{client: f}
	if p, err := s.Geocode(context.Background(), "   "); err != nil || p != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", p, err)
	}
	if f.got != nil {
		t.Fatalf("API should not be called for an empty address")
	}
}

func TestGeocode_APIError(t *testing.T) {
	boom := errors.New("OVER_QUERY_LIMIT")
	s := &GeocodeService{client: &fakeGeocoder{err: boom}}
	if _, err := s.Geocode(context.Background(), "Pokhara"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped api error, got %v", err)
	}
}

func TestGeocode_InvalidCoordinates(t *testing.T) {
	s := &GeocodeService{client: &fakeGeocoder{results: []maps.GeocodingResult{result(123, 85)}}}
	if _, err := s.Geocode(context.Background(), "Mars"); err == nil {
		t.Fatalf("expected error for out-of-range latitude")
	}
}
