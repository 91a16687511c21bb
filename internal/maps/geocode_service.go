package maps

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"lifelink/internal/types"
)

// geocoder is the subset of *maps.Client used by GeocodeService.
type geocoder interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// GeocodeService resolves facility addresses with the Google Maps Geocoding API.
type GeocodeService struct {
	client geocoder
	region string
}

// NewGeocodeService creates a GeocodeService with the given API key. region
// is a ccTLD bias such as "np"; empty means no bias.
func NewGeocodeService(apiKey, region string) (*GeocodeService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GeocodeService{client: client, region: region}, nil
}

// Geocode returns the first match for address, or nil when there is none.
func (s *GeocodeService) Geocode(ctx context.Context, address string) (*types.Point, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, nil
	}
	results, err := s.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: address,
		Region:  s.region,
	})
	if err != nil {
		return nil, fmt.Errorf("maps api error: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	loc := results[0].Geometry.Location
	p := types.Point{Lat: loc.Lat, Lng: loc.Lng}
	if !p.Valid() {
		return nil, fmt.Errorf("maps api returned invalid location %v for %q", loc, address)
	}
	return &p, nil
}
