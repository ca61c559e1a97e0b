package maps

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"googlemaps.github.io/maps"

	"github.com/urbancab/service-booking/internal/domain"
	"github.com/urbancab/service-booking/internal/geo"
)

const geocodeTimeout = 5 * time.Second

// GeocodingService resolves free-text addresses to coordinates via the
// Google Geocoding API. Every call is bounded by a timeout; the client is
// identified to the provider through its API key.
type GeocodingService struct {
	client *maps.Client
	region string
}

// NewGeocodingService creates a GeocodingService biased to the given region
// code (e.g. "in").
func NewGeocodingService(apiKey, region string) (*GeocodingService, error) {
	client, err := maps.NewClient(
		maps.WithAPIKey(apiKey),
		maps.WithHTTPClient(&http.Client{Timeout: geocodeTimeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GeocodingService{client: client, region: region}, nil
}

// Geocode implements geo.Geocoder. An address the provider cannot resolve is
// a NotFoundError naming the input; provider failures and timeouts are
// ServiceUnavailableErrors.
func (s *GeocodingService) Geocode(ctx context.Context, address string) (geo.Coordinates, error) {
	ctx, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()

	results, err := s.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: address,
		Region:  s.region,
	})
	if err != nil {
		return geo.Coordinates{}, domain.NewServiceUnavailableError(
			fmt.Sprintf("could not look up location %q", address), err)
	}
	if len(results) == 0 {
		return geo.Coordinates{}, domain.NewNotFoundError("location", address)
	}

	loc := results[0].Geometry.Location
	coords, err := geo.NewCoordinates(loc.Lat, loc.Lng)
	if err != nil {
		return geo.Coordinates{}, domain.NewServiceUnavailableError(
			fmt.Sprintf("provider returned malformed coordinates for %q", address), err)
	}
	return coords, nil
}
