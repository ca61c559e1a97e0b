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

const routeTimeout = 7 * time.Second

// RoutingService resolves coordinate pairs to driving distances via the
// Google Directions API, driving mode.
type RoutingService struct {
	client *maps.Client
}

// NewRoutingService creates a RoutingService with the given API key.
func NewRoutingService(apiKey string) (*RoutingService, error) {
	client, err := maps.NewClient(
		maps.WithAPIKey(apiKey),
		maps.WithHTTPClient(&http.Client{Timeout: routeTimeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RoutingService{client: client}, nil
}

// Route implements geo.Router, returning the routed driving distance in
// kilometres. No route and provider failures both surface as errors; the
// caller decides whether to fall back.
func (s *RoutingService) Route(ctx context.Context, origin, destination geo.Coordinates) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, routeTimeout)
	defer cancel()

	routes, _, err := s.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Latitude, origin.Longitude),
		Destination: fmt.Sprintf("%f,%f", destination.Latitude, destination.Longitude),
		Mode:        maps.TravelModeDriving,
	})
	if err != nil {
		return 0, domain.NewServiceUnavailableError("routing provider unavailable", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, fmt.Errorf("no route found between %v and %v", origin, destination)
	}

	meters := 0
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
	}
	return float64(meters) / 1000.0, nil
}
