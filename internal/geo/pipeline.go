package geo

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/urbancab/service-booking/internal/domain"
)

// DistanceSource records how a distance figure was obtained, so callers can
// audit the result.
type DistanceSource string

const (
	SourceUserProvided      DistanceSource = "user_provided"
	SourceRouted            DistanceSource = "routed"
	SourceGeometricFallback DistanceSource = "geometric_fallback"
)

// DistanceResult is a resolved road distance with its provenance.
type DistanceResult struct {
	Kilometers float64        `json:"kilometers"`
	Source     DistanceSource `json:"source"`
}

// Endpoint is one end of a trip: either a free-text address to be geocoded
// or explicit coordinates.
type Endpoint struct {
	Address     string
	Coordinates *Coordinates
}

// AddressEndpoint creates an Endpoint from a free-text address.
func AddressEndpoint(address string) Endpoint {
	return Endpoint{Address: address}
}

// CoordsEndpoint creates an Endpoint from explicit coordinates.
func CoordsEndpoint(c Coordinates) Endpoint {
	return Endpoint{Coordinates: &c}
}

// Geocoder resolves a free-text address to coordinates. Implementations must
// bound the provider call with a timeout; a not-found address is a
// NotFoundError, an unreachable provider a ServiceUnavailableError.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinates, error)
}

// Router resolves a coordinate pair to a routed driving distance in
// kilometres. Implementations must bound the provider call with a timeout.
type Router interface {
	Route(ctx context.Context, origin, destination Coordinates) (float64, error)
}

const (
	geocodeCacheTTL = time.Hour
	routeCacheTTL   = time.Hour
)

// Pipeline resolves a trip request to a trustworthy road distance. It prefers
// a caller-supplied distance, then a routed distance between (resolved)
// coordinates, and falls back to a geometric estimate when routing fails.
// Failure to geocode an address is reported, never guessed around.
type Pipeline struct {
	geocoder  Geocoder
	router    Router
	coords    *Cache[Coordinates]
	distances *Cache[DistanceResult]
	logger    *zap.Logger
}

// NewPipeline creates a Pipeline using the shared coordinate and distance
// caches.
func NewPipeline(geocoder Geocoder, router Router, coords *Cache[Coordinates], distances *Cache[DistanceResult], logger *zap.Logger) *Pipeline {
	return &Pipeline{
		geocoder:  geocoder,
		router:    router,
		coords:    coords,
		distances: distances,
		logger:    logger,
	}
}

// ResolveRequest is the input to Resolve. A finite DistanceKm > 0
// short-circuits resolution entirely.
type ResolveRequest struct {
	From       Endpoint
	To         Endpoint
	DistanceKm float64
}

// Resolve runs the resolution cascade and returns a positive distance tagged
// with its source.
func (p *Pipeline) Resolve(ctx context.Context, req ResolveRequest) (DistanceResult, error) {
	if math.IsNaN(req.DistanceKm) || math.IsInf(req.DistanceKm, 0) {
		return DistanceResult{}, domain.NewValidationError("provided distance must be a finite number")
	}
	if req.DistanceKm > 0 {
		return DistanceResult{Kilometers: RoundKm(req.DistanceKm), Source: SourceUserProvided}, nil
	}

	origin, err := p.resolveEndpoint(ctx, req.From)
	if err != nil {
		return DistanceResult{}, err
	}
	destination, err := p.resolveEndpoint(ctx, req.To)
	if err != nil {
		return DistanceResult{}, err
	}

	result := p.routeOrEstimate(ctx, origin, destination)
	if result.Kilometers <= 0 {
		return DistanceResult{}, domain.NewValidationError("could not determine a positive trip distance")
	}
	return result, nil
}

// resolveEndpoint turns an endpoint into coordinates, geocoding through the
// cache when only an address is given.
func (p *Pipeline) resolveEndpoint(ctx context.Context, ep Endpoint) (Coordinates, error) {
	if ep.Coordinates != nil {
		coords, err := NewCoordinates(ep.Coordinates.Latitude, ep.Coordinates.Longitude)
		if err != nil {
			return Coordinates{}, domain.NewValidationError(err.Error())
		}
		return coords, nil
	}

	key := NormalizeAddress(ep.Address)
	if key == "" {
		return Coordinates{}, domain.NewValidationError("location address must not be empty")
	}
	if cached, ok := p.coords.Get(key); ok {
		return cached, nil
	}

	coords, err := p.geocoder.Geocode(ctx, ep.Address)
	if err != nil {
		return Coordinates{}, err
	}
	p.coords.Put(key, coords, geocodeCacheTTL)
	return coords, nil
}

// routeOrEstimate asks the routing provider for a driving distance and falls
// back to the geometric estimate on any routing failure, including a zero
// distance for non-identical points.
func (p *Pipeline) routeOrEstimate(ctx context.Context, origin, destination Coordinates) DistanceResult {
	key := routeKey(origin, destination)
	if cached, ok := p.distances.Get(key); ok {
		return cached
	}

	km, err := p.router.Route(ctx, origin, destination)
	if err == nil {
		km = RoundKm(km)
		if km > 0 || origin.Equal(destination) {
			result := DistanceResult{Kilometers: km, Source: SourceRouted}
			p.distances.Put(key, result, routeCacheTTL)
			return result
		}
		err = fmt.Errorf("routing returned zero distance for distinct points")
	}

	p.logger.Warn("routing failed, using geometric fallback",
		zap.Float64("origin_lat", origin.Latitude),
		zap.Float64("origin_lng", origin.Longitude),
		zap.Float64("dest_lat", destination.Latitude),
		zap.Float64("dest_lng", destination.Longitude),
		zap.Error(err),
	)
	return DistanceResult{
		Kilometers: EstimateRoadKm(origin, destination),
		Source:     SourceGeometricFallback,
	}
}

// NormalizeAddress lowercases and collapses whitespace so equivalent
// spellings share a cache entry.
func NormalizeAddress(address string) string {
	return strings.Join(strings.Fields(strings.ToLower(address)), " ")
}

func routeKey(origin, destination Coordinates) string {
	return fmt.Sprintf("route:%.6f,%.6f->%.6f,%.6f",
		origin.Latitude, origin.Longitude, destination.Latitude, destination.Longitude)
}
