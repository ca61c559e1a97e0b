package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/urbancab/service-booking/internal/domain"
	"github.com/urbancab/service-booking/internal/domain/pricing"
	"github.com/urbancab/service-booking/internal/geo"
)

// searchFallbackKm is the distance substituted when resolution fails during
// a best-effort search quote. This is a policy of the search flow, not of
// the resolution pipeline.
const searchFallbackKm = 100.0

// LocationInput is a trip endpoint as the customer stated it.
type LocationInput struct {
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (l LocationInput) isZero() bool {
	return l.Address == "" && (l.Latitude == nil || l.Longitude == nil)
}

func (l LocationInput) endpoint() geo.Endpoint {
	if l.Latitude != nil && l.Longitude != nil {
		return geo.CoordsEndpoint(geo.Coordinates{Latitude: *l.Latitude, Longitude: *l.Longitude})
	}
	return geo.AddressEndpoint(l.Address)
}

// QuoteRequest holds the trip parameters to price.
type QuoteRequest struct {
	BookingType   string        `json:"booking_type" binding:"required"`
	VehicleType   string        `json:"vehicle_type" binding:"required"`
	Pickup        LocationInput `json:"pickup"`
	Drop          LocationInput `json:"drop"`
	StartDateTime time.Time     `json:"start_date_time" binding:"required"`
	DistanceKm    float64       `json:"distance_km"`
	RoundTrip     bool          `json:"round_trip"`
	Package       string        `json:"package"`
	ExtraKm       float64       `json:"extra_km"`
	ExtraHours    float64       `json:"extra_hours"`
}

// QuoteDTO is a priced offer with the provenance of its distance figure.
type QuoteDTO struct {
	Fare     pricing.FareBreakdown `json:"fare"`
	Distance *geo.DistanceResult   `json:"distance,omitempty"`
}

// QuoteService prices trip requests by resolving a road distance and running
// the fare calculator.
type QuoteService struct {
	pipeline   *geo.Pipeline
	calculator *pricing.Calculator
	logger     *zap.Logger
}

// NewQuoteService creates a new QuoteService.
func NewQuoteService(pipeline *geo.Pipeline, calculator *pricing.Calculator, logger *zap.Logger) *QuoteService {
	return &QuoteService{
		pipeline:   pipeline,
		calculator: calculator,
		logger:     logger,
	}
}

// GetQuote prices a trip. Distance resolution failures surface to the caller.
func (s *QuoteService) GetQuote(ctx context.Context, req QuoteRequest) (*QuoteDTO, error) {
	return s.quote(ctx, req, false)
}

// GetSearchQuote prices a trip for best-effort search listings: if the
// provider cascade cannot produce a distance, a fixed fallback distance is
// substituted instead of failing the search.
func (s *QuoteService) GetSearchQuote(ctx context.Context, req QuoteRequest) (*QuoteDTO, error) {
	return s.quote(ctx, req, true)
}

func (s *QuoteService) quote(ctx context.Context, req QuoteRequest, bestEffort bool) (*QuoteDTO, error) {
	bookingType, err := pricing.ParseBookingType(req.BookingType)
	if err != nil {
		return nil, err
	}
	vehicleType, err := pricing.ParseVehicleType(req.VehicleType)
	if err != nil {
		return nil, err
	}

	// Local packages are priced from the package table; no distance needed.
	if bookingType == pricing.BookingLocal {
		pkg, err := pricing.ParsePackageType(req.Package)
		if err != nil {
			return nil, err
		}
		fare, err := s.calculator.LocalPackage(pricing.LocalRequest{
			VehicleType: vehicleType,
			Package:     pkg,
			ExtraKm:     req.ExtraKm,
			ExtraHours:  req.ExtraHours,
			Start:       req.StartDateTime,
		})
		if err != nil {
			return nil, err
		}
		return &QuoteDTO{Fare: fare}, nil
	}

	if req.Pickup.isZero() || req.Drop.isZero() {
		return nil, domain.NewValidationError("pickup and drop locations are required")
	}

	distance, err := s.pipeline.Resolve(ctx, geo.ResolveRequest{
		From:       req.Pickup.endpoint(),
		To:         req.Drop.endpoint(),
		DistanceKm: req.DistanceKm,
	})
	if err != nil {
		if !bestEffort || !domain.IsKind(err, domain.KindServiceUnavailable) {
			return nil, err
		}
		s.logger.Warn("distance resolution failed, substituting search fallback distance",
			zap.Float64("fallback_km", searchFallbackKm),
			zap.Error(err),
		)
		distance = geo.DistanceResult{Kilometers: searchFallbackKm, Source: geo.SourceGeometricFallback}
	}

	var fare pricing.FareBreakdown
	switch bookingType {
	case pricing.BookingOutstation:
		fare, err = s.calculator.Outstation(pricing.OutstationRequest{
			VehicleType: vehicleType,
			DistanceKm:  distance.Kilometers,
			RoundTrip:   req.RoundTrip,
			Start:       req.StartDateTime,
		})
	case pricing.BookingAirport:
		fare, err = s.calculator.Airport(pricing.AirportRequest{
			VehicleType: vehicleType,
			DistanceKm:  distance.Kilometers,
			Start:       req.StartDateTime,
		})
	}
	if err != nil {
		return nil, err
	}

	return &QuoteDTO{Fare: fare, Distance: &distance}, nil
}
