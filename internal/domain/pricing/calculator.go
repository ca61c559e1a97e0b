package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/urbancab/service-booking/internal/domain"
)

const (
	// quoteValidity is how long a computed fare remains bookable.
	quoteValidity = time.Hour

	// advanceBookingLimit bounds how far ahead a trip may start.
	advanceBookingLimit = 90 * 24 * time.Hour
)

// Calculator computes fare breakdowns. It is deterministic given the request
// and its clock, which tests override.
type Calculator struct {
	now func() time.Time
}

// CalculatorOption customizes a Calculator.
type CalculatorOption func(*Calculator)

// WithClock overrides the calculator's time source. Used by tests.
func WithClock(now func() time.Time) CalculatorOption {
	return func(c *Calculator) { c.now = now }
}

// NewCalculator creates a Calculator.
func NewCalculator(opts ...CalculatorOption) *Calculator {
	c := &Calculator{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OutstationRequest prices a one-way or round-trip outstation journey.
type OutstationRequest struct {
	VehicleType VehicleType
	DistanceKm  float64
	RoundTrip   bool
	Start       time.Time
}

// LocalRequest prices a fixed local package with optional overages.
type LocalRequest struct {
	VehicleType VehicleType
	Package     PackageType
	ExtraKm     float64
	ExtraHours  float64
	Start       time.Time
}

// AirportRequest prices an airport transfer.
type AirportRequest struct {
	VehicleType VehicleType
	DistanceKm  float64
	Start       time.Time
}

// Outstation computes the outstation fare: distance billing with a
// minimum-fare floor, night surcharge, tax.
func (c *Calculator) Outstation(req OutstationRequest) (FareBreakdown, error) {
	tariff, err := tariffFor(req.VehicleType)
	if err != nil {
		return FareBreakdown{}, err
	}
	if err := validDistance(req.DistanceKm, outstationMinKm, outstationMaxKm); err != nil {
		return FareBreakdown{}, err
	}
	if err := c.validStart(req.Start); err != nil {
		return FareBreakdown{}, err
	}

	totalDistance := req.DistanceKm
	minFare := tariff.MinFare
	if req.RoundTrip {
		totalDistance *= 2
		minFare *= roundTripMinFareMultiplier
	}
	totalDistance = roundKm(totalDistance)

	baseFare := totalDistance * tariff.PerKmRate
	minApplied := false
	if baseFare < minFare {
		baseFare = minFare
		minApplied = true
	}

	fb := c.finalize(FareBreakdown{
		VehicleType:        req.VehicleType,
		BookingType:        BookingOutstation,
		DistanceKm:         totalDistance,
		MinimumFareApplied: minApplied,
		EstimatedMinutes:   travelMinutes(totalDistance, highwaySpeedKmph),
	}, baseFare, req.Start, true)

	fb.Lines = outstationLines(fb, tariff, req.RoundTrip, minApplied)
	return fb, nil
}

// LocalPackage computes the local rental fare: flat package base plus capped
// extra-kilometre and extra-hour overages. No night surcharge in this mode.
func (c *Calculator) LocalPackage(req LocalRequest) (FareBreakdown, error) {
	rates, ok := localTariffs[req.VehicleType]
	if !ok {
		return FareBreakdown{}, domain.NewValidationError(fmt.Sprintf("unknown vehicle type: %s", req.VehicleType))
	}
	packageFare, ok := rates.PackageFare[req.Package]
	if !ok {
		return FareBreakdown{}, domain.NewValidationError(fmt.Sprintf("unknown local package: %s", req.Package))
	}
	if req.ExtraKm < 0 || req.ExtraKm > maxExtraKm {
		return FareBreakdown{}, domain.NewValidationError(fmt.Sprintf("extra kilometres must be between 0 and %v", maxExtraKm))
	}
	if req.ExtraHours < 0 || req.ExtraHours > maxExtraHours {
		return FareBreakdown{}, domain.NewValidationError(fmt.Sprintf("extra hours must be between 0 and %v", maxExtraHours))
	}
	if err := c.validStart(req.Start); err != nil {
		return FareBreakdown{}, err
	}

	extraKmCharge := req.ExtraKm * rates.ExtraPerKm
	extraHourCharge := req.ExtraHours * rates.ExtraPerHr

	fb := c.finalize(FareBreakdown{
		VehicleType: req.VehicleType,
		BookingType: BookingLocal,
		DistanceKm:  packageKm(req.Package) + roundKm(req.ExtraKm),
	}, packageFare+extraKmCharge+extraHourCharge, req.Start, false)

	fb.Lines = []string{
		fmt.Sprintf("%s package (%s): %d", req.Package, req.VehicleType, roundMoney(packageFare)),
	}
	if extraKmCharge > 0 {
		fb.Lines = append(fb.Lines, fmt.Sprintf("Extra %.1f km @ %.0f/km: %d", req.ExtraKm, rates.ExtraPerKm, roundMoney(extraKmCharge)))
	}
	if extraHourCharge > 0 {
		fb.Lines = append(fb.Lines, fmt.Sprintf("Extra %.1f hr @ %.0f/hr: %d", req.ExtraHours, rates.ExtraPerHr, roundMoney(extraHourCharge)))
	}
	fb.Lines = append(fb.Lines, taxAndTotalLines(fb)...)
	return fb, nil
}

// Airport computes the airport-transfer fare: flat base covering the free
// kilometres, overage at the outstation per-km rate, night surcharge.
func (c *Calculator) Airport(req AirportRequest) (FareBreakdown, error) {
	basePrice, ok := airportBaseFares[req.VehicleType]
	if !ok {
		return FareBreakdown{}, domain.NewValidationError(fmt.Sprintf("unknown vehicle type: %s", req.VehicleType))
	}
	tariff, err := tariffFor(req.VehicleType)
	if err != nil {
		return FareBreakdown{}, err
	}
	if err := validDistance(req.DistanceKm, 0, airportMaxKm); err != nil {
		return FareBreakdown{}, err
	}
	if err := c.validStart(req.Start); err != nil {
		return FareBreakdown{}, err
	}

	distance := roundKm(req.DistanceKm)
	overageKm := math.Max(0, distance-airportFreeKm)
	baseFare := basePrice + overageKm*tariff.PerKmRate

	fb := c.finalize(FareBreakdown{
		VehicleType:      req.VehicleType,
		BookingType:      BookingAirport,
		DistanceKm:       distance,
		EstimatedMinutes: travelMinutes(distance, citySpeedKmph),
	}, baseFare, req.Start, true)

	fb.Lines = []string{
		fmt.Sprintf("Airport transfer (%s, first %.0f km included): %d", req.VehicleType, airportFreeKm, roundMoney(basePrice)),
	}
	if overageKm > 0 {
		fb.Lines = append(fb.Lines, fmt.Sprintf("Beyond %.0f km: %.1f km @ %.0f/km: %d", airportFreeKm, overageKm, tariff.PerKmRate, roundMoney(overageKm*tariff.PerKmRate)))
	}
	if fb.IsNightTime {
		fb.Lines = append(fb.Lines, fmt.Sprintf("Night charges: %d", fb.NightCharges))
	}
	fb.Lines = append(fb.Lines, taxAndTotalLines(fb)...)
	return fb, nil
}

// finalize applies the night surcharge when applicable, rounds currency
// fields at the output boundary and stamps the quote expiry.
func (c *Calculator) finalize(fb FareBreakdown, baseFare float64, start time.Time, nightEligible bool) FareBreakdown {
	night := 0.0
	if nightEligible && isNightTime(start.Hour()) {
		fb.IsNightTime = true
		night = baseFare * (nightMultiplier - 1)
	}

	fb.BaseFare = roundMoney(baseFare)
	fb.NightCharges = roundMoney(night)
	fb.Subtotal = fb.BaseFare + fb.NightCharges
	fb.Tax = taxOn(fb.Subtotal)
	fb.TaxRatePercent = taxRatePercent
	fb.TotalFare = fb.Subtotal + fb.Tax
	fb.FinalAmount = fb.TotalFare
	fb.ValidUntil = c.now().Add(quoteValidity)
	return fb
}

func (c *Calculator) validStart(start time.Time) error {
	now := c.now()
	if start.IsZero() {
		return domain.NewValidationError("start time is required")
	}
	// One-minute grace so a quote computed "for now" does not flap.
	if start.Before(now.Add(-time.Minute)) {
		return domain.NewValidationError("start time is in the past")
	}
	if start.After(now.Add(advanceBookingLimit)) {
		return domain.NewValidationError("start time exceeds the advance booking limit")
	}
	return nil
}

func validDistance(km, min, max float64) error {
	if math.IsNaN(km) || math.IsInf(km, 0) || km <= 0 {
		return domain.NewValidationError("distance must be a positive number")
	}
	if km < min || km > max {
		return domain.NewValidationError(fmt.Sprintf("distance %.1f km outside the allowed range %.0f-%.0f km", km, min, max))
	}
	return nil
}

func travelMinutes(km, speedKmph float64) int {
	return int(math.Round(km / speedKmph * 60))
}

func roundKm(km float64) float64 {
	return math.Round(km*10) / 10
}

func packageKm(p PackageType) float64 {
	switch p {
	case Package8h80km:
		return 80
	case Package12h120km:
		return 120
	}
	return 0
}

func outstationLines(fb FareBreakdown, tariff Tariff, roundTrip, minApplied bool) []string {
	trip := "one-way"
	if roundTrip {
		trip = "round-trip"
	}
	lines := []string{
		fmt.Sprintf("Outstation %s (%s): %.1f km @ %.0f/km", trip, fb.VehicleType, fb.DistanceKm, tariff.PerKmRate),
	}
	if minApplied {
		lines = append(lines, fmt.Sprintf("Minimum fare applied: %d", fb.BaseFare))
	}
	if fb.IsNightTime {
		lines = append(lines, fmt.Sprintf("Night charges: %d", fb.NightCharges))
	}
	return append(lines, taxAndTotalLines(fb)...)
}

func taxAndTotalLines(fb FareBreakdown) []string {
	return []string{
		fmt.Sprintf("Subtotal: %d", fb.Subtotal),
		fmt.Sprintf("Tax (%.0f%%): %d", fb.TaxRatePercent, fb.Tax),
		fmt.Sprintf("Total: %d", fb.FinalAmount),
	}
}
