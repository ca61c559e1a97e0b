package pricing

import (
	"fmt"

	"github.com/urbancab/service-booking/internal/domain"
)

// VehicleType is the tariff key for a vehicle class.
type VehicleType string

const (
	VehicleHatchback VehicleType = "HATCHBACK"
	VehicleSedan     VehicleType = "SEDAN"
	VehicleSUV       VehicleType = "SUV"
	VehicleTempo     VehicleType = "TEMPO_TRAVELLER"
)

// BookingType is the trip type a fare is computed for.
type BookingType string

const (
	BookingOutstation BookingType = "OUTSTATION"
	BookingLocal      BookingType = "LOCAL"
	BookingAirport    BookingType = "AIRPORT"
)

// PackageType identifies a local rental bundle of hours and kilometres.
type PackageType string

const (
	Package8h80km   PackageType = "8hr_80km"
	Package12h120km PackageType = "12hr_120km"
)

// Tariff is the per-vehicle outstation rate table entry.
type Tariff struct {
	PerKmRate float64
	MinFare   float64
}

// outstationTariffs is the per-vehicle-type rate table for outstation and
// airport overage billing.
var outstationTariffs = map[VehicleType]Tariff{
	VehicleHatchback: {PerKmRate: 12, MinFare: 1200},
	VehicleSedan:     {PerKmRate: 14, MinFare: 1500},
	VehicleSUV:       {PerKmRate: 18, MinFare: 2000},
	VehicleTempo:     {PerKmRate: 26, MinFare: 3500},
}

// localPackageRates holds the flat base fare per vehicle for each local
// package, plus the per-vehicle overage rates.
type localRates struct {
	PackageFare map[PackageType]float64
	ExtraPerKm  float64
	ExtraPerHr  float64
}

var localTariffs = map[VehicleType]localRates{
	VehicleHatchback: {
		PackageFare: map[PackageType]float64{Package8h80km: 1299, Package12h120km: 2199},
		ExtraPerKm:  12,
		ExtraPerHr:  120,
	},
	VehicleSedan: {
		PackageFare: map[PackageType]float64{Package8h80km: 1499, Package12h120km: 2499},
		ExtraPerKm:  14,
		ExtraPerHr:  150,
	},
	VehicleSUV: {
		PackageFare: map[PackageType]float64{Package8h80km: 1999, Package12h120km: 3299},
		ExtraPerKm:  18,
		ExtraPerHr:  200,
	},
	VehicleTempo: {
		PackageFare: map[PackageType]float64{Package8h80km: 2999, Package12h120km: 4799},
		ExtraPerKm:  26,
		ExtraPerHr:  300,
	},
}

// airportBaseFares is the flat per-vehicle airport-transfer price covering
// the first airportFreeKm kilometres.
var airportBaseFares = map[VehicleType]float64{
	VehicleHatchback: 999,
	VehicleSedan:     1199,
	VehicleSUV:       1599,
	VehicleTempo:     2499,
}

const (
	taxRatePercent = 5.0

	// Night window and surcharge multiplier. A trip starting at or after
	// nightStartHour, or before nightEndHour, pays baseFare × (1.25 − 1).
	nightStartHour  = 22
	nightEndHour    = 6
	nightMultiplier = 1.25

	roundTripMinFareMultiplier = 1.5

	airportFreeKm = 40.0
	airportMaxKm  = 200.0

	outstationMinKm = 25.0
	outstationMaxKm = 2000.0

	maxExtraKm    = 500.0
	maxExtraHours = 12.0

	citySpeedKmph    = 25.0
	highwaySpeedKmph = 50.0
)

// ParseVehicleType validates a vehicle type string against the tariff table.
func ParseVehicleType(s string) (VehicleType, error) {
	vt := VehicleType(s)
	if _, ok := outstationTariffs[vt]; !ok {
		return "", domain.NewValidationError(fmt.Sprintf("unknown vehicle type: %s", s))
	}
	return vt, nil
}

// ParseBookingType validates a trip type string.
func ParseBookingType(s string) (BookingType, error) {
	switch BookingType(s) {
	case BookingOutstation, BookingLocal, BookingAirport:
		return BookingType(s), nil
	}
	return "", domain.NewValidationError(fmt.Sprintf("unknown booking type: %s", s))
}

// ParsePackageType validates a local package identifier.
func ParsePackageType(s string) (PackageType, error) {
	switch PackageType(s) {
	case Package8h80km, Package12h120km:
		return PackageType(s), nil
	}
	return "", domain.NewValidationError(fmt.Sprintf("unknown local package: %s", s))
}

// tariffFor returns the outstation tariff for the vehicle type. A missing
// key is a configuration defect surfaced as a validation error naming it.
func tariffFor(vt VehicleType) (Tariff, error) {
	t, ok := outstationTariffs[vt]
	if !ok {
		return Tariff{}, domain.NewValidationError(fmt.Sprintf("unknown vehicle type: %s", vt))
	}
	return t, nil
}

// isNightTime reports whether hour falls inside the night window.
func isNightTime(hour int) bool {
	return hour >= nightStartHour || hour < nightEndHour
}
