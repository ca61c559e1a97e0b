package pricing

import (
	"math"
	"time"
)

// FareBreakdown is the priced offer for a trip. It is immutable once
// attached to a persisted booking except through the discount-application
// path, which replaces Subtotal, Tax and FinalAmount atomically.
type FareBreakdown struct {
	VehicleType        VehicleType `json:"vehicle_type"`
	BookingType        BookingType `json:"booking_type"`
	BaseFare           int64       `json:"base_fare"`
	DistanceKm         float64     `json:"distance_km"`
	NightCharges       int64       `json:"night_charges"`
	IsNightTime        bool        `json:"is_night_time"`
	MinimumFareApplied bool        `json:"minimum_fare_applied"`
	Subtotal           int64       `json:"subtotal"`
	Tax                int64       `json:"tax"`
	TaxRatePercent     float64     `json:"tax_rate_percent"`
	TotalFare          int64       `json:"total_fare"`
	FinalAmount        int64       `json:"final_amount"`
	DiscountCode       string      `json:"discount_code,omitempty"`
	DiscountAmount     int64       `json:"discount_amount"`
	DiscountType       string      `json:"discount_type,omitempty"`
	EstimatedMinutes   int         `json:"estimated_minutes"`
	Lines              []string    `json:"lines"`
	ValidUntil         time.Time   `json:"valid_until"`
}

// IsExpired reports whether the quote is stale and must be recomputed.
func (f FareBreakdown) IsExpired(now time.Time) bool {
	return now.After(f.ValidUntil)
}

// roundMoney rounds a currency amount to the nearest whole unit. Rounding
// happens only at the point of output, never on intermediate values.
func roundMoney(v float64) int64 {
	return int64(math.Round(v))
}

// taxOn computes the tax due on a whole-unit subtotal.
func taxOn(subtotal int64) int64 {
	return roundMoney(float64(subtotal) * taxRatePercent / 100.0)
}
