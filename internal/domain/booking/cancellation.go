package booking

import (
	"math"
	"time"
)

// CancellationRecord captures who cancelled a booking, when, why and at what
// charge. It is created exactly once, at the moment the booking enters
// CANCELLED.
type CancellationRecord struct {
	CancelledBy ActorRole `json:"cancelled_by"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason"`
	Charge      int64     `json:"charge"`
}

// CancellationPolicy computes the time-windowed cancellation economics.
type CancellationPolicy struct {
	Window        time.Duration
	ChargePercent float64
}

// DefaultCancellationPolicy charges 10% of the final amount for
// cancellations within 24 hours of the scheduled start.
func DefaultCancellationPolicy() CancellationPolicy {
	return CancellationPolicy{Window: 24 * time.Hour, ChargePercent: 10}
}

// CancellationAssessment is the outcome of applying the policy.
type CancellationAssessment struct {
	Charge       int64  `json:"charge"`
	RefundAmount int64  `json:"refund_amount"`
	WithinWindow bool   `json:"within_window"`
	TripStarted  bool   `json:"trip_started"`
	Note         string `json:"note,omitempty"`
}

// Assess computes the cancellation charge for a booking with the given final
// amount and scheduled start. Inside the window the charge is a percentage
// of the final amount; outside it, or once the start time has passed, the
// charge is zero. A past start is reported as a distinct note rather than
// a charge.
func (p CancellationPolicy) Assess(finalAmount int64, scheduledStart, now time.Time) CancellationAssessment {
	gap := scheduledStart.Sub(now)

	if gap < 0 {
		return CancellationAssessment{
			RefundAmount: finalAmount,
			TripStarted:  true,
			Note:         "trip already started",
		}
	}
	if gap >= p.Window {
		return CancellationAssessment{RefundAmount: finalAmount}
	}

	charge := int64(math.Round(float64(finalAmount) * p.ChargePercent / 100.0))
	refund := finalAmount - charge
	if refund < 0 {
		refund = 0
	}
	return CancellationAssessment{
		Charge:       charge,
		RefundAmount: refund,
		WithinWindow: true,
	}
}
