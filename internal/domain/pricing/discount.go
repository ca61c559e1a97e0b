package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/urbancab/service-booking/internal/domain"
)

// DiscountType distinguishes flat and percentage codes.
type DiscountType string

const (
	DiscountFlat       DiscountType = "FLAT"
	DiscountPercentage DiscountType = "PERCENTAGE"
)

// DiscountCode is a promotional code with its eligibility rules.
type DiscountCode struct {
	Code             string
	Type             DiscountType
	Value            float64
	MaxAmount        int64 // cap for percentage codes, 0 = uncapped
	MinSubtotal      int64
	FirstBookingOnly bool
	ValidUntil       *time.Time // nil = no expiry
}

var discountCodes = map[string]DiscountCode{
	"WELCOME100": {Code: "WELCOME100", Type: DiscountFlat, Value: 100, FirstBookingOnly: true},
	"SAVE10":     {Code: "SAVE10", Type: DiscountPercentage, Value: 10, MaxAmount: 300},
	"FLAT50":     {Code: "FLAT50", Type: DiscountFlat, Value: 50, MinSubtotal: 500},
}

// UserHistory is the slice of a user's record a discount eligibility check
// needs.
type UserHistory struct {
	CompletedBookings int64
}

// DiscountEngine validates a discount code and recomputes tax and total on
// an existing fare breakdown.
type DiscountEngine struct {
	now func() time.Time
}

// NewDiscountEngine creates a DiscountEngine.
func NewDiscountEngine() *DiscountEngine {
	return &DiscountEngine{now: time.Now}
}

// NewDiscountEngineWithClock creates a DiscountEngine with an overridden
// time source. Used by tests.
func NewDiscountEngineWithClock(now func() time.Time) *DiscountEngine {
	return &DiscountEngine{now: now}
}

// Apply returns a copy of fb with the discount subtracted from the pre-tax
// subtotal and tax and final amount recomputed. At most one discount per
// fare: a second application is a ConflictError. Ineligible, unknown or
// expired codes are ValidationErrors.
func (e *DiscountEngine) Apply(fb FareBreakdown, code string, history UserHistory) (FareBreakdown, error) {
	if fb.DiscountAmount != 0 || fb.DiscountCode != "" {
		return FareBreakdown{}, domain.NewConflictError("a discount has already been applied to this fare")
	}

	dc, ok := discountCodes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return FareBreakdown{}, domain.NewValidationError(fmt.Sprintf("invalid discount code: %s", code))
	}
	if dc.ValidUntil != nil && e.now().After(*dc.ValidUntil) {
		return FareBreakdown{}, domain.NewValidationError(fmt.Sprintf("discount code %s has expired", dc.Code))
	}
	if dc.FirstBookingOnly && history.CompletedBookings > 0 {
		return FareBreakdown{}, domain.NewValidationError(fmt.Sprintf("discount code %s is valid only on your first booking", dc.Code))
	}
	if fb.Subtotal < dc.MinSubtotal {
		return FareBreakdown{}, domain.NewValidationError(fmt.Sprintf("discount code %s requires a minimum fare of %d", dc.Code, dc.MinSubtotal))
	}

	amount := dc.amountFor(fb.Subtotal)

	discounted := fb.Subtotal - amount
	if discounted < 0 {
		discounted = 0
		amount = fb.Subtotal
	}

	fb.DiscountCode = dc.Code
	fb.DiscountType = string(dc.Type)
	fb.DiscountAmount = amount
	fb.Subtotal = discounted
	fb.Tax = taxOn(discounted)
	fb.FinalAmount = discounted + fb.Tax
	return fb, nil
}

// amountFor computes the discount value for a given whole-unit subtotal.
func (dc DiscountCode) amountFor(subtotal int64) int64 {
	switch dc.Type {
	case DiscountPercentage:
		amount := roundMoney(float64(subtotal) * dc.Value / 100.0)
		if dc.MaxAmount > 0 && amount > dc.MaxAmount {
			amount = dc.MaxAmount
		}
		return amount
	default:
		return roundMoney(dc.Value)
	}
}
