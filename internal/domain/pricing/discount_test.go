package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbancab/service-booking/internal/domain"
)

func testEngine() *DiscountEngine {
	return NewDiscountEngineWithClock(func() time.Time { return testNow })
}

func fareWithSubtotal(subtotal int64) FareBreakdown {
	return FareBreakdown{
		VehicleType: VehicleSedan,
		BookingType: BookingOutstation,
		BaseFare:    subtotal,
		Subtotal:    subtotal,
		Tax:         taxOn(subtotal),
		TotalFare:   subtotal + taxOn(subtotal),
		FinalAmount: subtotal + taxOn(subtotal),
		ValidUntil:  testNow.Add(time.Hour),
	}
}

func TestDiscount_WelcomeFlatOnFirstBooking(t *testing.T) {
	fb, err := testEngine().Apply(fareWithSubtotal(2100), "WELCOME100", UserHistory{})
	require.NoError(t, err)

	assert.Equal(t, "WELCOME100", fb.DiscountCode)
	assert.Equal(t, string(DiscountFlat), fb.DiscountType)
	assert.Equal(t, int64(100), fb.DiscountAmount)
	assert.Equal(t, int64(2000), fb.Subtotal)
	assert.Equal(t, int64(100), fb.Tax)
	assert.Equal(t, int64(2100), fb.FinalAmount)
}

func TestDiscount_WelcomeRejectedAfterFirstBooking(t *testing.T) {
	_, err := testEngine().Apply(fareWithSubtotal(2100), "WELCOME100", UserHistory{CompletedBookings: 1})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestDiscount_PercentageCappedAtMaxAmount(t *testing.T) {
	// 10% of 5000 is 500, capped at 300.
	fb, err := testEngine().Apply(fareWithSubtotal(5000), "SAVE10", UserHistory{CompletedBookings: 3})
	require.NoError(t, err)

	assert.Equal(t, int64(300), fb.DiscountAmount)
	assert.Equal(t, int64(4700), fb.Subtotal)
	assert.Equal(t, int64(235), fb.Tax)
	assert.Equal(t, int64(4935), fb.FinalAmount)
}

func TestDiscount_PercentageUnderCap(t *testing.T) {
	fb, err := testEngine().Apply(fareWithSubtotal(2100), "SAVE10", UserHistory{})
	require.NoError(t, err)

	assert.Equal(t, int64(210), fb.DiscountAmount)
	assert.Equal(t, int64(1890), fb.Subtotal)
}

func TestDiscount_MinimumSubtotalEnforced(t *testing.T) {
	engine := testEngine()

	_, err := engine.Apply(fareWithSubtotal(400), "FLAT50", UserHistory{})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	fb, err := engine.Apply(fareWithSubtotal(600), "FLAT50", UserHistory{})
	require.NoError(t, err)
	assert.Equal(t, int64(50), fb.DiscountAmount)
	assert.Equal(t, int64(550), fb.Subtotal)
}

func TestDiscount_SecondApplicationConflicts(t *testing.T) {
	engine := testEngine()

	fb, err := engine.Apply(fareWithSubtotal(2100), "SAVE10", UserHistory{})
	require.NoError(t, err)

	_, err = engine.Apply(fb, "FLAT50", UserHistory{})
	assert.True(t, domain.IsKind(err, domain.KindConflict))
}

func TestDiscount_UnknownCode(t *testing.T) {
	_, err := testEngine().Apply(fareWithSubtotal(2100), "NOPE", UserHistory{})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestDiscount_CodeNormalization(t *testing.T) {
	fb, err := testEngine().Apply(fareWithSubtotal(2100), "  save10 ", UserHistory{})
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", fb.DiscountCode)
}

func TestDiscount_NeverBelowZero(t *testing.T) {
	// A flat 100 against an 80 subtotal clamps at zero rather than going
	// negative.
	fb, err := testEngine().Apply(fareWithSubtotal(80), "WELCOME100", UserHistory{})
	require.NoError(t, err)

	assert.Equal(t, int64(80), fb.DiscountAmount)
	assert.Zero(t, fb.Subtotal)
	assert.Zero(t, fb.Tax)
	assert.Zero(t, fb.FinalAmount)
}
