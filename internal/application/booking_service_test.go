package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/urbancab/service-booking/internal/domain"
	bookingDomain "github.com/urbancab/service-booking/internal/domain/booking"
	driverDomain "github.com/urbancab/service-booking/internal/domain/driver"
	"github.com/urbancab/service-booking/internal/domain/pricing"
	"github.com/urbancab/service-booking/internal/geo"
	"github.com/urbancab/service-booking/internal/notify"
	"github.com/urbancab/service-booking/internal/payments"
)

// --- Fakes ---

type fakeBookingRepo struct {
	bookings       map[uuid.UUID]*bookingDomain.Booking
	active         []*bookingDomain.Booking
	completedCount int64
	saveErr        error
	updateErr      error
	assignErr      error
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[uuid.UUID]*bookingDomain.Booking)}
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	bk, ok := r.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("Booking", id.String())
	}
	return bk, nil
}

func (r *fakeBookingRepo) FindByNumber(_ context.Context, number string) (*bookingDomain.Booking, error) {
	for _, bk := range r.bookings {
		if bk.BookingNumber() == number {
			return bk, nil
		}
	}
	return nil, domain.NewNotFoundError("Booking", number)
}

func (r *fakeBookingRepo) FindByUserID(_ context.Context, userID uuid.UUID, _, _ int) ([]*bookingDomain.Booking, int64, error) {
	var out []*bookingDomain.Booking
	for _, bk := range r.bookings {
		if bk.UserID() == userID {
			out = append(out, bk)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) FindByDriverID(_ context.Context, driverID uuid.UUID, _, _ int) ([]*bookingDomain.Booking, int64, error) {
	var out []*bookingDomain.Booking
	for _, bk := range r.bookings {
		if bk.DriverID() != nil && *bk.DriverID() == driverID {
			out = append(out, bk)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) FindActiveByUserAround(_ context.Context, _ uuid.UUID, _ time.Time, _ time.Duration) ([]*bookingDomain.Booking, error) {
	return r.active, nil
}

func (r *fakeBookingRepo) CountCompletedByUser(_ context.Context, _ uuid.UUID) (int64, error) {
	return r.completedCount, nil
}

func (r *fakeBookingRepo) ListAll(_ context.Context, _, _ int) ([]*bookingDomain.Booking, int64, error) {
	var out []*bookingDomain.Booking
	for _, bk := range r.bookings {
		out = append(out, bk)
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, bk := range r.bookings {
		counts[string(bk.Status())]++
	}
	return counts, nil
}

func (r *fakeBookingRepo) Save(_ context.Context, bk *bookingDomain.Booking) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.bookings[bk.ID()] = bk
	return nil
}

func (r *fakeBookingRepo) Update(_ context.Context, bk *bookingDomain.Booking) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.bookings[bk.ID()] = bk
	return nil
}

func (r *fakeBookingRepo) AssignDriver(_ context.Context, bk *bookingDomain.Booking) error {
	if r.assignErr != nil {
		return r.assignErr
	}
	r.bookings[bk.ID()] = bk
	return nil
}

type fakeDriverRepo struct {
	drivers   map[uuid.UUID]*driverDomain.Driver
	findErr   error
	updateErr error
}

func newFakeDriverRepo() *fakeDriverRepo {
	return &fakeDriverRepo{drivers: make(map[uuid.UUID]*driverDomain.Driver)}
}

func (r *fakeDriverRepo) FindByID(_ context.Context, id uuid.UUID) (*driverDomain.Driver, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	d, ok := r.drivers[id]
	if !ok {
		return nil, domain.NewNotFoundError("Driver", id.String())
	}
	return d, nil
}

func (r *fakeDriverRepo) FindAvailable(_ context.Context, _ string) ([]*driverDomain.Driver, error) {
	var out []*driverDomain.Driver
	for _, d := range r.drivers {
		if d.Available() {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeDriverRepo) Save(_ context.Context, d *driverDomain.Driver) error {
	r.drivers[d.ID()] = d
	return nil
}

func (r *fakeDriverRepo) Update(_ context.Context, d *driverDomain.Driver) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.drivers[d.ID()] = d
	return nil
}

type recordingPublisher struct {
	types []string
}

func (p *recordingPublisher) PublishLifecycle(_ context.Context, eventType string, _ interface{}, _, _ uuid.UUID, _ *uuid.UUID) {
	p.types = append(p.types, eventType)
}

type refundCall struct {
	paymentID string
	amount    int64
}

type fakeGateway struct {
	verifyResult bool
	refunds      []refundCall
	refundErr    error
}

func (g *fakeGateway) VerifySignature(_, _, _ string) bool { return g.verifyResult }

func (g *fakeGateway) CreateRefund(_ context.Context, paymentID string, amount int64) (payments.Refund, error) {
	if g.refundErr != nil {
		return payments.Refund{}, g.refundErr
	}
	g.refunds = append(g.refunds, refundCall{paymentID: paymentID, amount: amount})
	return payments.Refund{ID: "rfnd_test", PaymentID: paymentID, Amount: amount, Status: "processed"}, nil
}

type staticGeocoder struct{ coords geo.Coordinates }

func (g staticGeocoder) Geocode(context.Context, string) (geo.Coordinates, error) {
	return g.coords, nil
}

type staticRouter struct{ km float64 }

func (r staticRouter) Route(context.Context, geo.Coordinates, geo.Coordinates) (float64, error) {
	return r.km, nil
}

// --- Harness ---

type serviceHarness struct {
	service   *BookingService
	repo      *fakeBookingRepo
	drivers   *fakeDriverRepo
	publisher *recordingPublisher
	gateway   *fakeGateway
	logs      *observer.ObservedLogs
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()
	repo := newFakeBookingRepo()
	drivers := newFakeDriverRepo()
	publisher := &recordingPublisher{}
	gateway := &fakeGateway{verifyResult: true}

	coords := geo.NewCache[geo.Coordinates](10)
	distances := geo.NewCache[geo.DistanceResult](10)
	t.Cleanup(func() {
		coords.Close()
		distances.Close()
	})
	pipeline := geo.NewPipeline(
		staticGeocoder{coords: geo.Coordinates{Latitude: 12.9716, Longitude: 77.5946}},
		staticRouter{km: 150},
		coords, distances, zap.NewNop(),
	)
	quotes := NewQuoteService(pipeline, pricing.NewCalculator(), zap.NewNop())

	core, logs := observer.New(zap.WarnLevel)
	service := NewBookingService(
		repo,
		drivers,
		quotes,
		pricing.NewDiscountEngine(),
		bookingDomain.DefaultCancellationPolicy(),
		publisher,
		gateway,
		notify.NopSender{},
		zap.New(core),
	)
	return &serviceHarness{
		service:   service,
		repo:      repo,
		drivers:   drivers,
		publisher: publisher,
		gateway:   gateway,
		logs:      logs,
	}
}

func outstationRequest(start time.Time) CreateBookingRequest {
	return CreateBookingRequest{
		QuoteRequest: QuoteRequest{
			BookingType:   "OUTSTATION",
			VehicleType:   "SEDAN",
			Pickup:        LocationInput{Address: "MG Road, Bengaluru"},
			Drop:          LocationInput{Address: "Mysore Palace, Mysuru"},
			StartDateTime: start,
			DistanceKm:    150,
		},
	}
}

func (h *serviceHarness) seedBooking(t *testing.T, start time.Time) *bookingDomain.Booking {
	t.Helper()
	dto, err := h.service.CreateBooking(context.Background(), uuid.New(), outstationRequest(start))
	require.NoError(t, err)
	bk, ok := h.repo.bookings[dto.ID]
	require.True(t, ok)
	return bk
}

func (h *serviceHarness) seedDriver(t *testing.T, verified, available bool) *driverDomain.Driver {
	t.Helper()
	drv, err := driverDomain.NewDriver(uuid.New(), "Ravi Kumar", "+919876543210", "KA0120260001", pricing.VehicleSedan, "KA 01 AB 1234")
	require.NoError(t, err)
	if verified {
		drv.Verify()
	}
	drv.SetAvailability(available)
	require.NoError(t, h.drivers.Save(context.Background(), drv))
	return drv
}

func farFuture() time.Time {
	return time.Now().UTC().Add(72 * time.Hour)
}

// --- Tests ---

func TestCreateBooking_ConfirmsAndPublishes(t *testing.T) {
	h := newServiceHarness(t)

	dto, err := h.service.CreateBooking(context.Background(), uuid.New(), outstationRequest(farFuture()))
	require.NoError(t, err)

	assert.Equal(t, string(bookingDomain.StatusConfirmed), dto.Status)
	assert.Equal(t, int64(2205), dto.Fare.FinalAmount)
	assert.Contains(t, h.publisher.types, "booking.created")
	assert.Len(t, h.repo.bookings, 1)
}

func TestCreateBooking_DuplicateGuard(t *testing.T) {
	h := newServiceHarness(t)
	existing := h.seedBooking(t, farFuture())
	h.repo.active = []*bookingDomain.Booking{existing}

	_, err := h.service.CreateBooking(context.Background(), existing.UserID(), outstationRequest(farFuture()))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConflict))
	assert.Contains(t, err.Error(), existing.BookingNumber())
}

func TestAssignDriver_HappyPath(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, farFuture())
	drv := h.seedDriver(t, true, true)

	dto, err := h.service.AssignDriver(context.Background(), bk.ID(), drv.ID(), bookingDomain.RoleAdmin)
	require.NoError(t, err)

	assert.Equal(t, string(bookingDomain.StatusAssigned), dto.Status)
	require.NotNil(t, dto.DriverID)
	assert.Equal(t, drv.ID(), *dto.DriverID)
	assert.False(t, h.drivers.drivers[drv.ID()].Available(), "assigned driver is taken off the pool")
	assert.Contains(t, h.publisher.types, "booking.driver_assigned")
}

func TestAssignDriver_IneligibleDriver(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, farFuture())

	unverified := h.seedDriver(t, false, true)
	_, err := h.service.AssignDriver(context.Background(), bk.ID(), unverified.ID(), bookingDomain.RoleAdmin)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	busy := h.seedDriver(t, true, false)
	_, err = h.service.AssignDriver(context.Background(), bk.ID(), busy.ID(), bookingDomain.RoleAdmin)
	assert.True(t, domain.IsKind(err, domain.KindConflict))
}

func TestAssignDriver_LosingRaceSurfacesConflict(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, farFuture())
	drv := h.seedDriver(t, true, true)
	h.repo.assignErr = domain.NewConflictError("booking has already been accepted by another driver")

	_, err := h.service.AssignDriver(context.Background(), bk.ID(), drv.ID(), bookingDomain.RoleAdmin)
	assert.True(t, domain.IsKind(err, domain.KindConflict))
}

func TestAssignDriver_RequiresAdminRole(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, farFuture())
	drv := h.seedDriver(t, true, true)

	_, err := h.service.AssignDriver(context.Background(), bk.ID(), drv.ID(), bookingDomain.RoleDriver)
	assert.True(t, domain.IsKind(err, domain.KindPermission))
}

func TestStartTrip_OnlyAssignedDriver(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, farFuture())
	drv := h.seedDriver(t, true, true)
	_, err := h.service.AssignDriver(context.Background(), bk.ID(), drv.ID(), bookingDomain.RoleAdmin)
	require.NoError(t, err)

	_, err = h.service.StartTrip(context.Background(), bk.ID(), uuid.New())
	assert.True(t, domain.IsKind(err, domain.KindPermission))

	dto, err := h.service.StartTrip(context.Background(), bk.ID(), drv.ID())
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.StatusInProgress), dto.Status)
	assert.NotNil(t, dto.Trip.ActualStart)
}

func TestCompleteTrip_UpdatesDriverAggregates(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, farFuture())
	drv := h.seedDriver(t, true, true)
	_, err := h.service.AssignDriver(context.Background(), bk.ID(), drv.ID(), bookingDomain.RoleAdmin)
	require.NoError(t, err)
	_, err = h.service.StartTrip(context.Background(), bk.ID(), drv.ID())
	require.NoError(t, err)

	dto, err := h.service.CompleteTrip(context.Background(), bk.ID(), drv.ID())
	require.NoError(t, err)

	assert.Equal(t, string(bookingDomain.StatusCompleted), dto.Status)
	updated := h.drivers.drivers[drv.ID()]
	assert.Equal(t, int64(1), updated.CompletedRides())
	assert.True(t, updated.Available(), "driver returns to the pool after completion")
}

func TestCompleteTrip_DriverLookupFailureIsLogged(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, farFuture())
	drv := h.seedDriver(t, true, true)
	_, err := h.service.AssignDriver(context.Background(), bk.ID(), drv.ID(), bookingDomain.RoleAdmin)
	require.NoError(t, err)
	_, err = h.service.StartTrip(context.Background(), bk.ID(), drv.ID())
	require.NoError(t, err)

	h.drivers.findErr = domain.NewServiceUnavailableError("driver store unreachable", errors.New("dial tcp: timeout"))

	dto, err := h.service.CompleteTrip(context.Background(), bk.ID(), drv.ID())
	require.NoError(t, err, "a driver-side failure must not fail the completion")

	assert.Equal(t, string(bookingDomain.StatusCompleted), dto.Status)
	assert.Equal(t, int64(0), drv.CompletedRides(), "counter untouched when the driver could not be loaded")
	assert.Equal(t, 1, h.logs.FilterMessage("failed to load driver after trip completion").Len())
}

func TestCancelBooking_DriverReleaseFailureIsLogged(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, farFuture())
	drv := h.seedDriver(t, true, true)
	_, err := h.service.AssignDriver(context.Background(), bk.ID(), drv.ID(), bookingDomain.RoleAdmin)
	require.NoError(t, err)

	h.drivers.findErr = domain.NewServiceUnavailableError("driver store unreachable", errors.New("dial tcp: timeout"))

	_, err = h.service.CancelBooking(context.Background(), bk.ID(), bk.UserID(), bookingDomain.RoleCustomer, "change of plans")
	require.NoError(t, err)

	assert.False(t, drv.Available(), "release skipped when the driver could not be loaded")
	assert.Equal(t, 1, h.logs.FilterMessage("failed to load driver for release after cancellation").Len())
}

func TestRateBooking_DriverLookupFailureIsLogged(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, farFuture())
	drv := h.seedDriver(t, true, true)
	_, err := h.service.AssignDriver(context.Background(), bk.ID(), drv.ID(), bookingDomain.RoleAdmin)
	require.NoError(t, err)
	_, err = h.service.StartTrip(context.Background(), bk.ID(), drv.ID())
	require.NoError(t, err)
	_, err = h.service.CompleteTrip(context.Background(), bk.ID(), drv.ID())
	require.NoError(t, err)

	h.drivers.findErr = domain.NewServiceUnavailableError("driver store unreachable", errors.New("dial tcp: timeout"))

	dto, err := h.service.RateBooking(context.Background(), bk.ID(), bk.UserID(), RateBookingRequest{Score: 5})
	require.NoError(t, err)

	require.NotNil(t, dto.Rating)
	assert.Equal(t, int64(0), drv.RatedRideCount(), "aggregates untouched when the driver could not be loaded")
	assert.Equal(t, 1, h.logs.FilterMessage("failed to load driver for rating aggregates").Len())
}

func TestCancelBooking_WithinWindowRefundsThroughGateway(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, time.Now().UTC().Add(6*time.Hour))
	require.NoError(t, bk.RecordPayment("order_x", "pay_x"))

	dto, err := h.service.CancelBooking(context.Background(), bk.ID(), bk.UserID(), bookingDomain.RoleCustomer, "change of plans")
	require.NoError(t, err)

	assert.Equal(t, int64(221), dto.Charge)
	assert.Equal(t, int64(1984), dto.RefundAmount)
	require.Len(t, h.gateway.refunds, 1)
	assert.Equal(t, refundCall{paymentID: "pay_x", amount: 1984}, h.gateway.refunds[0])
	assert.Contains(t, h.publisher.types, "booking.cancelled")
}

func TestCancelBooking_NoPaymentNoRefund(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, farFuture())

	dto, err := h.service.CancelBooking(context.Background(), bk.ID(), bk.UserID(), bookingDomain.RoleCustomer, "")
	require.NoError(t, err)
	assert.Zero(t, dto.Charge)
	assert.Empty(t, h.gateway.refunds)
}

func TestCancelBooking_OwnershipEnforced(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, farFuture())

	_, err := h.service.CancelBooking(context.Background(), bk.ID(), uuid.New(), bookingDomain.RoleCustomer, "")
	assert.True(t, domain.IsKind(err, domain.KindPermission))
}

func TestCancelBooking_DriverMustBeAssigned(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, farFuture())

	_, err := h.service.CancelBooking(context.Background(), bk.ID(), uuid.New(), bookingDomain.RoleDriver, "")
	assert.True(t, domain.IsKind(err, domain.KindPermission))
}

func TestApplyDiscount_FirstBookingWelcomeCode(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, farFuture())

	dto, err := h.service.ApplyDiscount(context.Background(), bk.ID(), bk.UserID(), "WELCOME100")
	require.NoError(t, err)

	assert.Equal(t, "WELCOME100", dto.Fare.DiscountCode)
	assert.Equal(t, int64(100), dto.Fare.DiscountAmount)
	assert.Equal(t, int64(2100), dto.Fare.FinalAmount)
}

func TestApplyDiscount_WelcomeRejectedWithHistory(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, farFuture())
	h.repo.completedCount = 2

	_, err := h.service.ApplyDiscount(context.Background(), bk.ID(), bk.UserID(), "WELCOME100")
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestApplyDiscount_OwnershipEnforced(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, farFuture())

	_, err := h.service.ApplyDiscount(context.Background(), bk.ID(), uuid.New(), "SAVE10")
	assert.True(t, domain.IsKind(err, domain.KindPermission))
}

func TestRateBooking_FoldsIntoDriverAggregates(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, farFuture())
	drv := h.seedDriver(t, true, true)
	_, err := h.service.AssignDriver(context.Background(), bk.ID(), drv.ID(), bookingDomain.RoleAdmin)
	require.NoError(t, err)
	_, err = h.service.StartTrip(context.Background(), bk.ID(), drv.ID())
	require.NoError(t, err)
	_, err = h.service.CompleteTrip(context.Background(), bk.ID(), drv.ID())
	require.NoError(t, err)

	dto, err := h.service.RateBooking(context.Background(), bk.ID(), bk.UserID(), RateBookingRequest{Score: 4, Comment: "smooth"})
	require.NoError(t, err)

	require.NotNil(t, dto.Rating)
	assert.Equal(t, 4, dto.Rating.Score)
	updated := h.drivers.drivers[drv.ID()]
	assert.Equal(t, int64(1), updated.RatedRideCount())
	assert.Equal(t, 4.0, updated.AverageRating())
	assert.Contains(t, h.publisher.types, "booking.rated")
}

func TestConfirmPayment_BadSignatureRejected(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, farFuture())
	h.gateway.verifyResult = false

	err := h.service.ConfirmPayment(context.Background(), bk.ID(), "order_x", "pay_x", "bogus")
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.Nil(t, h.repo.bookings[bk.ID()].Payment())
}

func TestConfirmPayment_RecordsOnce(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, farFuture())

	require.NoError(t, h.service.ConfirmPayment(context.Background(), bk.ID(), "order_x", "pay_x", "sig"))
	payment := h.repo.bookings[bk.ID()].Payment()
	require.NotNil(t, payment)
	assert.Equal(t, "pay_x", payment.PaymentID)

	err := h.service.ConfirmPayment(context.Background(), bk.ID(), "order_y", "pay_y", "sig")
	assert.True(t, domain.IsKind(err, domain.KindConflict))
}

func TestGetBookingStats(t *testing.T) {
	h := newServiceHarness(t)
	h.seedBooking(t, farFuture())
	bk := h.seedBooking(t, farFuture())
	_, err := h.service.CancelBooking(context.Background(), bk.ID(), bk.UserID(), bookingDomain.RoleCustomer, "")
	require.NoError(t, err)

	stats, err := h.service.GetBookingStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalBookings)
	assert.Equal(t, int64(1), stats.ByStatus[string(bookingDomain.StatusConfirmed)])
	assert.Equal(t, int64(1), stats.ByStatus[string(bookingDomain.StatusCancelled)])
}

func TestCancelBooking_RefundFailureDoesNotFailCancellation(t *testing.T) {
	h := newServiceHarness(t)
	bk := h.seedBooking(t, time.Now().UTC().Add(6*time.Hour))
	require.NoError(t, bk.RecordPayment("order_x", "pay_x"))
	h.gateway.refundErr = errors.New("gateway down")

	dto, err := h.service.CancelBooking(context.Background(), bk.ID(), bk.UserID(), bookingDomain.RoleCustomer, "")
	require.NoError(t, err, "refund failure is logged, not surfaced")
	assert.Equal(t, string(bookingDomain.StatusCancelled), dto.Booking.Status)
}
