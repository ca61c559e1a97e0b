package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/urbancab/service-booking/internal/domain"
	bookingDomain "github.com/urbancab/service-booking/internal/domain/booking"
	driverDomain "github.com/urbancab/service-booking/internal/domain/driver"
	"github.com/urbancab/service-booking/internal/domain/pricing"
	"github.com/urbancab/service-booking/internal/events"
	"github.com/urbancab/service-booking/internal/notify"
	"github.com/urbancab/service-booking/internal/payments"
)

// PaymentGateway is the slice of the gateway client the booking flows use.
type PaymentGateway interface {
	VerifySignature(orderID, paymentID, signature string) bool
	CreateRefund(ctx context.Context, paymentID string, amount int64) (payments.Refund, error)
}

// LifecyclePublisher fans booking lifecycle events out to the event bus.
// Satisfied by *events.Publisher.
type LifecyclePublisher interface {
	PublishLifecycle(ctx context.Context, eventType string, data interface{}, bookingID, userID uuid.UUID, driverID *uuid.UUID)
}

// CreateBookingRequest holds the data needed to create a new booking. The
// trip is priced with the embedded quote parameters at creation time.
type CreateBookingRequest struct {
	QuoteRequest
	EndDateTime *time.Time `json:"end_date_time"`
}

// CancelBookingRequest carries the cancellation reason.
type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

// RateBookingRequest carries a completed-trip rating.
type RateBookingRequest struct {
	Score   int    `json:"score" binding:"required"`
	Comment string `json:"comment"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID            uuid.UUID                          `json:"id"`
	BookingNumber string                             `json:"booking_number"`
	UserID        uuid.UUID                          `json:"user_id"`
	DriverID      *uuid.UUID                         `json:"driver_id,omitempty"`
	BookingType   string                             `json:"booking_type"`
	Status        string                             `json:"status"`
	Pickup        bookingDomain.Location             `json:"pickup"`
	Drop          bookingDomain.Location             `json:"drop,omitempty"`
	StartDateTime time.Time                          `json:"start_date_time"`
	EndDateTime   *time.Time                         `json:"end_date_time,omitempty"`
	VehicleType   string                             `json:"vehicle_type"`
	Fare          pricing.FareBreakdown              `json:"fare"`
	Trip          bookingDomain.TripRecord           `json:"trip"`
	Cancellation  *bookingDomain.CancellationRecord  `json:"cancellation,omitempty"`
	Rating        *bookingDomain.Rating              `json:"rating,omitempty"`
	Payment       *bookingDomain.PaymentRecord       `json:"payment,omitempty"`
	Version       int64                              `json:"version"`
	CreatedAt     time.Time                          `json:"created_at"`
	UpdatedAt     time.Time                          `json:"updated_at"`
}

// CancellationDTO is the outcome of a cancellation: the updated booking plus
// the assessed economics.
type CancellationDTO struct {
	Booking      BookingDTO `json:"booking"`
	Charge       int64      `json:"charge"`
	RefundAmount int64      `json:"refund_amount"`
	Note         string     `json:"note,omitempty"`
}

// BookingService is the application service orchestrating booking use cases.
type BookingService struct {
	repo      bookingDomain.BookingRepository
	drivers   driverDomain.DriverRepository
	quotes    *QuoteService
	discounts *pricing.DiscountEngine
	policy    bookingDomain.CancellationPolicy
	publisher LifecyclePublisher
	gateway   PaymentGateway
	notifier  notify.Sender
	logger    *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repo bookingDomain.BookingRepository,
	drivers driverDomain.DriverRepository,
	quotes *QuoteService,
	discounts *pricing.DiscountEngine,
	policy bookingDomain.CancellationPolicy,
	publisher LifecyclePublisher,
	gateway PaymentGateway,
	notifier notify.Sender,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repo:      repo,
		drivers:   drivers,
		quotes:    quotes,
		discounts: discounts,
		policy:    policy,
		publisher: publisher,
		gateway:   gateway,
		notifier:  notifier,
		logger:    logger,
	}
}

// CreateBooking prices the trip, guards against duplicate bookings and
// persists a confirmed booking for the given customer.
func (s *BookingService) CreateBooking(ctx context.Context, userID uuid.UUID, req CreateBookingRequest) (*BookingDTO, error) {
	quote, err := s.quotes.GetQuote(ctx, req.QuoteRequest)
	if err != nil {
		return nil, err
	}

	active, err := s.repo.FindActiveByUserAround(ctx, userID, req.StartDateTime, bookingDomain.DuplicateWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate bookings: %w", err)
	}
	if len(active) > 0 {
		return nil, domain.NewConflictError(fmt.Sprintf(
			"an active booking (%s) already exists within %d minutes of this start time",
			active[0].BookingNumber(), int(bookingDomain.DuplicateWindow.Minutes()),
		))
	}

	bk, err := bookingDomain.NewBooking(
		userID,
		quote.Fare.BookingType,
		toLocation(req.Pickup),
		toLocation(req.Drop),
		req.StartDateTime,
		req.EndDateTime,
		quote.Fare.VehicleType,
		quote.Fare,
		true,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, bk); err != nil {
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	s.publishLifecycle(ctx, events.BookingCreated, bk)
	s.notifier.Send(ctx, notify.UserTopic(userID),
		"Booking confirmed",
		fmt.Sprintf("Your booking %s is confirmed for %s.", bk.BookingNumber(), bk.StartDateTime().Format(time.RFC1123)),
		map[string]string{"booking_id": bk.ID().String(), "status": string(bk.Status())},
	)

	result := toBookingDTO(bk)
	return &result, nil
}

// ConfirmBooking moves a pending booking to confirmed (admin approval flow).
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID uuid.UUID, role bookingDomain.ActorRole) (*BookingDTO, error) {
	return s.transition(ctx, bookingID, events.BookingConfirmed, func(bk *bookingDomain.Booking) error {
		return bk.Confirm(role)
	})
}

// RejectBooking rejects a pending booking (admin).
func (s *BookingService) RejectBooking(ctx context.Context, bookingID uuid.UUID, role bookingDomain.ActorRole) (*BookingDTO, error) {
	return s.transition(ctx, bookingID, events.BookingRejected, func(bk *bookingDomain.Booking) error {
		return bk.Reject(role)
	})
}

// AssignDriver assigns an eligible driver to a confirmed booking. The
// assignment is persisted as a conditional update so concurrent assignments
// resolve to exactly one winner.
func (s *BookingService) AssignDriver(ctx context.Context, bookingID, driverID uuid.UUID, role bookingDomain.ActorRole) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	drv, err := s.drivers.FindByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if err := drv.CanAccept(bk.VehicleType()); err != nil {
		return nil, err
	}

	if err := bk.AssignDriver(role, driverID); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.repo.AssignDriver(ctx, bk); err != nil {
		return nil, err
	}

	drv.SetAvailability(false)
	if err := s.drivers.Update(ctx, drv); err != nil {
		s.logger.Error("failed to mark driver unavailable after assignment",
			zap.String("driver_id", driverID.String()),
			zap.Error(err),
		)
	}

	s.publishLifecycle(ctx, events.BookingDriverAssigned, bk)
	s.notifier.Send(ctx, notify.UserTopic(bk.UserID()),
		"Driver assigned",
		fmt.Sprintf("%s (%s) will drive your trip %s.", drv.Name(), drv.VehicleNumber(), bk.BookingNumber()),
		map[string]string{"booking_id": bk.ID().String(), "driver_id": driverID.String()},
	)
	s.notifier.Send(ctx, notify.DriverTopic(driverID),
		"New trip assigned",
		fmt.Sprintf("You have been assigned booking %s.", bk.BookingNumber()),
		map[string]string{"booking_id": bk.ID().String()},
	)

	result := toBookingDTO(bk)
	return &result, nil
}

// StartTrip marks an assigned booking as in progress. Only the assigned
// driver may start the trip.
func (s *BookingService) StartTrip(ctx context.Context, bookingID, driverID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssignedDriver(bk, driverID); err != nil {
		return nil, err
	}

	if err := bk.StartTrip(bookingDomain.RoleDriver); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.publishLifecycle(ctx, events.BookingTripStarted, bk)
	s.notifier.Send(ctx, notify.UserTopic(bk.UserID()),
		"Trip started",
		fmt.Sprintf("Your trip %s is underway.", bk.BookingNumber()),
		map[string]string{"booking_id": bk.ID().String()},
	)

	result := toBookingDTO(bk)
	return &result, nil
}

// CompleteTrip marks an in-progress booking as completed and updates the
// driver's ride counter and availability.
func (s *BookingService) CompleteTrip(ctx context.Context, bookingID, driverID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssignedDriver(bk, driverID); err != nil {
		return nil, err
	}

	if err := bk.CompleteTrip(bookingDomain.RoleDriver); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	if drv, err := s.drivers.FindByID(ctx, driverID); err != nil {
		s.logger.Error("failed to load driver after trip completion",
			zap.String("driver_id", driverID.String()),
			zap.Error(err),
		)
	} else {
		drv.RecordCompletedRide()
		drv.SetAvailability(true)
		if err := s.drivers.Update(ctx, drv); err != nil {
			s.logger.Error("failed to update driver after trip completion",
				zap.String("driver_id", driverID.String()),
				zap.Error(err),
			)
		}
	}

	s.publishLifecycle(ctx, events.BookingTripCompleted, bk)
	s.notifier.Send(ctx, notify.UserTopic(bk.UserID()),
		"Trip completed",
		fmt.Sprintf("Your trip %s is complete. Total fare: %d.", bk.BookingNumber(), bk.Fare().FinalAmount),
		map[string]string{"booking_id": bk.ID().String()},
	)

	result := toBookingDTO(bk)
	return &result, nil
}

// CancelBooking cancels a booking, assessing the time-windowed cancellation
// charge. A captured payment is refunded through the gateway for the
// assessed refund amount.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, actorID uuid.UUID, role bookingDomain.ActorRole, reason string) (*CancellationDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if role == bookingDomain.RoleCustomer && bk.UserID() != actorID {
		return nil, domain.NewPermissionError("booking does not belong to this user")
	}
	if role == bookingDomain.RoleDriver {
		if err := s.requireAssignedDriver(bk, actorID); err != nil {
			return nil, err
		}
	}

	assessment := s.policy.Assess(bk.Fare().FinalAmount, bk.StartDateTime(), time.Now().UTC())

	if err := bk.Cancel(role, reason, assessment.Charge); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	if payment := bk.Payment(); payment != nil && assessment.RefundAmount > 0 {
		if _, err := s.gateway.CreateRefund(ctx, payment.PaymentID, assessment.RefundAmount); err != nil {
			s.logger.Error("failed to create refund for cancelled booking",
				zap.String("booking_id", bk.ID().String()),
				zap.String("payment_id", payment.PaymentID),
				zap.Int64("refund_amount", assessment.RefundAmount),
				zap.Error(err),
			)
		}
	}

	if driverID := bk.DriverID(); driverID != nil {
		if drv, err := s.drivers.FindByID(ctx, *driverID); err != nil {
			s.logger.Error("failed to load driver for release after cancellation",
				zap.String("driver_id", driverID.String()),
				zap.Error(err),
			)
		} else {
			drv.SetAvailability(true)
			if err := s.drivers.Update(ctx, drv); err != nil {
				s.logger.Error("failed to release driver after cancellation",
					zap.String("driver_id", driverID.String()),
					zap.Error(err),
				)
			}
		}
	}

	evt := events.BookingCancelledEvent{
		BookingLifecycleEvent: lifecycleEvent(bk),
		CancelledBy:           string(role),
		Reason:                reason,
		Charge:                assessment.Charge,
		RefundAmount:          assessment.RefundAmount,
	}
	s.publisher.PublishLifecycle(ctx, events.BookingCancelled, evt, bk.ID(), bk.UserID(), bk.DriverID())
	s.notifier.Send(ctx, notify.UserTopic(bk.UserID()),
		"Booking cancelled",
		fmt.Sprintf("Booking %s was cancelled. Cancellation charge: %d.", bk.BookingNumber(), assessment.Charge),
		map[string]string{"booking_id": bk.ID().String()},
	)
	if driverID := bk.DriverID(); driverID != nil {
		s.notifier.Send(ctx, notify.DriverTopic(*driverID),
			"Trip cancelled",
			fmt.Sprintf("Booking %s was cancelled.", bk.BookingNumber()),
			map[string]string{"booking_id": bk.ID().String()},
		)
	}

	return &CancellationDTO{
		Booking:      toBookingDTO(bk),
		Charge:       assessment.Charge,
		RefundAmount: assessment.RefundAmount,
		Note:         assessment.Note,
	}, nil
}

// ApplyDiscount applies a discount code to a not-yet-started booking owned
// by the user.
func (s *BookingService) ApplyDiscount(ctx context.Context, bookingID, userID uuid.UUID, code string) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if bk.UserID() != userID {
		return nil, domain.NewPermissionError("booking does not belong to this user")
	}

	completed, err := s.repo.CountCompletedByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user booking history: %w", err)
	}

	discounted, err := s.discounts.Apply(bk.Fare(), code, pricing.UserHistory{CompletedBookings: completed})
	if err != nil {
		return nil, err
	}

	if err := bk.ApplyDiscount(discounted); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.publishLifecycle(ctx, events.BookingDiscountApplied, bk)

	result := toBookingDTO(bk)
	return &result, nil
}

// RateBooking records the customer's rating for a completed booking and
// folds it into the driver's aggregates.
func (s *BookingService) RateBooking(ctx context.Context, bookingID, userID uuid.UUID, req RateBookingRequest) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if bk.UserID() != userID {
		return nil, domain.NewPermissionError("booking does not belong to this user")
	}

	if err := bk.Rate(req.Score, req.Comment); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	if driverID := bk.DriverID(); driverID != nil {
		if drv, err := s.drivers.FindByID(ctx, *driverID); err != nil {
			s.logger.Error("failed to load driver for rating aggregates",
				zap.String("driver_id", driverID.String()),
				zap.Error(err),
			)
		} else if err := drv.AddRating(req.Score); err != nil {
			s.logger.Warn("rating not folded into driver aggregates",
				zap.String("driver_id", driverID.String()),
				zap.Error(err),
			)
		} else if err := s.drivers.Update(ctx, drv); err != nil {
			s.logger.Error("failed to update driver rating aggregates",
				zap.String("driver_id", driverID.String()),
				zap.Error(err),
			)
		}
	}

	s.publishLifecycle(ctx, events.BookingRated, bk)

	result := toBookingDTO(bk)
	return &result, nil
}

// ConfirmPayment records a captured gateway payment on the booking after
// verifying its signature. Invoked by the payment-events consumer.
func (s *BookingService) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, orderID, paymentID, signature string) error {
	if !s.gateway.VerifySignature(orderID, paymentID, signature) {
		return domain.NewValidationError("payment signature verification failed")
	}

	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}

	if err := bk.RecordPayment(orderID, paymentID); err != nil {
		return err
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return err
	}

	s.notifier.Send(ctx, notify.UserTopic(bk.UserID()),
		"Payment received",
		fmt.Sprintf("Payment for booking %s has been captured.", bk.BookingNumber()),
		map[string]string{"booking_id": bk.ID().String(), "payment_id": paymentID},
	)
	return nil
}

// GetBooking retrieves a single booking by ID.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetUserBookings retrieves paginated bookings for a customer.
func (s *BookingService) GetUserBookings(ctx context.Context, userID uuid.UUID, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.repo.FindByUserID(ctx, userID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit)
	return &result, nil
}

// GetDriverBookings retrieves paginated bookings assigned to a driver.
func (s *BookingService) GetDriverBookings(ctx context.Context, driverID uuid.UUID, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.repo.FindByDriverID(ctx, driverID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit)
	return &result, nil
}

// --- Admin methods ---

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return toBookingDTOs(bookings), total, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      counts,
	}, nil
}

// --- Helpers ---

// transition loads a booking, applies the status mutation and persists it
// with optimistic locking, publishing the lifecycle event on success.
func (s *BookingService) transition(ctx context.Context, bookingID uuid.UUID, eventType string, mutate func(*bookingDomain.Booking) error) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if err := mutate(bk); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.publishLifecycle(ctx, eventType, bk)

	result := toBookingDTO(bk)
	return &result, nil
}

func (s *BookingService) requireAssignedDriver(bk *bookingDomain.Booking, driverID uuid.UUID) error {
	if bk.DriverID() == nil || *bk.DriverID() != driverID {
		return domain.NewPermissionError("booking is not assigned to this driver")
	}
	return nil
}

func (s *BookingService) publishLifecycle(ctx context.Context, eventType string, bk *bookingDomain.Booking) {
	s.publisher.PublishLifecycle(ctx, eventType, lifecycleEvent(bk), bk.ID(), bk.UserID(), bk.DriverID())
}

func lifecycleEvent(bk *bookingDomain.Booking) events.BookingLifecycleEvent {
	return events.BookingLifecycleEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		UserID:        bk.UserID(),
		DriverID:      bk.DriverID(),
		Status:        string(bk.Status()),
		BookingType:   string(bk.BookingType()),
		VehicleType:   string(bk.VehicleType()),
		FinalAmount:   bk.Fare().FinalAmount,
		OccurredAt:    time.Now().UTC(),
	}
}

func toLocation(l LocationInput) bookingDomain.Location {
	return bookingDomain.Location{
		Address:   l.Address,
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
	}
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:            bk.ID(),
		BookingNumber: bk.BookingNumber(),
		UserID:        bk.UserID(),
		DriverID:      bk.DriverID(),
		BookingType:   string(bk.BookingType()),
		Status:        string(bk.Status()),
		Pickup:        bk.Pickup(),
		Drop:          bk.Drop(),
		StartDateTime: bk.StartDateTime(),
		EndDateTime:   bk.EndDateTime(),
		VehicleType:   string(bk.VehicleType()),
		Fare:          bk.Fare(),
		Trip:          bk.Trip(),
		Cancellation:  bk.Cancellation(),
		Rating:        bk.Rating(),
		Payment:       bk.Payment(),
		Version:       bk.Version(),
		CreatedAt:     bk.CreatedAt(),
		UpdatedAt:     bk.UpdatedAt(),
	}
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos
}
