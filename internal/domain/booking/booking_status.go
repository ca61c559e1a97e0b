package booking

import (
	"fmt"

	"github.com/urbancab/service-booking/internal/domain"
)

// BookingStatus represents the current state of a booking in its lifecycle.
type BookingStatus string

const (
	StatusPending    BookingStatus = "PENDING"
	StatusConfirmed  BookingStatus = "CONFIRMED"
	StatusAssigned   BookingStatus = "ASSIGNED"
	StatusInProgress BookingStatus = "IN_PROGRESS"
	StatusCompleted  BookingStatus = "COMPLETED"
	StatusCancelled  BookingStatus = "CANCELLED"
	StatusRejected   BookingStatus = "REJECTED"
)

// ActorRole identifies who is attempting a lifecycle operation.
type ActorRole string

const (
	RoleCustomer ActorRole = "customer"
	RoleDriver   ActorRole = "driver"
	RoleAdmin    ActorRole = "admin"
)

// Transition is a (from, to) status pair.
type Transition struct {
	From BookingStatus
	To   BookingStatus
}

// transitionRoles is the single source of truth for which role may drive
// which status transition. Any pair absent from this table is illegal for
// every role.
var transitionRoles = map[Transition][]ActorRole{
	{StatusPending, StatusConfirmed}:    {RoleAdmin},
	{StatusPending, StatusRejected}:     {RoleAdmin},
	{StatusPending, StatusCancelled}:    {RoleAdmin, RoleCustomer},
	{StatusConfirmed, StatusCancelled}:  {RoleAdmin, RoleCustomer},
	{StatusConfirmed, StatusAssigned}:   {RoleAdmin},
	{StatusAssigned, StatusInProgress}:  {RoleDriver},
	{StatusAssigned, StatusCancelled}:   {RoleAdmin, RoleCustomer, RoleDriver},
	{StatusInProgress, StatusCompleted}: {RoleDriver},
}

var allStatuses = []BookingStatus{
	StatusPending, StatusConfirmed, StatusAssigned, StatusInProgress,
	StatusCompleted, StatusCancelled, StatusRejected,
}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this
// status.
func (s BookingStatus) IsTerminal() bool {
	for t := range transitionRoles {
		if t.From == s {
			return false
		}
	}
	return true
}

// CanTransitionTo returns true if some role may drive the transition.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	_, ok := transitionRoles[Transition{From: s, To: target}]
	return ok
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, returning an
// error if invalid.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}

// Authorize checks a transition attempt. An unlisted (from, to) pair is an
// invalid-state error regardless of role; a listed pair attempted by a role
// not in its allow set is a permission error. The two are distinct failure
// kinds.
func Authorize(from, to BookingStatus, role ActorRole) error {
	roles, ok := transitionRoles[Transition{From: from, To: to}]
	if !ok {
		return domain.NewInvalidStateError(string(from), string(to))
	}
	for _, allowed := range roles {
		if role == allowed {
			return nil
		}
	}
	return domain.NewPermissionError(fmt.Sprintf("role %s may not transition a booking from %s to %s", role, from, to))
}

// ValidateTransitionTable checks the table's internal consistency once at
// startup: every referenced status is known, terminal states have no
// outgoing transitions and every listed transition has at least one role.
func ValidateTransitionTable() error {
	terminal := map[BookingStatus]bool{
		StatusCompleted: true, StatusCancelled: true, StatusRejected: true,
	}
	for t, roles := range transitionRoles {
		if !t.From.IsValid() || !t.To.IsValid() {
			return fmt.Errorf("transition table references unknown status: %v", t)
		}
		if terminal[t.From] {
			return fmt.Errorf("terminal status %s must not have outgoing transitions", t.From)
		}
		if len(roles) == 0 {
			return fmt.Errorf("transition %s -> %s has no allowed roles", t.From, t.To)
		}
	}
	return nil
}
