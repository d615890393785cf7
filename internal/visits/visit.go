// Package visits holds the seller visit domain: scheduling rules, status
// transitions, and the scheduling saga.
package visits

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Scheduling rules, shared by the saga and the store queries.
const (
	// MinAdvance is how far in the future a visit must be scheduled.
	MinAdvance = 24 * time.Hour
	// ConflictWindow is the minimum gap between two visits of one seller.
	ConflictWindow = 180 * time.Minute
)

// Status is a visit lifecycle state. Wire values are Spanish to match the
// services this worker talks to.
type Status string

const (
	StatusScheduled Status = "programada"
	StatusCompleted Status = "completada"
	StatusCancelled Status = "cancelada"
)

// Visit is a scheduled seller visit. Client fields are a denormalized
// snapshot taken at scheduling time so listings don't fan out reads.
type Visit struct {
	ID       uuid.UUID
	SellerID uuid.UUID
	ClientID uuid.UUID

	VisitDate time.Time
	Status    Status
	Notes     string

	ClientInstitutionName string
	ClientAddress         string
	ClientCity            string
	ClientCountry         string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists visits.
type Store interface {
	Insert(ctx context.Context, v *Visit) error
	FindByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	// FindConflicting returns a non-cancelled visit of sellerID within
	// ConflictWindow of at, or nil when the slot is free.
	FindConflicting(ctx context.Context, sellerID uuid.UUID, at time.Time) (*Visit, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, updatedAt time.Time) error
}

// InvalidVisitDateError reports a visit date that is not far enough in
// the future.
type InvalidVisitDateError struct {
	Requested time.Time
	Earliest  time.Time
}

func (e *InvalidVisitDateError) Error() string {
	return fmt.Sprintf("visit date %s is before earliest allowed %s",
		e.Requested.Format(time.RFC3339), e.Earliest.Format(time.RFC3339))
}

// VisitTimeConflictError reports another visit inside the conflict window.
type VisitTimeConflictError struct {
	Requested          time.Time
	ConflictingVisitID uuid.UUID
	ConflictingTime    time.Time
}

func (e *VisitTimeConflictError) Error() string {
	return fmt.Sprintf("visit at %s conflicts with visit %s at %s",
		e.Requested.Format(time.RFC3339), e.ConflictingVisitID,
		e.ConflictingTime.Format(time.RFC3339))
}

// InvalidStatusTransitionError reports a disallowed status change.
type InvalidStatusTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("cannot transition visit from %s to %s", e.From, e.To)
}

// ClientAssignedToOtherSellerError aborts scheduling when the client
// already belongs to a different seller.
type ClientAssignedToOtherSellerError struct {
	ClientID         uuid.UUID
	ClientName       string
	AssignedSellerID uuid.UUID
}

func (e *ClientAssignedToOtherSellerError) Error() string {
	return fmt.Sprintf("client %s (%s) is already assigned to seller %s",
		e.ClientName, e.ClientID, e.AssignedSellerID)
}

// ValidateVisitDate checks that at is at least MinAdvance after now.
func ValidateVisitDate(now, at time.Time) error {
	earliest := now.Add(MinAdvance)
	if at.Before(earliest) {
		return &InvalidVisitDateError{Requested: at, Earliest: earliest}
	}
	return nil
}

// ValidateStatusTransition enforces the visit lifecycle: a scheduled visit
// may be completed or cancelled, nothing else moves. Same-status updates
// are allowed as no-ops.
func ValidateStatusTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if from != StatusScheduled {
		return &InvalidStatusTransitionError{From: from, To: to}
	}
	if to != StatusCompleted && to != StatusCancelled {
		return &InvalidStatusTransitionError{From: from, To: to}
	}
	return nil
}

// ConflictWindowFor returns the [min, max] bounds the store checks for
// conflicting visits.
func ConflictWindowFor(at time.Time) (time.Time, time.Time) {
	return at.Add(-ConflictWindow), at.Add(ConflictWindow)
}
