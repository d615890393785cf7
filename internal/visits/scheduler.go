package visits

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"medisupply/internal/clients"
	"medisupply/internal/events"
	"medisupply/internal/saga"
)

// ScheduleRequest is the input to ScheduleVisit.
type ScheduleRequest struct {
	ClientID  uuid.UUID
	VisitDate time.Time
	Notes     string
}

// Scheduler runs the visit scheduling saga: resolve the client, settle
// the seller assignment, validate the slot, persist the visit.
type Scheduler struct {
	clientSvc clients.ClientService
	store     Store
	executor  *saga.Executor
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewScheduler(clientSvc clients.ClientService, store Store, publisher events.Publisher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		clientSvc: clientSvc,
		store:     store,
		executor:  saga.NewExecutor(logger),
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// ScheduleVisit creates a visit for sellerID. The saga fetches the
// client, auto-assigns the requesting seller when the client is
// unassigned, then validates the slot and persists the visit. A client
// assigned to a different seller aborts before any side effect; the date
// must be at least MinAdvance ahead and the seller must have no other
// visit within ConflictWindow.
func (s *Scheduler) ScheduleVisit(ctx context.Context, sellerID uuid.UUID, req ScheduleRequest) (*Visit, error) {
	var client clients.Client
	var visit *Visit

	steps := []saga.Step{
		{
			Name: "fetch-client",
			Forward: func(ctx context.Context) error {
				got, err := s.clientSvc.GetClient(ctx, req.ClientID)
				if err != nil {
					return fmt.Errorf("fetch client %s: %w", req.ClientID, err)
				}
				if got.AssignedSellerID != nil && *got.AssignedSellerID != sellerID {
					return &ClientAssignedToOtherSellerError{
						ClientID:         got.ID,
						ClientName:       got.InstitutionName,
						AssignedSellerID: *got.AssignedSellerID,
					}
				}
				client = got
				return nil
			},
		},
		{
			Name: "assign-seller",
			Forward: func(ctx context.Context) error {
				if client.AssignedSellerID != nil {
					return nil
				}
				// Check-then-act: another request may assign the client
				// between the fetch step and this write. The assignment
				// also stays in place when a later step fails; there is
				// no unassign operation to compensate with.
				return s.clientSvc.AssignSeller(ctx, client.ID, sellerID)
			},
		},
		{
			Name: "validate-date",
			Forward: func(ctx context.Context) error {
				return ValidateVisitDate(s.now(), req.VisitDate)
			},
		},
		{
			Name: "check-conflict",
			Forward: func(ctx context.Context) error {
				conflict, err := s.store.FindConflicting(ctx, sellerID, req.VisitDate)
				if err != nil {
					return fmt.Errorf("check visit conflicts: %w", err)
				}
				if conflict != nil {
					return &VisitTimeConflictError{
						Requested:          req.VisitDate,
						ConflictingVisitID: conflict.ID,
						ConflictingTime:    conflict.VisitDate,
					}
				}
				return nil
			},
		},
		{
			Name: "create-visit",
			Forward: func(ctx context.Context) error {
				now := s.now()
				visit = &Visit{
					ID:                    uuid.New(),
					SellerID:              sellerID,
					ClientID:              client.ID,
					VisitDate:             req.VisitDate,
					Status:                StatusScheduled,
					Notes:                 req.Notes,
					ClientInstitutionName: client.InstitutionName,
					ClientAddress:         client.Address,
					ClientCity:            client.City,
					ClientCountry:         client.Country,
					CreatedAt:             now,
					UpdatedAt:             now,
				}
				return s.store.Insert(ctx, visit)
			},
		},
	}

	result := s.executor.Execute(ctx, steps)
	if result.Status != saga.StatusSucceeded {
		return nil, fmt.Errorf("schedule visit: %w", result.Err())
	}

	s.publisher.Publish(ctx, "visit_scheduled", map[string]any{
		"visit_id":     visit.ID.String(),
		"seller_id":    sellerID.String(),
		"client_id":    client.ID.String(),
		"fecha_visita": req.VisitDate.UTC().Format(time.RFC3339),
	})

	s.logger.Info("visit scheduled",
		"visit_id", visit.ID, "seller_id", sellerID, "client", client.InstitutionName)
	return visit, nil
}

// UpdateStatus moves a visit through its lifecycle, enforcing
// ValidateStatusTransition against the stored status.
func (s *Scheduler) UpdateStatus(ctx context.Context, visitID uuid.UUID, to Status) (*Visit, error) {
	visit, err := s.store.FindByID(ctx, visitID)
	if err != nil {
		return nil, fmt.Errorf("fetch visit %s: %w", visitID, err)
	}

	if err := ValidateStatusTransition(visit.Status, to); err != nil {
		return nil, err
	}
	if visit.Status == to {
		return visit, nil
	}

	now := s.now()
	if err := s.store.UpdateStatus(ctx, visitID, to, now); err != nil {
		return nil, fmt.Errorf("update visit %s status: %w", visitID, err)
	}
	visit.Status = to
	visit.UpdatedAt = now
	return visit, nil
}
