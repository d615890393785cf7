// Package sales tracks seller sales plans and accumulates order totals
// into them from order_created events.
package sales

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	eventsdb "medisupply/internal/db/events"
)

// Plan is a quarterly sales target for one seller. Accumulate grows as
// the seller's orders come in.
type Plan struct {
	ID         uuid.UUID
	SellerID   uuid.UUID
	Period     string
	Goal       float64
	Accumulate float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PlanStatus is derived from the period and the accumulate.
type PlanStatus string

const (
	PlanStatusPlanned    PlanStatus = "planned"
	PlanStatusInProgress PlanStatus = "in_progress"
	PlanStatusAchieved   PlanStatus = "achieved"
	PlanStatusMissed     PlanStatus = "missed"
)

// Status evaluates the plan at the given time.
func (p *Plan) Status(now time.Time) PlanStatus {
	planOrdinal, err := periodOrdinal(p.Period)
	if err != nil {
		return PlanStatusInProgress
	}
	nowOrdinal, _ := periodOrdinal(PeriodFor(now))

	switch {
	case planOrdinal > nowOrdinal:
		return PlanStatusPlanned
	case planOrdinal == nowOrdinal:
		return PlanStatusInProgress
	case p.Accumulate >= p.Goal:
		return PlanStatusAchieved
	default:
		return PlanStatusMissed
	}
}

// PlanStore persists sales plans.
type PlanStore interface {
	Insert(ctx context.Context, p *Plan) error
	FindBySellerAndPeriod(ctx context.Context, sellerID uuid.UUID, period string) (*Plan, error)
	// AddToAccumulate atomically increments the accumulate of the plan
	// for sellerID and period. It returns ErrPlanNotFound when no such
	// plan exists.
	AddToAccumulate(ctx context.Context, sellerID uuid.UUID, period string, amount float64) error
	// ApplyOrderCreated increments the accumulate and records the
	// processed event as one atomic write. An event_id already in the
	// ledger surfaces as eventsdb.ErrDuplicateEvent with neither write
	// applied.
	ApplyOrderCreated(ctx context.Context, sellerID uuid.UUID, period string, amount float64, event eventsdb.ProcessedEvent) error
}

var periodPattern = regexp.MustCompile(`^Q([1-4])-(\d{4})$`)

// InvalidPeriodError reports a period string that is not Q{1-4}-{YEAR}
// with a plausible year.
type InvalidPeriodError struct {
	Period string
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("invalid sales period %q, expected Q{1-4}-{YEAR}", e.Period)
}

// ValidatePeriod checks the Q{1-4}-{YEAR} format with years 2000-2100.
func ValidatePeriod(period string) error {
	m := periodPattern.FindStringSubmatch(period)
	if m == nil {
		return &InvalidPeriodError{Period: period}
	}
	year, _ := strconv.Atoi(m[2])
	if year < 2000 || year > 2100 {
		return &InvalidPeriodError{Period: period}
	}
	return nil
}

// PeriodFor returns the quarter containing t, e.g. "Q3-2026".
func PeriodFor(t time.Time) string {
	t = t.UTC()
	quarter := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("Q%d-%d", quarter, t.Year())
}

// periodOrdinal maps a period to a comparable quarter index.
func periodOrdinal(period string) (int, error) {
	m := periodPattern.FindStringSubmatch(period)
	if m == nil {
		return 0, &InvalidPeriodError{Period: period}
	}
	quarter, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	return year*4 + quarter - 1, nil
}
