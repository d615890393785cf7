package visits_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medisupply/internal/clients"
	visitsdb "medisupply/internal/db/visits"
	"medisupply/internal/events"
	"medisupply/internal/visits"
)

func newTestScheduler(t *testing.T) (*visits.Scheduler, *clients.InMemoryClientService, *visitsdb.MemoryStore, *events.MemoryPublisher) {
	t.Helper()

	clientSvc := clients.NewInMemoryClientService()
	store := visitsdb.NewMemoryStore()
	publisher := events.NewMemoryPublisher("seller")
	scheduler := visits.NewScheduler(clientSvc, store, publisher, nil)
	return scheduler, clientSvc, store, publisher
}

func seedClient(svc *clients.InMemoryClientService, assigned *uuid.UUID) clients.Client {
	client := clients.Client{
		ID:               uuid.New(),
		InstitutionName:  "Clinica Norte",
		Address:          "Av 7 #45-12",
		City:             "Medellin",
		Country:          "Colombia",
		AssignedSellerID: assigned,
	}
	svc.Seed(client)
	return client
}

func TestScheduleVisit_AutoAssignsUnassignedClient(t *testing.T) {
	scheduler, clientSvc, store, publisher := newTestScheduler(t)
	sellerID := uuid.New()
	client := seedClient(clientSvc, nil)

	visit, err := scheduler.ScheduleVisit(context.Background(), sellerID, visits.ScheduleRequest{
		ClientID:  client.ID,
		VisitDate: time.Now().UTC().Add(48 * time.Hour),
		Notes:     "primera visita",
	})
	require.NoError(t, err)

	assigned, ok := clientSvc.Assignment(client.ID)
	require.True(t, ok, "client should be auto-assigned")
	assert.Equal(t, sellerID, assigned)

	stored := store.Stored()
	require.Len(t, stored, 1)
	assert.Equal(t, visit.ID, stored[0].ID)
	assert.Equal(t, visits.StatusScheduled, stored[0].Status)
	assert.Equal(t, client.InstitutionName, stored[0].ClientInstitutionName)

	published := publisher.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "visit_scheduled", published[0].EventType)
}

func TestScheduleVisit_SameSellerSkipsAssignment(t *testing.T) {
	scheduler, clientSvc, store, _ := newTestScheduler(t)
	sellerID := uuid.New()
	client := seedClient(clientSvc, &sellerID)

	_, err := scheduler.ScheduleVisit(context.Background(), sellerID, visits.ScheduleRequest{
		ClientID:  client.ID,
		VisitDate: time.Now().UTC().Add(48 * time.Hour),
	})
	require.NoError(t, err)

	_, reassigned := clientSvc.Assignment(client.ID)
	assert.False(t, reassigned, "already-assigned client should not be reassigned")
	assert.Len(t, store.Stored(), 1)
}

func TestScheduleVisit_OtherSellerAborts(t *testing.T) {
	scheduler, clientSvc, store, _ := newTestScheduler(t)
	otherSeller := uuid.New()
	client := seedClient(clientSvc, &otherSeller)

	_, err := scheduler.ScheduleVisit(context.Background(), uuid.New(), visits.ScheduleRequest{
		ClientID:  client.ID,
		VisitDate: time.Now().UTC().Add(48 * time.Hour),
	})

	var assignedErr *visits.ClientAssignedToOtherSellerError
	require.ErrorAs(t, err, &assignedErr)
	assert.Equal(t, otherSeller, assignedErr.AssignedSellerID)
	assert.Empty(t, store.Stored())
}

func TestScheduleVisit_RejectsNearDates(t *testing.T) {
	scheduler, clientSvc, store, _ := newTestScheduler(t)
	sellerID := uuid.New()
	client := seedClient(clientSvc, nil)

	_, err := scheduler.ScheduleVisit(context.Background(), sellerID, visits.ScheduleRequest{
		ClientID:  client.ID,
		VisitDate: time.Now().UTC().Add(2 * time.Hour),
	})

	var dateErr *visits.InvalidVisitDateError
	require.ErrorAs(t, err, &dateErr)
	assert.Empty(t, store.Stored())

	// The date is validated after the assignment step, so the client is
	// assigned even though the visit was rejected. There is no unassign
	// to compensate with.
	assigned, ok := clientSvc.Assignment(client.ID)
	require.True(t, ok, "assignment should survive the rejected date")
	assert.Equal(t, sellerID, assigned)
}

func TestScheduleVisit_AssignmentSurvivesConflict(t *testing.T) {
	scheduler, clientSvc, _, _ := newTestScheduler(t)
	sellerID := uuid.New()
	assignedClient := seedClient(clientSvc, &sellerID)
	base := time.Now().UTC().Add(72 * time.Hour)

	_, err := scheduler.ScheduleVisit(context.Background(), sellerID, visits.ScheduleRequest{
		ClientID:  assignedClient.ID,
		VisitDate: base,
	})
	require.NoError(t, err)

	unassigned := seedClient(clientSvc, nil)
	_, err = scheduler.ScheduleVisit(context.Background(), sellerID, visits.ScheduleRequest{
		ClientID:  unassigned.ID,
		VisitDate: base.Add(30 * time.Minute),
	})
	var conflictErr *visits.VisitTimeConflictError
	require.ErrorAs(t, err, &conflictErr)

	assigned, ok := clientSvc.Assignment(unassigned.ID)
	require.True(t, ok, "assignment should survive the conflict rejection")
	assert.Equal(t, sellerID, assigned)
}

func TestScheduleVisit_ConflictWindow(t *testing.T) {
	scheduler, clientSvc, _, _ := newTestScheduler(t)
	sellerID := uuid.New()
	client := seedClient(clientSvc, &sellerID)
	base := time.Now().UTC().Add(72 * time.Hour)

	first, err := scheduler.ScheduleVisit(context.Background(), sellerID, visits.ScheduleRequest{
		ClientID:  client.ID,
		VisitDate: base,
	})
	require.NoError(t, err)

	// 100 minutes later is inside the 180-minute window.
	_, err = scheduler.ScheduleVisit(context.Background(), sellerID, visits.ScheduleRequest{
		ClientID:  client.ID,
		VisitDate: base.Add(100 * time.Minute),
	})
	var conflictErr *visits.VisitTimeConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, first.ID, conflictErr.ConflictingVisitID)

	// 181 minutes later is just outside it.
	_, err = scheduler.ScheduleVisit(context.Background(), sellerID, visits.ScheduleRequest{
		ClientID:  client.ID,
		VisitDate: base.Add(181 * time.Minute),
	})
	assert.NoError(t, err)
}

func TestScheduleVisit_AssignmentSurvivesInsertFailure(t *testing.T) {
	scheduler, clientSvc, store, publisher := newTestScheduler(t)
	sellerID := uuid.New()
	client := seedClient(clientSvc, nil)
	store.InsertErr = errors.New("db down")

	_, err := scheduler.ScheduleVisit(context.Background(), sellerID, visits.ScheduleRequest{
		ClientID:  client.ID,
		VisitDate: time.Now().UTC().Add(48 * time.Hour),
	})
	require.Error(t, err)

	// The assign step has no compensation, so the assignment stays.
	assigned, ok := clientSvc.Assignment(client.ID)
	require.True(t, ok)
	assert.Equal(t, sellerID, assigned)
	assert.Empty(t, publisher.Published())
}

func TestUpdateStatus_Transitions(t *testing.T) {
	scheduler, clientSvc, store, _ := newTestScheduler(t)
	sellerID := uuid.New()
	client := seedClient(clientSvc, &sellerID)

	visit, err := scheduler.ScheduleVisit(context.Background(), sellerID, visits.ScheduleRequest{
		ClientID:  client.ID,
		VisitDate: time.Now().UTC().Add(48 * time.Hour),
	})
	require.NoError(t, err)

	updated, err := scheduler.UpdateStatus(context.Background(), visit.ID, visits.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, visits.StatusCompleted, updated.Status)

	// A completed visit cannot be cancelled.
	_, err = scheduler.UpdateStatus(context.Background(), visit.ID, visits.StatusCancelled)
	var transitionErr *visits.InvalidStatusTransitionError
	require.ErrorAs(t, err, &transitionErr)

	stored, err := store.FindByID(context.Background(), visit.ID)
	require.NoError(t, err)
	assert.Equal(t, visits.StatusCompleted, stored.Status)
}

func TestValidateStatusTransition_SameStatusIsNoop(t *testing.T) {
	assert.NoError(t, visits.ValidateStatusTransition(visits.StatusCompleted, visits.StatusCompleted))
	assert.NoError(t, visits.ValidateStatusTransition(visits.StatusScheduled, visits.StatusCancelled))
	assert.Error(t, visits.ValidateStatusTransition(visits.StatusCancelled, visits.StatusScheduled))
}
