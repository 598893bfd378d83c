package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gate-access-backend/internal/model"
)

// insertMovement writes a ledger row directly so tests control timestamps.
func insertMovement(t *testing.T, db *gorm.DB, id string, subject Subject, mt model.MovementType, status model.MovementStatus, createdAt time.Time, resolvedAt *time.Time) {
	t.Helper()
	rec := model.MovementRecord{
		ID:           id,
		MovementType: mt,
		EntityType:   subject.Type(),
		Status:       status,
		CreatedAt:    createdAt,
		ResolvedAt:   resolvedAt,
	}
	ref := subject.Ref()
	switch subject.Type() {
	case model.EntityStudent:
		rec.StudentID = &ref
	case model.EntityGuest:
		rec.GuestID = &ref
	case model.EntityVendor:
		rec.VendorID = &ref
	}
	require.NoError(t, db.Create(&rec).Error)
}

func TestGetOccupancy_DefaultInside(t *testing.T) {
	s, db := newSQLiteStore(t, CodeSpace{})
	seedStudent(t, db, "student-1", "Asha")

	// A student with no ledger history is assumed to already be on campus.
	occ, err := s.GetOccupancy(context.Background(), "student-1")
	require.NoError(t, err)
	assert.True(t, occ.IsInside)
	assert.Nil(t, occ.LastMovementTime)
	assert.Nil(t, occ.LastMovementType)
	assert.Equal(t, model.EntityStudent, occ.EntityType)
}

func TestGetOccupancy_IgnoresPendingAndRejected(t *testing.T) {
	s, db := newSQLiteStore(t, CodeSpace{})
	seedStudent(t, db, "student-1", "Asha")
	now := time.Now().UTC()

	t1 := now.Add(-2 * time.Hour)
	insertMovement(t, db, "m1", StudentSubject("student-1"), model.MovementEntry, model.MovementCompleted, t1, nil)
	insertMovement(t, db, "m2", StudentSubject("student-1"), model.MovementExit, model.MovementPending, now.Add(-1*time.Hour), nil)
	t3 := now.Add(-30 * time.Minute)
	insertMovement(t, db, "m3", StudentSubject("student-1"), model.MovementExit, model.MovementRejected, now.Add(-40*time.Minute), &t3)

	// The pending and rejected exits never affect derived occupancy.
	occ, err := s.GetOccupancy(context.Background(), "student-1")
	require.NoError(t, err)
	assert.True(t, occ.IsInside)
	require.NotNil(t, occ.LastMovementTime)
	assert.WithinDuration(t, t1, *occ.LastMovementTime, time.Second)
	require.NotNil(t, occ.LastMovementType)
	assert.Equal(t, model.MovementEntry, *occ.LastMovementType)
}

func TestGetOccupancy_ResolutionTimeWins(t *testing.T) {
	s, db := newSQLiteStore(t, CodeSpace{})
	seedStudent(t, db, "student-1", "Asha")
	now := time.Now().UTC()

	// An exit requested early but resolved late outranks a completed entry
	// logged in between: ordering runs on resolution time.
	entryAt := now.Add(-1 * time.Hour)
	insertMovement(t, db, "m1", StudentSubject("student-1"), model.MovementEntry, model.MovementCompleted, entryAt, nil)
	resolvedAt := now.Add(-10 * time.Minute)
	insertMovement(t, db, "m2", StudentSubject("student-1"), model.MovementExit, model.MovementCompleted, now.Add(-3*time.Hour), &resolvedAt)

	occ, err := s.GetOccupancy(context.Background(), "student-1")
	require.NoError(t, err)
	assert.False(t, occ.IsInside)
	require.NotNil(t, occ.LastMovementTime)
	assert.WithinDuration(t, resolvedAt, *occ.LastMovementTime, time.Second)
}

func TestGetOccupancyBatch_AllKnownEntities(t *testing.T) {
	s, db := newSQLiteStore(t, CodeSpace{})
	seedStudent(t, db, "student-1", "Asha")
	seedStudent(t, db, "student-2", "Binod")
	seedVendor(t, db, "vendor-1", "Vikram")
	now := time.Now().UTC()

	insertMovement(t, db, "m1", StudentSubject("student-1"), model.MovementExit, model.MovementCompleted, now.Add(-1*time.Hour), nil)
	insertMovement(t, db, "m2", VendorSubject("vendor-1"), model.MovementEntry, model.MovementCompleted, now.Add(-30*time.Minute), nil)

	occupancies, err := s.GetOccupancyBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, occupancies, 3)

	assert.False(t, occupancies["student-1"].IsInside)
	assert.True(t, occupancies["student-2"].IsInside) // never moved, inside by default
	assert.Nil(t, occupancies["student-2"].LastMovementTime)
	assert.True(t, occupancies["vendor-1"].IsInside)
	assert.Equal(t, model.EntityVendor, occupancies["vendor-1"].EntityType)
}

func TestGetOccupancyBatch_LatestPerEntityWins(t *testing.T) {
	s, db := newSQLiteStore(t, CodeSpace{})
	seedStudent(t, db, "student-1", "Asha")
	seedVendor(t, db, "vendor-1", "Vikram")
	now := time.Now().UTC()

	// A deep history per entity; only the latest effective time may count.
	insertMovement(t, db, "m1", StudentSubject("student-1"), model.MovementEntry, model.MovementCompleted, now.Add(-5*time.Hour), nil)
	insertMovement(t, db, "m2", StudentSubject("student-1"), model.MovementExit, model.MovementCompleted, now.Add(-4*time.Hour), nil)
	// Requested early, resolved last: resolution time outranks m2.
	resolvedAt := now.Add(-1 * time.Hour)
	insertMovement(t, db, "m3", StudentSubject("student-1"), model.MovementEntry, model.MovementCompleted, now.Add(-6*time.Hour), &resolvedAt)

	insertMovement(t, db, "m4", VendorSubject("vendor-1"), model.MovementEntry, model.MovementCompleted, now.Add(-3*time.Hour), nil)
	insertMovement(t, db, "m5", VendorSubject("vendor-1"), model.MovementExit, model.MovementCompleted, now.Add(-2*time.Hour), nil)

	occupancies, err := s.GetOccupancyBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, occupancies, 2)

	assert.True(t, occupancies["student-1"].IsInside)
	require.NotNil(t, occupancies["student-1"].LastMovementTime)
	assert.WithinDuration(t, resolvedAt, *occupancies["student-1"].LastMovementTime, time.Second)

	assert.False(t, occupancies["vendor-1"].IsInside)
}

// TestGuestVisibility_RequiresApprovedVisit pins the single notion of "known
// guest": a guest exists for movement checks and shows up on the batch
// dashboard only once their visit is approved.
func TestGuestVisibility_RequiresApprovedVisit(t *testing.T) {
	s, db := newSQLiteStore(t, CodeSpace{})
	seedStudent(t, db, "student-1", "Asha")
	seedVisit(t, db, "visit-1", "student-1", "Meera")
	ctx := context.Background()

	ok, err := s.EntityExists(ctx, "visit-1-guest-1", model.EntityGuest)
	require.NoError(t, err)
	assert.False(t, ok, "a guest of a pending visit is not known at the gate")

	batch, err := s.GetOccupancyBatch(ctx, nil)
	require.NoError(t, err)
	_, present := batch["visit-1-guest-1"]
	assert.False(t, present)

	_, _, err = s.ResolveVisitRequest(ctx, "visit-1", model.VisitApproved, "student-1", "")
	require.NoError(t, err)

	ok, err = s.EntityExists(ctx, "visit-1-guest-1", model.EntityGuest)
	require.NoError(t, err)
	assert.True(t, ok)

	batch, err = s.GetOccupancyBatch(ctx, nil)
	require.NoError(t, err)
	occ, present := batch["visit-1-guest-1"]
	require.True(t, present)
	assert.True(t, occ.IsInside)
	assert.Equal(t, model.EntityGuest, occ.EntityType)
}

func TestGetOccupancyBatch_FilteredRefs(t *testing.T) {
	s, db := newSQLiteStore(t, CodeSpace{})
	seedStudent(t, db, "student-1", "Asha")
	seedStudent(t, db, "student-2", "Binod")
	now := time.Now().UTC()

	insertMovement(t, db, "m1", StudentSubject("student-1"), model.MovementEntry, model.MovementCompleted, now.Add(-1*time.Hour), nil)

	occupancies, err := s.GetOccupancyBatch(context.Background(), []string{"student-1"})
	require.NoError(t, err)
	require.Len(t, occupancies, 1)
	assert.True(t, occupancies["student-1"].IsInside)
}
