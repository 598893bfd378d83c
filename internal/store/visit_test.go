package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gate-access-backend/internal/model"
)

func seedVisit(t *testing.T, db *gorm.DB, id, studentID string, guestNames ...string) *model.GuestVisitRequest {
	t.Helper()
	now := time.Now().UTC()
	req := &model.GuestVisitRequest{
		ID:               id,
		StudentID:        studentID,
		Purpose:          "family visit",
		ArrivalDate:      now.Add(24 * time.Hour),
		EntryWindowStart: now.Add(24 * time.Hour),
		ExitWindowEnd:    now.Add(30 * time.Hour),
		RoomSnapshot:     "A-101",
		MobileSnapshot:   "555-0100",
		Status:           model.VisitPending,
	}
	for i, name := range guestNames {
		req.Guests = append(req.Guests, model.Guest{
			ID:             fmt.Sprintf("%s-guest-%d", id, i+1),
			VisitRequestID: id,
			Name:           name,
			Relation:       "parent",
		})
	}
	require.NoError(t, db.Create(req).Error)
	return req
}

func TestCreateVisitRequest_GuestsStartUncoded(t *testing.T) {
	s, db := newSQLiteStore(t, CodeSpace{})
	seedStudent(t, db, "student-1", "Asha")
	ctx := context.Background()

	now := time.Now().UTC()
	req := &model.GuestVisitRequest{
		ID:               "visit-1",
		StudentID:        "student-1",
		Purpose:          "family visit",
		ArrivalDate:      now.Add(24 * time.Hour),
		EntryWindowStart: now.Add(24 * time.Hour),
		ExitWindowEnd:    now.Add(30 * time.Hour),
		Status:           model.VisitPending,
		Guests: []model.Guest{
			{ID: "g1", VisitRequestID: "visit-1", Name: "Meera", Relation: "mother"},
			{ID: "g2", VisitRequestID: "visit-1", Name: "Ravi", Relation: "father"},
		},
	}
	require.NoError(t, s.CreateVisitRequest(ctx, req))

	got, err := s.GetVisitRequest(ctx, "visit-1")
	require.NoError(t, err)
	assert.Equal(t, model.VisitPending, got.Status)
	require.Len(t, got.Guests, 2)
	for _, g := range got.Guests {
		assert.Nil(t, g.EntryCode)
	}
}

func TestResolveVisitRequest_ApprovalIssuesDistinctCodes(t *testing.T) {
	s, db := newSQLiteStore(t, CodeSpace{})
	seedStudent(t, db, "student-1", "Asha")
	seedOfficer(t, db, "warden-1", "Warden Iyer")
	seedVisit(t, db, "visit-1", "student-1", "Meera", "Ravi")
	ctx := context.Background()

	approved, failures, err := s.ResolveVisitRequest(ctx, "visit-1", model.VisitApproved, "warden-1", "")
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, model.VisitApproved, approved.Status)
	require.NotNil(t, approved.ApproverID)
	assert.Equal(t, "warden-1", *approved.ApproverID)

	require.Len(t, approved.Guests, 2)
	codes := map[string]bool{}
	for _, g := range approved.Guests {
		require.NotNil(t, g.EntryCode)
		assert.Len(t, *g.EntryCode, 4)
		codes[*g.EntryCode] = true
	}
	assert.Len(t, codes, 2, "codes must be distinct")

	// A second resolution of the same request fails; the approval is final.
	_, _, err = s.ResolveVisitRequest(ctx, "visit-1", model.VisitRejected, "warden-1", "changed my mind")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResolveVisitRequest_RejectionIssuesNothing(t *testing.T) {
	s, db := newSQLiteStore(t, CodeSpace{})
	seedStudent(t, db, "student-1", "Asha")
	seedVisit(t, db, "visit-1", "student-1", "Meera")
	ctx := context.Background()

	rejected, failures, err := s.ResolveVisitRequest(ctx, "visit-1", model.VisitRejected, "warden-1", "no overnight guests")
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, model.VisitRejected, rejected.Status)
	assert.Equal(t, "no overnight guests", rejected.RejectionReason)
	for _, g := range rejected.Guests {
		assert.Nil(t, g.EntryCode)
	}
}

func TestResolveVisitRequest_InvalidInputs(t *testing.T) {
	s, db := newSQLiteStore(t, CodeSpace{})
	seedStudent(t, db, "student-1", "Asha")
	seedVisit(t, db, "visit-1", "student-1", "Meera")
	ctx := context.Background()

	_, _, err := s.ResolveVisitRequest(ctx, "no-such-visit", model.VisitApproved, "warden-1", "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = s.ResolveVisitRequest(ctx, "visit-1", model.VisitCompleted, "warden-1", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFindGuestByCode_OnlyApprovedRequestsResolve(t *testing.T) {
	s, db := newSQLiteStore(t, CodeSpace{})
	seedStudent(t, db, "student-1", "Asha")
	seedVisit(t, db, "visit-1", "student-1", "Meera")
	seedVisit(t, db, "visit-2", "student-1", "Ravi")
	ctx := context.Background()

	approved, _, err := s.ResolveVisitRequest(ctx, "visit-1", model.VisitApproved, "warden-1", "")
	require.NoError(t, err)
	code := *approved.Guests[0].EntryCode

	gotReq, gotGuest, err := s.FindGuestByCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "visit-1", gotReq.ID)
	assert.Equal(t, "Meera", gotGuest.Name)

	// A code hanging off a rejected request must not resolve, even if it is
	// somehow non-nil.
	_, _, err = s.ResolveVisitRequest(ctx, "visit-2", model.VisitRejected, "warden-1", "declined")
	require.NoError(t, err)
	stray := "99999"
	require.NoError(t, db.Model(&model.Guest{}).Where("id = ?", "visit-2-guest-1").Update("entry_code", stray).Error)

	_, _, err = s.FindGuestByCode(ctx, stray)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = s.FindGuestByCode(ctx, "00000")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestEntryCodes_SaturatedSpaceStaysUnique drives issuance deep into a tiny
// two-digit space so the collision-retry path is exercised heavily; every
// assigned code must still be unique.
func TestEntryCodes_SaturatedSpaceStaysUnique(t *testing.T) {
	s, db := newSQLiteStore(t, CodeSpace{Digits: 2, MaxAttempts: 500})
	seedStudent(t, db, "student-1", "Asha")
	ctx := context.Background()

	const visits = 20
	const guestsPerVisit = 4 // 80 codes out of a space of 100
	for i := 0; i < visits; i++ {
		names := make([]string, guestsPerVisit)
		for j := range names {
			names[j] = fmt.Sprintf("Guest %d-%d", i, j)
		}
		seedVisit(t, db, fmt.Sprintf("visit-%d", i), "student-1", names...)
	}

	for i := 0; i < visits; i++ {
		_, failures, err := s.ResolveVisitRequest(ctx, fmt.Sprintf("visit-%d", i), model.VisitApproved, "student-1", "")
		require.NoError(t, err)
		require.Empty(t, failures)
	}

	var codes []string
	require.NoError(t, db.Model(&model.Guest{}).Where("entry_code IS NOT NULL").Pluck("entry_code", &codes).Error)
	require.Len(t, codes, visits*guestsPerVisit)

	seen := map[string]bool{}
	for _, code := range codes {
		assert.Len(t, code, 2)
		assert.False(t, seen[code], "code %s issued twice", code)
		seen[code] = true
	}
}

// TestEntryCodes_ExhaustionReportsFailureButKeepsApproval pins the tolerant
// partial-failure behavior: when the space is all used up the approval still
// stands and the uncoded guest is reported.
func TestEntryCodes_ExhaustionReportsFailureButKeepsApproval(t *testing.T) {
	s, db := newSQLiteStore(t, CodeSpace{Digits: 1, MaxAttempts: 30})
	seedStudent(t, db, "student-1", "Asha")
	ctx := context.Background()

	// Burn the whole one-digit space.
	seedVisit(t, db, "visit-0", "student-1")
	for i := 0; i < 10; i++ {
		code := fmt.Sprintf("%d", i)
		require.NoError(t, db.Create(&model.Guest{
			ID:             fmt.Sprintf("pre-%d", i),
			VisitRequestID: "visit-0",
			Name:           "Taken",
			Relation:       "friend",
			EntryCode:      &code,
		}).Error)
	}

	seedVisit(t, db, "visit-1", "student-1", "Meera")
	approved, failures, err := s.ResolveVisitRequest(ctx, "visit-1", model.VisitApproved, "student-1", "")
	require.NoError(t, err)
	assert.Equal(t, model.VisitApproved, approved.Status)
	require.Len(t, failures, 1)
	assert.Equal(t, "Meera", failures[0].GuestName)
	assert.Contains(t, failures[0].Reason, "entry code issuance failed")
	require.Len(t, approved.Guests, 1)
	assert.Nil(t, approved.Guests[0].EntryCode)
}
