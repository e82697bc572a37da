package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postcontest/src/core/domain"
	"postcontest/src/core/ports"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T) (*MemoryRepository, *domain.Round, *domain.Participant, *domain.Participant) {
	t.Helper()
	ctx := context.Background()
	r := NewMemoryRepository()
	c, err := r.CreateCompetition(ctx, domain.Competition{Title: "Cup", Slug: "cup", IsActive: true})
	require.NoError(t, err)
	rd, err := r.CreateRound(ctx, domain.Round{CompetitionID: c.ID, Name: "Heats", StartDate: t0, EndDate: t0.Add(24 * time.Hour)})
	require.NoError(t, err)
	a, err := r.EnsureParticipant(ctx, c.ID, 10)
	require.NoError(t, err)
	b, err := r.EnsureParticipant(ctx, c.ID, 11)
	require.NoError(t, err)
	return r, rd, a, b
}

func TestEntryUniqueKeys(t *testing.T) {
	ctx := context.Background()
	r, rd, a, b := seed(t)

	e, err := r.InsertEntry(ctx, domain.RoundEntry{ParticipantID: a.ID, RoundID: rd.ID, PostID: 100})
	require.NoError(t, err)

	_, err = r.InsertEntry(ctx, domain.RoundEntry{ParticipantID: a.ID, RoundID: rd.ID, PostID: 101})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = r.InsertEntry(ctx, domain.RoundEntry{ParticipantID: b.ID, RoundID: rd.ID, PostID: 100})
	assert.ErrorIs(t, err, domain.ErrEntryConflict)

	other, err := r.InsertEntry(ctx, domain.RoundEntry{ParticipantID: b.ID, RoundID: rd.ID, PostID: 200})
	require.NoError(t, err)
	_, err = r.UpdateEntryPost(ctx, other.ID, 100, t0)
	assert.ErrorIs(t, err, domain.ErrEntryConflict)

	// Rewriting an entry to its own post does not collide with itself.
	_, err = r.UpdateEntryPost(ctx, e.ID, 100, t0)
	assert.NoError(t, err)
}

func TestGetEntryReturnsNilWhenMissing(t *testing.T) {
	r, rd, a, _ := seed(t)
	e, err := r.GetEntry(context.Background(), a.ID, rd.ID)
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestRecordSubmissionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r, _, a, _ := seed(t)
	r.AddPost(domain.Post{ID: 100, AuthorID: 10, CreatedAt: t0})

	require.NoError(t, r.RecordSubmission(ctx, a.ID, 100, t0))
	require.NoError(t, r.RecordSubmission(ctx, a.ID, 100, t0.Add(time.Hour)))
	require.NoError(t, r.RecordSubmission(ctx, a.ID, 101, t0))

	subs, err := r.ListSubmissions(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	require.NotNil(t, subs[0].Post)
	assert.Nil(t, subs[1].Post, "unknown posts have no projection")

	assert.True(t, domain.IsNotFound(r.RecordSubmission(ctx, 9999, 100, t0)))
}

func TestTallyCountsOnlyWindowLikes(t *testing.T) {
	ctx := context.Background()
	r, rd, a, _ := seed(t)
	r.AddPost(domain.Post{ID: 100, AuthorID: 10, CreatedAt: t0})
	_, err := r.InsertEntry(ctx, domain.RoundEntry{ParticipantID: a.ID, RoundID: rd.ID, PostID: 100})
	require.NoError(t, err)

	r.AddLike(domain.Like{PostID: 100, UserID: 1, CreatedAt: t0.Add(-time.Nanosecond)})
	r.AddLike(domain.Like{PostID: 100, UserID: 2, CreatedAt: t0})
	r.AddLike(domain.Like{PostID: 100, UserID: 3, CreatedAt: t0.Add(23 * time.Hour)})
	r.AddLike(domain.Like{PostID: 100, UserID: 4, CreatedAt: t0.Add(24 * time.Hour)})

	tallies, err := r.TallyRoundLikes(ctx, rd.ID)
	require.NoError(t, err)
	require.Len(t, tallies, 1)
	assert.Equal(t, 2, tallies[0].CompetitionLikes)

	_, err = r.TallyRoundLikes(ctx, 9999)
	assert.True(t, domain.IsNotFound(err))
}

func TestSetQualificationReportsChange(t *testing.T) {
	ctx := context.Background()
	r, rd, a, _ := seed(t)
	e, err := r.InsertEntry(ctx, domain.RoundEntry{ParticipantID: a.ID, RoundID: rd.ID, PostID: 100})
	require.NoError(t, err)

	changed, err := r.SetQualification(ctx, e.ID, true)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = r.SetQualification(ctx, e.ID, true)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = r.SetQualification(ctx, 9999, true)
	assert.True(t, domain.IsNotFound(err))
}

func TestListRoundsEndedBetweenIsHalfOpen(t *testing.T) {
	ctx := context.Background()
	r, rd, _, _ := seed(t)

	got, err := r.ListRoundsEndedBetween(ctx, rd.EndDate, rd.EndDate.Add(time.Second))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = r.ListRoundsEndedBetween(ctx, rd.EndDate.Add(-time.Hour), rd.EndDate)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPaymentCompareAndSet(t *testing.T) {
	ctx := context.Background()
	r, _, a, _ := seed(t)
	prize, err := r.CreatePrize(ctx, domain.Prize{CompetitionID: a.CompetitionID, Position: domain.PositionFirst})
	require.NoError(t, err)

	p, err := r.CreatePayment(ctx, domain.PrizePayment{PrizeID: prize.ID, ParticipantID: a.ID, Status: domain.PaymentPending})
	require.NoError(t, err)
	_, err = r.CreatePayment(ctx, domain.PrizePayment{PrizeID: prize.ID, ParticipantID: a.ID, Status: domain.PaymentPending})
	assert.ErrorIs(t, err, domain.ErrDuplicatePayment)

	tx := "tx-1"
	done, err := r.TransitionPayment(ctx, p.ID, ports.PaymentUpdate{From: domain.PaymentPending, To: domain.PaymentCompleted, TransactionID: &tx, ProcessedAt: t0})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, done.Status)

	_, err = r.TransitionPayment(ctx, p.ID, ports.PaymentUpdate{From: domain.PaymentPending, To: domain.PaymentFailed, ProcessedAt: t0})
	assert.ErrorIs(t, err, ports.ErrStaleState)

	open, err := r.FindOpenPayment(ctx, prize.ID, a.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, p.ID, open.ID)
}

func TestTryLockCompetition(t *testing.T) {
	ctx := context.Background()
	r, _, a, _ := seed(t)

	release, err := r.TryLockCompetition(ctx, a.CompetitionID)
	require.NoError(t, err)

	_, err = r.TryLockCompetition(ctx, a.CompetitionID)
	assert.ErrorIs(t, err, domain.ErrReconciliationInProgress)

	other, err := r.TryLockCompetition(ctx, a.CompetitionID+1000)
	require.NoError(t, err)
	other()

	release()
	release()
	again, err := r.TryLockCompetition(ctx, a.CompetitionID)
	require.NoError(t, err)
	again()
}
