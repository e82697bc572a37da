package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postcontest/src/core/domain"
	"postcontest/src/core/ports"
	"postcontest/src/core/usecase"
	"postcontest/src/infra/repo"
)

// supersededFinal leaves one participant with an entry on a "Final" row that
// a later "Final" row has replaced.
func supersededFinal(t *testing.T, f *fixture) (c *domain.Competition, p *domain.Participant, old, current *domain.Round) {
	t.Helper()
	c = f.competition(t, "Spring Cup")
	old = f.round(t, c.ID, "Final", t0.Add(-time.Hour), 24*time.Hour, nil)
	p = f.join(t, c.ID, 10)
	f.post(100, 10, t0)
	f.submit(t, p.ID, old.ID, 100)

	f.clock.Set(t0.Add(time.Minute))
	current = f.round(t, c.ID, "Final", t0.Add(-2*time.Hour), 30*time.Hour, nil)
	return c, p, old, current
}

func TestSyncMovesEntriesOffSupersededRounds(t *testing.T) {
	f := newFixture(t, domain.DefaultEntryPolicy())
	c, p, _, current := supersededFinal(t, f)

	report, err := f.svc.Reconcile.SyncRoundEntries(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, usecase.OpSync, report.Operation)
	assert.Equal(t, 1, report.Participants)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Changes())

	entries := f.entries(t, p.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, current.ID, entries[0].RoundID)

	again, err := f.svc.Reconcile.SyncRoundEntries(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, again.Changes())

	rebuilt, err := f.svc.Reconcile.RebuildEntries(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, rebuilt.Changes(), "a synced entry needs no rebuild")
}

func TestSyncDropsStaleEntryWhenTargetIsHeld(t *testing.T) {
	f := newFixture(t, domain.DefaultEntryPolicy())
	c, p, old, current := supersededFinal(t, f)
	f.post(101, 10, t0)
	f.submit(t, p.ID, current.ID, 101)

	report, err := f.svc.Reconcile.SyncRoundEntries(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)

	entries := f.entries(t, p.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, current.ID, entries[0].RoundID)
	assert.Equal(t, int64(101), entries[0].PostID)
	assert.NotEqual(t, old.ID, entries[0].RoundID)
}

func TestSyncPlacesOrphanedEntryByPostTime(t *testing.T) {
	f := newFixture(t, domain.DefaultEntryPolicy())
	c := f.competition(t, "Spring Cup")
	f.round(t, c.ID, "Warmup", t0.Add(-48*time.Hour), 24*time.Hour, nil)
	heats := f.round(t, c.ID, "Heats", t0.Add(-time.Hour), 24*time.Hour, nil)
	mainRound := f.round(t, c.ID, "Main", t0.Add(-time.Hour), 48*time.Hour, nil)
	p := f.join(t, c.ID, 10)
	f.post(100, 10, t0)
	f.submit(t, p.ID, heats.ID, 100)

	f.repo.DeleteRound(heats.ID)

	report, err := f.svc.Reconcile.SyncRoundEntries(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)

	entries := f.entries(t, p.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, mainRound.ID, entries[0].RoundID)
}

func TestSyncClearsQualificationOnMove(t *testing.T) {
	f := newFixture(t, domain.DefaultEntryPolicy())
	c, p, _, _ := supersededFinal(t, f)
	_, err := f.repo.SetQualification(f.ctx, f.entries(t, p.ID)[0].ID, true)
	require.NoError(t, err)

	_, err = f.svc.Reconcile.SyncRoundEntries(f.ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, f.entries(t, p.ID)[0].QualifiedForNextRound)
}

// rebuildFixture has one active "Heats" round and one participant.
func rebuildFixture(t *testing.T) (*fixture, *domain.Competition, *domain.Round, *domain.Participant) {
	t.Helper()
	f := newFixture(t, domain.DefaultEntryPolicy())
	c := f.competition(t, "Spring Cup")
	r := f.round(t, c.ID, "Heats", t0.Add(-time.Hour), 24*time.Hour, nil)
	p := f.join(t, c.ID, 10)
	return f, c, r, p
}

func TestRebuildCreatesMissingEntriesFromHistory(t *testing.T) {
	f, c, r, p := rebuildFixture(t)
	f.post(100, 10, t0)
	f.post(101, 10, t0.Add(time.Hour))
	require.NoError(t, f.repo.RecordSubmission(f.ctx, p.ID, 100, t0))
	require.NoError(t, f.repo.RecordSubmission(f.ctx, p.ID, 101, t0.Add(time.Hour)))

	report, err := f.svc.Reconcile.RebuildEntries(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	entries := f.entries(t, p.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, r.ID, entries[0].RoundID)
	assert.Equal(t, int64(101), entries[0].PostID, "newest post wins")

	again, err := f.svc.Reconcile.RebuildEntries(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, again.Changes())
}

func TestRebuildLeavesPostPlacedInLaterRound(t *testing.T) {
	f := newFixture(t, domain.DefaultEntryPolicy())
	c := f.competition(t, "Spring Cup")
	f.round(t, c.ID, "Week 1", t0.Add(-48*time.Hour), 24*time.Hour, nil)
	week2 := f.round(t, c.ID, "Week 2", t0.Add(-time.Hour), 24*time.Hour, nil)
	p := f.join(t, c.ID, 10)
	f.post(100, 10, t0.Add(-30*time.Hour))
	f.submit(t, p.ID, week2.ID, 100)

	report, err := f.svc.Reconcile.RebuildEntries(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, report.Changes())

	entries := f.entries(t, p.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, week2.ID, entries[0].RoundID)
}

func TestRebuildReplacesDeletedPost(t *testing.T) {
	f, c, r, p := rebuildFixture(t)
	f.post(100, 10, t0)
	f.post(101, 10, t0.Add(-30*time.Minute))
	f.submit(t, p.ID, r.ID, 100)
	require.NoError(t, f.repo.RecordSubmission(f.ctx, p.ID, 101, t0))
	f.repo.DeletePost(100, t0.Add(time.Hour))

	report, err := f.svc.Reconcile.RebuildEntries(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Zero(t, report.Removed)

	entries := f.entries(t, p.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(101), entries[0].PostID)
}

func TestRebuildRemovesEntriesWithoutLivePosts(t *testing.T) {
	for name, drop := range map[string]func(f *fixture){
		"soft deleted": func(f *fixture) { f.repo.DeletePost(100, t0) },
		"purged":       func(f *fixture) { f.repo.PurgePost(100) },
	} {
		t.Run(name, func(t *testing.T) {
			f, c, r, p := rebuildFixture(t)
			f.post(100, 10, t0)
			f.submit(t, p.ID, r.ID, 100)
			drop(f)

			report, err := f.svc.Reconcile.RebuildEntries(f.ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, report.Removed)
			assert.Empty(t, f.entries(t, p.ID))

			again, err := f.svc.Reconcile.RebuildEntries(f.ctx, c.ID)
			require.NoError(t, err)
			assert.Zero(t, again.Changes())
		})
	}
}

func TestRebuildBackfillsHistory(t *testing.T) {
	f, c, r, p := rebuildFixture(t)
	f.post(100, 10, t0)
	_, err := f.repo.InsertEntry(f.ctx, domain.RoundEntry{ParticipantID: p.ID, RoundID: r.ID, PostID: 100, CreatedAt: t0})
	require.NoError(t, err)

	report, err := f.svc.Reconcile.RebuildEntries(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Backfilled)

	subs, err := f.repo.ListSubmissions(f.ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, int64(100), subs[0].PostID)

	again, err := f.svc.Reconcile.RebuildEntries(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, again.Changes())
}

func TestFixAllRepairsAndEvaluates(t *testing.T) {
	f := newFixture(t, domain.DefaultEntryPolicy())
	c, p, _, current := supersededFinal(t, f)
	f.likes(100, 2, t0)
	f.clock.Set(current.EndDate.Add(time.Hour))

	report, err := f.svc.Reconcile.FixAllEntries(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sync.Updated)
	assert.Zero(t, report.Rebuild.Changes())
	require.Len(t, report.Evaluations, 1)
	assert.Equal(t, current.ID, report.Evaluations[0].RoundID)
	assert.Equal(t, []int64{p.ID}, report.Evaluations[0].Advancing)

	again, err := f.svc.Reconcile.FixAllEntries(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, again.Changes())
}

// flakyRepo fails history reads for one participant.
type flakyRepo struct {
	*repo.MemoryRepository
	failFor   int64
	failTally bool
}

var errTallyDown = errors.New("tally unavailable")

func (r *flakyRepo) TallyRoundLikes(ctx context.Context, roundID int64) ([]ports.EntryTally, error) {
	if r.failTally {
		return nil, errTallyDown
	}
	return r.MemoryRepository.TallyRoundLikes(ctx, roundID)
}

func (r *flakyRepo) ListSubmissions(ctx context.Context, participantID int64) ([]domain.Submission, error) {
	if participantID == r.failFor {
		return nil, errors.New("history unavailable")
	}
	return r.MemoryRepository.ListSubmissions(ctx, participantID)
}

func TestRebuildReportsPartialFailure(t *testing.T) {
	f, c, _, alice := rebuildFixture(t)
	bob := f.join(t, c.ID, 11)
	f.post(100, 10, t0)
	f.post(200, 11, t0)
	require.NoError(t, f.repo.RecordSubmission(f.ctx, alice.ID, 100, t0))
	require.NoError(t, f.repo.RecordSubmission(f.ctx, bob.ID, 200, t0))

	flaky := &flakyRepo{MemoryRepository: f.repo, failFor: alice.ID}
	svc := usecase.NewServices(flaky, f.clock, domain.DefaultEntryPolicy(), "", slog.New(slog.NewTextHandler(io.Discard, nil)))

	report, err := svc.Reconcile.RebuildEntries(f.ctx, c.ID)
	require.ErrorIs(t, err, domain.ErrReconciliationPartialFailure)

	var partial *domain.PartialFailureError
	require.ErrorAs(t, err, &partial)
	require.Len(t, partial.Failures, 1)
	assert.Equal(t, alice.ID, partial.Failures[0].ParticipantID)

	require.NotNil(t, report)
	assert.Equal(t, 1, report.Participants)
	assert.Equal(t, 1, report.Created)
	assert.Len(t, f.entries(t, bob.ID), 1)
	assert.Empty(t, f.entries(t, alice.ID))

	fix, err := svc.Reconcile.FixAllEntries(f.ctx, c.ID)
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, usecase.OpFixAll, partial.Operation)
	require.NotNil(t, fix.Rebuild)
}

func TestFixAllKeepsParticipantFailuresWhenEvaluationFails(t *testing.T) {
	f, c, _, alice := rebuildFixture(t)
	f.post(100, 10, t0)
	require.NoError(t, f.repo.RecordSubmission(f.ctx, alice.ID, 100, t0))
	f.clock.Set(t0.Add(48 * time.Hour))

	flaky := &flakyRepo{MemoryRepository: f.repo, failFor: alice.ID, failTally: true}
	svc := usecase.NewServices(flaky, f.clock, domain.DefaultEntryPolicy(), "", slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.Reconcile.FixAllEntries(f.ctx, c.ID)
	require.ErrorIs(t, err, errTallyDown)

	var partial *domain.PartialFailureError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, usecase.OpFixAll, partial.Operation)
	require.NotEmpty(t, partial.Failures)
	assert.Equal(t, alice.ID, partial.Failures[0].ParticipantID)
}

func TestReconcileInterruptedByCancellation(t *testing.T) {
	f, c, _, p := rebuildFixture(t)
	f.post(100, 10, t0)
	require.NoError(t, f.repo.RecordSubmission(f.ctx, p.ID, 100, t0))

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()

	report, err := f.svc.Reconcile.RebuildEntries(ctx, c.ID)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.True(t, report.Interrupted)
	assert.Zero(t, report.Participants)
	assert.Empty(t, f.entries(t, p.ID))

	// The lock was released; a fresh run completes the work.
	report, err = f.svc.Reconcile.RebuildEntries(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
}

func TestReconcileRejectsConcurrentRun(t *testing.T) {
	f, c, _, _ := rebuildFixture(t)

	release, err := f.repo.TryLockCompetition(f.ctx, c.ID)
	require.NoError(t, err)

	_, err = f.svc.Reconcile.RebuildEntries(f.ctx, c.ID)
	require.ErrorIs(t, err, domain.ErrReconciliationInProgress)
	_, err = f.svc.Reconcile.FixAllEntries(f.ctx, c.ID)
	require.ErrorIs(t, err, domain.ErrReconciliationInProgress)

	release()
	_, err = f.svc.Reconcile.SyncRoundEntries(f.ctx, c.ID)
	require.NoError(t, err)
}

func TestReconcileUnknownCompetition(t *testing.T) {
	f := newFixture(t, domain.DefaultEntryPolicy())
	_, err := f.svc.Reconcile.RebuildEntries(f.ctx, 404)
	assert.True(t, domain.IsNotFound(err))
}
