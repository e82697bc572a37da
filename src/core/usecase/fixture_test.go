package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"postcontest/src/core/domain"
	"postcontest/src/core/usecase"
	"postcontest/src/infra/repo"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

// testClock is a clock the test can move.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	ctx   context.Context
	repo  *repo.MemoryRepository
	clock *testClock
	svc   *usecase.Services
}

func newFixture(t *testing.T, policy domain.EntryPolicy) *fixture {
	t.Helper()
	store := repo.NewMemoryRepository()
	clock := &testClock{now: t0}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		ctx:   context.Background(),
		repo:  store,
		clock: clock,
		svc:   usecase.NewServices(store, clock, policy, "admin-token", log),
	}
}

func (f *fixture) competition(t *testing.T, title string) *domain.Competition {
	t.Helper()
	c, err := f.svc.Competitions.Create(f.ctx, usecase.NewCompetition{Title: title})
	require.NoError(t, err)
	return c
}

// round creates a round spanning [start, start+length).
func (f *fixture) round(t *testing.T, competitionID int64, name string, start time.Time, length time.Duration, likesToPass *int) *domain.Round {
	t.Helper()
	r, err := f.svc.Competitions.CreateRound(f.ctx, domain.Round{
		CompetitionID: competitionID,
		Name:          name,
		StartDate:     start,
		EndDate:       start.Add(length),
		LikesToPass:   likesToPass,
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) join(t *testing.T, competitionID, userID int64) *domain.Participant {
	t.Helper()
	p, err := f.svc.Competitions.Join(f.ctx, competitionID, userID)
	require.NoError(t, err)
	return p
}

func (f *fixture) post(id, authorID int64, createdAt time.Time) {
	f.repo.AddPost(domain.Post{ID: id, AuthorID: authorID, CreatedAt: createdAt})
}

// likes adds n likes on postID at the given instant, from distinct users.
func (f *fixture) likes(postID int64, n int, at time.Time) {
	for i := 0; i < n; i++ {
		f.repo.AddLike(domain.Like{PostID: postID, UserID: int64(1000 + i), CreatedAt: at})
	}
}

func (f *fixture) submit(t *testing.T, participantID, roundID, postID int64) *usecase.SubmitResult {
	t.Helper()
	res, err := f.svc.Entries.Submit(f.ctx, participantID, roundID, postID)
	require.NoError(t, err)
	return res
}

func (f *fixture) entries(t *testing.T, participantID int64) []domain.RoundEntry {
	t.Helper()
	out, err := f.repo.ListParticipantEntries(f.ctx, participantID)
	require.NoError(t, err)
	return out
}
