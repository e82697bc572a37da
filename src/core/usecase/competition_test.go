package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postcontest/src/core/domain"
	"postcontest/src/core/ports"
	"postcontest/src/core/usecase"
)

func TestCreateCompetitionDerivesSlug(t *testing.T) {
	f := newFixture(t, domain.DefaultEntryPolicy())

	c, err := f.svc.Competitions.Create(f.ctx, usecase.NewCompetition{Title: "  Best Meme of 2026! "})
	require.NoError(t, err)
	assert.Equal(t, "Best Meme of 2026!", c.Title)
	assert.Equal(t, "best-meme-of-2026", c.Slug)
	assert.True(t, c.IsActive)

	_, err = f.svc.Competitions.Create(f.ctx, usecase.NewCompetition{Title: "Best meme of 2026"})
	assert.True(t, domain.IsConflict(err), "slug collision")

	_, err = f.svc.Competitions.Create(f.ctx, usecase.NewCompetition{Title: "x", Slug: "Not A Slug"})
	assert.True(t, domain.IsValidationError(err))

	_, err = f.svc.Competitions.Create(f.ctx, usecase.NewCompetition{Title: " "})
	assert.True(t, domain.IsValidationError(err))
}

func TestJoinIsIdempotentAndRespectsArchive(t *testing.T) {
	f := newFixture(t, domain.DefaultEntryPolicy())
	c := f.competition(t, "Spring Cup")

	first := f.join(t, c.ID, 10)
	second := f.join(t, c.ID, 10)
	assert.Equal(t, first.ID, second.ID)

	_, err := f.svc.Competitions.Join(f.ctx, c.ID, 0)
	assert.True(t, domain.IsValidationError(err))

	_, err = f.svc.Competitions.Archive(f.ctx, c.ID)
	require.NoError(t, err)
	_, err = f.svc.Competitions.Join(f.ctx, c.ID, 11)
	assert.True(t, domain.IsConflict(err))
}

func TestRoundsHideSupersededRows(t *testing.T) {
	f := newFixture(t, domain.DefaultEntryPolicy())
	c := f.competition(t, "Spring Cup")
	f.round(t, c.ID, "Final", t0, time.Hour, nil)
	f.clock.Set(t0.Add(time.Second))
	current := f.round(t, c.ID, "Final", t0.Add(time.Hour), time.Hour, nil)

	rounds, err := f.svc.Competitions.Rounds(f.ctx, c.ID, false)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, current.ID, rounds[0].ID)

	all, err := f.svc.Competitions.Rounds(f.ctx, c.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateRound(t *testing.T) {
	f := newFixture(t, domain.DefaultEntryPolicy())
	c := f.competition(t, "Spring Cup")
	r := f.round(t, c.ID, "Heats", t0, time.Hour, intPtr(3))

	name := "Qualifiers"
	updated, err := f.svc.Competitions.UpdateRound(f.ctx, r.ID, usecase.RoundPatch{Name: &name, ClearLikesToPass: true})
	require.NoError(t, err)
	assert.Equal(t, "Qualifiers", updated.Name)
	assert.Nil(t, updated.LikesToPass)

	end := t0.Add(-time.Hour)
	_, err = f.svc.Competitions.UpdateRound(f.ctx, r.ID, usecase.RoundPatch{EndDate: &end})
	assert.True(t, domain.IsValidationError(err))
}

func TestCreatePrizeValidation(t *testing.T) {
	f := newFixture(t, domain.DefaultEntryPolicy())
	c := f.competition(t, "Spring Cup")

	_, err := f.svc.Competitions.CreatePrize(f.ctx, c.ID, domain.PrizePosition("SIXTH"), decimal.NewFromInt(10))
	assert.True(t, domain.IsValidationError(err))
	_, err = f.svc.Competitions.CreatePrize(f.ctx, c.ID, domain.PositionFirst, decimal.NewFromInt(-1))
	assert.True(t, domain.IsValidationError(err))

	_, err = f.svc.Competitions.CreatePrize(f.ctx, c.ID, domain.PositionFirst, decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = f.svc.Competitions.CreatePrize(f.ctx, c.ID, domain.PositionFirst, decimal.NewFromInt(50))
	assert.True(t, domain.IsConflict(err), "one prize per ranked position")

	_, err = f.svc.Competitions.CreatePrize(f.ctx, c.ID, domain.PositionParticipation, decimal.NewFromInt(5))
	require.NoError(t, err)
	_, err = f.svc.Competitions.CreatePrize(f.ctx, c.ID, domain.PositionParticipation, decimal.NewFromInt(5))
	require.NoError(t, err)

	prizes, err := f.svc.Competitions.Prizes(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, prizes, 3)
}

type stubService struct{ err error }

func (s stubService) Health(context.Context) error { return s.err }

func TestHealthCheck(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ok := usecase.NewHealthService(log, map[string]ports.ExternalService{"storage": stubService{}})
	st := ok.Check(context.Background())
	assert.Equal(t, "ok", st.Status)
	assert.Equal(t, "healthy", st.Components["storage"].Status)
	assert.NoError(t, ok.Health(context.Background()))

	bad := usecase.NewHealthService(log, map[string]ports.ExternalService{
		"storage": stubService{},
		"posts":   stubService{err: errors.New("connection refused")},
	})
	st = bad.Check(context.Background())
	assert.Equal(t, "degraded", st.Status)
	assert.Equal(t, "unhealthy", st.Components["posts"].Status)
	assert.Equal(t, "connection refused", st.Components["posts"].Message)
	assert.Error(t, bad.Health(context.Background()))
}

func TestAdminAuthorize(t *testing.T) {
	auth := usecase.NewAdminAuthService(" s3cret ")
	assert.True(t, auth.Enabled())
	assert.NoError(t, auth.Authorize("s3cret"))
	assert.True(t, domain.IsUnauthorized(auth.Authorize("")))
	assert.True(t, domain.IsUnauthorized(auth.Authorize("guess")))

	off := usecase.NewAdminAuthService("")
	assert.False(t, off.Enabled())
	assert.True(t, domain.IsUnauthorized(off.Authorize("anything")))
}
