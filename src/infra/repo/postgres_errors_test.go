package repo

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"postcontest/src/core/domain"
)

func TestEntryWriteErrorMapsConstraints(t *testing.T) {
	postKey := &pgconn.PgError{Code: "23505", ConstraintName: "round_entries_round_post_key"}
	participantKey := &pgconn.PgError{Code: "23505", ConstraintName: "round_entries_participant_round_key"}

	assert.ErrorIs(t, entryWriteError("insert entry", postKey), domain.ErrEntryConflict)
	assert.ErrorIs(t, entryWriteError("insert entry", fmt.Errorf("wrapped: %w", participantKey)), domain.ErrAlreadyExists)
	assert.True(t, domain.IsNotFound(entryWriteError("move entry", pgx.ErrNoRows)))

	other := entryWriteError("insert entry", errors.New("conn reset"))
	assert.EqualError(t, other, "insert entry: conn reset")
}

func TestViolatedConstraint(t *testing.T) {
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "prize_payments_prize_id_fkey"}

	assert.True(t, isForeignKeyViolation(fk))
	assert.False(t, isUniqueViolation(fk))

	name, ok := violatedConstraint(fk, "23503")
	assert.True(t, ok)
	assert.Equal(t, "prize_payments_prize_id_fkey", name)

	_, ok = violatedConstraint(errors.New("plain"), "23505")
	assert.False(t, ok)
}

func TestNullablePost(t *testing.T) {
	var missing nullablePost
	assert.Nil(t, missing.post())

	id, author := int64(7), int64(10)
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	found := nullablePost{id: &id, authorID: &author, createdAt: &created}
	p := found.post()
	if assert.NotNil(t, p) {
		assert.Equal(t, int64(7), p.ID)
		assert.True(t, p.Alive())
	}
}

func TestCompetitionLockKey(t *testing.T) {
	assert.Equal(t, int64(0x7063_0000_0000_0007), competitionLockKey(7))

	big := int64(math.MaxInt32) + 10
	assert.Equal(t, big, competitionLockKey(big)&(1<<48-1), "ids past int4 keep their low bits")
	assert.NotEqual(t, competitionLockKey(big), competitionLockKey(10))
	assert.Positive(t, competitionLockKey(1<<48-1))
}
