package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"postcontest/src/core/domain"
	"postcontest/src/core/ports"
)

// competitionLockNamespace tags the advisory locks taken per competition
// during reconciliation.
const competitionLockNamespace = 0x7063

const entryColumns = `entry_id, participant_id, round_id, post_id, qualified_for_next_round, created_at, updated_at`

func scanEntry(row pgx.Row) (*domain.RoundEntry, error) {
	var e domain.RoundEntry
	if err := row.Scan(&e.ID, &e.ParticipantID, &e.RoundID, &e.PostID, &e.QualifiedForNextRound, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// entryWriteError translates unique violations on round_entries into the
// errors the ports promise.
func entryWriteError(op string, err error) error {
	constraint, ok := violatedConstraint(err, "23505")
	if !ok {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFoundError("entry")
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	switch constraint {
	case "round_entries_round_post_key":
		return domain.NewError(domain.ErrEntryConflict, "post already entered in this round")
	default:
		return domain.NewError(domain.ErrAlreadyExists, "participant already has an entry in this round")
	}
}

func (r *PostgresRepository) getEntryWhere(ctx context.Context, where string, args ...any) (*domain.RoundEntry, error) {
	q := `SELECT ` + entryColumns + ` FROM round_entries WHERE ` + where
	e, err := scanEntry(r.pool.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func (r *PostgresRepository) GetEntry(ctx context.Context, participantID, roundID int64) (*domain.RoundEntry, error) {
	return r.getEntryWhere(ctx, `participant_id = $1 AND round_id = $2`, participantID, roundID)
}

func (r *PostgresRepository) GetEntryByPost(ctx context.Context, roundID, postID int64) (*domain.RoundEntry, error) {
	return r.getEntryWhere(ctx, `round_id = $1 AND post_id = $2`, roundID, postID)
}

func (r *PostgresRepository) InsertEntry(ctx context.Context, e domain.RoundEntry) (*domain.RoundEntry, error) {
	const q = `
		INSERT INTO round_entries (participant_id, round_id, post_id, qualified_for_next_round, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, $4, $4)
		RETURNING ` + entryColumns
	out, err := scanEntry(r.pool.QueryRow(ctx, q, e.ParticipantID, e.RoundID, e.PostID, e.CreatedAt))
	if err != nil {
		return nil, entryWriteError("insert entry", err)
	}
	return out, nil
}

func (r *PostgresRepository) UpdateEntryPost(ctx context.Context, entryID, postID int64, at time.Time) (*domain.RoundEntry, error) {
	const q = `
		UPDATE round_entries
		SET post_id = $2, qualified_for_next_round = FALSE, updated_at = $3
		WHERE entry_id = $1
		RETURNING ` + entryColumns
	out, err := scanEntry(r.pool.QueryRow(ctx, q, entryID, postID, at))
	if err != nil {
		return nil, entryWriteError("update entry post", err)
	}
	return out, nil
}

func (r *PostgresRepository) MoveEntry(ctx context.Context, entryID, roundID int64, at time.Time) (*domain.RoundEntry, error) {
	const q = `
		UPDATE round_entries
		SET round_id = $2, qualified_for_next_round = FALSE, updated_at = $3
		WHERE entry_id = $1
		RETURNING ` + entryColumns
	out, err := scanEntry(r.pool.QueryRow(ctx, q, entryID, roundID, at))
	if err != nil {
		return nil, entryWriteError("move entry", err)
	}
	return out, nil
}

func (r *PostgresRepository) DeleteEntry(ctx context.Context, entryID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM round_entries WHERE entry_id = $1`, entryID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("entry")
	}
	return nil
}

func (r *PostgresRepository) ListEntries(ctx context.Context, roundID int64, filter ports.EntryFilter) ([]ports.EntryView, error) {
	var b strings.Builder
	b.WriteString(`
		SELECT e.entry_id, e.participant_id, e.round_id, e.post_id, e.qualified_for_next_round, e.created_at, e.updated_at,
		       p.user_id, p.disqualified,
		       po.post_id, po.author_id, po.created_at, po.deleted_at
		FROM round_entries e
		JOIN participants p ON p.participant_id = e.participant_id
		LEFT JOIN posts po ON po.post_id = e.post_id
		WHERE e.round_id = $1`)
	args := []any{roundID}
	if filter.Qualified != nil {
		args = append(args, *filter.Qualified)
		fmt.Fprintf(&b, " AND e.qualified_for_next_round = $%d", len(args))
	}
	if filter.ParticipantID != nil {
		args = append(args, *filter.ParticipantID)
		fmt.Fprintf(&b, " AND e.participant_id = $%d", len(args))
	}
	if filter.ExcludeDisqualified {
		b.WriteString(" AND NOT p.disqualified")
	}
	b.WriteString(" ORDER BY e.entry_id")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.EntryView
	for rows.Next() {
		var v ports.EntryView
		var np nullablePost
		e := &v.Entry
		dest := append([]any{
			&e.ID, &e.ParticipantID, &e.RoundID, &e.PostID, &e.QualifiedForNextRound, &e.CreatedAt, &e.UpdatedAt,
			&v.UserID, &v.ParticipantDisqualified,
		}, np.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		v.Post = np.post()
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ListParticipantEntries(ctx context.Context, participantID int64) ([]domain.RoundEntry, error) {
	const q = `SELECT ` + entryColumns + ` FROM round_entries WHERE participant_id = $1 ORDER BY entry_id`
	rows, err := r.pool.Query(ctx, q, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RoundEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Qualification

// TallyRoundLikes counts window likes for every entry of the round in a
// single statement, so all entries see the same snapshot.
func (r *PostgresRepository) TallyRoundLikes(ctx context.Context, roundID int64) ([]ports.EntryTally, error) {
	if _, err := r.GetRound(ctx, roundID); err != nil {
		return nil, err
	}

	const q = `
		SELECT e.entry_id, e.participant_id, e.round_id, e.post_id, e.qualified_for_next_round, e.created_at, e.updated_at,
		       p.disqualified,
		       COUNT(l.user_id) FILTER (WHERE l.created_at >= rd.start_date AND l.created_at < rd.end_date)
		FROM round_entries e
		JOIN rounds rd ON rd.round_id = e.round_id
		JOIN participants p ON p.participant_id = e.participant_id
		LEFT JOIN post_likes l ON l.post_id = e.post_id
		WHERE e.round_id = $1
		GROUP BY e.entry_id, p.disqualified
		ORDER BY e.entry_id`
	rows, err := r.pool.Query(ctx, q, roundID)
	if err != nil {
		return nil, fmt.Errorf("tally round likes: %w", err)
	}
	defer rows.Close()

	var out []ports.EntryTally
	for rows.Next() {
		var t ports.EntryTally
		e := &t.Entry
		if err := rows.Scan(
			&e.ID, &e.ParticipantID, &e.RoundID, &e.PostID, &e.QualifiedForNextRound, &e.CreatedAt, &e.UpdatedAt,
			&t.Disqualified, &t.CompetitionLikes,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) SetQualification(ctx context.Context, entryID int64, qualified bool) (bool, error) {
	const q = `
		UPDATE round_entries
		SET qualified_for_next_round = $2
		WHERE entry_id = $1 AND qualified_for_next_round IS DISTINCT FROM $2
	`
	tag, err := r.pool.Exec(ctx, q, entryID, qualified)
	if err != nil {
		return false, fmt.Errorf("set qualification: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM round_entries WHERE entry_id = $1)`, entryID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, domain.NewNotFoundError("entry")
	}
	return false, nil
}

// Coordination

// competitionLockKey folds the namespace into the top 16 bits of a single
// bigint advisory key; the competition ID fills the low 48.
func competitionLockKey(competitionID int64) int64 {
	return competitionLockNamespace<<48 | competitionID&(1<<48-1)
}

// TryLockCompetition takes a session advisory lock on a dedicated pooled
// connection. The returned release unlocks on that same connection and
// returns it to the pool.
func (r *PostgresRepository) TryLockCompetition(ctx context.Context, competitionID int64) (func(), error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}

	const lockQ = `SELECT pg_try_advisory_lock($1::bigint)`
	var locked bool
	if err := conn.QueryRow(ctx, lockQ, competitionLockKey(competitionID)).Scan(&locked); err != nil {
		conn.Release()
		return nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, domain.NewError(domain.ErrReconciliationInProgress, "another reconciliation holds this competition; retry later")
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		const unlockQ = `SELECT pg_advisory_unlock($1::bigint)`
		if _, err := conn.Exec(unlockCtx, unlockQ, competitionLockKey(competitionID)); err != nil {
			// A session lock dies with its connection; drop it rather than pool it.
			r.log.Error("advisory unlock failed", "competition_id", competitionID, "err", err)
			conn.Conn().Close(unlockCtx)
		}
		conn.Release()
	}, nil
}
