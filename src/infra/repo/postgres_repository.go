package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"postcontest/src/core/domain"
	"postcontest/src/core/ports"
	"postcontest/src/infra/db"
)

// PostgresRepository implements ContestRepository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

var _ ports.ContestRepository = (*PostgresRepository)(nil)

// NewPostgresRepository constructs a repository backed by Postgres.
func NewPostgresRepository(pg *db.Postgres, log *slog.Logger) *PostgresRepository {
	return &PostgresRepository{
		pool: pg.Pool,
		log:  log,
	}
}

func (r *PostgresRepository) Health(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	_, ok := violatedConstraint(err, "23505")
	return ok
}

func isForeignKeyViolation(err error) bool {
	_, ok := violatedConstraint(err, "23503")
	return ok
}

// violatedConstraint returns the constraint named by a Postgres error with
// the given SQLSTATE.
func violatedConstraint(err error, code string) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// nullablePost scans the columns of a LEFT JOINed posts row.
type nullablePost struct {
	id        *int64
	authorID  *int64
	createdAt *time.Time
	deletedAt *time.Time
}

func (n *nullablePost) dest() []any {
	return []any{&n.id, &n.authorID, &n.createdAt, &n.deletedAt}
}

func (n *nullablePost) post() *domain.Post {
	if n.id == nil {
		return nil
	}
	p := &domain.Post{ID: *n.id, DeletedAt: n.deletedAt}
	if n.authorID != nil {
		p.AuthorID = *n.authorID
	}
	if n.createdAt != nil {
		p.CreatedAt = *n.createdAt
	}
	return p
}

// Competitions

const competitionColumns = `competition_id, title, slug, is_active, show_stickers, created_at`

func scanCompetition(row pgx.Row) (*domain.Competition, error) {
	var c domain.Competition
	if err := row.Scan(&c.ID, &c.Title, &c.Slug, &c.IsActive, &c.ShowStickers, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) CreateCompetition(ctx context.Context, c domain.Competition) (*domain.Competition, error) {
	const q = `
		INSERT INTO competitions (title, slug, is_active, show_stickers, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + competitionColumns
	out, err := scanCompetition(r.pool.QueryRow(ctx, q, c.Title, c.Slug, c.IsActive, c.ShowStickers, c.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.NewConflictError("competition slug already taken")
		}
		return nil, fmt.Errorf("insert competition: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) GetCompetition(ctx context.Context, competitionID int64) (*domain.Competition, error) {
	const q = `SELECT ` + competitionColumns + ` FROM competitions WHERE competition_id = $1`
	c, err := scanCompetition(r.pool.QueryRow(ctx, q, competitionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("competition")
		}
		return nil, err
	}
	return c, nil
}

func (r *PostgresRepository) ListCompetitions(ctx context.Context) ([]domain.Competition, error) {
	const q = `SELECT ` + competitionColumns + ` FROM competitions ORDER BY competition_id`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Competition
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) SetCompetitionActive(ctx context.Context, competitionID int64, active bool) (*domain.Competition, error) {
	const q = `
		UPDATE competitions
		SET is_active = $2
		WHERE competition_id = $1
		RETURNING ` + competitionColumns
	c, err := scanCompetition(r.pool.QueryRow(ctx, q, competitionID, active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("competition")
		}
		return nil, err
	}
	return c, nil
}

// Rounds

const roundColumns = `round_id, competition_id, name, start_date, end_date, likes_to_pass, created_at`

func scanRound(row pgx.Row) (*domain.Round, error) {
	var rd domain.Round
	if err := row.Scan(&rd.ID, &rd.CompetitionID, &rd.Name, &rd.StartDate, &rd.EndDate, &rd.LikesToPass, &rd.CreatedAt); err != nil {
		return nil, err
	}
	rd.StartDate = rd.StartDate.UTC()
	rd.EndDate = rd.EndDate.UTC()
	return &rd, nil
}

func (r *PostgresRepository) queryRounds(ctx context.Context, q string, args ...any) ([]domain.Round, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Round
	for rows.Next() {
		rd, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rd)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CreateRound(ctx context.Context, rd domain.Round) (*domain.Round, error) {
	const q = `
		INSERT INTO rounds (competition_id, name, start_date, end_date, likes_to_pass, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + roundColumns
	out, err := scanRound(r.pool.QueryRow(ctx, q, rd.CompetitionID, rd.Name, rd.StartDate, rd.EndDate, rd.LikesToPass, rd.CreatedAt))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, domain.NewNotFoundError("competition")
		}
		r.log.Error("CreateRound failed", "competition_id", rd.CompetitionID, "err", err)
		return nil, fmt.Errorf("insert round: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) UpdateRound(ctx context.Context, rd domain.Round) (*domain.Round, error) {
	const q = `
		UPDATE rounds
		SET name = $2, start_date = $3, end_date = $4, likes_to_pass = $5
		WHERE round_id = $1
		RETURNING ` + roundColumns
	out, err := scanRound(r.pool.QueryRow(ctx, q, rd.ID, rd.Name, rd.StartDate, rd.EndDate, rd.LikesToPass))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("round")
		}
		return nil, fmt.Errorf("update round: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) GetRound(ctx context.Context, roundID int64) (*domain.Round, error) {
	const q = `SELECT ` + roundColumns + ` FROM rounds WHERE round_id = $1`
	rd, err := scanRound(r.pool.QueryRow(ctx, q, roundID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("round")
		}
		return nil, err
	}
	return rd, nil
}

func (r *PostgresRepository) ListRounds(ctx context.Context, competitionID int64) ([]domain.Round, error) {
	const q = `
		SELECT ` + roundColumns + `
		FROM rounds
		WHERE competition_id = $1
		ORDER BY start_date, round_id`
	return r.queryRounds(ctx, q, competitionID)
}

func (r *PostgresRepository) ListRoundsEndedBetween(ctx context.Context, from, to time.Time) ([]domain.Round, error) {
	const q = `
		SELECT ` + roundColumns + `
		FROM rounds
		WHERE end_date >= $1 AND end_date < $2
		ORDER BY start_date, round_id`
	return r.queryRounds(ctx, q, from, to)
}

// Participants

const participantColumns = `participant_id, competition_id, user_id, disqualified, disqualified_reason, disqualified_at, joined_at`

func scanParticipant(row pgx.Row) (*domain.Participant, error) {
	var p domain.Participant
	if err := row.Scan(&p.ID, &p.CompetitionID, &p.UserID, &p.Disqualified, &p.DisqualifiedReason, &p.DisqualifiedAt, &p.JoinedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) EnsureParticipant(ctx context.Context, competitionID, userID int64) (*domain.Participant, error) {
	const ins = `
		INSERT INTO participants (competition_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (competition_id, user_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, ins, competitionID, userID); err != nil {
		if isForeignKeyViolation(err) {
			return nil, domain.NewNotFoundError("competition")
		}
		return nil, fmt.Errorf("insert participant: %w", err)
	}

	const q = `SELECT ` + participantColumns + ` FROM participants WHERE competition_id = $1 AND user_id = $2`
	p, err := scanParticipant(r.pool.QueryRow(ctx, q, competitionID, userID))
	if err != nil {
		return nil, fmt.Errorf("load participant: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) GetParticipant(ctx context.Context, participantID int64) (*domain.Participant, error) {
	const q = `SELECT ` + participantColumns + ` FROM participants WHERE participant_id = $1`
	p, err := scanParticipant(r.pool.QueryRow(ctx, q, participantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("participant")
		}
		return nil, err
	}
	return p, nil
}

func (r *PostgresRepository) ListParticipants(ctx context.Context, competitionID int64) ([]domain.Participant, error) {
	const q = `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE competition_id = $1
		ORDER BY participant_id`
	rows, err := r.pool.Query(ctx, q, competitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) DisqualifyParticipant(ctx context.Context, participantID int64, reason string, at time.Time) (*domain.Participant, error) {
	const q = `
		UPDATE participants
		SET disqualified = TRUE,
		    disqualified_reason = COALESCE(disqualified_reason, $2),
		    disqualified_at = COALESCE(disqualified_at, $3)
		WHERE participant_id = $1
		RETURNING ` + participantColumns
	p, err := scanParticipant(r.pool.QueryRow(ctx, q, participantID, reason, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("participant")
		}
		return nil, fmt.Errorf("disqualify participant: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) RecordSubmission(ctx context.Context, participantID, postID int64, at time.Time) error {
	const q = `
		INSERT INTO participant_submissions (participant_id, post_id, submitted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (participant_id, post_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, q, participantID, postID, at); err != nil {
		if isForeignKeyViolation(err) {
			return domain.NewNotFoundError("participant")
		}
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListSubmissions(ctx context.Context, participantID int64) ([]domain.Submission, error) {
	const q = `
		SELECT s.participant_id, s.post_id, s.submitted_at,
		       po.post_id, po.author_id, po.created_at, po.deleted_at
		FROM participant_submissions s
		LEFT JOIN posts po ON po.post_id = s.post_id
		WHERE s.participant_id = $1
		ORDER BY s.submitted_at, s.post_id`
	rows, err := r.pool.Query(ctx, q, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		var s domain.Submission
		var np nullablePost
		dest := append([]any{&s.ParticipantID, &s.PostID, &s.SubmittedAt}, np.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		s.Post = np.post()
		out = append(out, s)
	}
	return out, rows.Err()
}

// Posts

func (r *PostgresRepository) GetPost(ctx context.Context, postID int64) (*domain.Post, error) {
	const q = `SELECT post_id, author_id, created_at, deleted_at FROM posts WHERE post_id = $1`
	var p domain.Post
	if err := r.pool.QueryRow(ctx, q, postID).Scan(&p.ID, &p.AuthorID, &p.CreatedAt, &p.DeletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("post")
		}
		return nil, err
	}
	return &p, nil
}
