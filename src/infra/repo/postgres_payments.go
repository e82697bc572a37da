package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"postcontest/src/core/domain"
	"postcontest/src/core/ports"
)

// Prizes

// Amounts travel as text so NUMERIC precision survives the round trip.
const prizeColumns = `prize_id, competition_id, position, amount::text, created_at`

func scanPrize(row pgx.Row) (*domain.Prize, error) {
	var p domain.Prize
	var amount string
	if err := row.Scan(&p.ID, &p.CompetitionID, &p.Position, &amount, &p.CreatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse prize amount %q: %w", amount, err)
	}
	p.Amount = d
	return &p, nil
}

func (r *PostgresRepository) CreatePrize(ctx context.Context, p domain.Prize) (*domain.Prize, error) {
	const q = `
		INSERT INTO prizes (competition_id, position, amount, created_at)
		VALUES ($1, $2, $3::numeric, $4)
		RETURNING ` + prizeColumns
	out, err := scanPrize(r.pool.QueryRow(ctx, q, p.CompetitionID, p.Position, p.Amount.String(), p.CreatedAt))
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, domain.NewConflictError("prize position already defined")
		case isForeignKeyViolation(err):
			return nil, domain.NewNotFoundError("competition")
		}
		return nil, fmt.Errorf("insert prize: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) GetPrize(ctx context.Context, prizeID int64) (*domain.Prize, error) {
	const q = `SELECT ` + prizeColumns + ` FROM prizes WHERE prize_id = $1`
	p, err := scanPrize(r.pool.QueryRow(ctx, q, prizeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("prize")
		}
		return nil, err
	}
	return p, nil
}

func (r *PostgresRepository) ListPrizes(ctx context.Context, competitionID int64) ([]domain.Prize, error) {
	const q = `SELECT ` + prizeColumns + ` FROM prizes WHERE competition_id = $1 ORDER BY prize_id`
	rows, err := r.pool.Query(ctx, q, competitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Prize
	for rows.Next() {
		p, err := scanPrize(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) UpdatePrizeAmount(ctx context.Context, prizeID int64, amount decimal.Decimal) (*domain.Prize, error) {
	const q = `
		UPDATE prizes
		SET amount = $2::numeric
		WHERE prize_id = $1
		RETURNING ` + prizeColumns
	p, err := scanPrize(r.pool.QueryRow(ctx, q, prizeID, amount.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("prize")
		}
		return nil, fmt.Errorf("update prize amount: %w", err)
	}
	return p, nil
}

// Payments

const paymentColumns = `payment_id, prize_id, participant_id, status, transaction_id, notes, processed_at, created_at`

func scanPayment(row pgx.Row) (*domain.PrizePayment, error) {
	var p domain.PrizePayment
	if err := row.Scan(&p.ID, &p.PrizeID, &p.ParticipantID, &p.Status, &p.TransactionID, &p.Notes, &p.ProcessedAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) CreatePayment(ctx context.Context, p domain.PrizePayment) (*domain.PrizePayment, error) {
	const q = `
		INSERT INTO prize_payments (prize_id, participant_id, status, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + paymentColumns
	out, err := scanPayment(r.pool.QueryRow(ctx, q, p.PrizeID, p.ParticipantID, p.Status, p.CreatedAt))
	if err != nil {
		if constraint, ok := violatedConstraint(err, "23505"); ok && constraint == "prize_payments_open_key" {
			return nil, domain.NewError(domain.ErrDuplicatePayment, "an open payment already exists for this prize and participant")
		}
		if isForeignKeyViolation(err) {
			return nil, domain.NewNotFoundError("prize or participant")
		}
		r.log.Error("CreatePayment failed", "prize_id", p.PrizeID, "participant_id", p.ParticipantID, "err", err)
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) GetPayment(ctx context.Context, paymentID int64) (*domain.PrizePayment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM prize_payments WHERE payment_id = $1`
	p, err := scanPayment(r.pool.QueryRow(ctx, q, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("payment")
		}
		return nil, err
	}
	return p, nil
}

func (r *PostgresRepository) ListPayments(ctx context.Context, prizeID int64) ([]domain.PrizePayment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM prize_payments WHERE prize_id = $1 ORDER BY payment_id`
	rows, err := r.pool.Query(ctx, q, prizeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PrizePayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) FindOpenPayment(ctx context.Context, prizeID, participantID int64) (*domain.PrizePayment, error) {
	const q = `
		SELECT ` + paymentColumns + `
		FROM prize_payments
		WHERE prize_id = $1 AND participant_id = $2 AND status <> 'FAILED'
		ORDER BY payment_id DESC
		LIMIT 1`
	p, err := scanPayment(r.pool.QueryRow(ctx, q, prizeID, participantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// TransitionPayment is a compare-and-set on the status column.
func (r *PostgresRepository) TransitionPayment(ctx context.Context, paymentID int64, u ports.PaymentUpdate) (*domain.PrizePayment, error) {
	const q = `
		UPDATE prize_payments
		SET status = $3,
		    transaction_id = COALESCE($4, transaction_id),
		    notes = COALESCE($5, notes),
		    processed_at = $6
		WHERE payment_id = $1 AND status = $2
		RETURNING ` + paymentColumns
	p, err := scanPayment(r.pool.QueryRow(ctx, q, paymentID, u.From, u.To, u.TransactionID, u.Notes, u.ProcessedAt))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transition payment: %w", err)
	}
	if _, err := r.GetPayment(ctx, paymentID); err != nil {
		return nil, err
	}
	return nil, ports.ErrStaleState
}
