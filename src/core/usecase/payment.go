package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"postcontest/src/core/domain"
	"postcontest/src/core/ports"
)

// PaymentService drives prize payments through PENDING, COMPLETED and FAILED.
type PaymentService struct {
	repo  ports.ContestRepository
	clock ports.Clock
	log   *slog.Logger
}

func NewPaymentService(repo ports.ContestRepository, clock ports.Clock, log *slog.Logger) *PaymentService {
	return &PaymentService{repo: repo, clock: clock, log: log}
}

// Create opens a PENDING payment of a prize to a participant.
func (s *PaymentService) Create(ctx context.Context, prizeID, participantID int64) (*domain.PrizePayment, error) {
	prize, err := s.repo.GetPrize(ctx, prizeID)
	if err != nil {
		return nil, err
	}
	participant, err := s.repo.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if participant.CompetitionID != prize.CompetitionID {
		return nil, domain.NewValidationError("participant_id", "participant is not enrolled in the prize's competition")
	}
	if participant.Disqualified {
		return nil, domain.NewError(domain.ErrParticipantDisqualified, "disqualified participants cannot be paid")
	}

	rounds, err := loadRoundSet(ctx, s.repo, prize.CompetitionID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if !rounds.Concluded(now) {
		return nil, domain.NewError(domain.ErrCompetitionNotConcluded, "competition has rounds that have not ended")
	}

	open, err := s.repo.FindOpenPayment(ctx, prizeID, participantID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, domain.NewError(domain.ErrDuplicatePayment, "payment "+strings.ToLower(string(open.Status))+" already exists for this prize and participant")
	}

	// The partial unique index still guards the race between the check and the insert.
	p, err := s.repo.CreatePayment(ctx, domain.PrizePayment{
		PrizeID:       prizeID,
		ParticipantID: participantID,
		Status:        domain.PaymentPending,
		CreatedAt:     now,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("payment created",
		"payment_id", p.ID,
		"prize_id", prizeID,
		"participant_id", participantID,
		"amount", prize.Amount.String(),
	)
	return p, nil
}

// Complete marks a pending payment paid. The transaction id is required.
func (s *PaymentService) Complete(ctx context.Context, paymentID int64, transactionID string) (*domain.PrizePayment, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, domain.NewValidationError("transaction_id", "transaction id is required")
	}
	return s.transition(ctx, paymentID, domain.PaymentCompleted, &transactionID, nil)
}

// Fail marks a pending payment failed. Failing a failed payment returns it unchanged.
func (s *PaymentService) Fail(ctx context.Context, paymentID int64, notes string) (*domain.PrizePayment, error) {
	var n *string
	if notes = strings.TrimSpace(notes); notes != "" {
		n = &notes
	}
	return s.transition(ctx, paymentID, domain.PaymentFailed, nil, n)
}

// transition applies a compare-and-set status change. When another writer
// moves the payment first the fresh state is checked again, so two racing
// completions resolve to one success and one ErrAlreadyCompleted.
func (s *PaymentService) transition(ctx context.Context, paymentID int64, to domain.PaymentStatus, txID, notes *string) (*domain.PrizePayment, error) {
	for {
		p, err := s.repo.GetPayment(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		if err := p.CheckTransition(to); err != nil {
			return nil, err
		}
		if p.Status == to {
			return p, nil
		}

		updated, err := s.repo.TransitionPayment(ctx, paymentID, ports.PaymentUpdate{
			From:          p.Status,
			To:            to,
			TransactionID: txID,
			Notes:         notes,
			ProcessedAt:   s.clock.Now(),
		})
		if errors.Is(err, ports.ErrStaleState) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.log.Info("payment transitioned",
			"payment_id", paymentID,
			"from", p.Status,
			"to", to,
		)
		return updated, nil
	}
}

// Retry opens a new PENDING attempt for a failed payment. The failed record
// stays as history.
func (s *PaymentService) Retry(ctx context.Context, paymentID int64) (*domain.PrizePayment, error) {
	p, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PaymentFailed {
		return nil, &domain.TransitionError{Base: domain.ErrInvalidTransition, From: p.Status, To: domain.PaymentPending}
	}
	return s.Create(ctx, p.PrizeID, p.ParticipantID)
}

// List returns the payment history of a prize, oldest first.
func (s *PaymentService) List(ctx context.Context, prizeID int64) ([]domain.PrizePayment, error) {
	if _, err := s.repo.GetPrize(ctx, prizeID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, prizeID)
}
