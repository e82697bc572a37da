package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"

	"postcontest/src/core/domain"
	"postcontest/src/core/ports"
)

// CompetitionService handles competition administration: the competition
// aggregate, its rounds, participant enrolment and prizes.
type CompetitionService struct {
	repo  ports.ContestRepository
	clock ports.Clock
	log   *slog.Logger
}

func NewCompetitionService(repo ports.ContestRepository, clock ports.Clock, log *slog.Logger) *CompetitionService {
	return &CompetitionService{repo: repo, clock: clock, log: log}
}

// NewCompetition is the input for Create.
type NewCompetition struct {
	Title        string
	Slug         string
	ShowStickers bool
}

// Create registers an active competition. The slug defaults to one derived
// from the title.
func (s *CompetitionService) Create(ctx context.Context, in NewCompetition) (*domain.Competition, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, domain.NewValidationError("title", "title is required")
	}
	sl := strings.TrimSpace(in.Slug)
	if sl == "" {
		sl = slug.Make(title)
	}
	if sl == "" || !slug.IsSlug(sl) {
		return nil, domain.NewValidationError("slug", "slug must be lowercase letters, digits and dashes")
	}
	return s.repo.CreateCompetition(ctx, domain.Competition{
		Title:        title,
		Slug:         sl,
		IsActive:     true,
		ShowStickers: in.ShowStickers,
		CreatedAt:    s.clock.Now(),
	})
}

func (s *CompetitionService) Get(ctx context.Context, competitionID int64) (*domain.Competition, error) {
	return s.repo.GetCompetition(ctx, competitionID)
}

func (s *CompetitionService) List(ctx context.Context) ([]domain.Competition, error) {
	return s.repo.ListCompetitions(ctx)
}

// Archive deactivates a competition. Its history stays readable.
func (s *CompetitionService) Archive(ctx context.Context, competitionID int64) (*domain.Competition, error) {
	return s.repo.SetCompetitionActive(ctx, competitionID, false)
}

// CreateRound adds a round row. A row reusing an existing name supersedes the
// older row once reconciliation runs.
func (s *CompetitionService) CreateRound(ctx context.Context, r domain.Round) (*domain.Round, error) {
	r.Name = strings.TrimSpace(r.Name)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetCompetition(ctx, r.CompetitionID); err != nil {
		return nil, err
	}
	existing, err := s.repo.ListRounds(ctx, r.CompetitionID)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = s.clock.Now()
	created, err := s.repo.CreateRound(ctx, r)
	if err != nil {
		return nil, err
	}
	for _, old := range existing {
		if strings.TrimSpace(old.Name) == created.Name {
			s.log.Info("round supersedes an older row with the same name",
				"competition_id", created.CompetitionID,
				"round_id", created.ID,
				"superseded_round_id", old.ID,
				"name", created.Name,
			)
		}
	}
	return created, nil
}

// RoundPatch lists the round fields an edit may change.
type RoundPatch struct {
	Name             *string
	StartDate        *time.Time
	EndDate          *time.Time
	LikesToPass      *int
	ClearLikesToPass bool
}

// UpdateRound edits a round in place.
func (s *CompetitionService) UpdateRound(ctx context.Context, roundID int64, patch RoundPatch) (*domain.Round, error) {
	r, err := s.repo.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		r.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.StartDate != nil {
		r.StartDate = patch.StartDate.UTC()
	}
	if patch.EndDate != nil {
		r.EndDate = patch.EndDate.UTC()
	}
	switch {
	case patch.ClearLikesToPass:
		r.LikesToPass = nil
	case patch.LikesToPass != nil:
		v := *patch.LikesToPass
		r.LikesToPass = &v
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return s.repo.UpdateRound(ctx, *r)
}

// Rounds lists a competition's rounds. Superseded rows are hidden unless
// includeSuperseded is set.
func (s *CompetitionService) Rounds(ctx context.Context, competitionID int64, includeSuperseded bool) ([]domain.Round, error) {
	if _, err := s.repo.GetCompetition(ctx, competitionID); err != nil {
		return nil, err
	}
	rounds, err := s.repo.ListRounds(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if includeSuperseded {
		return rounds, nil
	}
	return domain.ResolveRounds(rounds).Current, nil
}

// Join enrols a user, returning the existing participant on repeat calls.
func (s *CompetitionService) Join(ctx context.Context, competitionID, userID int64) (*domain.Participant, error) {
	if userID <= 0 {
		return nil, domain.NewValidationError("user_id", "user id is required")
	}
	c, err := s.repo.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, domain.NewConflictError("competition is archived")
	}
	return s.repo.EnsureParticipant(ctx, competitionID, userID)
}

func (s *CompetitionService) Participant(ctx context.Context, participantID int64) (*domain.Participant, error) {
	return s.repo.GetParticipant(ctx, participantID)
}

// CreatePrize defines the amount paid for a position.
func (s *CompetitionService) CreatePrize(ctx context.Context, competitionID int64, position domain.PrizePosition, amount decimal.Decimal) (*domain.Prize, error) {
	if !position.Valid() {
		return nil, domain.NewValidationError("position", "unknown prize position")
	}
	if !amount.IsPositive() {
		return nil, domain.NewValidationError("amount", "amount must be positive")
	}
	if _, err := s.repo.GetCompetition(ctx, competitionID); err != nil {
		return nil, err
	}
	return s.repo.CreatePrize(ctx, domain.Prize{
		CompetitionID: competitionID,
		Position:      position,
		Amount:        amount,
		CreatedAt:     s.clock.Now(),
	})
}

// UpdatePrizeAmount changes a prize amount. Once a payment references the
// prize only an explicit administrative correction may change it.
func (s *CompetitionService) UpdatePrizeAmount(ctx context.Context, prizeID int64, amount decimal.Decimal, correction bool) (*domain.Prize, error) {
	if !amount.IsPositive() {
		return nil, domain.NewValidationError("amount", "amount must be positive")
	}
	prize, err := s.repo.GetPrize(ctx, prizeID)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, prizeID)
	if err != nil {
		return nil, err
	}
	if len(payments) > 0 && !correction {
		return nil, domain.NewConflictError("prize is referenced by payments; submit as a correction")
	}
	if len(payments) > 0 {
		s.log.Warn("prize amount corrected after payments were created",
			"prize_id", prizeID,
			"old_amount", prize.Amount.String(),
			"new_amount", amount.String(),
			"payments", len(payments),
		)
	}
	return s.repo.UpdatePrizeAmount(ctx, prizeID, amount)
}

func (s *CompetitionService) Prizes(ctx context.Context, competitionID int64) ([]domain.Prize, error) {
	if _, err := s.repo.GetCompetition(ctx, competitionID); err != nil {
		return nil, err
	}
	return s.repo.ListPrizes(ctx, competitionID)
}

// loadRoundSet resolves the current rounds of a competition.
func loadRoundSet(ctx context.Context, repo ports.ContestRepository, competitionID int64) (domain.RoundSet, error) {
	rounds, err := repo.ListRounds(ctx, competitionID)
	if err != nil {
		return domain.RoundSet{}, err
	}
	return domain.ResolveRounds(rounds), nil
}
