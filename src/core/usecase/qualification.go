package usecase

import (
	"context"
	"log/slog"
	"time"

	"postcontest/src/core/domain"
	"postcontest/src/core/ports"
)

// QualificationService decides which entries advance once a round has ended.
type QualificationService struct {
	repo  ports.ContestRepository
	clock ports.Clock
	log   *slog.Logger
}

func NewQualificationService(repo ports.ContestRepository, clock ports.Clock, log *slog.Logger) *QualificationService {
	return &QualificationService{repo: repo, clock: clock, log: log}
}

// EntryResult is the qualification outcome of one entry.
type EntryResult struct {
	EntryID          int64 `json:"entry_id"`
	ParticipantID    int64 `json:"participant_id"`
	PostID           int64 `json:"post_id"`
	CompetitionLikes int   `json:"competition_likes"`
	Disqualified     bool  `json:"disqualified"`
	Qualified        bool  `json:"qualified"`
}

// Evaluation summarises one round evaluation.
type Evaluation struct {
	RoundID     int64         `json:"round_id"`
	LikesToPass *int          `json:"likes_to_pass"`
	Entries     int           `json:"entries"`
	Qualified   int           `json:"qualified"`
	Updated     int           `json:"updated"`
	Results     []EntryResult `json:"results"`
	// Advancing lists the participants that qualified, in entry order.
	Advancing []int64 `json:"advancing"`
}

// EvaluateRound writes qualification flags for every entry of an ended round.
// Running it again with unchanged likes writes nothing.
func (s *QualificationService) EvaluateRound(ctx context.Context, roundID int64) (*Evaluation, error) {
	round, err := s.repo.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if phase := domain.PhaseOf(*round, s.clock.Now()); phase != domain.PhaseEnded {
		return nil, domain.NewError(domain.ErrRoundNotEnded, "round is "+string(phase))
	}
	return s.evaluate(ctx, *round)
}

// EvaluateEnded evaluates every current round of the competition that has ended.
func (s *QualificationService) EvaluateEnded(ctx context.Context, competitionID int64) ([]Evaluation, error) {
	rounds, err := loadRoundSet(ctx, s.repo, competitionID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	var out []Evaluation
	for _, r := range rounds.Current {
		if domain.PhaseOf(r, now) != domain.PhaseEnded {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		ev, err := s.evaluate(ctx, r)
		if err != nil {
			return out, err
		}
		out = append(out, *ev)
	}
	return out, nil
}

func (s *QualificationService) evaluate(ctx context.Context, round domain.Round) (*Evaluation, error) {
	tallies, err := s.repo.TallyRoundLikes(ctx, round.ID)
	if err != nil {
		return nil, err
	}

	ev := &Evaluation{
		RoundID:     round.ID,
		LikesToPass: round.LikesToPass,
		Entries:     len(tallies),
		Results:     make([]EntryResult, 0, len(tallies)),
		Advancing:   []int64{},
	}
	for _, t := range tallies {
		qualified := !t.Disqualified && domain.Qualifies(t.CompetitionLikes, round.LikesToPass)
		changed, err := s.repo.SetQualification(ctx, t.Entry.ID, qualified)
		if err != nil {
			return nil, err
		}
		if changed {
			ev.Updated++
		}
		if qualified {
			ev.Qualified++
			ev.Advancing = append(ev.Advancing, t.Entry.ParticipantID)
		}
		ev.Results = append(ev.Results, EntryResult{
			EntryID:          t.Entry.ID,
			ParticipantID:    t.Entry.ParticipantID,
			PostID:           t.Entry.PostID,
			CompetitionLikes: t.CompetitionLikes,
			Disqualified:     t.Disqualified,
			Qualified:        qualified,
		})
	}

	s.log.Info("round evaluated",
		"round_id", round.ID,
		"entries", ev.Entries,
		"qualified", ev.Qualified,
		"updated", ev.Updated,
	)
	return ev, nil
}

// EvaluateEndedBetween evaluates the current rounds whose end date falls in
// [from, to). Superseded rows are skipped. A failing round is logged and does
// not stop the others; the first such error is returned with the results.
func (s *QualificationService) EvaluateEndedBetween(ctx context.Context, from, to time.Time) ([]Evaluation, error) {
	rounds, err := s.repo.ListRoundsEndedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	sets := make(map[int64]domain.RoundSet)
	var out []Evaluation
	var firstErr error
	for _, r := range rounds {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		set, ok := sets[r.CompetitionID]
		if !ok {
			if set, err = loadRoundSet(ctx, s.repo, r.CompetitionID); err != nil {
				return out, err
			}
			sets[r.CompetitionID] = set
		}
		if !set.IsCurrent(r.ID) || domain.PhaseOf(r, s.clock.Now()) != domain.PhaseEnded {
			continue
		}
		ev, err := s.evaluate(ctx, r)
		if err != nil {
			s.log.Error("round evaluation failed", "round_id", r.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, *ev)
	}
	return out, firstErr
}
