package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"postcontest/src/core/domain"
	"postcontest/src/core/ports"
)

// EntryService owns round entries: submission, listing and disqualification.
type EntryService struct {
	repo   ports.ContestRepository
	clock  ports.Clock
	policy domain.EntryPolicy
	log    *slog.Logger
}

func NewEntryService(repo ports.ContestRepository, clock ports.Clock, policy domain.EntryPolicy, log *slog.Logger) *EntryService {
	if policy.Resubmit == "" {
		policy.Resubmit = domain.ResubmitUpdate
	}
	return &EntryService{repo: repo, clock: clock, policy: policy, log: log}
}

// Policy returns the entry policy snapshot the service runs with.
func (s *EntryService) Policy() domain.EntryPolicy {
	return s.policy
}

// SubmitResult describes what a submission did to the store.
type SubmitResult struct {
	Entry domain.RoundEntry
	// Created is true when a new entry row was inserted.
	Created bool
	// Replaced is true when an existing entry's post was swapped in place.
	Replaced bool
}

// Submit enters a post into a round for a participant.
func (s *EntryService) Submit(ctx context.Context, participantID, roundID, postID int64) (*SubmitResult, error) {
	if postID <= 0 {
		return nil, domain.NewValidationError("post_id", "post id is required")
	}
	round, err := s.repo.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	participant, err := s.repo.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if participant.CompetitionID != round.CompetitionID {
		return nil, domain.NewValidationError("participant_id", "participant is not enrolled in this round's competition")
	}
	if participant.Disqualified {
		return nil, domain.NewError(domain.ErrParticipantDisqualified, "participant is disqualified from this competition")
	}

	rounds, err := loadRoundSet(ctx, s.repo, round.CompetitionID)
	if err != nil {
		return nil, err
	}
	if !rounds.IsCurrent(round.ID) {
		return nil, domain.NewError(domain.ErrRoundNotActive, "round has been superseded by a newer round")
	}
	now := s.clock.Now()
	if phase := domain.PhaseOf(*round, now); phase != domain.PhaseActive {
		return nil, domain.NewError(domain.ErrRoundNotActive, "round is "+strings.ToLower(string(phase)))
	}
	if s.policy.RequirePriorQualification {
		if err := s.checkPriorQualification(ctx, rounds, participantID, round.ID); err != nil {
			return nil, err
		}
	}

	post, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.Alive() {
		return nil, domain.NewNotFoundError("post")
	}
	if post.AuthorID != participant.UserID {
		return nil, domain.NewForbiddenError("post does not belong to the participant")
	}

	byPost, err := s.repo.GetEntryByPost(ctx, round.ID, postID)
	if err != nil {
		return nil, err
	}
	if byPost != nil {
		if byPost.ParticipantID != participantID {
			return nil, domain.NewError(domain.ErrEntryConflict, "post is already entered in this round by another participant")
		}
		return s.recorded(ctx, &SubmitResult{Entry: *byPost}, now)
	}

	existing, err := s.repo.GetEntry(ctx, participantID, round.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		created, err := s.repo.InsertEntry(ctx, domain.RoundEntry{
			ParticipantID: participantID,
			RoundID:       round.ID,
			PostID:        postID,
			CreatedAt:     now,
		})
		if err == nil {
			s.log.Info("entry created",
				"entry_id", created.ID,
				"participant_id", participantID,
				"round_id", round.ID,
				"post_id", postID,
			)
			return s.recorded(ctx, &SubmitResult{Entry: *created, Created: true}, now)
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
		// Lost the insert race on (participant, round): resolve as a resubmission.
		existing, err = s.repo.GetEntry(ctx, participantID, round.ID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, domain.NewConflictError("concurrent submission; retry")
		}
	}
	res, err := s.resubmit(ctx, *existing, postID)
	if err != nil {
		return nil, err
	}
	return s.recorded(ctx, res, now)
}

// recorded appends an accepted post to the participant's submission history.
// Rejected submissions never reach the history, which rebuild draws
// replacements from.
func (s *EntryService) recorded(ctx context.Context, res *SubmitResult, at time.Time) (*SubmitResult, error) {
	if err := s.repo.RecordSubmission(ctx, res.Entry.ParticipantID, res.Entry.PostID, at); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *EntryService) resubmit(ctx context.Context, existing domain.RoundEntry, postID int64) (*SubmitResult, error) {
	if existing.PostID == postID {
		return &SubmitResult{Entry: existing}, nil
	}
	if s.policy.Resubmit == domain.ResubmitReject {
		return nil, domain.NewError(domain.ErrEntryConflict, "participant already has an entry in this round")
	}
	updated, err := s.repo.UpdateEntryPost(ctx, existing.ID, postID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	s.log.Info("entry post replaced",
		"entry_id", updated.ID,
		"participant_id", updated.ParticipantID,
		"round_id", updated.RoundID,
		"old_post_id", existing.PostID,
		"post_id", postID,
	)
	return &SubmitResult{Entry: *updated, Replaced: true}, nil
}

func (s *EntryService) checkPriorQualification(ctx context.Context, rounds domain.RoundSet, participantID, roundID int64) error {
	prev, ok := rounds.Previous(roundID)
	if !ok {
		return nil
	}
	entry, err := s.repo.GetEntry(ctx, participantID, prev.ID)
	if err != nil {
		return err
	}
	if entry == nil || !entry.QualifiedForNextRound {
		return domain.NewError(domain.ErrNotQualified, "participant did not qualify in round "+prev.Name)
	}
	return nil
}

// List returns a round's entries joined with posts and participant state.
func (s *EntryService) List(ctx context.Context, roundID int64, filter ports.EntryFilter) ([]ports.EntryView, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, domain.NewValidationError("limit", "limit and offset cannot be negative")
	}
	if _, err := s.repo.GetRound(ctx, roundID); err != nil {
		return nil, err
	}
	return s.repo.ListEntries(ctx, roundID, filter)
}

// DisqualifyParticipant bans a participant from the competition. Existing
// entries are kept for the record; repeat calls keep the first reason.
func (s *EntryService) DisqualifyParticipant(ctx context.Context, participantID int64, reason string) (*domain.Participant, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewValidationError("reason", "reason is required")
	}
	p, err := s.repo.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if p.Disqualified {
		return p, nil
	}
	p, err = s.repo.DisqualifyParticipant(ctx, participantID, reason, s.clock.Now())
	if err != nil {
		return nil, err
	}
	s.log.Warn("participant disqualified",
		"participant_id", participantID,
		"competition_id", p.CompetitionID,
		"reason", reason,
	)
	return p, nil
}
