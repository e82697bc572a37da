package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"postcontest/src/core/domain"
	"postcontest/src/core/ports"
)

// Reconciliation operation names, used in reports and logs.
const (
	OpRebuild = "rebuild"
	OpSync    = "sync"
	OpFixAll  = "fix"
)

// Report counts the writes of one reconciliation run.
// All counters are zero when nothing needed repair.
type Report struct {
	Operation     string `json:"operation"`
	CompetitionID int64  `json:"competition_id"`
	Participants  int    `json:"participants"`
	Created       int    `json:"created"`
	Updated       int    `json:"updated"`
	Removed       int    `json:"removed"`
	// Backfilled counts entries whose post was missing from the submission history.
	Backfilled  int                         `json:"backfilled"`
	Interrupted bool                        `json:"interrupted"`
	Failures    []domain.ParticipantFailure `json:"-"`
}

// Changes is the total number of writes the run made.
func (r *Report) Changes() int {
	return r.Created + r.Updated + r.Removed + r.Backfilled
}

func (r *Report) add(c repairCounts) {
	r.Created += c.created
	r.Updated += c.updated
	r.Removed += c.removed
	r.Backfilled += c.backfilled
}

// FixAllReport bundles the three steps of FixAllEntries.
type FixAllReport struct {
	Sync        *Report      `json:"sync"`
	Rebuild     *Report      `json:"rebuild"`
	Evaluations []Evaluation `json:"evaluations"`
}

// Changes is the total number of writes across every step.
func (r *FixAllReport) Changes() int {
	n := 0
	if r.Sync != nil {
		n += r.Sync.Changes()
	}
	if r.Rebuild != nil {
		n += r.Rebuild.Changes()
	}
	for _, ev := range r.Evaluations {
		n += ev.Updated
	}
	return n
}

type repairCounts struct {
	created, updated, removed, backfilled int
}

// ReconcileService re-derives round entries from the submission history and
// the competition's current round list. Every operation is idempotent and
// holds the competition's reconciliation lock for its duration.
type ReconcileService struct {
	repo          ports.ContestRepository
	qualification *QualificationService
	clock         ports.Clock
	log           *slog.Logger
}

func NewReconcileService(repo ports.ContestRepository, qualification *QualificationService, clock ports.Clock, log *slog.Logger) *ReconcileService {
	return &ReconcileService{repo: repo, qualification: qualification, clock: clock, log: log}
}

// RebuildEntries upserts one entry per participant and round from the
// participant's submitted posts and removes entries whose post was deleted.
func (s *ReconcileService) RebuildEntries(ctx context.Context, competitionID int64) (*Report, error) {
	release, err := s.lock(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.rebuild(ctx, competitionID)
}

// SyncRoundEntries moves entries off superseded or deleted rounds onto the
// current round they belong to.
func (s *ReconcileService) SyncRoundEntries(ctx context.Context, competitionID int64) (*Report, error) {
	release, err := s.lock(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.sync(ctx, competitionID)
}

// FixAllEntries runs sync, then rebuild, then re-evaluates every ended round,
// under a single lock.
func (s *ReconcileService) FixAllEntries(ctx context.Context, competitionID int64) (*FixAllReport, error) {
	release, err := s.lock(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	defer release()

	out := &FixAllReport{}
	var failures []domain.ParticipantFailure

	out.Sync, err = s.sync(ctx, competitionID)
	if err != nil && !isPartialFailure(err) {
		return out, err
	}
	if out.Sync != nil {
		failures = append(failures, out.Sync.Failures...)
	}

	out.Rebuild, err = s.rebuild(ctx, competitionID)
	if err != nil && !isPartialFailure(err) {
		return out, err
	}
	if out.Rebuild != nil {
		failures = append(failures, out.Rebuild.Failures...)
	}

	var partial error
	if len(failures) > 0 {
		partial = &domain.PartialFailureError{Operation: OpFixAll, Failures: failures}
	}

	out.Evaluations, err = s.qualification.EvaluateEnded(ctx, competitionID)
	if err != nil {
		return out, errors.Join(err, partial)
	}

	s.log.Info("fix-all finished",
		"competition_id", competitionID,
		"changes", out.Changes(),
		"failures", len(failures),
	)
	return out, partial
}

func isPartialFailure(err error) bool {
	return errors.Is(err, domain.ErrReconciliationPartialFailure)
}

func (s *ReconcileService) lock(ctx context.Context, competitionID int64) (func(), error) {
	if _, err := s.repo.GetCompetition(ctx, competitionID); err != nil {
		return nil, err
	}
	return s.repo.TryLockCompetition(ctx, competitionID)
}

type participantRepair func(ctx context.Context, rounds domain.RoundSet, p domain.Participant) (repairCounts, error)

// run applies repair to every participant, checkpointing between them.
// A participant whose repair fails is logged and skipped.
func (s *ReconcileService) run(ctx context.Context, op string, competitionID int64, repair participantRepair) (*Report, error) {
	report := &Report{Operation: op, CompetitionID: competitionID}

	rounds, err := loadRoundSet(ctx, s.repo, competitionID)
	if err != nil {
		return report, err
	}
	participants, err := s.repo.ListParticipants(ctx, competitionID)
	if err != nil {
		return report, err
	}

	for _, p := range participants {
		if err := ctx.Err(); err != nil {
			report.Interrupted = true
			s.log.Warn("reconciliation interrupted",
				"operation", op,
				"competition_id", competitionID,
				"participants_done", report.Participants,
				"error", err,
			)
			return report, err
		}
		counts, err := repair(ctx, rounds, p)
		report.add(counts)
		if err != nil {
			s.log.Error("participant repair failed",
				"operation", op,
				"competition_id", competitionID,
				"participant_id", p.ID,
				"error", err,
			)
			report.Failures = append(report.Failures, domain.ParticipantFailure{ParticipantID: p.ID, Err: err})
			continue
		}
		report.Participants++
	}

	s.log.Info("reconciliation finished",
		"operation", op,
		"competition_id", competitionID,
		"participants", report.Participants,
		"created", report.Created,
		"updated", report.Updated,
		"removed", report.Removed,
		"backfilled", report.Backfilled,
		"failures", len(report.Failures),
	)
	if len(report.Failures) > 0 {
		return report, &domain.PartialFailureError{Operation: op, Failures: report.Failures}
	}
	return report, nil
}

func (s *ReconcileService) rebuild(ctx context.Context, competitionID int64) (*Report, error) {
	return s.run(ctx, OpRebuild, competitionID, s.rebuildParticipant)
}

func (s *ReconcileService) sync(ctx context.Context, competitionID int64) (*Report, error) {
	return s.run(ctx, OpSync, competitionID, s.syncParticipant)
}

// postIndex resolves posts from the submission history, falling back to the
// posts view for entries the history does not know about.
type postIndex struct {
	repo  ports.ContestRepository
	posts map[int64]*domain.Post
}

func (ix *postIndex) get(ctx context.Context, postID int64) (*domain.Post, error) {
	if p, ok := ix.posts[postID]; ok {
		return p, nil
	}
	p, err := ix.repo.GetPost(ctx, postID)
	if err != nil {
		if !domain.IsNotFound(err) {
			return nil, err
		}
		p = nil
	}
	ix.posts[postID] = p
	return p, nil
}

func (s *ReconcileService) rebuildParticipant(ctx context.Context, rounds domain.RoundSet, p domain.Participant) (repairCounts, error) {
	var c repairCounts

	subs, err := s.repo.ListSubmissions(ctx, p.ID)
	if err != nil {
		return c, err
	}
	entries, err := s.repo.ListParticipantEntries(ctx, p.ID)
	if err != nil {
		return c, err
	}

	// A post already entered in some current round is placed, wherever its
	// creation time falls; it is never a candidate for another round.
	placed := make(map[int64]bool, len(entries))
	for _, e := range entries {
		if rounds.IsCurrent(e.RoundID) {
			placed[e.PostID] = true
		}
	}

	ix := &postIndex{repo: s.repo, posts: make(map[int64]*domain.Post, len(subs))}
	inHistory := make(map[int64]bool, len(subs))
	candidates := make(map[int64][]domain.Post)
	for _, sub := range subs {
		inHistory[sub.PostID] = true
		ix.posts[sub.PostID] = sub.Post
		if !sub.Post.Alive() || placed[sub.PostID] {
			continue
		}
		r, ok := rounds.RoundFor(sub.Post.CreatedAt)
		if !ok {
			continue
		}
		candidates[r.ID] = append(candidates[r.ID], *sub.Post)
	}
	for id := range candidates {
		newestFirst(candidates[id])
	}

	now := s.clock.Now()
	held := make(map[int64]bool)
	for _, e := range entries {
		if !rounds.IsCurrent(e.RoundID) {
			continue
		}
		post, err := ix.get(ctx, e.PostID)
		if err != nil {
			return c, err
		}
		if post.Alive() {
			held[e.RoundID] = true
			if !inHistory[e.PostID] {
				if err := s.repo.RecordSubmission(ctx, p.ID, e.PostID, e.CreatedAt); err != nil {
					return c, err
				}
				inHistory[e.PostID] = true
				c.backfilled++
			}
			continue
		}

		repl, err := s.pickCandidate(ctx, candidates[e.RoundID], e.RoundID, p.ID)
		if err != nil {
			return c, err
		}
		if repl != nil {
			if _, err := s.repo.UpdateEntryPost(ctx, e.ID, repl.ID, now); err != nil {
				return c, err
			}
			c.updated++
			held[e.RoundID] = true
			dropCandidate(candidates, repl.ID)
			continue
		}
		if err := s.repo.DeleteEntry(ctx, e.ID); err != nil && !domain.IsNotFound(err) {
			return c, err
		}
		c.removed++
	}

	for _, r := range rounds.Current {
		if held[r.ID] || len(candidates[r.ID]) == 0 {
			continue
		}
		pick, err := s.pickCandidate(ctx, candidates[r.ID], r.ID, p.ID)
		if err != nil {
			return c, err
		}
		if pick == nil {
			continue
		}
		_, err = s.repo.InsertEntry(ctx, domain.RoundEntry{
			ParticipantID: p.ID,
			RoundID:       r.ID,
			PostID:        pick.ID,
			CreatedAt:     now,
		})
		if errors.Is(err, domain.ErrAlreadyExists) {
			// A submission landed while we were reading; it wins.
			continue
		}
		if err != nil {
			return c, err
		}
		c.created++
		dropCandidate(candidates, pick.ID)
	}
	return c, nil
}

// pickCandidate returns the newest post not already entered in the round by
// another participant. It fails with ErrEntryConflict when every candidate is
// taken, and returns nil when there are no candidates.
func (s *ReconcileService) pickCandidate(ctx context.Context, posts []domain.Post, roundID, participantID int64) (*domain.Post, error) {
	for i := range posts {
		other, err := s.repo.GetEntryByPost(ctx, roundID, posts[i].ID)
		if err != nil {
			return nil, err
		}
		if other == nil || other.ParticipantID == participantID {
			return &posts[i], nil
		}
	}
	if len(posts) > 0 {
		return nil, domain.NewError(domain.ErrEntryConflict, "every candidate post is entered by another participant")
	}
	return nil, nil
}

// dropCandidate removes a post that was just placed from every round's
// candidate list.
func dropCandidate(candidates map[int64][]domain.Post, postID int64) {
	for id, posts := range candidates {
		kept := posts[:0]
		for _, p := range posts {
			if p.ID != postID {
				kept = append(kept, p)
			}
		}
		candidates[id] = kept
	}
}

func newestFirst(posts []domain.Post) {
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
}

func (s *ReconcileService) syncParticipant(ctx context.Context, rounds domain.RoundSet, p domain.Participant) (repairCounts, error) {
	var c repairCounts

	entries, err := s.repo.ListParticipantEntries(ctx, p.ID)
	if err != nil {
		return c, err
	}
	held := make(map[int64]bool, len(entries))
	for _, e := range entries {
		if rounds.IsCurrent(e.RoundID) {
			held[e.RoundID] = true
		}
	}

	ix := &postIndex{repo: s.repo, posts: make(map[int64]*domain.Post)}
	now := s.clock.Now()
	for _, e := range entries {
		if rounds.IsCurrent(e.RoundID) {
			continue
		}
		target, ok := rounds.Superseded[e.RoundID]
		if !ok {
			// The round row is gone; place the entry by when its post was made.
			at := e.CreatedAt
			post, err := ix.get(ctx, e.PostID)
			if err != nil {
				return c, err
			}
			if post != nil {
				at = post.CreatedAt
			}
			target, ok = rounds.RoundFor(at)
			if !ok {
				continue
			}
		}

		if held[target.ID] {
			if err := s.repo.DeleteEntry(ctx, e.ID); err != nil && !domain.IsNotFound(err) {
				return c, err
			}
			c.removed++
			continue
		}
		if _, err := s.repo.MoveEntry(ctx, e.ID, target.ID, now); err != nil {
			return c, err
		}
		held[target.ID] = true
		c.updated++
	}
	return c, nil
}
