package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"postcontest/src/core/domain"
	"postcontest/src/core/ports"
)

// MemoryRepository implements ContestRepository in process memory.
// It enforces the same unique keys as the Postgres schema and is used for
// local runs (APP_STORAGE=memory) and tests. Posts and likes are seeded
// through AddPost, DeletePost and AddLike.
type MemoryRepository struct {
	mu  sync.RWMutex
	seq int64

	competitions map[int64]domain.Competition
	rounds       map[int64]domain.Round
	participants map[int64]domain.Participant
	submissions  map[int64][]domain.Submission
	posts        map[int64]domain.Post
	likes        []domain.Like
	entries      map[int64]domain.RoundEntry
	prizes       map[int64]domain.Prize
	payments     map[int64]domain.PrizePayment

	lockMu sync.Mutex
	locks  map[int64]bool
}

var _ ports.ContestRepository = (*MemoryRepository)(nil)

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		competitions: make(map[int64]domain.Competition),
		rounds:       make(map[int64]domain.Round),
		participants: make(map[int64]domain.Participant),
		submissions:  make(map[int64][]domain.Submission),
		posts:        make(map[int64]domain.Post),
		entries:      make(map[int64]domain.RoundEntry),
		prizes:       make(map[int64]domain.Prize),
		payments:     make(map[int64]domain.PrizePayment),
		locks:        make(map[int64]bool),
	}
}

func (r *MemoryRepository) Health(ctx context.Context) error {
	return ctx.Err()
}

func (r *MemoryRepository) nextID() int64 {
	r.seq++
	return r.seq
}

func nowUTC() time.Time { return time.Now().UTC() }

// Collaborator data

// AddPost stores or replaces a post.
func (r *MemoryRepository) AddPost(p domain.Post) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[p.ID] = p
}

// DeletePost soft-deletes a post the way the posts service does.
func (r *MemoryRepository) DeletePost(postID int64, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[postID]; ok {
		p.DeletedAt = &at
		r.posts[postID] = p
	}
}

// PurgePost removes a post entirely.
func (r *MemoryRepository) PurgePost(postID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, postID)
}

// AddLike records a like.
func (r *MemoryRepository) AddLike(l domain.Like) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.likes = append(r.likes, l)
}

// Competitions

func (r *MemoryRepository) CreateCompetition(ctx context.Context, c domain.Competition) (*domain.Competition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.competitions {
		if existing.Slug == c.Slug {
			return nil, domain.NewConflictError("competition slug already taken")
		}
	}
	c.ID = r.nextID()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = nowUTC()
	}
	r.competitions[c.ID] = c
	return &c, nil
}

func (r *MemoryRepository) GetCompetition(ctx context.Context, competitionID int64) (*domain.Competition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.competitions[competitionID]
	if !ok {
		return nil, domain.NewNotFoundError("competition")
	}
	return &c, nil
}

func (r *MemoryRepository) ListCompetitions(ctx context.Context) ([]domain.Competition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Competition, 0, len(r.competitions))
	for _, c := range r.competitions {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) SetCompetitionActive(ctx context.Context, competitionID int64, active bool) (*domain.Competition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.competitions[competitionID]
	if !ok {
		return nil, domain.NewNotFoundError("competition")
	}
	c.IsActive = active
	r.competitions[competitionID] = c
	return &c, nil
}

// Rounds

func (r *MemoryRepository) CreateRound(ctx context.Context, rd domain.Round) (*domain.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.competitions[rd.CompetitionID]; !ok {
		return nil, domain.NewNotFoundError("competition")
	}
	rd.ID = r.nextID()
	if rd.CreatedAt.IsZero() {
		rd.CreatedAt = nowUTC()
	}
	r.rounds[rd.ID] = rd
	return &rd, nil
}

func (r *MemoryRepository) UpdateRound(ctx context.Context, rd domain.Round) (*domain.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rounds[rd.ID]
	if !ok {
		return nil, domain.NewNotFoundError("round")
	}
	cur.Name = rd.Name
	cur.StartDate = rd.StartDate
	cur.EndDate = rd.EndDate
	cur.LikesToPass = rd.LikesToPass
	r.rounds[rd.ID] = cur
	return &cur, nil
}

// DeleteRound removes a round row, leaving its entries orphaned.
// Only the memory store exposes it; it reproduces admin edits that dropped rows.
func (r *MemoryRepository) DeleteRound(roundID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rounds, roundID)
}

func (r *MemoryRepository) GetRound(ctx context.Context, roundID int64) (*domain.Round, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rd, ok := r.rounds[roundID]
	if !ok {
		return nil, domain.NewNotFoundError("round")
	}
	return &rd, nil
}

func (r *MemoryRepository) ListRounds(ctx context.Context, competitionID int64) ([]domain.Round, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Round
	for _, rd := range r.rounds {
		if rd.CompetitionID == competitionID {
			out = append(out, rd)
		}
	}
	sortRounds(out)
	return out, nil
}

func (r *MemoryRepository) ListRoundsEndedBetween(ctx context.Context, from, to time.Time) ([]domain.Round, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Round
	for _, rd := range r.rounds {
		if !rd.EndDate.Before(from) && rd.EndDate.Before(to) {
			out = append(out, rd)
		}
	}
	sortRounds(out)
	return out, nil
}

func sortRounds(rounds []domain.Round) {
	sort.Slice(rounds, func(i, j int) bool {
		if !rounds[i].StartDate.Equal(rounds[j].StartDate) {
			return rounds[i].StartDate.Before(rounds[j].StartDate)
		}
		return rounds[i].ID < rounds[j].ID
	})
}

// Participants

func (r *MemoryRepository) EnsureParticipant(ctx context.Context, competitionID, userID int64) (*domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.competitions[competitionID]; !ok {
		return nil, domain.NewNotFoundError("competition")
	}
	for _, p := range r.participants {
		if p.CompetitionID == competitionID && p.UserID == userID {
			return &p, nil
		}
	}
	p := domain.Participant{
		ID:            r.nextID(),
		CompetitionID: competitionID,
		UserID:        userID,
		JoinedAt:      nowUTC(),
	}
	r.participants[p.ID] = p
	return &p, nil
}

func (r *MemoryRepository) GetParticipant(ctx context.Context, participantID int64) (*domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[participantID]
	if !ok {
		return nil, domain.NewNotFoundError("participant")
	}
	return &p, nil
}

func (r *MemoryRepository) ListParticipants(ctx context.Context, competitionID int64) ([]domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Participant
	for _, p := range r.participants {
		if p.CompetitionID == competitionID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) DisqualifyParticipant(ctx context.Context, participantID int64, reason string, at time.Time) (*domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[participantID]
	if !ok {
		return nil, domain.NewNotFoundError("participant")
	}
	if !p.Disqualified {
		p.Disqualified = true
		p.DisqualifiedReason = &reason
		p.DisqualifiedAt = &at
		r.participants[participantID] = p
	}
	return &p, nil
}

func (r *MemoryRepository) RecordSubmission(ctx context.Context, participantID, postID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.participants[participantID]; !ok {
		return domain.NewNotFoundError("participant")
	}
	for _, s := range r.submissions[participantID] {
		if s.PostID == postID {
			return nil
		}
	}
	r.submissions[participantID] = append(r.submissions[participantID], domain.Submission{
		ParticipantID: participantID,
		PostID:        postID,
		SubmittedAt:   at,
	})
	return nil
}

func (r *MemoryRepository) ListSubmissions(ctx context.Context, participantID int64) ([]domain.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Submission, 0, len(r.submissions[participantID]))
	for _, s := range r.submissions[participantID] {
		if p, ok := r.posts[s.PostID]; ok {
			s.Post = &p
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *MemoryRepository) GetPost(ctx context.Context, postID int64) (*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.posts[postID]
	if !ok {
		return nil, domain.NewNotFoundError("post")
	}
	return &p, nil
}

// Entries

func (r *MemoryRepository) GetEntry(ctx context.Context, participantID, roundID int64) (*domain.RoundEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.ParticipantID == participantID && e.RoundID == roundID {
			return &e, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetEntryByPost(ctx context.Context, roundID, postID int64) (*domain.RoundEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.RoundID == roundID && e.PostID == postID {
			return &e, nil
		}
	}
	return nil, nil
}

// checkEntryKeys enforces unique(participant, round) and unique(round, post),
// ignoring the entry being rewritten.
func (r *MemoryRepository) checkEntryKeys(e domain.RoundEntry) error {
	for _, other := range r.entries {
		if other.ID == e.ID || other.RoundID != e.RoundID {
			continue
		}
		if other.ParticipantID == e.ParticipantID {
			return domain.NewError(domain.ErrAlreadyExists, "participant already has an entry in this round")
		}
		if other.PostID == e.PostID {
			return domain.NewError(domain.ErrEntryConflict, "post already entered in this round")
		}
	}
	return nil
}

func (r *MemoryRepository) InsertEntry(ctx context.Context, e domain.RoundEntry) (*domain.RoundEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = 0
	if err := r.checkEntryKeys(e); err != nil {
		return nil, err
	}
	e.ID = r.nextID()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = nowUTC()
	}
	e.UpdatedAt = e.CreatedAt
	r.entries[e.ID] = e
	return &e, nil
}

func (r *MemoryRepository) UpdateEntryPost(ctx context.Context, entryID, postID int64, at time.Time) (*domain.RoundEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[entryID]
	if !ok {
		return nil, domain.NewNotFoundError("entry")
	}
	e.PostID = postID
	if err := r.checkEntryKeys(e); err != nil {
		return nil, err
	}
	e.QualifiedForNextRound = false
	e.UpdatedAt = at
	r.entries[entryID] = e
	return &e, nil
}

func (r *MemoryRepository) MoveEntry(ctx context.Context, entryID, roundID int64, at time.Time) (*domain.RoundEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[entryID]
	if !ok {
		return nil, domain.NewNotFoundError("entry")
	}
	e.RoundID = roundID
	if err := r.checkEntryKeys(e); err != nil {
		return nil, err
	}
	e.QualifiedForNextRound = false
	e.UpdatedAt = at
	r.entries[entryID] = e
	return &e, nil
}

func (r *MemoryRepository) DeleteEntry(ctx context.Context, entryID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entryID]; !ok {
		return domain.NewNotFoundError("entry")
	}
	delete(r.entries, entryID)
	return nil
}

func (r *MemoryRepository) ListEntries(ctx context.Context, roundID int64, filter ports.EntryFilter) ([]ports.EntryView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ports.EntryView
	for _, e := range r.sortedEntries() {
		if e.RoundID != roundID {
			continue
		}
		p := r.participants[e.ParticipantID]
		if filter.Qualified != nil && e.QualifiedForNextRound != *filter.Qualified {
			continue
		}
		if filter.ParticipantID != nil && e.ParticipantID != *filter.ParticipantID {
			continue
		}
		if filter.ExcludeDisqualified && p.Disqualified {
			continue
		}
		view := ports.EntryView{Entry: e, UserID: p.UserID, ParticipantDisqualified: p.Disqualified}
		if post, ok := r.posts[e.PostID]; ok {
			view.Post = &post
		}
		out = append(out, view)
	}
	return paginate(out, filter.Limit, filter.Offset), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (r *MemoryRepository) sortedEntries() []domain.RoundEntry {
	out := make([]domain.RoundEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *MemoryRepository) ListParticipantEntries(ctx context.Context, participantID int64) ([]domain.RoundEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.RoundEntry
	for _, e := range r.sortedEntries() {
		if e.ParticipantID == participantID {
			out = append(out, e)
		}
	}
	return out, nil
}

// TallyRoundLikes holds the read lock for the whole tally, so a like added
// concurrently is either counted for every entry or for none.
func (r *MemoryRepository) TallyRoundLikes(ctx context.Context, roundID int64) ([]ports.EntryTally, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rd, ok := r.rounds[roundID]
	if !ok {
		return nil, domain.NewNotFoundError("round")
	}
	var out []ports.EntryTally
	for _, e := range r.sortedEntries() {
		if e.RoundID != roundID {
			continue
		}
		count := 0
		for _, l := range r.likes {
			if l.PostID == e.PostID && rd.Contains(l.CreatedAt) {
				count++
			}
		}
		out = append(out, ports.EntryTally{
			Entry:            e,
			Disqualified:     r.participants[e.ParticipantID].Disqualified,
			CompetitionLikes: count,
		})
	}
	return out, nil
}

func (r *MemoryRepository) SetQualification(ctx context.Context, entryID int64, qualified bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[entryID]
	if !ok {
		return false, domain.NewNotFoundError("entry")
	}
	if e.QualifiedForNextRound == qualified {
		return false, nil
	}
	e.QualifiedForNextRound = qualified
	r.entries[entryID] = e
	return true, nil
}

// Prizes

func (r *MemoryRepository) CreatePrize(ctx context.Context, p domain.Prize) (*domain.Prize, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.competitions[p.CompetitionID]; !ok {
		return nil, domain.NewNotFoundError("competition")
	}
	if p.Position.Ranked() {
		for _, other := range r.prizes {
			if other.CompetitionID == p.CompetitionID && other.Position == p.Position {
				return nil, domain.NewConflictError("prize position already defined")
			}
		}
	}
	p.ID = r.nextID()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = nowUTC()
	}
	r.prizes[p.ID] = p
	return &p, nil
}

func (r *MemoryRepository) GetPrize(ctx context.Context, prizeID int64) (*domain.Prize, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prizes[prizeID]
	if !ok {
		return nil, domain.NewNotFoundError("prize")
	}
	return &p, nil
}

func (r *MemoryRepository) ListPrizes(ctx context.Context, competitionID int64) ([]domain.Prize, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Prize
	for _, p := range r.prizes {
		if p.CompetitionID == competitionID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) UpdatePrizeAmount(ctx context.Context, prizeID int64, amount decimal.Decimal) (*domain.Prize, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prizes[prizeID]
	if !ok {
		return nil, domain.NewNotFoundError("prize")
	}
	p.Amount = amount
	r.prizes[prizeID] = p
	return &p, nil
}

// Payments

func (r *MemoryRepository) CreatePayment(ctx context.Context, p domain.PrizePayment) (*domain.PrizePayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.payments {
		if other.PrizeID == p.PrizeID && other.ParticipantID == p.ParticipantID && other.Open() {
			return nil, domain.NewError(domain.ErrDuplicatePayment, "an open payment already exists for this prize and participant")
		}
	}
	p.ID = r.nextID()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = nowUTC()
	}
	r.payments[p.ID] = p
	return &p, nil
}

func (r *MemoryRepository) GetPayment(ctx context.Context, paymentID int64) (*domain.PrizePayment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[paymentID]
	if !ok {
		return nil, domain.NewNotFoundError("payment")
	}
	return &p, nil
}

func (r *MemoryRepository) ListPayments(ctx context.Context, prizeID int64) ([]domain.PrizePayment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.PrizePayment
	for _, p := range r.payments {
		if p.PrizeID == prizeID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) FindOpenPayment(ctx context.Context, prizeID, participantID int64) (*domain.PrizePayment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.PrizeID == prizeID && p.ParticipantID == participantID && p.Open() {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) TransitionPayment(ctx context.Context, paymentID int64, u ports.PaymentUpdate) (*domain.PrizePayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[paymentID]
	if !ok {
		return nil, domain.NewNotFoundError("payment")
	}
	if p.Status != u.From {
		return nil, ports.ErrStaleState
	}
	p.Status = u.To
	if u.TransactionID != nil {
		p.TransactionID = u.TransactionID
	}
	if u.Notes != nil {
		p.Notes = u.Notes
	}
	at := u.ProcessedAt
	p.ProcessedAt = &at
	r.payments[paymentID] = p
	return &p, nil
}

// Coordination

func (r *MemoryRepository) TryLockCompetition(ctx context.Context, competitionID int64) (func(), error) {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	if r.locks[competitionID] {
		return nil, domain.NewError(domain.ErrReconciliationInProgress, "another reconciliation holds this competition; retry later")
	}
	r.locks[competitionID] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			r.lockMu.Lock()
			delete(r.locks, competitionID)
			r.lockMu.Unlock()
		})
	}, nil
}
