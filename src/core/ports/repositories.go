// Package ports defines interfaces (ports) that connect core domain to infrastructure.
// These interfaces follow the ports and adapters (hexagonal) architecture pattern.
//
// Ports are defined here in the core layer, while implementations (adapters)
// live in src/infra/repo. This ensures the core has no dependency on infrastructure.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"postcontest/src/core/domain"
)

// ErrStaleState is returned by compare-and-set updates whose expected state
// no longer matches the stored row.
var ErrStaleState = errors.New("stale state")

// Repository is the base interface for all repositories.
type Repository interface {
	// Health checks if the underlying storage is reachable.
	Health(ctx context.Context) error
}

// EntryFilter narrows ListEntries.
type EntryFilter struct {
	Qualified           *bool
	ParticipantID       *int64
	ExcludeDisqualified bool
	Limit               int
	Offset              int
}

// EntryView is an entry joined with its post and participant state.
// Post is nil when the post no longer exists.
type EntryView struct {
	Entry                   domain.RoundEntry
	UserID                  int64
	ParticipantDisqualified bool
	Post                    *domain.Post
}

// EntryTally is an entry with the likes its post received inside the round window.
type EntryTally struct {
	Entry            domain.RoundEntry
	Disqualified     bool
	CompetitionLikes int
}

// PaymentUpdate describes a compare-and-set payment transition.
type PaymentUpdate struct {
	From          domain.PaymentStatus
	To            domain.PaymentStatus
	TransactionID *string
	Notes         *string
	ProcessedAt   time.Time
}

// ContestRepository is a composite repository covering all engine state.
type ContestRepository interface {
	Repository

	// Competitions
	CreateCompetition(ctx context.Context, c domain.Competition) (*domain.Competition, error)
	GetCompetition(ctx context.Context, competitionID int64) (*domain.Competition, error)
	ListCompetitions(ctx context.Context) ([]domain.Competition, error)
	SetCompetitionActive(ctx context.Context, competitionID int64, active bool) (*domain.Competition, error)

	// Rounds
	CreateRound(ctx context.Context, r domain.Round) (*domain.Round, error)
	UpdateRound(ctx context.Context, r domain.Round) (*domain.Round, error)
	GetRound(ctx context.Context, roundID int64) (*domain.Round, error)
	// ListRounds returns every round row of a competition, superseded ones
	// included, ordered by start date.
	ListRounds(ctx context.Context, competitionID int64) ([]domain.Round, error)
	// ListRoundsEndedBetween returns rounds whose end date falls in [from, to).
	ListRoundsEndedBetween(ctx context.Context, from, to time.Time) ([]domain.Round, error)

	// Participants and their submission history
	EnsureParticipant(ctx context.Context, competitionID, userID int64) (*domain.Participant, error)
	GetParticipant(ctx context.Context, participantID int64) (*domain.Participant, error)
	ListParticipants(ctx context.Context, competitionID int64) ([]domain.Participant, error)
	DisqualifyParticipant(ctx context.Context, participantID int64, reason string, at time.Time) (*domain.Participant, error)
	// RecordSubmission appends to the history; recording the same post twice is a no-op.
	RecordSubmission(ctx context.Context, participantID, postID int64, at time.Time) error
	ListSubmissions(ctx context.Context, participantID int64) ([]domain.Submission, error)

	// Posts are owned by another service; this is a read-only view.
	GetPost(ctx context.Context, postID int64) (*domain.Post, error)

	// Entries
	// GetEntry returns nil, nil when the participant has no entry in the round.
	GetEntry(ctx context.Context, participantID, roundID int64) (*domain.RoundEntry, error)
	// GetEntryByPost returns nil, nil when no entry in the round references the post.
	GetEntryByPost(ctx context.Context, roundID, postID int64) (*domain.RoundEntry, error)
	// InsertEntry returns domain.ErrAlreadyExists when the participant already
	// has an entry in the round and domain.ErrEntryConflict when the post is
	// already entered in the round.
	InsertEntry(ctx context.Context, e domain.RoundEntry) (*domain.RoundEntry, error)
	// UpdateEntryPost replaces the post and clears the qualification flag.
	UpdateEntryPost(ctx context.Context, entryID, postID int64, at time.Time) (*domain.RoundEntry, error)
	// MoveEntry re-points the entry at another round and clears the
	// qualification flag.
	MoveEntry(ctx context.Context, entryID, roundID int64, at time.Time) (*domain.RoundEntry, error)
	DeleteEntry(ctx context.Context, entryID int64) error
	ListEntries(ctx context.Context, roundID int64, filter EntryFilter) ([]EntryView, error)
	ListParticipantEntries(ctx context.Context, participantID int64) ([]domain.RoundEntry, error)

	// Qualification
	// TallyRoundLikes reads every entry of the round with its in-window likes
	// in one consistent read.
	TallyRoundLikes(ctx context.Context, roundID int64) ([]EntryTally, error)
	// SetQualification reports whether the stored flag changed.
	SetQualification(ctx context.Context, entryID int64, qualified bool) (bool, error)

	// Prizes
	CreatePrize(ctx context.Context, p domain.Prize) (*domain.Prize, error)
	GetPrize(ctx context.Context, prizeID int64) (*domain.Prize, error)
	ListPrizes(ctx context.Context, competitionID int64) ([]domain.Prize, error)
	UpdatePrizeAmount(ctx context.Context, prizeID int64, amount decimal.Decimal) (*domain.Prize, error)

	// Payments
	// CreatePayment returns domain.ErrDuplicatePayment when an open payment
	// already exists for the prize and participant.
	CreatePayment(ctx context.Context, p domain.PrizePayment) (*domain.PrizePayment, error)
	GetPayment(ctx context.Context, paymentID int64) (*domain.PrizePayment, error)
	ListPayments(ctx context.Context, prizeID int64) ([]domain.PrizePayment, error)
	// FindOpenPayment returns nil, nil when every payment for the pair failed.
	FindOpenPayment(ctx context.Context, prizeID, participantID int64) (*domain.PrizePayment, error)
	// TransitionPayment applies the update only while the stored status equals
	// u.From; otherwise it returns ErrStaleState.
	TransitionPayment(ctx context.Context, paymentID int64, u PaymentUpdate) (*domain.PrizePayment, error)

	// Coordination
	// TryLockCompetition takes the competition's reconciliation lock without
	// blocking. It returns domain.ErrReconciliationInProgress when held elsewhere.
	TryLockCompetition(ctx context.Context, competitionID int64) (release func(), err error)
}
