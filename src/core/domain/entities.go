package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Phase is the position of "now" relative to a round's window.
type Phase string

const (
	PhaseUpcoming Phase = "UPCOMING"
	PhaseActive   Phase = "ACTIVE"
	PhaseEnded    Phase = "ENDED"
)

// PrizePosition is the placing a prize is awarded for.
type PrizePosition string

const (
	PositionFirst         PrizePosition = "FIRST"
	PositionSecond        PrizePosition = "SECOND"
	PositionThird         PrizePosition = "THIRD"
	PositionFourth        PrizePosition = "FOURTH"
	PositionFifth         PrizePosition = "FIFTH"
	PositionParticipation PrizePosition = "PARTICIPATION"
)

// Valid reports whether p is a known position.
func (p PrizePosition) Valid() bool {
	switch p {
	case PositionFirst, PositionSecond, PositionThird, PositionFourth, PositionFifth, PositionParticipation:
		return true
	}
	return false
}

// Ranked reports whether at most one prize per competition may hold p.
func (p PrizePosition) Ranked() bool {
	return p.Valid() && p != PositionParticipation
}

// PaymentStatus represents lifecycle of a prize payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Competition is the aggregate owning rounds and prizes.
type Competition struct {
	ID           int64
	Title        string
	Slug         string
	IsActive     bool
	ShowStickers bool
	CreatedAt    time.Time
}

// Round is a time-boxed phase of a competition.
// LikesToPass nil means every entrant passes.
type Round struct {
	ID            int64
	CompetitionID int64
	Name          string
	StartDate     time.Time
	EndDate       time.Time
	LikesToPass   *int
	CreatedAt     time.Time
}

// Participant is a user enrolled in one competition.
type Participant struct {
	ID                 int64
	CompetitionID      int64
	UserID             int64
	Disqualified       bool
	DisqualifiedReason *string
	DisqualifiedAt     *time.Time
	JoinedAt           time.Time
}

// Post is the read-only projection of a user's post.
type Post struct {
	ID        int64
	AuthorID  int64
	CreatedAt time.Time
	DeletedAt *time.Time
}

// Alive reports whether the post exists and has not been deleted.
func (p *Post) Alive() bool {
	return p != nil && p.DeletedAt == nil
}

// Like is a single like on a post.
type Like struct {
	PostID    int64
	UserID    int64
	CreatedAt time.Time
}

// Submission is one entry in a participant's authoritative post history.
// Post is nil when the post no longer exists.
type Submission struct {
	ParticipantID int64
	PostID        int64
	SubmittedAt   time.Time
	Post          *Post
}

// RoundEntry ties a participant's post to one round.
type RoundEntry struct {
	ID                    int64
	ParticipantID         int64
	RoundID               int64
	PostID                int64
	QualifiedForNextRound bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Prize is an amount awarded for a position in a competition.
type Prize struct {
	ID            int64
	CompetitionID int64
	Position      PrizePosition
	Amount        decimal.Decimal
	CreatedAt     time.Time
}

// PrizePayment is one payout attempt of a prize to a participant.
// Records are append-only: a failed attempt is retried with a new record.
type PrizePayment struct {
	ID            int64
	PrizeID       int64
	ParticipantID int64
	Status        PaymentStatus
	TransactionID *string
	Notes         *string
	ProcessedAt   *time.Time
	CreatedAt     time.Time
}
