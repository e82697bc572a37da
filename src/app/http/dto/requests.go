package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"postcontest/src/core/domain"
	"postcontest/src/core/ports"
	"postcontest/src/core/usecase"
)

// CreateCompetitionRequest is the payload for POST /v1/admin/competitions.
type CreateCompetitionRequest struct {
	Title        string `json:"title" binding:"required"`
	Slug         string `json:"slug"`
	ShowStickers bool   `json:"show_stickers"`
}

func (r *CreateCompetitionRequest) ToInput() usecase.NewCompetition {
	return usecase.NewCompetition{Title: r.Title, Slug: r.Slug, ShowStickers: r.ShowStickers}
}

// CreateRoundRequest is the payload for POST /v1/admin/competitions/:id/rounds.
type CreateRoundRequest struct {
	Name        string    `json:"name" binding:"required"`
	StartDate   time.Time `json:"start_date" binding:"required"`
	EndDate     time.Time `json:"end_date" binding:"required"`
	LikesToPass *int      `json:"likes_to_pass"`
}

func (r *CreateRoundRequest) ToDomain(competitionID int64) domain.Round {
	return domain.Round{
		CompetitionID: competitionID,
		Name:          r.Name,
		StartDate:     r.StartDate.UTC(),
		EndDate:       r.EndDate.UTC(),
		LikesToPass:   r.LikesToPass,
	}
}

// UpdateRoundRequest is the payload for PATCH /v1/admin/rounds/:round_id.
// Omitted fields are left unchanged.
type UpdateRoundRequest struct {
	Name             *string    `json:"name"`
	StartDate        *time.Time `json:"start_date"`
	EndDate          *time.Time `json:"end_date"`
	LikesToPass      *int       `json:"likes_to_pass"`
	ClearLikesToPass bool       `json:"clear_likes_to_pass"`
}

func (r *UpdateRoundRequest) ToPatch() usecase.RoundPatch {
	return usecase.RoundPatch{
		Name:             r.Name,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		LikesToPass:      r.LikesToPass,
		ClearLikesToPass: r.ClearLikesToPass,
	}
}

// JoinCompetitionRequest is the payload for POST /v1/competitions/:id/participants.
type JoinCompetitionRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// SubmitEntryRequest is the payload for POST /v1/rounds/:round_id/entries.
type SubmitEntryRequest struct {
	ParticipantID int64 `json:"participant_id" binding:"required"`
	PostID        int64 `json:"post_id" binding:"required"`
}

// ListEntriesQuery holds the query string of GET /v1/rounds/:round_id/entries.
type ListEntriesQuery struct {
	Qualified           *bool  `form:"qualified"`
	ParticipantID       *int64 `form:"participant_id"`
	ExcludeDisqualified bool   `form:"exclude_disqualified"`
	Limit               int    `form:"limit"`
	Offset              int    `form:"offset"`
}

func (q *ListEntriesQuery) ToFilter() ports.EntryFilter {
	return ports.EntryFilter{
		Qualified:           q.Qualified,
		ParticipantID:       q.ParticipantID,
		ExcludeDisqualified: q.ExcludeDisqualified,
		Limit:               q.Limit,
		Offset:              q.Offset,
	}
}

// DisqualifyRequest is the payload for POST /v1/admin/participants/:participant_id/disqualify.
type DisqualifyRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CreatePrizeRequest is the payload for POST /v1/admin/competitions/:id/prizes.
// Amount accepts a JSON string or number.
type CreatePrizeRequest struct {
	Position domain.PrizePosition `json:"position" binding:"required"`
	Amount   decimal.Decimal      `json:"amount"`
}

// UpdatePrizeRequest is the payload for PATCH /v1/admin/prizes/:prize_id.
type UpdatePrizeRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Correction bool            `json:"correction"`
}

// CreatePaymentRequest is the payload for POST /v1/admin/prizes/:prize_id/payments.
type CreatePaymentRequest struct {
	ParticipantID int64 `json:"participant_id" binding:"required"`
}

// CompletePaymentRequest is the payload for POST /v1/admin/payments/:payment_id/complete.
type CompletePaymentRequest struct {
	TransactionID string `json:"transaction_id"`
}

// FailPaymentRequest is the payload for POST /v1/admin/payments/:payment_id/fail.
type FailPaymentRequest struct {
	Notes string `json:"notes"`
}
