package dto

import (
	"time"

	"postcontest/src/core/domain"
	"postcontest/src/core/ports"
	"postcontest/src/core/usecase"
)

type CompetitionResponse struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	IsActive     bool      `json:"is_active"`
	ShowStickers bool      `json:"show_stickers"`
	CreatedAt    time.Time `json:"created_at"`
}

func CompetitionFromDomain(c *domain.Competition) CompetitionResponse {
	return CompetitionResponse{
		ID:           c.ID,
		Title:        c.Title,
		Slug:         c.Slug,
		IsActive:     c.IsActive,
		ShowStickers: c.ShowStickers,
		CreatedAt:    c.CreatedAt,
	}
}

// RoundResponse includes the phase at response time.
type RoundResponse struct {
	ID            int64        `json:"id"`
	CompetitionID int64        `json:"competition_id"`
	Name          string       `json:"name"`
	StartDate     time.Time    `json:"start_date"`
	EndDate       time.Time    `json:"end_date"`
	LikesToPass   *int         `json:"likes_to_pass"`
	Phase         domain.Phase `json:"phase"`
	CreatedAt     time.Time    `json:"created_at"`
}

func RoundFromDomain(r *domain.Round, now time.Time) RoundResponse {
	return RoundResponse{
		ID:            r.ID,
		CompetitionID: r.CompetitionID,
		Name:          r.Name,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		LikesToPass:   r.LikesToPass,
		Phase:         domain.PhaseOf(*r, now),
		CreatedAt:     r.CreatedAt,
	}
}

func RoundsFromDomain(rounds []domain.Round, now time.Time) []RoundResponse {
	out := make([]RoundResponse, 0, len(rounds))
	for i := range rounds {
		out = append(out, RoundFromDomain(&rounds[i], now))
	}
	return out
}

type ParticipantResponse struct {
	ID                 int64      `json:"id"`
	CompetitionID      int64      `json:"competition_id"`
	UserID             int64      `json:"user_id"`
	Disqualified       bool       `json:"disqualified"`
	DisqualifiedReason *string    `json:"disqualified_reason,omitempty"`
	DisqualifiedAt     *time.Time `json:"disqualified_at,omitempty"`
	JoinedAt           time.Time  `json:"joined_at"`
}

func ParticipantFromDomain(p *domain.Participant) ParticipantResponse {
	return ParticipantResponse{
		ID:                 p.ID,
		CompetitionID:      p.CompetitionID,
		UserID:             p.UserID,
		Disqualified:       p.Disqualified,
		DisqualifiedReason: p.DisqualifiedReason,
		DisqualifiedAt:     p.DisqualifiedAt,
		JoinedAt:           p.JoinedAt,
	}
}

type PostResponse struct {
	ID        int64      `json:"id"`
	AuthorID  int64      `json:"author_id"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type EntryResponse struct {
	ID                      int64         `json:"id"`
	ParticipantID           int64         `json:"participant_id"`
	RoundID                 int64         `json:"round_id"`
	PostID                  int64         `json:"post_id"`
	QualifiedForNextRound   bool          `json:"qualified_for_next_round"`
	CreatedAt               time.Time     `json:"created_at"`
	UpdatedAt               time.Time     `json:"updated_at"`
	UserID                  int64         `json:"user_id,omitempty"`
	ParticipantDisqualified bool          `json:"participant_disqualified"`
	Post                    *PostResponse `json:"post,omitempty"`
}

func EntryFromDomain(e *domain.RoundEntry) EntryResponse {
	return EntryResponse{
		ID:                    e.ID,
		ParticipantID:         e.ParticipantID,
		RoundID:               e.RoundID,
		PostID:                e.PostID,
		QualifiedForNextRound: e.QualifiedForNextRound,
		CreatedAt:             e.CreatedAt,
		UpdatedAt:             e.UpdatedAt,
	}
}

func EntryFromView(v *ports.EntryView) EntryResponse {
	out := EntryFromDomain(&v.Entry)
	out.UserID = v.UserID
	out.ParticipantDisqualified = v.ParticipantDisqualified
	if v.Post != nil {
		out.Post = &PostResponse{
			ID:        v.Post.ID,
			AuthorID:  v.Post.AuthorID,
			CreatedAt: v.Post.CreatedAt,
			DeletedAt: v.Post.DeletedAt,
		}
	}
	return out
}

func EntriesFromViews(views []ports.EntryView) []EntryResponse {
	out := make([]EntryResponse, 0, len(views))
	for i := range views {
		out = append(out, EntryFromView(&views[i]))
	}
	return out
}

// SubmitEntryResponse reports whether the submission created or replaced an entry.
type SubmitEntryResponse struct {
	Entry    EntryResponse `json:"entry"`
	Created  bool          `json:"created"`
	Replaced bool          `json:"replaced"`
}

func SubmitFromResult(r *usecase.SubmitResult) SubmitEntryResponse {
	return SubmitEntryResponse{
		Entry:    EntryFromDomain(&r.Entry),
		Created:  r.Created,
		Replaced: r.Replaced,
	}
}

// PrizeResponse renders Amount as a decimal string.
type PrizeResponse struct {
	ID            int64                `json:"id"`
	CompetitionID int64                `json:"competition_id"`
	Position      domain.PrizePosition `json:"position"`
	Amount        string               `json:"amount"`
	CreatedAt     time.Time            `json:"created_at"`
}

func PrizeFromDomain(p *domain.Prize) PrizeResponse {
	return PrizeResponse{
		ID:            p.ID,
		CompetitionID: p.CompetitionID,
		Position:      p.Position,
		Amount:        p.Amount.StringFixed(2),
		CreatedAt:     p.CreatedAt,
	}
}

func PrizesFromDomain(prizes []domain.Prize) []PrizeResponse {
	out := make([]PrizeResponse, 0, len(prizes))
	for i := range prizes {
		out = append(out, PrizeFromDomain(&prizes[i]))
	}
	return out
}

type PaymentResponse struct {
	ID            int64                `json:"id"`
	PrizeID       int64                `json:"prize_id"`
	ParticipantID int64                `json:"participant_id"`
	Status        domain.PaymentStatus `json:"status"`
	TransactionID *string              `json:"transaction_id,omitempty"`
	Notes         *string              `json:"notes,omitempty"`
	ProcessedAt   *time.Time           `json:"processed_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

func PaymentFromDomain(p *domain.PrizePayment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		PrizeID:       p.PrizeID,
		ParticipantID: p.ParticipantID,
		Status:        p.Status,
		TransactionID: p.TransactionID,
		Notes:         p.Notes,
		ProcessedAt:   p.ProcessedAt,
		CreatedAt:     p.CreatedAt,
	}
}

func PaymentsFromDomain(payments []domain.PrizePayment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(payments))
	for i := range payments {
		out = append(out, PaymentFromDomain(&payments[i]))
	}
	return out
}

type FailureResponse struct {
	ParticipantID int64  `json:"participant_id"`
	Code          string `json:"code"`
	Error         string `json:"error"`
}

func FailuresFromDomain(failures []domain.ParticipantFailure) []FailureResponse {
	out := make([]FailureResponse, 0, len(failures))
	for _, f := range failures {
		out = append(out, FailureResponse{
			ParticipantID: f.ParticipantID,
			Code:          domain.KindOf(f.Err),
			Error:         f.Err.Error(),
		})
	}
	return out
}

// ReportResponse is a reconciliation report with its skipped participants.
type ReportResponse struct {
	*usecase.Report
	Changes  int               `json:"changes"`
	Failures []FailureResponse `json:"failures"`
}

func ReportFromDomain(r *usecase.Report) *ReportResponse {
	if r == nil {
		return nil
	}
	return &ReportResponse{Report: r, Changes: r.Changes(), Failures: FailuresFromDomain(r.Failures)}
}

type FixAllResponse struct {
	Sync        *ReportResponse      `json:"sync"`
	Rebuild     *ReportResponse      `json:"rebuild"`
	Evaluations []usecase.Evaluation `json:"evaluations"`
	Changes     int                  `json:"changes"`
}

func FixAllFromDomain(r *usecase.FixAllReport) FixAllResponse {
	evals := r.Evaluations
	if evals == nil {
		evals = []usecase.Evaluation{}
	}
	return FixAllResponse{
		Sync:        ReportFromDomain(r.Sync),
		Rebuild:     ReportFromDomain(r.Rebuild),
		Evaluations: evals,
		Changes:     r.Changes(),
	}
}
