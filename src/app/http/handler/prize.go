package handler

import (
	"github.com/gin-gonic/gin"

	"postcontest/src/app/http/dto"
	"postcontest/src/app/http/response"
	"postcontest/src/core/usecase"
)

// PrizeHandler serves prizes and their payments.
type PrizeHandler struct {
	competitions *usecase.CompetitionService
	payments     *usecase.PaymentService
}

func NewPrizeHandler(competitions *usecase.CompetitionService, payments *usecase.PaymentService) *PrizeHandler {
	return &PrizeHandler{competitions: competitions, payments: payments}
}

// Create defines a prize.
// POST /v1/admin/competitions/:id/prizes
func (h *PrizeHandler) Create(c *gin.Context) {
	id, ok := pathID(c, "id", "competition")
	if !ok {
		return
	}
	var req dto.CreatePrizeRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.competitions.CreatePrize(c.Request.Context(), id, req.Position, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, dto.PrizeFromDomain(p))
}

// List returns a competition's prizes.
// GET /v1/admin/competitions/:id/prizes
func (h *PrizeHandler) List(c *gin.Context) {
	id, ok := pathID(c, "id", "competition")
	if !ok {
		return
	}
	prizes, err := h.competitions.Prizes(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, dto.PrizesFromDomain(prizes))
}

// Update changes a prize amount.
// PATCH /v1/admin/prizes/:prize_id
func (h *PrizeHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "prize_id", "prize")
	if !ok {
		return
	}
	var req dto.UpdatePrizeRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.competitions.UpdatePrizeAmount(c.Request.Context(), id, req.Amount, req.Correction)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, dto.PrizeFromDomain(p))
}

// Payments returns a prize's payment history.
// GET /v1/admin/prizes/:prize_id/payments
func (h *PrizeHandler) Payments(c *gin.Context) {
	id, ok := pathID(c, "prize_id", "prize")
	if !ok {
		return
	}
	list, err := h.payments.List(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, dto.PaymentsFromDomain(list))
}

// CreatePayment opens a pending payment.
// POST /v1/admin/prizes/:prize_id/payments
func (h *PrizeHandler) CreatePayment(c *gin.Context) {
	id, ok := pathID(c, "prize_id", "prize")
	if !ok {
		return
	}
	var req dto.CreatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.payments.Create(c.Request.Context(), id, req.ParticipantID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, dto.PaymentFromDomain(p))
}

// Complete marks a payment paid.
// POST /v1/admin/payments/:payment_id/complete
func (h *PrizeHandler) Complete(c *gin.Context) {
	id, ok := pathID(c, "payment_id", "payment")
	if !ok {
		return
	}
	var req dto.CompletePaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.payments.Complete(c.Request.Context(), id, req.TransactionID)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, dto.PaymentFromDomain(p))
}

// Fail marks a payment failed.
// POST /v1/admin/payments/:payment_id/fail
func (h *PrizeHandler) Fail(c *gin.Context) {
	id, ok := pathID(c, "payment_id", "payment")
	if !ok {
		return
	}
	var req dto.FailPaymentRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	p, err := h.payments.Fail(c.Request.Context(), id, req.Notes)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, dto.PaymentFromDomain(p))
}

// Retry opens a new attempt for a failed payment.
// POST /v1/admin/payments/:payment_id/retry
func (h *PrizeHandler) Retry(c *gin.Context) {
	id, ok := pathID(c, "payment_id", "payment")
	if !ok {
		return
	}
	p, err := h.payments.Retry(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, dto.PaymentFromDomain(p))
}
