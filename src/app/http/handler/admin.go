package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"postcontest/src/app/http/dto"
	"postcontest/src/app/http/response"
	"postcontest/src/app/middleware"
	"postcontest/src/core/domain"
	"postcontest/src/core/usecase"
)

// AdminHandler serves qualification and reconciliation runs.
type AdminHandler struct {
	qualification *usecase.QualificationService
	reconcile     *usecase.ReconcileService
}

func NewAdminHandler(qualification *usecase.QualificationService, reconcile *usecase.ReconcileService) *AdminHandler {
	return &AdminHandler{qualification: qualification, reconcile: reconcile}
}

// Evaluate writes qualification flags for an ended round.
// POST /v1/admin/rounds/:round_id/evaluate
func (h *AdminHandler) Evaluate(c *gin.Context) {
	id, ok := pathID(c, "round_id", "round")
	if !ok {
		return
	}
	ev, err := h.qualification.EvaluateRound(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, ev)
}

// Rebuild re-derives entries from submission history.
// POST /v1/admin/competitions/:id/rebuild
func (h *AdminHandler) Rebuild(c *gin.Context) {
	id, ok := pathID(c, "id", "competition")
	if !ok {
		return
	}
	report, err := h.reconcile.RebuildEntries(c.Request.Context(), id)
	respondReport(c, reportBody(report), err)
}

// Sync moves entries off superseded rounds.
// POST /v1/admin/competitions/:id/sync
func (h *AdminHandler) Sync(c *gin.Context) {
	id, ok := pathID(c, "id", "competition")
	if !ok {
		return
	}
	report, err := h.reconcile.SyncRoundEntries(c.Request.Context(), id)
	respondReport(c, reportBody(report), err)
}

// Fix runs sync, rebuild and evaluation of ended rounds.
// POST /v1/admin/competitions/:id/fix
func (h *AdminHandler) Fix(c *gin.Context) {
	id, ok := pathID(c, "id", "competition")
	if !ok {
		return
	}
	report, err := h.reconcile.FixAllEntries(c.Request.Context(), id)
	var body any
	if report != nil {
		body = dto.FixAllFromDomain(report)
	}
	respondReport(c, body, err)
}

// reportBody keeps a missing report an untyped nil.
func reportBody(r *usecase.Report) any {
	if r == nil {
		return nil
	}
	return dto.ReportFromDomain(r)
}

// respondReport answers 200 for a clean run, 207 when participants were
// skipped and 503 when the run was cut short; the report is returned in
// every case it exists.
func respondReport(c *gin.Context, report any, err error) {
	switch {
	case err == nil:
		response.OK(c, report)
	case errors.Is(err, domain.ErrReconciliationPartialFailure) && report != nil:
		c.JSON(http.StatusMultiStatus, response.Success{Data: report})
	case (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) && report != nil:
		c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"data": report,
			"error": response.ErrorDetail{
				Code:      "INTERRUPTED",
				Message:   err.Error(),
				RequestID: middleware.GetRequestID(c),
			},
		})
	default:
		fail(c, err)
	}
}
