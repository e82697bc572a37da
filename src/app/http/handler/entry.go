package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"postcontest/src/app/http/dto"
	"postcontest/src/app/http/response"
	"postcontest/src/app/middleware"
	"postcontest/src/core/usecase"
)

// EntryHandler serves round entries.
type EntryHandler struct {
	entries *usecase.EntryService
}

func NewEntryHandler(entries *usecase.EntryService) *EntryHandler {
	return &EntryHandler{entries: entries}
}

// Submit enters a post into a round. A new entry answers 201, a replaced or
// unchanged one 200.
// POST /v1/rounds/:round_id/entries
func (h *EntryHandler) Submit(c *gin.Context) {
	roundID, ok := pathID(c, "round_id", "round")
	if !ok {
		return
	}
	var req dto.SubmitEntryRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.entries.Submit(c.Request.Context(), req.ParticipantID, roundID, req.PostID)
	if err != nil {
		fail(c, err)
		return
	}
	if res.Created {
		response.Created(c, dto.SubmitFromResult(res))
		return
	}
	c.JSON(http.StatusOK, response.Success{Data: dto.SubmitFromResult(res)})
}

// List returns a window of a round's entries.
// GET /v1/rounds/:round_id/entries
func (h *EntryHandler) List(c *gin.Context) {
	roundID, ok := pathID(c, "round_id", "round")
	if !ok {
		return
	}
	var q dto.ListEntriesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "invalid query: "+err.Error(), middleware.GetRequestID(c))
		return
	}
	views, err := h.entries.List(c.Request.Context(), roundID, q.ToFilter())
	if err != nil {
		fail(c, err)
		return
	}
	out := dto.EntriesFromViews(views)
	response.Page(c, out, len(out), q.Limit, q.Offset)
}

// Disqualify bans a participant from their competition.
// POST /v1/admin/participants/:participant_id/disqualify
func (h *EntryHandler) Disqualify(c *gin.Context) {
	id, ok := pathID(c, "participant_id", "participant")
	if !ok {
		return
	}
	var req dto.DisqualifyRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.entries.DisqualifyParticipant(c.Request.Context(), id, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, dto.ParticipantFromDomain(p))
}
