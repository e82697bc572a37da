package handler

import (
	"github.com/gin-gonic/gin"

	"postcontest/src/app/http/dto"
	"postcontest/src/app/http/response"
	"postcontest/src/core/ports"
	"postcontest/src/core/usecase"
)

// CompetitionHandler serves competitions, rounds and enrolment.
type CompetitionHandler struct {
	competitions *usecase.CompetitionService
	clock        ports.Clock
}

func NewCompetitionHandler(competitions *usecase.CompetitionService, clock ports.Clock) *CompetitionHandler {
	return &CompetitionHandler{competitions: competitions, clock: clock}
}

// List returns every competition.
// GET /v1/competitions
func (h *CompetitionHandler) List(c *gin.Context) {
	list, err := h.competitions.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]dto.CompetitionResponse, 0, len(list))
	for i := range list {
		out = append(out, dto.CompetitionFromDomain(&list[i]))
	}
	response.OK(c, out)
}

// Get returns one competition.
// GET /v1/competitions/:id
func (h *CompetitionHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id", "competition")
	if !ok {
		return
	}
	comp, err := h.competitions.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, dto.CompetitionFromDomain(comp))
}

// Rounds lists the competition's current rounds; ?all=true adds superseded rows.
// GET /v1/competitions/:id/rounds
func (h *CompetitionHandler) Rounds(c *gin.Context) {
	id, ok := pathID(c, "id", "competition")
	if !ok {
		return
	}
	rounds, err := h.competitions.Rounds(c.Request.Context(), id, c.Query("all") == "true")
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, dto.RoundsFromDomain(rounds, h.clock.Now()))
}

// Join enrols a user.
// POST /v1/competitions/:id/participants
func (h *CompetitionHandler) Join(c *gin.Context) {
	id, ok := pathID(c, "id", "competition")
	if !ok {
		return
	}
	var req dto.JoinCompetitionRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.competitions.Join(c.Request.Context(), id, req.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, dto.ParticipantFromDomain(p))
}

// Create registers a competition.
// POST /v1/admin/competitions
func (h *CompetitionHandler) Create(c *gin.Context) {
	var req dto.CreateCompetitionRequest
	if !bindJSON(c, &req) {
		return
	}
	comp, err := h.competitions.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, dto.CompetitionFromDomain(comp))
}

// Archive deactivates a competition.
// POST /v1/admin/competitions/:id/archive
func (h *CompetitionHandler) Archive(c *gin.Context) {
	id, ok := pathID(c, "id", "competition")
	if !ok {
		return
	}
	comp, err := h.competitions.Archive(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, dto.CompetitionFromDomain(comp))
}

// CreateRound adds a round row.
// POST /v1/admin/competitions/:id/rounds
func (h *CompetitionHandler) CreateRound(c *gin.Context) {
	id, ok := pathID(c, "id", "competition")
	if !ok {
		return
	}
	var req dto.CreateRoundRequest
	if !bindJSON(c, &req) {
		return
	}
	rd, err := h.competitions.CreateRound(c.Request.Context(), req.ToDomain(id))
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, dto.RoundFromDomain(rd, h.clock.Now()))
}

// UpdateRound edits a round in place.
// PATCH /v1/admin/rounds/:round_id
func (h *CompetitionHandler) UpdateRound(c *gin.Context) {
	id, ok := pathID(c, "round_id", "round")
	if !ok {
		return
	}
	var req dto.UpdateRoundRequest
	if !bindJSON(c, &req) {
		return
	}
	rd, err := h.competitions.UpdateRound(c.Request.Context(), id, req.ToPatch())
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, dto.RoundFromDomain(rd, h.clock.Now()))
}
