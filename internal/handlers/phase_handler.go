package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"civicbudget/internal/models"
	"civicbudget/internal/services"
)

// PhaseHandler handles voting phase requests.
type PhaseHandler struct {
	phaseService services.PhaseServicer
}

// NewPhaseHandler creates a new PhaseHandler.
func NewPhaseHandler(phaseService services.PhaseServicer) *PhaseHandler {
	return &PhaseHandler{phaseService: phaseService}
}

// CreatePhaseRequest represents the request payload for creating a voting phase.
type CreatePhaseRequest struct {
	Name            string             `json:"name" binding:"required,min=1,max=100"`
	Description     *string            `json:"description" binding:"omitempty,max=1000"`
	StartDate       time.Time          `json:"start_date" binding:"required"`
	EndDate         time.Time          `json:"end_date" binding:"required"`
	MaxVotesPerUser *int               `json:"max_votes_per_user" binding:"omitempty,min=1"`
	Position        *int               `json:"position" binding:"omitempty,min=0"`
	Active          *bool              `json:"active"`
	Rules           *models.PhaseRules `json:"rules"`
}

// UpdatePhaseRequest represents the request payload for updating a voting phase.
type UpdatePhaseRequest struct {
	Name            string             `json:"name" binding:"omitempty,min=1,max=100"`
	Description     *string            `json:"description" binding:"omitempty,max=1000"`
	StartDate       *time.Time         `json:"start_date"`
	EndDate         *time.Time         `json:"end_date"`
	MaxVotesPerUser *int               `json:"max_votes_per_user" binding:"omitempty,min=1"`
	Position        *int               `json:"position" binding:"omitempty,min=0"`
	Active          *bool              `json:"active"`
	Rules           *models.PhaseRules `json:"rules"`
}

// CreatePhase handles the creation of a voting phase.
// @Summary     Create a voting phase
// @Description Create a voting phase in a budget. Phase windows in a budget may not overlap.
// @Tags        phases
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string             true "Budget ID"
// @Param       request body CreatePhaseRequest true "Phase details"
// @Success     201 {object} models.VotingPhase "Phase created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     409 {object} ErrorResponse "Phase overlap"
// @Router      /budgets/{id}/phases [post]
func (h *PhaseHandler) CreatePhase(c *gin.Context) {
	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreatePhaseRequest
	if !bindJSON(c, &req) {
		return
	}

	phase, err := h.phaseService.CreatePhase(c.Request.Context(), budgetID, services.PhaseInput{
		Name:            req.Name,
		Description:     req.Description,
		StartDate:       &req.StartDate,
		EndDate:         &req.EndDate,
		MaxVotesPerUser: req.MaxVotesPerUser,
		Position:        req.Position,
		Active:          req.Active,
		Rules:           req.Rules,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"phase": phase})
}

// GetPhases handles listing a budget's voting phases.
// @Summary     List voting phases
// @Tags        phases
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {array}  models.VotingPhase "Phases"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id}/phases [get]
func (h *PhaseHandler) GetPhases(c *gin.Context) {
	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	phases, err := h.phaseService.ListBudgetPhases(budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"phases": phases})
}

// GetPhase handles retrieving a voting phase.
// @Summary     Get voting phase by ID
// @Tags        phases
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Phase ID"
// @Success     200 {object} models.VotingPhase "Phase"
// @Failure     404 {object} ErrorResponse "Phase not found"
// @Router      /phases/{id} [get]
func (h *PhaseHandler) GetPhase(c *gin.Context) {
	phaseID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	phase, err := h.phaseService.GetPhaseByID(phaseID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"phase": phase})
}

// UpdatePhase handles updating a voting phase.
// @Summary     Update voting phase
// @Tags        phases
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string             true "Phase ID"
// @Param       request body UpdatePhaseRequest true "Updated phase"
// @Success     200 {object} models.VotingPhase "Updated phase"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Phase not found"
// @Failure     409 {object} ErrorResponse "Phase overlap"
// @Router      /phases/{id} [put]
func (h *PhaseHandler) UpdatePhase(c *gin.Context) {
	phaseID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdatePhaseRequest
	if !bindJSON(c, &req) {
		return
	}

	phase, err := h.phaseService.UpdatePhase(c.Request.Context(), phaseID, services.PhaseInput(req))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"phase": phase})
}

// ActivatePhase handles manually activating a voting phase. Other phases of
// the budget are deactivated.
// @Summary     Activate voting phase
// @Tags        phases
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Phase ID"
// @Success     200 {object} models.VotingPhase "Phase"
// @Failure     404 {object} ErrorResponse "Phase not found"
// @Router      /phases/{id}/activate [post]
func (h *PhaseHandler) ActivatePhase(c *gin.Context) {
	h.setActive(c, true)
}

// DeactivatePhase handles manually deactivating a voting phase.
// @Summary     Deactivate voting phase
// @Tags        phases
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Phase ID"
// @Success     200 {object} models.VotingPhase "Phase"
// @Failure     404 {object} ErrorResponse "Phase not found"
// @Router      /phases/{id}/deactivate [post]
func (h *PhaseHandler) DeactivatePhase(c *gin.Context) {
	h.setActive(c, false)
}

func (h *PhaseHandler) setActive(c *gin.Context, active bool) {
	phaseID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	phase, err := h.phaseService.SetPhaseActive(c.Request.Context(), phaseID, active)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"phase": phase})
}

// DeletePhase handles deleting a voting phase. Projects assigned to it are unassigned.
// @Summary     Delete voting phase
// @Tags        phases
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Phase ID"
// @Success     200 {object} MessageResponse "Phase deleted"
// @Failure     404 {object} ErrorResponse "Phase not found"
// @Router      /phases/{id} [delete]
func (h *PhaseHandler) DeletePhase(c *gin.Context) {
	phaseID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.phaseService.DeletePhase(c.Request.Context(), phaseID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Voting phase deleted successfully"})
}

// GetPhaseStatus handles reporting a phase's lifecycle status and the caller's remaining votes.
// @Summary     Get voting phase status
// @Tags        phases
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Phase ID"
// @Success     200 {object} services.PhaseStatusReport "Phase status"
// @Failure     404 {object} ErrorResponse "Phase not found"
// @Router      /phases/{id}/status [get]
func (h *PhaseHandler) GetPhaseStatus(c *gin.Context) {
	phaseID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var userID *string
	if uid, err := getUserID(c); err == nil {
		userID = &uid
	}

	report, err := h.phaseService.GetPhaseStatus(c.Request.Context(), phaseID, userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": report})
}
