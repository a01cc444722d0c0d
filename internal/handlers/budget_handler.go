package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/models"
	"civicbudget/internal/pagination"
	"civicbudget/internal/services"
)

// BudgetHandler handles budget-related requests.
type BudgetHandler struct {
	budgetService services.BudgetServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService}
}

// CreateBudgetRequest represents the request payload for creating a budget.
type CreateBudgetRequest struct {
	Name            string          `json:"name" binding:"required,min=1,max=200"`
	Description     *string         `json:"description" binding:"omitempty,max=2000"`
	TotalFunds      decimal.Decimal `json:"total_funds" binding:"required,decimal_amount"`
	VotingStartDate *time.Time      `json:"voting_start_date"`
	VotingEndDate   *time.Time      `json:"voting_end_date"`
	Active          *bool           `json:"active"`
}

// UpdateBudgetRequest represents the request payload for updating a budget.
type UpdateBudgetRequest struct {
	Name            string           `json:"name" binding:"omitempty,min=1,max=200"`
	Description     *string          `json:"description" binding:"omitempty,max=2000"`
	TotalFunds      *decimal.Decimal `json:"total_funds" binding:"omitempty,decimal_amount"`
	VotingStartDate *time.Time       `json:"voting_start_date"`
	VotingEndDate   *time.Time       `json:"voting_end_date"`
	Active          *bool            `json:"active"`
}

// TransitionStatusRequest represents the request payload for advancing a budget's status.
type TransitionStatusRequest struct {
	Status models.BudgetStatus `json:"status" binding:"required,budget_status"`
}

// CreateBudget handles the creation of a new budget.
// @Summary     Create a budget
// @Description Create a new participatory budget in the planning stage
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateBudgetRequest true "Budget details"
// @Success     201 {object} models.Budget "Budget created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [post]
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	var req CreateBudgetRequest
	if !bindJSON(c, &req) {
		return
	}

	budget, err := h.budgetService.CreateBudget(services.BudgetInput{
		Name:            req.Name,
		Description:     req.Description,
		TotalFunds:      &req.TotalFunds,
		VotingStartDate: req.VotingStartDate,
		VotingEndDate:   req.VotingEndDate,
		Active:          req.Active,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"budget": budget})
}

// GetBudgets handles listing budgets.
// @Summary     List budgets
// @Description Get a paginated list of budgets
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       status    query string false "Filter by status (planning/voting/results/completed)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Budget] "Paginated budgets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [get]
func (h *BudgetHandler) GetBudgets(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var status *models.BudgetStatus
	if v := c.Query("status"); v != "" {
		s := models.BudgetStatus(v)
		if !s.Valid() {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "status must be one of planning, voting, results, completed"))
			return
		}
		status = &s
	}

	result, err := h.budgetService.ListBudgets(page, status)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetBudget handles retrieving a specific budget.
// @Summary     Get budget by ID
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} models.Budget "Budget details"
// @Failure     400 {object} ErrorResponse "Invalid budget ID"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id} [get]
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.GetBudgetByID(budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// UpdateBudget handles updating an existing budget.
// @Summary     Update budget
// @Description Update a budget. Funds cannot drop below what categories have already committed.
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "Budget ID"
// @Param       request body UpdateBudgetRequest true "Updated budget details"
// @Success     200 {object} models.Budget "Updated budget"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     422 {object} ErrorResponse "Funds below allocations"
// @Router      /budgets/{id} [put]
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateBudgetRequest
	if !bindJSON(c, &req) {
		return
	}

	budget, err := h.budgetService.UpdateBudget(budgetID, services.BudgetInput{
		Name:            req.Name,
		Description:     req.Description,
		TotalFunds:      req.TotalFunds,
		VotingStartDate: req.VotingStartDate,
		VotingEndDate:   req.VotingEndDate,
		Active:          req.Active,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// TransitionStatus handles advancing a budget to its next lifecycle stage.
// @Summary     Advance budget status
// @Description Move a budget forward one stage (planning, voting, results, completed)
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                  true "Budget ID"
// @Param       request body TransitionStatusRequest true "Next status"
// @Success     200 {object} models.Budget "Updated budget"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Invalid transition"
// @Router      /budgets/{id}/status [post]
func (h *BudgetHandler) TransitionStatus(c *gin.Context) {
	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req TransitionStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	budget, err := h.budgetService.TransitionStatus(budgetID, req.Status)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// DeleteBudget handles deleting a budget.
// @Summary     Delete budget
// @Description Delete a budget with its categories, phases, projects and votes
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} MessageResponse "Budget deleted"
// @Failure     400 {object} ErrorResponse "Invalid budget ID"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id} [delete]
func (h *BudgetHandler) DeleteBudget(c *gin.Context) {
	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.budgetService.DeleteBudget(budgetID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Budget deleted successfully"})
}

// GetBudgetSummary handles retrieving allocation and participation figures for a budget.
// @Summary     Get budget summary
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} services.BudgetSummary "Budget summary"
// @Failure     400 {object} ErrorResponse "Invalid budget ID"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id}/summary [get]
func (h *BudgetHandler) GetBudgetSummary(c *gin.Context) {
	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.budgetService.GetBudgetSummary(c.Request.Context(), budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// GetPhaseResults handles ranking the projects voted on within a phase.
// @Summary     Get phase results
// @Tags        phases
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Phase ID"
// @Success     200 {object} services.PhaseResults "Phase results"
// @Failure     400 {object} ErrorResponse "Invalid phase ID"
// @Failure     404 {object} ErrorResponse "Phase not found"
// @Router      /phases/{id}/results [get]
func (h *BudgetHandler) GetPhaseResults(c *gin.Context) {
	phaseID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	results, err := h.budgetService.GetPhaseResults(c.Request.Context(), phaseID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}
