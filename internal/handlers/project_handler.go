package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/models"
	"civicbudget/internal/pagination"
	"civicbudget/internal/services"
	"civicbudget/internal/uuid"
)

// ProjectHandler handles project (proposal) requests.
type ProjectHandler struct {
	projectService services.ProjectServicer
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(projectService services.ProjectServicer) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// ImpactRequest carries the impact metric fields of a project.
type ImpactRequest struct {
	EstimatedBeneficiaries *int    `json:"estimated_beneficiaries" binding:"omitempty,min=0"`
	SustainabilityScore    *int    `json:"sustainability_score" binding:"omitempty,min=1,max=10"`
	Timeline               *string `json:"timeline" binding:"omitempty,max=100"`
	EnvironmentalImpact    *string `json:"environmental_impact" binding:"omitempty,max=2000"`
	SocialImpact           *string `json:"social_impact" binding:"omitempty,max=2000"`
	EconomicImpact         *string `json:"economic_impact" binding:"omitempty,max=2000"`
}

// CreateProjectRequest represents the request payload for submitting a proposal.
type CreateProjectRequest struct {
	CategoryID      string          `json:"category_id" binding:"required,uuid"`
	VotingPhaseID   *string         `json:"voting_phase_id" binding:"omitempty,uuid"`
	Title           string          `json:"title" binding:"required,min=1,max=200"`
	Description     string          `json:"description" binding:"required,min=1,max=5000"`
	Justification   *string         `json:"justification" binding:"omitempty,max=5000"`
	RequestedAmount decimal.Decimal `json:"requested_amount" binding:"required,decimal_amount"`
	Impact          *ImpactRequest  `json:"impact_metric"`
}

// UpdateProjectRequest represents the request payload for editing a proposal.
type UpdateProjectRequest struct {
	CategoryID      string           `json:"category_id" binding:"omitempty,uuid"`
	VotingPhaseID   *string          `json:"voting_phase_id" binding:"omitempty,uuid"`
	Title           string           `json:"title" binding:"omitempty,min=1,max=200"`
	Description     string           `json:"description" binding:"omitempty,min=1,max=5000"`
	Justification   *string          `json:"justification" binding:"omitempty,max=5000"`
	RequestedAmount *decimal.Decimal `json:"requested_amount" binding:"omitempty,decimal_amount"`
	Impact          *ImpactRequest   `json:"impact_metric"`
}

func (r *ImpactRequest) input() *services.ImpactInput {
	if r == nil {
		return nil
	}
	in := services.ImpactInput(*r)
	return &in
}

// CreateProject handles submitting a proposal to a budget.
// @Summary     Submit a project
// @Description Submit a funding proposal. It starts pending with no allocation.
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Budget ID"
// @Param       request body CreateProjectRequest true "Project details"
// @Success     201 {object} models.BudgetProject "Project created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Budget or category not found"
// @Router      /budgets/{id}/projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.projectService.CreateProject(budgetID, userID, services.ProjectInput{
		CategoryID:      req.CategoryID,
		VotingPhaseID:   req.VotingPhaseID,
		Title:           req.Title,
		Description:     req.Description,
		Justification:   req.Justification,
		RequestedAmount: &req.RequestedAmount,
		Impact:          req.Impact.input(),
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"project": project})
}

// GetProjects handles listing a budget's projects.
// @Summary     List projects
// @Description Paginated, filterable list of a budget's projects
// @Tags        projects
// @Produce     json
// @Security    BearerAuth
// @Param       id          path  string true  "Budget ID"
// @Param       category_id query string false "Filter by category"
// @Param       phase_id    query string false "Filter by voting phase"
// @Param       status      query string false "Filter by status (pending/approved/rejected/implemented)"
// @Param       high_impact query bool   false "Only high-impact projects"
// @Param       sort_by     query string false "Sort key (votes/amount/created_at/cost_effectiveness)"
// @Param       sort_order  query string false "asc or desc"
// @Param       page        query int    false "Page number (default 1)"
// @Param       page_size   query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.BudgetProject] "Paginated projects"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id}/projects [get]
func (h *ProjectHandler) GetProjects(c *gin.Context) {
	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	var filter services.ProjectFilter
	if err := c.ShouldBindQuery(&filter.Sort); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	if v := c.Query("category_id"); v != "" {
		if !uuid.IsValid(v) {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid category_id"))
			return
		}
		filter.CategoryID = &v
	}
	if v := c.Query("phase_id"); v != "" {
		if !uuid.IsValid(v) {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid phase_id"))
			return
		}
		filter.VotingPhaseID = &v
	}
	if v := c.Query("status"); v != "" {
		s := models.ProjectStatus(v)
		switch s {
		case models.ProjectStatusPending, models.ProjectStatusApproved,
			models.ProjectStatusRejected, models.ProjectStatusImplemented:
			filter.Status = &s
		default:
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "status must be one of pending, approved, rejected, implemented"))
			return
		}
	}
	switch c.Query("high_impact") {
	case "", "false":
	case "true":
		filter.HighImpact = true
	default:
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "high_impact must be 'true' or 'false'"))
		return
	}

	result, err := h.projectService.ListBudgetProjects(budgetID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetProject handles retrieving a project.
// @Summary     Get project by ID
// @Tags        projects
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Project ID"
// @Success     200 {object} models.BudgetProject "Project"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{id} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	projectID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	project, err := h.projectService.GetProjectByID(projectID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": project})
}

// UpdateProject handles editing a project.
// @Summary     Update project
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Project ID"
// @Param       request body UpdateProjectRequest true "Updated project"
// @Success     200 {object} models.BudgetProject "Updated project"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Failure     422 {object} ErrorResponse "Category limit exceeded"
// @Router      /projects/{id} [put]
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	projectID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.projectService.UpdateProject(projectID, services.ProjectInput{
		CategoryID:      req.CategoryID,
		VotingPhaseID:   req.VotingPhaseID,
		Title:           req.Title,
		Description:     req.Description,
		Justification:   req.Justification,
		RequestedAmount: req.RequestedAmount,
		Impact:          req.Impact.input(),
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": project})
}

// UpdateImpactMetric handles creating or replacing a project's impact metric.
// @Summary     Update impact metric
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string        true "Project ID"
// @Param       request body ImpactRequest true "Impact metric"
// @Success     200 {object} models.ImpactMetric "Impact metric"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{id}/impact [put]
func (h *ProjectHandler) UpdateImpactMetric(c *gin.Context) {
	projectID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ImpactRequest
	if !bindJSON(c, &req) {
		return
	}

	metric, err := h.projectService.UpdateImpactMetric(projectID, *req.input())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"impact_metric": metric})
}

// DeleteProject handles deleting a project and its votes.
// @Summary     Delete project
// @Tags        projects
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Project ID"
// @Success     200 {object} MessageResponse "Project deleted"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	projectID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.projectService.DeleteProject(projectID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Project deleted successfully"})
}

// GetImpact handles the scored impact assessment of a project.
// @Summary     Get project impact
// @Tags        projects
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Project ID"
// @Success     200 {object} services.ImpactAssessment "Impact assessment"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{id}/impact [get]
func (h *ProjectHandler) GetImpact(c *gin.Context) {
	projectID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	assessment, err := h.projectService.GetImpact(projectID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"impact": assessment})
}

// GetApprovalInsight handles previewing the effect of approving a project.
// @Summary     Get approval insight
// @Tags        projects
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Project ID"
// @Success     200 {object} services.ApprovalInsight "Approval insight"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{id}/approval-insight [get]
func (h *ProjectHandler) GetApprovalInsight(c *gin.Context) {
	projectID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	insight, err := h.projectService.GetApprovalInsight(c.Request.Context(), projectID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"insight": insight})
}
