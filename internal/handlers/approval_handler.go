package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/services"
)

// ApprovalHandler handles reviewer decisions on projects.
type ApprovalHandler struct {
	approvalService services.ApprovalServicer
}

// NewApprovalHandler creates a new ApprovalHandler.
func NewApprovalHandler(approvalService services.ApprovalServicer) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService}
}

// ApproveRequest carries an optional allocation; the requested amount is used when omitted.
type ApproveRequest struct {
	Allocation *decimal.Decimal `json:"allocated_amount"`
}

// RejectRequest carries an optional rejection reason.
type RejectRequest struct {
	Reason string `json:"reason" binding:"max=2000"`
}

// AdjustAllocationRequest carries the new allocation of an approved project.
type AdjustAllocationRequest struct {
	Allocation decimal.Decimal `json:"allocated_amount" binding:"required,decimal_amount"`
}

// BatchApproveRequest lists the projects to approve.
type BatchApproveRequest struct {
	ProjectIDs []string `json:"project_ids" binding:"required,min=1,max=100,dive,uuid"`
}

// BatchRejectRequest lists the projects to reject with a shared reason.
type BatchRejectRequest struct {
	ProjectIDs []string `json:"project_ids" binding:"required,min=1,max=100,dive,uuid"`
	Reason     string   `json:"reason" binding:"max=2000"`
}

// ApproveProject handles approving a pending project.
// @Summary     Approve a project
// @Description Approve a pending project. The allocation must fit in the category's spending limit.
// @Tags        approvals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string         true  "Project ID"
// @Param       request body ApproveRequest false "Allocation"
// @Success     200 {object} OutcomeResponse "Project approved"
// @Failure     409 {object} OutcomeResponse "Project not pending"
// @Failure     422 {object} OutcomeResponse "Category limit exceeded"
// @Router      /projects/{id}/approve [post]
func (h *ApprovalHandler) ApproveProject(c *gin.Context) {
	projectID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ApproveRequest
	if c.Request.ContentLength != 0 {
		if !bindJSON(c, &req) {
			return
		}
	}

	project, err := h.approvalService.ApproveProject(c.Request.Context(), projectID, req.Allocation)
	respondWithOutcome(c, http.StatusOK, err, "Project approved", gin.H{"project": project})
}

// RejectProject handles rejecting a pending project.
// @Summary     Reject a project
// @Tags        approvals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string        true  "Project ID"
// @Param       request body RejectRequest false "Reason"
// @Success     200 {object} OutcomeResponse "Project rejected"
// @Failure     409 {object} OutcomeResponse "Project not pending"
// @Router      /projects/{id}/reject [post]
func (h *ApprovalHandler) RejectProject(c *gin.Context) {
	projectID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RejectRequest
	if c.Request.ContentLength != 0 {
		if !bindJSON(c, &req) {
			return
		}
	}

	project, err := h.approvalService.RejectProject(c.Request.Context(), projectID, req.Reason)
	respondWithOutcome(c, http.StatusOK, err, "Project rejected", gin.H{"project": project})
}

// AdjustAllocation handles changing the allocation of an approved project.
// @Summary     Adjust allocation
// @Tags        approvals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                  true "Project ID"
// @Param       request body AdjustAllocationRequest true "New allocation"
// @Success     200 {object} OutcomeResponse "Allocation adjusted"
// @Failure     409 {object} OutcomeResponse "Project not approved"
// @Failure     422 {object} OutcomeResponse "Category limit exceeded"
// @Router      /projects/{id}/allocation [put]
func (h *ApprovalHandler) AdjustAllocation(c *gin.Context) {
	projectID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AdjustAllocationRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.approvalService.AdjustAllocation(c.Request.Context(), projectID, req.Allocation)
	respondWithOutcome(c, http.StatusOK, err, "Allocation adjusted", gin.H{"project": project})
}

// MarkImplemented handles marking an approved project as implemented.
// @Summary     Mark project implemented
// @Tags        approvals
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Project ID"
// @Success     200 {object} OutcomeResponse "Project implemented"
// @Failure     409 {object} OutcomeResponse "Project not approved"
// @Router      /projects/{id}/implemented [post]
func (h *ApprovalHandler) MarkImplemented(c *gin.Context) {
	projectID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	project, err := h.approvalService.MarkImplemented(c.Request.Context(), projectID)
	respondWithOutcome(c, http.StatusOK, err, "Project marked implemented", gin.H{"project": project})
}

// CanApprove handles checking whether a project could be approved now.
// @Summary     Check approval
// @Tags        approvals
// @Produce     json
// @Security    BearerAuth
// @Param       id         path  string true  "Project ID"
// @Param       allocation query string false "Allocation to test (defaults to requested amount)"
// @Success     200 {object} map[string]bool "Whether the project can be approved"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{id}/can-approve [get]
func (h *ApprovalHandler) CanApprove(c *gin.Context) {
	projectID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var allocation *decimal.Decimal
	if raw := c.Query("allocation"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "allocation must be a decimal amount"))
			return
		}
		allocation = &d
	}

	ok, err := h.approvalService.CanApprove(c.Request.Context(), projectID, allocation)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"can_approve": ok})
}

// BatchApprove handles approving several projects; each is decided independently.
// @Summary     Batch approve
// @Tags        approvals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body BatchApproveRequest true "Project IDs"
// @Success     200 {object} services.BatchResult "Per-project outcomes"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /projects/batch-approve [post]
func (h *ApprovalHandler) BatchApprove(c *gin.Context) {
	var req BatchApproveRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.approvalService.BatchApprove(c.Request.Context(), req.ProjectIDs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// BatchReject handles rejecting several projects with one reason.
// @Summary     Batch reject
// @Tags        approvals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body BatchRejectRequest true "Project IDs and reason"
// @Success     200 {object} services.BatchResult "Per-project outcomes"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /projects/batch-reject [post]
func (h *ApprovalHandler) BatchReject(c *gin.Context) {
	var req BatchRejectRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.approvalService.BatchReject(c.Request.Context(), req.ProjectIDs, req.Reason)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}
