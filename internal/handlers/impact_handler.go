package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/services"
	"civicbudget/internal/uuid"
)

// ImpactHandler serves the impact report.
type ImpactHandler struct {
	reportService services.ImpactReportServicer
}

// NewImpactHandler creates a new ImpactHandler.
func NewImpactHandler(reportService services.ImpactReportServicer) *ImpactHandler {
	return &ImpactHandler{reportService: reportService}
}

// GetImpactReport handles the impact report across funded projects.
// @Summary     Get impact report
// @Tags        impact
// @Produce     json
// @Security    BearerAuth
// @Param       budget_id query string false "Restrict to one budget"
// @Success     200 {object} services.ImpactReport "Impact report"
// @Failure     400 {object} ErrorResponse "Invalid budget ID"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /impact-report [get]
func (h *ImpactHandler) GetImpactReport(c *gin.Context) {
	var budgetID *string
	if v := c.Query("budget_id"); v != "" {
		if !uuid.IsValid(v) {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid budget_id"))
			return
		}
		budgetID = &v
	}

	report, err := h.reportService.GetImpactReport(c.Request.Context(), budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}
