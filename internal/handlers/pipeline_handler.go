package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"civicbudget/internal/services"
)

// SweepRunner runs one lock-guarded phase transition sweep.
type SweepRunner interface {
	RunOnce(ctx context.Context) (*services.SweepResult, error)
}

// PipelineHandler serves endpoints triggered by external automation.
type PipelineHandler struct {
	sweeper SweepRunner
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(sweeper SweepRunner) *PipelineHandler {
	return &PipelineHandler{sweeper: sweeper}
}

// RunPhaseSweep handles an on-demand phase transition sweep.
// @Summary     Run phase transition sweep
// @Description Activate phases whose window contains now and deactivate the rest. Rejected while another sweep holds the lock.
// @Tags        pipeline
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} services.SweepResult "Sweep result"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     409 {object} OutcomeResponse "Sweep already running"
// @Router      /pipeline/phase-sweep [post]
func (h *PipelineHandler) RunPhaseSweep(c *gin.Context) {
	result, err := h.sweeper.RunOnce(c.Request.Context())
	respondWithOutcome(c, http.StatusOK, err, "Phase transition sweep completed", gin.H{"result": result})
}
