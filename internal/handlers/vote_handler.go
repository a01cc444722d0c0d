package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"civicbudget/internal/services"
)

// VoteHandler handles casting and retracting votes.
type VoteHandler struct {
	votingService services.VotingServicer
}

// NewVoteHandler creates a new VoteHandler.
func NewVoteHandler(votingService services.VotingServicer) *VoteHandler {
	return &VoteHandler{votingService: votingService}
}

// CastVoteRequest represents the optional body of a vote.
type CastVoteRequest struct {
	Weight  *decimal.Decimal `json:"vote_weight"`
	Comment string           `json:"comment" binding:"max=1000"`
}

// CastVote handles casting a vote for a project.
// @Summary     Cast a vote
// @Description Vote for a project. Eligibility is checked in order and the first failing reason is returned.
// @Tags        votes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string          true  "Project ID"
// @Param       request body CastVoteRequest false "Vote weight and comment"
// @Success     201 {object} OutcomeResponse "Vote recorded"
// @Failure     409 {object} OutcomeResponse "Not eligible"
// @Failure     422 {object} OutcomeResponse "Vote limit reached"
// @Failure     429 {object} ErrorResponse   "Rate limited"
// @Router      /projects/{id}/vote [post]
func (h *VoteHandler) CastVote(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	projectID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CastVoteRequest
	if c.Request.ContentLength != 0 {
		if !bindJSON(c, &req) {
			return
		}
	}

	vote, err := h.votingService.CastVote(c.Request.Context(), projectID, userID, services.VoteInput{
		Weight:  req.Weight,
		Comment: req.Comment,
	})
	respondWithOutcome(c, http.StatusCreated, err, "Vote recorded", gin.H{"vote": vote})
}

// RetractVote handles withdrawing the caller's vote for a project.
// @Summary     Retract a vote
// @Tags        votes
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Project ID"
// @Success     200 {object} OutcomeResponse "Vote retracted"
// @Failure     404 {object} OutcomeResponse "No vote to retract"
// @Failure     409 {object} OutcomeResponse "Voting closed"
// @Router      /projects/{id}/vote [delete]
func (h *VoteHandler) RetractVote(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	projectID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	err = h.votingService.RetractVote(c.Request.Context(), projectID, userID)
	respondWithOutcome(c, http.StatusOK, err, "Vote retracted", nil)
}

// CanVote handles checking whether the caller may vote for a project.
// @Summary     Check vote eligibility
// @Tags        votes
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Project ID"
// @Success     200 {object} services.Eligibility "Eligibility"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{id}/can-vote [get]
func (h *VoteHandler) CanVote(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	projectID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	eligibility, err := h.votingService.CheckEligibility(c.Request.Context(), projectID, userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"eligibility": eligibility})
}

// GetVotesRemaining handles reporting how many votes the caller has left in a budget.
// @Summary     Get remaining votes
// @Tags        votes
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} map[string]int "Votes remaining"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /budgets/{id}/votes-remaining [get]
func (h *VoteHandler) GetVotesRemaining(c *gin.Context) {
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

	remaining, err := h.votingService.VotesRemaining(c.Request.Context(), userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"votes_remaining": remaining})
}
