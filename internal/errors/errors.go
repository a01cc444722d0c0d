// Package errors provides custom error types for the civic budget API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import (
	stderrors "errors"
	"net/http"
)

// Kind classifies an AppError for callers that branch on the failure type
// rather than the specific code.
type Kind string

const (
	KindValidation Kind = "validation_failure"
	KindLimit      Kind = "limit_exceeded"
	KindConflict   Kind = "state_conflict"
	KindNotFound   Kind = "not_found"
	KindAuth       Kind = "unauthorized"
	KindInternal   Kind = "internal"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Kind       Kind   `json:"-"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches two AppErrors by code so wrapped copies compare equal to their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Kind:       sentinel.Kind,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		Kind:       sentinel.Kind,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// KindOf returns the kind of err, or KindInternal when err is not an AppError.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsBusiness reports whether err is an expected domain failure rather than
// an infrastructure fault.
func IsBusiness(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindLimit, KindConflict, KindNotFound:
		return true
	}
	return false
}

func validation(code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Kind: KindValidation, StatusCode: http.StatusBadRequest}
}

func conflict(code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Kind: KindConflict, StatusCode: http.StatusConflict}
}

func notFound(code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Kind: KindNotFound, StatusCode: http.StatusNotFound}
}

func limit(code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Kind: KindLimit, StatusCode: http.StatusUnprocessableEntity}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized  = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", Kind: KindAuth, StatusCode: http.StatusUnauthorized}
	ErrForbidden     = &AppError{Code: "FORBIDDEN", Message: "Access denied", Kind: KindAuth, StatusCode: http.StatusForbidden}
	ErrRateLimited   = &AppError{Code: "RATE_LIMITED", Message: "Too many requests", Kind: KindAuth, StatusCode: http.StatusTooManyRequests}
	ErrInvalidAPIKey = &AppError{Code: "INVALID_API_KEY", Message: "Invalid or missing API key", Kind: KindAuth, StatusCode: http.StatusUnauthorized}

	ErrPipelineNotConfigured = &AppError{Code: "PIPELINE_NOT_CONFIGURED", Message: "Pipeline endpoints are not configured", Kind: KindInternal, StatusCode: http.StatusServiceUnavailable}
)

// General errors.
var (
	ErrInvalidInput   = validation("INVALID_INPUT", "Invalid input")
	ErrNotFound       = notFound("NOT_FOUND", "Resource not found")
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", Kind: KindInternal, StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = notFound("USER_NOT_FOUND", "User not found")
	ErrDuplicateEmail = conflict("DUPLICATE_EMAIL", "A user with this email already exists")
)

// Budget errors.
var (
	ErrBudgetNotFound          = notFound("BUDGET_NOT_FOUND", "Budget not found")
	ErrInvalidStatusTransition = conflict("INVALID_STATUS_TRANSITION", "Budget status can only advance one stage at a time")
)

// Category errors.
var (
	ErrCategoryNotFound      = notFound("CATEGORY_NOT_FOUND", "Category not found")
	ErrDuplicateCategoryName = conflict("DUPLICATE_CATEGORY_NAME", "A category with this name already exists in the budget")
	ErrLimitBelowUtilization = limit("LIMIT_BELOW_UTILIZATION", "Spending limit cannot be reduced below current allocations")
)

// Voting phase errors.
var (
	ErrPhaseNotFound       = notFound("PHASE_NOT_FOUND", "Voting phase not found")
	ErrInvalidPhaseWindow  = validation("INVALID_PHASE_WINDOW", "End date must be after start date")
	ErrPhaseOverlap        = conflict("PHASE_OVERLAP", "Phase dates overlap with existing phase")
	ErrPhaseBudgetMismatch = validation("PHASE_BUDGET_MISMATCH", "Voting phase must belong to the same budget")
	ErrInvalidPhaseRules   = validation("INVALID_PHASE_RULES", "Invalid phase rules")
)

// Project errors.
var (
	ErrProjectNotFound        = notFound("PROJECT_NOT_FOUND", "Project not found")
	ErrProjectNotPending      = conflict("PROJECT_NOT_PENDING", "Project is not pending")
	ErrProjectNotApproved     = conflict("PROJECT_NOT_APPROVED", "Project is not approved")
	ErrCategoryLimitExceeded  = limit("CATEGORY_LIMIT_EXCEEDED", "would exceed category spending limit")
	ErrCategoryBudgetMismatch = validation("CATEGORY_BUDGET_MISMATCH", "Category must belong to the same budget")
	ErrInvalidAllocation      = validation("INVALID_ALLOCATION", "Allocation must be greater than zero")
)

// Voting errors. Messages double as the observable eligibility reason.
var (
	ErrVotingClosed          = conflict("VOTING_CLOSED", "Voting is not active for this budget")
	ErrPhaseNotActive        = conflict("PHASE_NOT_ACTIVE", "Project's voting phase is not active")
	ErrAlreadyVoted          = conflict("ALREADY_VOTED", "You have already voted for this project")
	ErrVoteBudgetExhausted   = limit("VOTE_BUDGET_EXHAUSTED", "You have no votes remaining for this budget")
	ErrPhaseVoteLimitReached = limit("PHASE_VOTE_LIMIT_REACHED", "You have reached the vote limit for this phase")
	ErrVoteNotFound          = notFound("VOTE_NOT_FOUND", "You have not voted for this project")
	ErrInvalidVoteWeight     = validation("INVALID_VOTE_WEIGHT", "Vote weight must be greater than 0 and at most 10")
	ErrCommentsNotAllowed    = validation("COMMENTS_NOT_ALLOWED", "Comments are not allowed in this phase")
	ErrJustificationRequired = validation("JUSTIFICATION_REQUIRED", "A comment is required for votes in this phase")
)

// Scheduling errors.
var (
	ErrSweepInProgress = conflict("SWEEP_IN_PROGRESS", "A phase transition sweep is already running")
)
