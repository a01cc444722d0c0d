package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"civicbudget/internal/models"
	"civicbudget/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, firstName, lastName string, availableVotes *int) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	SetAvailableVotes(id string, votes int) (*models.User, error)
	DeleteUser(id string) error
}

// BudgetInput carries the editable fields of a budget. Nil fields are left unchanged on update.
type BudgetInput struct {
	Name            string
	Description     *string
	TotalFunds      *decimal.Decimal
	VotingStartDate *time.Time
	VotingEndDate   *time.Time
	Active          *bool
}

// BudgetSummary aggregates allocation and participation figures for a budget.
type BudgetSummary struct {
	BudgetID           string                `json:"budget_id"`
	Status             models.BudgetStatus   `json:"status"`
	VotingActive       bool                  `json:"voting_active"`
	TotalFunds         decimal.Decimal       `json:"total_funds"`
	TotalAllocated     decimal.Decimal       `json:"total_allocated"`
	RemainingFunds     decimal.Decimal       `json:"remaining_funds"`
	UtilizationPercent decimal.Decimal       `json:"utilization_percent"`
	TotalVotesCast     int64                 `json:"total_votes_cast"`
	Participants       int64                 `json:"participants"`
	ProjectCounts      map[string]int64      `json:"project_counts"`
	CurrentPhaseID     *string               `json:"current_phase_id,omitempty"`
	Categories         []CategoryUtilization `json:"categories"`
}

// ProjectStanding is a project's position in a phase's results.
type ProjectStanding struct {
	ProjectID          string          `json:"project_id"`
	Title              string          `json:"title"`
	VotesCount         int64           `json:"votes_count"`
	WeightedVotes      decimal.Decimal `json:"weighted_votes"`
	ApprovalPercentage decimal.Decimal `json:"approval_percentage"`
	AdvancesToNext     bool            `json:"advances_to_next_phase"`
}

// PhaseResults ranks the projects voted on within a phase.
type PhaseResults struct {
	PhaseID   string            `json:"phase_id"`
	Threshold int               `json:"threshold_for_next_phase"`
	Standings []ProjectStanding `json:"standings"`
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(input BudgetInput) (*models.Budget, error)
	GetBudgetByID(id string) (*models.Budget, error)
	ListBudgets(page pagination.PageRequest, status *models.BudgetStatus) (*pagination.PageResponse[models.Budget], error)
	UpdateBudget(id string, input BudgetInput) (*models.Budget, error)
	TransitionStatus(id string, next models.BudgetStatus) (*models.Budget, error)
	DeleteBudget(id string) error
	GetBudgetSummary(ctx context.Context, id string) (*BudgetSummary, error)
	GetPhaseResults(ctx context.Context, phaseID string) (*PhaseResults, error)
}

// CategoryInput carries the editable fields of a category. Nil fields are left unchanged on update.
type CategoryInput struct {
	Name                    string
	Description             *string
	Color                   *string
	SpendingLimitPercentage *int
	Position                *int
}

// CategoryUtilization reports how much of a category's limit is committed.
type CategoryUtilization struct {
	CategoryID              string                   `json:"category_id"`
	Name                    string                   `json:"name"`
	SpendingLimitPercentage int                      `json:"spending_limit_percentage"`
	LimitAmount             decimal.Decimal          `json:"limit_amount"`
	TotalAllocated          decimal.Decimal          `json:"total_allocated"`
	TotalRequested          decimal.Decimal          `json:"total_requested"`
	Remaining               decimal.Decimal          `json:"remaining"`
	UtilizationPercent      decimal.Decimal          `json:"utilization_percent"`
	Status                  models.UtilizationStatus `json:"utilization_status"`
	OverLimit               bool                     `json:"over_limit"`
	NearLimit               bool                     `json:"near_limit"`
	ProjectsCount           int64                    `json:"projects_count"`
	ApprovedCount           int64                    `json:"approved_projects_count"`
	PendingCount            int64                    `json:"pending_projects_count"`
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(budgetID string, input CategoryInput) (*models.BudgetCategory, error)
	GetCategoryByID(id string) (*models.BudgetCategory, error)
	ListBudgetCategories(budgetID string) ([]models.BudgetCategory, error)
	UpdateCategory(id string, input CategoryInput) (*models.BudgetCategory, error)
	DeleteCategory(id string) error
	GetUtilization(ctx context.Context, id string) (*CategoryUtilization, error)
	WithinLimit(ctx context.Context, id string, additional decimal.Decimal) (bool, error)
}

// PhaseInput carries the editable fields of a voting phase. Nil fields are left unchanged on update.
type PhaseInput struct {
	Name            string
	Description     *string
	StartDate       *time.Time
	EndDate         *time.Time
	MaxVotesPerUser *int
	Position        *int
	Active          *bool
	Rules           *models.PhaseRules
}

// PhaseStatusReport is the read model for a phase's lifecycle and participation.
type PhaseStatusReport struct {
	PhaseID         string             `json:"phase_id"`
	Name            string             `json:"name"`
	Status          models.PhaseStatus `json:"status"`
	Active          bool               `json:"active"`
	DurationInDays  int                `json:"duration_in_days"`
	VotesCast       int64              `json:"votes_cast"`
	Participants    int64              `json:"participants"`
	ProjectsCount   int64              `json:"projects_count"`
	MaxVotesPerUser int                `json:"max_votes_per_user"`
	VotesRemaining  *int               `json:"votes_remaining,omitempty"`
	Rules           models.PhaseRules  `json:"rules"`
}

// PhaseServicer defines the contract for voting phase business logic.
type PhaseServicer interface {
	CreatePhase(ctx context.Context, budgetID string, input PhaseInput) (*models.VotingPhase, error)
	GetPhaseByID(id string) (*models.VotingPhase, error)
	ListBudgetPhases(budgetID string) ([]models.VotingPhase, error)
	UpdatePhase(ctx context.Context, id string, input PhaseInput) (*models.VotingPhase, error)
	SetPhaseActive(ctx context.Context, id string, active bool) (*models.VotingPhase, error)
	DeletePhase(ctx context.Context, id string) error
	GetPhaseStatus(ctx context.Context, id string, userID *string) (*PhaseStatusReport, error)
}

// SweepResult summarizes one phase transition sweep.
type SweepResult struct {
	Deactivated    int           `json:"deactivated"`
	Activated      int           `json:"activated"`
	BudgetsScanned int           `json:"budgets_scanned"`
	Duration       time.Duration `json:"duration"`
}

// PhaseSweeper runs the periodic phase transition sweep.
type PhaseSweeper interface {
	RunPhaseTransitionSweep(ctx context.Context) (*SweepResult, error)
}

// ImpactInput carries the editable fields of an impact metric.
type ImpactInput struct {
	EstimatedBeneficiaries *int
	SustainabilityScore    *int
	Timeline               *string
	EnvironmentalImpact    *string
	SocialImpact           *string
	EconomicImpact         *string
}

// ProjectInput carries the editable fields of a project. Nil fields are left unchanged on update.
type ProjectInput struct {
	CategoryID      string
	VotingPhaseID   *string
	Title           string
	Description     string
	Justification   *string
	RequestedAmount *decimal.Decimal
	Impact          *ImpactInput
}

// ProjectFilter holds optional filters and ordering for listing projects.
type ProjectFilter struct {
	CategoryID    *string
	VotingPhaseID *string
	Status        *models.ProjectStatus
	HighImpact    bool
	Sort          pagination.SortRequest
}

// ImpactAssessment is the scored view of a project's impact metric.
type ImpactAssessment struct {
	ProjectID              string              `json:"project_id"`
	Assessed               bool                `json:"assessed"`
	OverallScore           decimal.Decimal     `json:"overall_impact_score"`
	Category               string              `json:"impact_category"`
	SustainabilityLevel    string              `json:"sustainability_level,omitempty"`
	EstimatedBeneficiaries int                 `json:"estimated_beneficiaries"`
	CostPerBeneficiary     decimal.NullDecimal `json:"cost_per_beneficiary"`
	Summary                string              `json:"impact_summary"`
	ImpactTypes            []string            `json:"impact_types"`
}

// ApprovalInsight previews the effect of approving a project on its category.
type ApprovalInsight struct {
	ProjectID                string          `json:"project_id"`
	CanApprove               bool            `json:"can_approve"`
	Reason                   string          `json:"reason,omitempty"`
	WouldExceedLimit         bool            `json:"would_exceed_category_limit"`
	UtilizationNow           decimal.Decimal `json:"category_utilization_now"`
	UtilizationAfterApproval decimal.Decimal `json:"category_utilization_after_approval"`
	FundingPercentage        decimal.Decimal `json:"funding_percentage"`
	ApprovalPercentage       decimal.Decimal `json:"approval_percentage"`
}

// ProjectServicer defines the contract for project (proposal) business logic.
type ProjectServicer interface {
	CreateProject(budgetID, userID string, input ProjectInput) (*models.BudgetProject, error)
	GetProjectByID(id string) (*models.BudgetProject, error)
	ListBudgetProjects(budgetID string, page pagination.PageRequest, filter ProjectFilter) (*pagination.PageResponse[models.BudgetProject], error)
	UpdateProject(id string, input ProjectInput) (*models.BudgetProject, error)
	UpdateImpactMetric(projectID string, input ImpactInput) (*models.ImpactMetric, error)
	DeleteProject(id string) error
	GetImpact(id string) (*ImpactAssessment, error)
	GetApprovalInsight(ctx context.Context, id string) (*ApprovalInsight, error)
}

// BatchOutcome is the per-project result of a batch approval or rejection.
type BatchOutcome struct {
	ProjectID string `json:"project_id"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
}

// BatchResult tallies a batch approval or rejection.
type BatchResult struct {
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Outcomes  []BatchOutcome `json:"outcomes"`
}

// ApprovalServicer defines the contract for approving and rejecting projects.
type ApprovalServicer interface {
	ApproveProject(ctx context.Context, projectID string, allocation *decimal.Decimal) (*models.BudgetProject, error)
	RejectProject(ctx context.Context, projectID, reason string) (*models.BudgetProject, error)
	AdjustAllocation(ctx context.Context, projectID string, allocation decimal.Decimal) (*models.BudgetProject, error)
	MarkImplemented(ctx context.Context, projectID string) (*models.BudgetProject, error)
	CanApprove(ctx context.Context, projectID string, allocation *decimal.Decimal) (bool, error)
	BatchApprove(ctx context.Context, projectIDs []string) (*BatchResult, error)
	BatchReject(ctx context.Context, projectIDs []string, reason string) (*BatchResult, error)
}

// Eligibility is the outcome of the vote eligibility gate.
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Code     string `json:"code,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// VoteInput carries the optional parts of a vote.
type VoteInput struct {
	Weight  *decimal.Decimal
	Comment string
}

// VotingServicer defines the contract for casting and retracting votes.
type VotingServicer interface {
	CastVote(ctx context.Context, projectID, userID string, input VoteInput) (*models.Vote, error)
	RetractVote(ctx context.Context, projectID, userID string) error
	CheckEligibility(ctx context.Context, projectID, userID string) (*Eligibility, error)
	VotesRemaining(ctx context.Context, userID, budgetID string) (int, error)
}

// HighImpactProject is a row in the impact report.
type HighImpactProject struct {
	ProjectID              string          `json:"project_id"`
	BudgetID               string          `json:"budget_id"`
	Title                  string          `json:"title"`
	AllocatedAmount        decimal.Decimal `json:"allocated_amount"`
	EstimatedBeneficiaries int             `json:"estimated_beneficiaries"`
	SustainabilityScore    int             `json:"sustainability_score"`
	OverallScore           decimal.Decimal `json:"overall_impact_score"`
	Category               string          `json:"impact_category"`
}

// ImpactReport aggregates impact across approved and implemented projects.
type ImpactReport struct {
	FundedProjects        int                 `json:"funded_projects"`
	TotalBeneficiaries    int64               `json:"total_beneficiaries"`
	AverageSustainability decimal.Decimal     `json:"average_sustainability"`
	TotalAllocated        decimal.Decimal     `json:"total_allocated"`
	HighImpactProjects    []HighImpactProject `json:"high_impact_projects"`
}

// ImpactReportServicer defines the contract for the impact report.
type ImpactReportServicer interface {
	GetImpactReport(ctx context.Context, budgetID *string) (*ImpactReport, error)
}
