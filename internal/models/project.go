package models

import "github.com/shopspring/decimal"

// ProjectStatus represents where a proposal is in review
type ProjectStatus string

const (
	ProjectStatusPending     ProjectStatus = "pending"
	ProjectStatusApproved    ProjectStatus = "approved"
	ProjectStatusRejected    ProjectStatus = "rejected"
	ProjectStatusImplemented ProjectStatus = "implemented"
)

// MinRequestedAmount is the smallest amount a proposal may request.
var MinRequestedAmount = decimal.RequireFromString("0.01")

// BudgetProject is a funding proposal competing for a budget's funds
type BudgetProject struct {
	Base
	BudgetID        string          `gorm:"type:uuid;not null;index" json:"budget_id"`
	CategoryID      string          `gorm:"type:uuid;not null;index" json:"category_id"`
	VotingPhaseID   *string         `gorm:"type:uuid;index" json:"voting_phase_id,omitempty"`
	UserID          string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Title           string          `gorm:"not null" json:"title"`
	Description     string          `gorm:"not null" json:"description"`
	Justification   string          `json:"justification"`
	RequestedAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"requested_amount"`
	AllocatedAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"allocated_amount"`
	Status          ProjectStatus   `gorm:"not null;index" json:"status"`
	VotesCount      int64           `gorm:"not null" json:"votes_count"`

	// Relationships
	Category     *BudgetCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	VotingPhase  *VotingPhase    `gorm:"foreignKey:VotingPhaseID" json:"voting_phase,omitempty"`
	ImpactMetric *ImpactMetric   `gorm:"foreignKey:ProjectID" json:"impact_metric,omitempty"`
}

// ImpactScore falls back to zero when the project has not been assessed.
func (p *BudgetProject) ImpactScore() decimal.Decimal {
	if p.ImpactMetric == nil {
		return decimal.Zero
	}
	return p.ImpactMetric.OverallImpactScore()
}

func (p *BudgetProject) ImpactCategory() string {
	if p.ImpactMetric == nil {
		return NotAssessed
	}
	return p.ImpactMetric.ImpactCategory()
}

func (p *BudgetProject) EstimatedBeneficiaries() int {
	if p.ImpactMetric == nil {
		return 0
	}
	return p.ImpactMetric.EstimatedBeneficiaries
}

func (p *BudgetProject) ImpactSummary() string {
	if p.ImpactMetric == nil {
		return NotAssessed
	}
	return p.ImpactMetric.ImpactSummary()
}

// FundingPercentage is allocated/requested as a percentage rounded to 2 places.
func (p *BudgetProject) FundingPercentage() decimal.Decimal {
	if p.RequestedAmount.IsZero() {
		return decimal.Zero
	}
	return p.AllocatedAmount.Div(p.RequestedAmount).Mul(hundred).Round(2)
}

// FullyFunded reports whether the allocation covers the request.
func (p *BudgetProject) FullyFunded() bool {
	return p.AllocatedAmount.GreaterThanOrEqual(p.RequestedAmount)
}

// ApprovalPercentage is this project's share of all votes cast in its budget.
func ApprovalPercentage(projectVotes, budgetVotes int64) decimal.Decimal {
	if budgetVotes == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(projectVotes).Div(decimal.NewFromInt(budgetVotes)).Mul(hundred).Round(2)
}
