package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Neutral values given to the metric created alongside every project.
const (
	DefaultSustainabilityScore = 5
	DefaultTimeline            = "6-12 months"
	NotAssessed                = "Not Assessed"
)

// TimelineOptions lists the suggested delivery timelines.
var TimelineOptions = []string{"1-3 months", "3-6 months", "6-12 months", "1-2 years", "2+ years", "ongoing"}

var (
	impactBeneficiaryWeight    = decimal.RequireFromString("0.4")
	impactSustainabilityWeight = decimal.RequireFromString("0.4")
	impactCostWeight           = decimal.RequireFromString("0.2")
	maxComponentScore          = decimal.NewFromInt(10)
	costScoreNumerator         = decimal.NewFromInt(1000)
)

// ImpactMetric holds the impact assessment of a single project
type ImpactMetric struct {
	Base
	ProjectID              string              `gorm:"type:uuid;not null;uniqueIndex" json:"project_id"`
	EstimatedBeneficiaries int                 `gorm:"not null" json:"estimated_beneficiaries"`
	SustainabilityScore    int                 `gorm:"not null" json:"sustainability_score"`
	Timeline               string              `gorm:"not null" json:"timeline"`
	EnvironmentalImpact    string              `json:"environmental_impact,omitempty"`
	SocialImpact           string              `json:"social_impact,omitempty"`
	EconomicImpact         string              `json:"economic_impact,omitempty"`
	CostPerBeneficiary     decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"cost_per_beneficiary"`
}

// BeforeSave recomputes the cost per beneficiary from the owning project's requested amount.
func (m *ImpactMetric) BeforeSave(tx *gorm.DB) error {
	var requested decimal.Decimal
	err := tx.Session(&gorm.Session{NewDB: true}).
		Model(&BudgetProject{}).
		Select("requested_amount").
		Where("id = ?", m.ProjectID).
		Row().Scan(&requested)
	if err != nil {
		return fmt.Errorf("load requested amount: %w", err)
	}
	m.CostPerBeneficiary = CostPerBeneficiary(requested, m.EstimatedBeneficiaries)
	return nil
}

// CostPerBeneficiary is requested/beneficiaries rounded to cents, or null with no beneficiaries.
func CostPerBeneficiary(requested decimal.Decimal, beneficiaries int) decimal.NullDecimal {
	if beneficiaries <= 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(requested.Div(decimal.NewFromInt(int64(beneficiaries))).Round(2))
}

// OverallImpactScore combines beneficiaries, sustainability and cost effectiveness into a 0-10 score.
func (m *ImpactMetric) OverallImpactScore() decimal.Decimal {
	return ImpactScore(m.EstimatedBeneficiaries, m.SustainabilityScore, m.CostPerBeneficiary)
}

// ImpactScore is the weighted score 0.4*beneficiary + 0.4*sustainability + 0.2*cost, rounded to 2 places.
func ImpactScore(beneficiaries, sustainability int, costPerBeneficiary decimal.NullDecimal) decimal.Decimal {
	beneficiaryScore := decimal.Min(decimal.NewFromInt(int64(beneficiaries)).Div(hundred), maxComponentScore)

	costScore := decimal.Zero
	if costPerBeneficiary.Valid && costPerBeneficiary.Decimal.IsPositive() {
		costScore = decimal.Min(costScoreNumerator.Div(costPerBeneficiary.Decimal), maxComponentScore)
	}

	return beneficiaryScore.Mul(impactBeneficiaryWeight).
		Add(decimal.NewFromInt(int64(sustainability)).Mul(impactSustainabilityWeight)).
		Add(costScore.Mul(impactCostWeight)).
		Round(2)
}

// ImpactCategory buckets an overall score.
func ImpactCategory(score decimal.Decimal) string {
	switch {
	case score.LessThan(decimal.NewFromInt(3)):
		return "Low Impact"
	case score.LessThan(decimal.NewFromInt(6)):
		return "Medium Impact"
	case score.LessThan(decimal.NewFromInt(8)):
		return "High Impact"
	default:
		return "Very High Impact"
	}
}

// SustainabilityLevel buckets a 1-10 sustainability score.
func SustainabilityLevel(score int) string {
	switch {
	case score <= 3:
		return "Low"
	case score <= 6:
		return "Medium"
	case score <= 8:
		return "High"
	default:
		return "Very High"
	}
}

func (m *ImpactMetric) ImpactCategory() string {
	return ImpactCategory(m.OverallImpactScore())
}

func (m *ImpactMetric) SustainabilityLevel() string {
	return SustainabilityLevel(m.SustainabilityScore)
}

// ImpactTypes lists which impact dimensions have a description.
func (m *ImpactMetric) ImpactTypes() []string {
	types := []string{}
	if strings.TrimSpace(m.EnvironmentalImpact) != "" {
		types = append(types, "Environmental")
	}
	if strings.TrimSpace(m.SocialImpact) != "" {
		types = append(types, "Social")
	}
	if strings.TrimSpace(m.EconomicImpact) != "" {
		types = append(types, "Economic")
	}
	return types
}

// ImpactSummary renders a one-line description of the assessment.
func (m *ImpactMetric) ImpactSummary() string {
	parts := []string{
		fmt.Sprintf("%d estimated beneficiaries", m.EstimatedBeneficiaries),
		strings.ToLower(m.SustainabilityLevel()) + " sustainability",
		m.Timeline + " timeline",
	}
	if m.CostPerBeneficiary.Valid {
		parts = append(parts, fmt.Sprintf("$%s/beneficiary", m.CostPerBeneficiary.Decimal.StringFixed(2)))
	}
	return strings.Join(parts, ", ")
}
