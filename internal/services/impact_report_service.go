package services

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/models"
)

// impactReportService aggregates impact across funded projects.
type impactReportService struct {
	db *gorm.DB
}

// NewImpactReportService creates a new ImpactReportServicer.
func NewImpactReportService(db *gorm.DB) ImpactReportServicer {
	return &impactReportService{db: db}
}

// GetImpactReport summarizes approved and implemented projects, optionally for one budget.
// High-impact projects are those reaching highImpactMinBeneficiaries people with a
// sustainability score of at least highImpactMinSustainability, ranked by overall score.
func (s *impactReportService) GetImpactReport(ctx context.Context, budgetID *string) (*ImpactReport, error) {
	q := s.db.WithContext(ctx).Preload("ImpactMetric").Where("status IN ?", fundedStatuses)
	if budgetID != nil {
		if _, err := findByID[models.Budget](s.db.WithContext(ctx), *budgetID, apperrors.ErrBudgetNotFound); err != nil {
			return nil, err
		}
		q = q.Where("budget_id = ?", *budgetID)
	}

	var projects []models.BudgetProject
	if err := q.Find(&projects).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	report := &ImpactReport{
		FundedProjects:        len(projects),
		TotalAllocated:        decimal.Zero,
		AverageSustainability: decimal.Zero,
		HighImpactProjects:    []HighImpactProject{},
	}
	var sustainabilitySum, assessed int64
	for i := range projects {
		p := &projects[i]
		report.TotalAllocated = report.TotalAllocated.Add(p.AllocatedAmount)
		m := p.ImpactMetric
		if m == nil {
			continue
		}
		assessed++
		sustainabilitySum += int64(m.SustainabilityScore)
		report.TotalBeneficiaries += int64(m.EstimatedBeneficiaries)

		if m.EstimatedBeneficiaries >= highImpactMinBeneficiaries && m.SustainabilityScore >= highImpactMinSustainability {
			score := m.OverallImpactScore()
			report.HighImpactProjects = append(report.HighImpactProjects, HighImpactProject{
				ProjectID:              p.ID,
				BudgetID:               p.BudgetID,
				Title:                  p.Title,
				AllocatedAmount:        p.AllocatedAmount,
				EstimatedBeneficiaries: m.EstimatedBeneficiaries,
				SustainabilityScore:    m.SustainabilityScore,
				OverallScore:           score,
				Category:               models.ImpactCategory(score),
			})
		}
	}
	if assessed > 0 {
		report.AverageSustainability = decimal.NewFromInt(sustainabilitySum).Div(decimal.NewFromInt(assessed)).Round(2)
	}
	report.TotalAllocated = report.TotalAllocated.Round(2)

	sort.SliceStable(report.HighImpactProjects, func(i, j int) bool {
		return report.HighImpactProjects[i].OverallScore.GreaterThan(report.HighImpactProjects[j].OverallScore)
	})
	return report, nil
}
