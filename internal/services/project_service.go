package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/models"
	"civicbudget/internal/pagination"
)

// High-impact projects reach at least this many people with this sustainability.
const (
	highImpactMinBeneficiaries  = 100
	highImpactMinSustainability = 7
)

// projectSortColumns maps list sort keys to columns. Impact keys need the impact_metrics join.
var projectSortColumns = map[string]string{
	"votes":              "budget_projects.votes_count",
	"amount":             "budget_projects.requested_amount",
	"created":            "budget_projects.created_at",
	"impact":             "impact_metrics.estimated_beneficiaries",
	"beneficiaries":      "impact_metrics.estimated_beneficiaries",
	"sustainability":     "impact_metrics.sustainability_score",
	"cost_effectiveness": "impact_metrics.cost_per_beneficiary",
}

// projectService handles project (proposal) business logic.
type projectService struct {
	db *gorm.DB
}

// NewProjectService creates a new ProjectServicer.
func NewProjectService(db *gorm.DB) ProjectServicer {
	return &projectService{db: db}
}

// CreateProject submits a pending proposal and its impact metric. Without impact
// input the metric gets neutral defaults.
func (s *projectService) CreateProject(budgetID, userID string, input ProjectInput) (*models.BudgetProject, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "title and description are required")
	}
	if input.RequestedAmount == nil || input.RequestedAmount.LessThan(models.MinRequestedAmount) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "requested amount must be at least 0.01")
	}

	project := &models.BudgetProject{
		BudgetID:        budgetID,
		CategoryID:      input.CategoryID,
		VotingPhaseID:   input.VotingPhaseID,
		UserID:          userID,
		Title:           title,
		Description:     description,
		RequestedAmount: input.RequestedAmount.Round(2),
		AllocatedAmount: decimal.Zero,
		Status:          models.ProjectStatusPending,
	}
	if input.Justification != nil {
		project.Justification = *input.Justification
	}

	metric := &models.ImpactMetric{
		SustainabilityScore: models.DefaultSustainabilityScore,
		Timeline:            models.DefaultTimeline,
	}
	if input.Impact != nil {
		applyImpactInput(metric, *input.Impact)
	}
	if err := validateImpact(metric); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := findByID[models.Budget](tx, budgetID, apperrors.ErrBudgetNotFound); err != nil {
			return err
		}
		if _, err := findByID[models.User](tx, userID, apperrors.ErrUserNotFound); err != nil {
			return err
		}
		if err := checkProjectRefs(tx, project); err != nil {
			return err
		}
		if err := tx.Create(project).Error; err != nil {
			return err
		}
		metric.ProjectID = project.ID
		return tx.Create(metric).Error
	})
	if err != nil {
		return nil, wrapTx(err)
	}
	project.ImpactMetric = metric
	return project, nil
}

// GetProjectByID returns a project with its category, phase and impact metric.
func (s *projectService) GetProjectByID(id string) (*models.BudgetProject, error) {
	return findByID[models.BudgetProject](s.db.Preload("Category").Preload("VotingPhase").Preload("ImpactMetric"),
		id, apperrors.ErrProjectNotFound)
}

// ListBudgetProjects returns a page of a budget's projects, filtered and sorted.
func (s *projectService) ListBudgetProjects(budgetID string, page pagination.PageRequest, filter ProjectFilter) (*pagination.PageResponse[models.BudgetProject], error) {
	if _, err := findByID[models.Budget](s.db, budgetID, apperrors.ErrBudgetNotFound); err != nil {
		return nil, err
	}

	query := s.db.Model(&models.BudgetProject{}).
		Joins("LEFT JOIN impact_metrics ON impact_metrics.project_id = budget_projects.id").
		Where("budget_projects.budget_id = ?", budgetID)
	if filter.CategoryID != nil {
		query = query.Where("budget_projects.category_id = ?", *filter.CategoryID)
	}
	if filter.VotingPhaseID != nil {
		query = query.Where("budget_projects.voting_phase_id = ?", *filter.VotingPhaseID)
	}
	if filter.Status != nil {
		query = query.Where("budget_projects.status = ?", *filter.Status)
	}
	if filter.HighImpact {
		query = query.Where("impact_metrics.sustainability_score >= ? AND impact_metrics.estimated_beneficiaries >= ?",
			highImpactMinSustainability, highImpactMinBeneficiaries)
	}

	sort := filter.Sort
	if sort.SortBy == "cost_effectiveness" && sort.SortOrder == "" {
		sort.SortOrder = "asc"
	}

	result, err := pagination.Fetch[models.BudgetProject](query, page,
		func(db *gorm.DB) *gorm.DB {
			return db.Select("budget_projects.*").Preload("Category").Preload("ImpactMetric")
		},
		pagination.OrderBy(sort, projectSortColumns, "budget_projects.created_at DESC"),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// UpdateProject edits a project. Moving an approved project to another category
// re-checks the destination category's limit under its row lock.
func (s *projectService) UpdateProject(id string, input ProjectInput) (*models.BudgetProject, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		project, err := lockByID[models.BudgetProject](tx, id, apperrors.ErrProjectNotFound)
		if err != nil {
			return err
		}

		categoryChanged := input.CategoryID != "" && input.CategoryID != project.CategoryID
		if title := strings.TrimSpace(input.Title); title != "" {
			project.Title = title
		}
		if description := strings.TrimSpace(input.Description); description != "" {
			project.Description = description
		}
		if input.Justification != nil {
			project.Justification = *input.Justification
		}
		if input.CategoryID != "" {
			project.CategoryID = input.CategoryID
		}
		if input.VotingPhaseID != nil {
			if *input.VotingPhaseID == "" {
				project.VotingPhaseID = nil
			} else {
				project.VotingPhaseID = input.VotingPhaseID
			}
		}
		amountChanged := false
		if input.RequestedAmount != nil {
			if input.RequestedAmount.LessThan(models.MinRequestedAmount) {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "requested amount must be at least 0.01")
			}
			amountChanged = !input.RequestedAmount.Round(2).Equal(project.RequestedAmount)
			project.RequestedAmount = input.RequestedAmount.Round(2)
		}
		if err := checkProjectRefs(tx, project); err != nil {
			return err
		}

		if categoryChanged && project.Status == models.ProjectStatusApproved {
			if err := ensureCategoryAbsorbs(tx, project.BudgetID, project.CategoryID, project.AllocatedAmount); err != nil {
				return err
			}
		}

		if err := tx.Model(project).Select("category_id", "voting_phase_id", "title", "description",
			"justification", "requested_amount").Updates(project).Error; err != nil {
			return err
		}

		if amountChanged {
			// Re-save so the cost per beneficiary follows the new request.
			var metric models.ImpactMetric
			err := tx.Where("project_id = ?", project.ID).First(&metric).Error
			switch {
			case err == nil:
				return tx.Save(&metric).Error
			case errors.Is(err, gorm.ErrRecordNotFound):
				return nil
			default:
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapTx(err)
	}
	return s.GetProjectByID(id)
}

// UpdateImpactMetric edits a project's impact assessment, creating it if missing.
func (s *projectService) UpdateImpactMetric(projectID string, input ImpactInput) (*models.ImpactMetric, error) {
	var metric models.ImpactMetric
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := findByID[models.BudgetProject](tx, projectID, apperrors.ErrProjectNotFound); err != nil {
			return err
		}
		err := tx.Where("project_id = ?", projectID).First(&metric).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metric = models.ImpactMetric{
				ProjectID:           projectID,
				SustainabilityScore: models.DefaultSustainabilityScore,
				Timeline:            models.DefaultTimeline,
			}
		} else if err != nil {
			return err
		}

		applyImpactInput(&metric, input)
		if err := validateImpact(&metric); err != nil {
			return err
		}
		return tx.Save(&metric).Error
	})
	if err != nil {
		return nil, wrapTx(err)
	}
	return &metric, nil
}

// DeleteProject removes a project with its votes and impact metric.
func (s *projectService) DeleteProject(id string) error {
	if _, err := findByID[models.BudgetProject](s.db, id, apperrors.ErrProjectNotFound); err != nil {
		return err
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return deleteProjects(tx, []string{id})
	})
	return wrapTx(err)
}

// GetImpact scores a project's impact, falling back to neutral values when unassessed.
func (s *projectService) GetImpact(id string) (*ImpactAssessment, error) {
	project, err := findByID[models.BudgetProject](s.db.Preload("ImpactMetric"), id, apperrors.ErrProjectNotFound)
	if err != nil {
		return nil, err
	}

	assessment := &ImpactAssessment{
		ProjectID:              project.ID,
		Assessed:               project.ImpactMetric != nil,
		OverallScore:           project.ImpactScore(),
		Category:               project.ImpactCategory(),
		EstimatedBeneficiaries: project.EstimatedBeneficiaries(),
		Summary:                project.ImpactSummary(),
		ImpactTypes:            []string{},
	}
	if m := project.ImpactMetric; m != nil {
		assessment.SustainabilityLevel = m.SustainabilityLevel()
		assessment.CostPerBeneficiary = m.CostPerBeneficiary
		assessment.ImpactTypes = m.ImpactTypes()
	}
	return assessment, nil
}

// GetApprovalInsight previews what approving the project at its requested amount would do.
func (s *projectService) GetApprovalInsight(ctx context.Context, id string) (*ApprovalInsight, error) {
	db := s.db.WithContext(ctx)
	project, err := findByID[models.BudgetProject](db, id, apperrors.ErrProjectNotFound)
	if err != nil {
		return nil, err
	}
	check, err := checkApproval(db, project, project.RequestedAmount)
	if err != nil {
		return nil, err
	}

	budgetVotes, err := countRows(db.Model(&models.Vote{}).
		Joins("JOIN budget_projects ON budget_projects.id = votes.project_id").
		Where("budget_projects.budget_id = ?", project.BudgetID))
	if err != nil {
		return nil, err
	}

	insight := &ApprovalInsight{
		ProjectID:          project.ID,
		WouldExceedLimit:   !check.within,
		UtilizationNow:     models.UtilizationPercent(check.committed, check.limit),
		FundingPercentage:  project.FundingPercentage(),
		ApprovalPercentage: models.ApprovalPercentage(project.VotesCount, budgetVotes),
	}
	switch {
	case project.Status != models.ProjectStatusPending:
		insight.Reason = apperrors.ErrProjectNotPending.Message
		insight.UtilizationAfterApproval = insight.UtilizationNow
	case !check.within:
		insight.Reason = apperrors.ErrCategoryLimitExceeded.Message
		insight.UtilizationAfterApproval = decimal.NewFromInt(100)
	default:
		insight.CanApprove = true
		insight.UtilizationAfterApproval = models.UtilizationPercent(check.committed.Add(project.RequestedAmount), check.limit)
	}
	return insight, nil
}

// checkProjectRefs verifies the project's category and phase belong to its budget.
func checkProjectRefs(tx *gorm.DB, p *models.BudgetProject) error {
	category, err := findByID[models.BudgetCategory](tx, p.CategoryID, apperrors.ErrCategoryNotFound)
	if err != nil {
		return err
	}
	if category.BudgetID != p.BudgetID {
		return apperrors.ErrCategoryBudgetMismatch
	}
	if p.VotingPhaseID != nil {
		phase, err := findByID[models.VotingPhase](tx, *p.VotingPhaseID, apperrors.ErrPhaseNotFound)
		if err != nil {
			return err
		}
		if phase.BudgetID != p.BudgetID {
			return apperrors.ErrPhaseBudgetMismatch
		}
	}
	return nil
}

func applyImpactInput(m *models.ImpactMetric, in ImpactInput) {
	if in.EstimatedBeneficiaries != nil {
		m.EstimatedBeneficiaries = *in.EstimatedBeneficiaries
	}
	if in.SustainabilityScore != nil {
		m.SustainabilityScore = *in.SustainabilityScore
	}
	if in.Timeline != nil {
		m.Timeline = strings.TrimSpace(*in.Timeline)
	}
	if in.EnvironmentalImpact != nil {
		m.EnvironmentalImpact = *in.EnvironmentalImpact
	}
	if in.SocialImpact != nil {
		m.SocialImpact = *in.SocialImpact
	}
	if in.EconomicImpact != nil {
		m.EconomicImpact = *in.EconomicImpact
	}
}

func validateImpact(m *models.ImpactMetric) error {
	if m.EstimatedBeneficiaries < 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "estimated beneficiaries must be >= 0")
	}
	if m.SustainabilityScore < 1 || m.SustainabilityScore > 10 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "sustainability score must be between 1 and 10")
	}
	if m.Timeline == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "timeline is required")
	}
	return nil
}
