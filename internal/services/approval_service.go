package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/logger"
	"civicbudget/internal/models"
	"civicbudget/internal/uuid"
)

// approvalService moves projects through review while holding category limits.
type approvalService struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// NewApprovalService creates a new ApprovalServicer.
func NewApprovalService(db *gorm.DB) ApprovalServicer {
	return &approvalService{db: db, log: logger.Named("approval")}
}

// approvalCheck is the limit calculation for allocating amount to a project.
type approvalCheck struct {
	category  *models.BudgetCategory
	committed decimal.Decimal
	limit     decimal.Decimal
	within    bool
}

// checkApproval evaluates whether the project's category can hold amount for it.
// An allocation the project already holds is credited back first.
func checkApproval(tx *gorm.DB, project *models.BudgetProject, amount decimal.Decimal) (*approvalCheck, error) {
	category, err := findByID[models.BudgetCategory](tx, project.CategoryID, apperrors.ErrCategoryNotFound)
	if err != nil {
		return nil, err
	}
	return checkCategory(tx, project, category, amount)
}

func checkCategory(tx *gorm.DB, project *models.BudgetProject, category *models.BudgetCategory, amount decimal.Decimal) (*approvalCheck, error) {
	budget, err := findByID[models.Budget](tx, category.BudgetID, apperrors.ErrBudgetNotFound)
	if err != nil {
		return nil, err
	}
	committed, err := committedInCategory(tx, category.ID)
	if err != nil {
		return nil, err
	}

	additional := amount
	if isCommitted(project.Status) && project.CategoryID == category.ID {
		additional = amount.Sub(project.AllocatedAmount)
	}
	limit := category.LimitAmount(budget.TotalFunds)
	return &approvalCheck{
		category:  category,
		committed: committed,
		limit:     limit,
		within:    models.WithinLimit(category.SpendingLimitPercentage, committed, additional, limit),
	}, nil
}

// ensureCategoryAbsorbs locks a category and checks it can take amount on top of its commitments.
func ensureCategoryAbsorbs(tx *gorm.DB, budgetID, categoryID string, amount decimal.Decimal) error {
	category, err := lockByID[models.BudgetCategory](tx, categoryID, apperrors.ErrCategoryNotFound)
	if err != nil {
		return err
	}
	if category.BudgetID != budgetID {
		return apperrors.ErrCategoryBudgetMismatch
	}
	check, err := checkCategory(tx, &models.BudgetProject{Status: models.ProjectStatusPending}, category, amount)
	if err != nil {
		return err
	}
	if !check.within {
		return apperrors.ErrCategoryLimitExceeded
	}
	return nil
}

func isCommitted(status models.ProjectStatus) bool {
	for _, s := range committedStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// ApproveProject approves a pending project with allocation, defaulting to the
// requested amount. The limit check and the write share one transaction that
// holds the category row lock, so concurrent approvals in a category serialize.
func (s *approvalService) ApproveProject(ctx context.Context, projectID string, allocation *decimal.Decimal) (*models.BudgetProject, error) {
	var project *models.BudgetProject
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		project, err = lockByID[models.BudgetProject](tx, projectID, apperrors.ErrProjectNotFound)
		if err != nil {
			return err
		}
		if project.Status != models.ProjectStatusPending {
			return apperrors.WithMessage(apperrors.ErrProjectNotPending,
				"Only pending projects can be approved (status: "+string(project.Status)+")")
		}

		amount := project.RequestedAmount
		if allocation != nil {
			amount = allocation.Round(2)
		}
		if !amount.IsPositive() {
			return apperrors.ErrInvalidAllocation
		}

		if err := s.lockAndCheck(tx, project, amount); err != nil {
			return err
		}

		res := tx.Model(&models.BudgetProject{}).
			Where("id = ? AND status = ?", projectID, models.ProjectStatusPending).
			Updates(map[string]interface{}{
				"status":           models.ProjectStatusApproved,
				"allocated_amount": amount,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrProjectNotPending
		}
		project.Status = models.ProjectStatusApproved
		project.AllocatedAmount = amount
		return nil
	})
	if err != nil {
		return nil, wrapTx(err)
	}

	s.log.Infow("project approved", "project_id", projectID, "allocated_amount", project.AllocatedAmount.StringFixed(2))
	return project, nil
}

// RejectProject rejects a pending project, appending the reason to its justification.
func (s *approvalService) RejectProject(ctx context.Context, projectID, reason string) (*models.BudgetProject, error) {
	var project *models.BudgetProject
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		project, err = lockByID[models.BudgetProject](tx, projectID, apperrors.ErrProjectNotFound)
		if err != nil {
			return err
		}
		if project.Status != models.ProjectStatusPending {
			return apperrors.WithMessage(apperrors.ErrProjectNotPending,
				"Only pending projects can be rejected (status: "+string(project.Status)+")")
		}

		justification := project.Justification
		if reason = strings.TrimSpace(reason); reason != "" {
			justification += "\n\nRejection reason: " + reason
		}

		res := tx.Model(&models.BudgetProject{}).
			Where("id = ? AND status = ?", projectID, models.ProjectStatusPending).
			Updates(map[string]interface{}{
				"status":        models.ProjectStatusRejected,
				"justification": justification,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrProjectNotPending
		}
		project.Status = models.ProjectStatusRejected
		project.Justification = justification
		return nil
	})
	if err != nil {
		return nil, wrapTx(err)
	}

	s.log.Infow("project rejected", "project_id", projectID)
	return project, nil
}

// AdjustAllocation changes an approved project's allocation within its category limit.
func (s *approvalService) AdjustAllocation(ctx context.Context, projectID string, allocation decimal.Decimal) (*models.BudgetProject, error) {
	amount := allocation.Round(2)
	if !amount.IsPositive() {
		return nil, apperrors.ErrInvalidAllocation
	}

	var project *models.BudgetProject
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		project, err = lockByID[models.BudgetProject](tx, projectID, apperrors.ErrProjectNotFound)
		if err != nil {
			return err
		}
		if project.Status != models.ProjectStatusApproved {
			return apperrors.ErrProjectNotApproved
		}
		if err := s.lockAndCheck(tx, project, amount); err != nil {
			return err
		}
		if err := tx.Model(&models.BudgetProject{}).Where("id = ?", projectID).
			Update("allocated_amount", amount).Error; err != nil {
			return err
		}
		project.AllocatedAmount = amount
		return nil
	})
	if err != nil {
		return nil, wrapTx(err)
	}
	return project, nil
}

// MarkImplemented moves an approved project to implemented. Its allocation stays committed.
func (s *approvalService) MarkImplemented(ctx context.Context, projectID string) (*models.BudgetProject, error) {
	project, err := findByID[models.BudgetProject](s.db.WithContext(ctx), projectID, apperrors.ErrProjectNotFound)
	if err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).Model(&models.BudgetProject{}).
		Where("id = ? AND status = ?", projectID, models.ProjectStatusApproved).
		Update("status", models.ProjectStatusImplemented)
	if res.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.ErrProjectNotApproved
	}
	project.Status = models.ProjectStatusImplemented
	return project, nil
}

// CanApprove is the read-only form of ApproveProject.
func (s *approvalService) CanApprove(ctx context.Context, projectID string, allocation *decimal.Decimal) (bool, error) {
	db := s.db.WithContext(ctx)
	project, err := findByID[models.BudgetProject](db, projectID, apperrors.ErrProjectNotFound)
	if err != nil {
		return false, err
	}
	if project.Status != models.ProjectStatusPending {
		return false, nil
	}
	amount := project.RequestedAmount
	if allocation != nil {
		amount = allocation.Round(2)
	}
	if !amount.IsPositive() {
		return false, nil
	}
	check, err := checkApproval(db, project, amount)
	if err != nil {
		return false, err
	}
	return check.within, nil
}

// BatchApprove approves each project at its requested amount, one transaction per project.
func (s *approvalService) BatchApprove(ctx context.Context, projectIDs []string) (*BatchResult, error) {
	return s.batch(projectIDs, "Project approved", func(id string) error {
		_, err := s.ApproveProject(ctx, id, nil)
		return err
	})
}

// BatchReject rejects each project with the same reason.
func (s *approvalService) BatchReject(ctx context.Context, projectIDs []string, reason string) (*BatchResult, error) {
	return s.batch(projectIDs, "Project rejected", func(id string) error {
		_, err := s.RejectProject(ctx, id, reason)
		return err
	})
}

func (s *approvalService) batch(ids []string, okMessage string, apply func(id string) error) (*BatchResult, error) {
	ids = uuid.Unique(ids)
	result := &BatchResult{Outcomes: make([]BatchOutcome, 0, len(ids))}
	for _, id := range ids {
		outcome, err := Outcome(apply(id), okMessage)
		if err != nil {
			return nil, err
		}
		if outcome.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
		result.Outcomes = append(result.Outcomes, BatchOutcome{ProjectID: id, Success: outcome.Success, Message: outcome.Message})
	}
	return result, nil
}

// lockAndCheck takes the category row lock and rejects amounts that break its limit.
func (s *approvalService) lockAndCheck(tx *gorm.DB, project *models.BudgetProject, amount decimal.Decimal) error {
	category, err := lockByID[models.BudgetCategory](tx, project.CategoryID, apperrors.ErrCategoryNotFound)
	if err != nil {
		return err
	}
	check, err := checkCategory(tx, project, category, amount)
	if err != nil {
		return err
	}
	if !check.within {
		s.log.Infow("approval blocked by category limit",
			"project_id", project.ID,
			"category_id", category.ID,
			"committed", check.committed.StringFixed(2),
			"limit", check.limit.StringFixed(2),
			"amount", amount.StringFixed(2),
		)
		return apperrors.ErrCategoryLimitExceeded
	}
	return nil
}
