package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/models"
)

// nearLimitThreshold is the utilization percentage at which a category is flagged.
var nearLimitThreshold = decimal.NewFromInt(90)

// categoryService handles category-related business logic.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// CreateCategory adds a spending category to a budget.
func (s *categoryService) CreateCategory(budgetID string, input CategoryInput) (*models.BudgetCategory, error) {
	if _, err := findByID[models.Budget](s.db, budgetID, apperrors.ErrBudgetNotFound); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name is required")
	}

	category := &models.BudgetCategory{
		BudgetID:                budgetID,
		Name:                    name,
		Color:                   models.DefaultCategoryColor,
		SpendingLimitPercentage: models.UnlimitedPercentage,
	}
	if input.Description != nil {
		category.Description = *input.Description
	}
	if input.Color != nil && *input.Color != "" {
		category.Color = *input.Color
	}
	if input.SpendingLimitPercentage != nil {
		category.SpendingLimitPercentage = *input.SpendingLimitPercentage
	}
	if input.Position != nil {
		category.Position = *input.Position
	}
	if err := validateCategory(category); err != nil {
		return nil, err
	}

	if err := s.db.Create(category).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.ErrDuplicateCategoryName
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return category, nil
}

// GetCategoryByID returns a category by ID.
func (s *categoryService) GetCategoryByID(id string) (*models.BudgetCategory, error) {
	return findByID[models.BudgetCategory](s.db, id, apperrors.ErrCategoryNotFound)
}

// ListBudgetCategories returns a budget's categories ordered by position then name.
func (s *categoryService) ListBudgetCategories(budgetID string) ([]models.BudgetCategory, error) {
	if _, err := findByID[models.Budget](s.db, budgetID, apperrors.ErrBudgetNotFound); err != nil {
		return nil, err
	}
	categories := []models.BudgetCategory{}
	if err := s.db.Where("budget_id = ?", budgetID).Order("position ASC, name ASC").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return categories, nil
}

// UpdateCategory edits a category. A spending limit below the category's current
// allocations is rejected; the check runs under the category row lock so it
// cannot race an approval.
func (s *categoryService) UpdateCategory(id string, input CategoryInput) (*models.BudgetCategory, error) {
	var category *models.BudgetCategory
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		category, err = lockByID[models.BudgetCategory](tx, id, apperrors.ErrCategoryNotFound)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if name := strings.TrimSpace(input.Name); name != "" {
			category.Name = name
			updates["name"] = name
		}
		if input.Description != nil {
			category.Description = *input.Description
			updates["description"] = *input.Description
		}
		if input.Color != nil {
			category.Color = *input.Color
			updates["color"] = *input.Color
		}
		if input.Position != nil {
			category.Position = *input.Position
			updates["position"] = *input.Position
		}
		if input.SpendingLimitPercentage != nil && *input.SpendingLimitPercentage != category.SpendingLimitPercentage {
			pct := *input.SpendingLimitPercentage
			if pct < category.SpendingLimitPercentage && pct < models.UnlimitedPercentage {
				budget, err := findByID[models.Budget](tx, category.BudgetID, apperrors.ErrBudgetNotFound)
				if err != nil {
					return err
				}
				committed, err := committedInCategory(tx, category.ID)
				if err != nil {
					return err
				}
				if committed.GreaterThan(models.LimitAmount(budget.TotalFunds, pct)) {
					return apperrors.ErrLimitBelowUtilization
				}
			}
			category.SpendingLimitPercentage = pct
			updates["spending_limit_percentage"] = pct
		}
		if err := validateCategory(category); err != nil {
			return err
		}

		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(category).Updates(updates).Error; err != nil {
			if isUniqueViolation(err) {
				return apperrors.ErrDuplicateCategoryName
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, wrapTx(err)
	}
	return category, nil
}

// DeleteCategory removes a category together with its projects.
func (s *categoryService) DeleteCategory(id string) error {
	if _, err := s.GetCategoryByID(id); err != nil {
		return err
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		ids, err := projectIDsWhere(tx, "category_id = ?", id)
		if err != nil {
			return err
		}
		if err := deleteProjects(tx, ids); err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.BudgetCategory{}).Error
	})
	return wrapTx(err)
}

// GetUtilization reports how much of the category's limit is committed.
func (s *categoryService) GetUtilization(ctx context.Context, id string) (*CategoryUtilization, error) {
	db := s.db.WithContext(ctx)
	category, err := findByID[models.BudgetCategory](db, id, apperrors.ErrCategoryNotFound)
	if err != nil {
		return nil, err
	}
	budget, err := findByID[models.Budget](db, category.BudgetID, apperrors.ErrBudgetNotFound)
	if err != nil {
		return nil, err
	}
	return categoryUtilization(db, budget.TotalFunds, category)
}

// WithinLimit reports whether the category can absorb an additional allocation.
func (s *categoryService) WithinLimit(ctx context.Context, id string, additional decimal.Decimal) (bool, error) {
	u, err := s.GetUtilization(ctx, id)
	if err != nil {
		return false, err
	}
	return models.WithinLimit(u.SpendingLimitPercentage, u.TotalAllocated, additional, u.LimitAmount), nil
}

// categoryUtilization builds the utilization report for a category of a budget holding totalFunds.
func categoryUtilization(db *gorm.DB, totalFunds decimal.Decimal, c *models.BudgetCategory) (*CategoryUtilization, error) {
	allocated, err := committedInCategory(db, c.ID)
	if err != nil {
		return nil, err
	}
	requested, err := sumDecimal(db.Model(&models.BudgetProject{}).Where("category_id = ?", c.ID), "requested_amount")
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Status string
		N      int64
	}
	if err := db.Model(&models.BudgetProject{}).
		Select("status, COUNT(*) AS n").
		Where("category_id = ?", c.ID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	limit := c.LimitAmount(totalFunds)
	pct := models.UtilizationPercent(allocated, limit)
	u := &CategoryUtilization{
		CategoryID:              c.ID,
		Name:                    c.Name,
		SpendingLimitPercentage: c.SpendingLimitPercentage,
		LimitAmount:             limit.Round(2),
		TotalAllocated:          allocated,
		TotalRequested:          requested,
		Remaining:               limit.Sub(allocated).Round(2),
		UtilizationPercent:      pct,
		Status:                  models.UtilizationStatusFor(pct),
		OverLimit:               allocated.GreaterThan(limit),
		NearLimit:               pct.GreaterThanOrEqual(nearLimitThreshold),
	}
	for _, r := range rows {
		u.ProjectsCount += r.N
		switch models.ProjectStatus(r.Status) {
		case models.ProjectStatusApproved:
			u.ApprovedCount = r.N
		case models.ProjectStatusPending:
			u.PendingCount = r.N
		}
	}
	return u, nil
}

func validateCategory(c *models.BudgetCategory) error {
	if c.SpendingLimitPercentage < 1 || c.SpendingLimitPercentage > models.UnlimitedPercentage {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "spending limit percentage must be between 1 and 100")
	}
	if c.Position < 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "position must be >= 0")
	}
	if c.Color == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "color is required")
	}
	return nil
}
