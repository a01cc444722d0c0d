package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/models"
	"civicbudget/internal/pagination"
)

// budgetService handles budget-related business logic.
type budgetService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(db *gorm.DB, opts ...Option) BudgetServicer {
	o := applyOptions(opts)
	return &budgetService{db: db, now: o.now}
}

// CreateBudget creates a new budget in the planning stage.
func (s *budgetService) CreateBudget(input BudgetInput) (*models.Budget, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name is required")
	}
	if input.TotalFunds == nil || !input.TotalFunds.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "total funds must be greater than zero")
	}

	budget := &models.Budget{
		Name:       name,
		TotalFunds: input.TotalFunds.Round(2),
		Status:     models.BudgetStatusPlanning,
		Active:     true,
	}
	if input.Description != nil {
		budget.Description = *input.Description
	}
	if input.Active != nil {
		budget.Active = *input.Active
	}
	budget.VotingStartDate = dateOnly(input.VotingStartDate)
	budget.VotingEndDate = dateOnly(input.VotingEndDate)
	if err := validateVotingWindow(budget); err != nil {
		return nil, err
	}

	if err := s.db.Create(budget).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return budget, nil
}

// GetBudgetByID returns a budget with its categories and phases.
func (s *budgetService) GetBudgetByID(id string) (*models.Budget, error) {
	return findByID[models.Budget](s.db.
		Preload("Categories", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, name ASC") }).
		Preload("Phases", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, start_date ASC") }),
		id, apperrors.ErrBudgetNotFound)
}

// ListBudgets returns a paginated list of budgets, optionally filtered by status.
func (s *budgetService) ListBudgets(page pagination.PageRequest, status *models.BudgetStatus) (*pagination.PageResponse[models.Budget], error) {
	query := s.db.Model(&models.Budget{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	result, err := pagination.Fetch[models.Budget](query, page, func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at DESC")
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// UpdateBudget updates a budget's editable fields. Lowering total funds is
// rejected when a capped category would end up over its limit.
func (s *budgetService) UpdateBudget(id string, input BudgetInput) (*models.Budget, error) {
	var budget *models.Budget
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		budget, err = lockByID[models.Budget](tx, id, apperrors.ErrBudgetNotFound)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if name := strings.TrimSpace(input.Name); name != "" {
			budget.Name = name
			updates["name"] = name
		}
		if input.Description != nil {
			budget.Description = *input.Description
			updates["description"] = *input.Description
		}
		if input.Active != nil {
			budget.Active = *input.Active
			updates["active"] = *input.Active
		}
		if input.VotingStartDate != nil {
			budget.VotingStartDate = dateOnly(input.VotingStartDate)
			updates["voting_start_date"] = budget.VotingStartDate
		}
		if input.VotingEndDate != nil {
			budget.VotingEndDate = dateOnly(input.VotingEndDate)
			updates["voting_end_date"] = budget.VotingEndDate
		}
		if err := validateVotingWindow(budget); err != nil {
			return err
		}
		if input.TotalFunds != nil {
			funds := input.TotalFunds.Round(2)
			if !funds.IsPositive() {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "total funds must be greater than zero")
			}
			if funds.LessThan(budget.TotalFunds) {
				if err := ensureCategoriesFit(tx, budget.ID, funds); err != nil {
					return err
				}
			}
			budget.TotalFunds = funds
			updates["total_funds"] = funds
		}

		if len(updates) == 0 {
			return nil
		}
		return tx.Model(budget).Updates(updates).Error
	})
	if err != nil {
		return nil, wrapTx(err)
	}
	return budget, nil
}

// TransitionStatus advances a budget exactly one lifecycle stage.
func (s *budgetService) TransitionStatus(id string, next models.BudgetStatus) (*models.Budget, error) {
	budget, err := findByID[models.Budget](s.db, id, apperrors.ErrBudgetNotFound)
	if err != nil {
		return nil, err
	}
	if !budget.Status.CanTransitionTo(next) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidStatusTransition,
			"cannot move budget from "+string(budget.Status)+" to "+string(next))
	}

	res := s.db.Model(&models.Budget{}).
		Where("id = ? AND status = ?", id, budget.Status).
		Update("status", next)
	if res.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.ErrInvalidStatusTransition
	}
	budget.Status = next
	return budget, nil
}

// DeleteBudget removes a budget with its categories, phases, projects and votes.
func (s *budgetService) DeleteBudget(id string) error {
	if _, err := findByID[models.Budget](s.db, id, apperrors.ErrBudgetNotFound); err != nil {
		return err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		ids, err := projectIDsWhere(tx, "budget_id = ?", id)
		if err != nil {
			return err
		}
		if err := deleteProjects(tx, ids); err != nil {
			return err
		}
		if err := tx.Where("budget_id = ?", id).Delete(&models.VotingPhase{}).Error; err != nil {
			return err
		}
		if err := tx.Where("budget_id = ?", id).Delete(&models.BudgetCategory{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Budget{}).Error
	})
	return wrapTx(err)
}

// GetBudgetSummary aggregates allocation, utilization and participation for a budget.
func (s *budgetService) GetBudgetSummary(ctx context.Context, id string) (*BudgetSummary, error) {
	db := s.db.WithContext(ctx)
	budget, err := findByID[models.Budget](db.
		Preload("Categories", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, name ASC") }).
		Preload("Phases"),
		id, apperrors.ErrBudgetNotFound)
	if err != nil {
		return nil, err
	}

	allocated, err := sumDecimal(db.Model(&models.BudgetProject{}).
		Where("budget_id = ? AND status IN ?", id, committedStatuses), "allocated_amount")
	if err != nil {
		return nil, err
	}

	budgetVotes := db.Model(&models.Vote{}).
		Joins("JOIN budget_projects ON budget_projects.id = votes.project_id").
		Where("budget_projects.budget_id = ?", id)
	votesCast, err := countRows(budgetVotes)
	if err != nil {
		return nil, err
	}
	participants, err := countRows(db.Model(&models.Vote{}).
		Joins("JOIN budget_projects ON budget_projects.id = votes.project_id").
		Where("budget_projects.budget_id = ?", id).
		Distinct("votes.user_id"))
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Status string
		N      int64
	}
	if err := db.Model(&models.BudgetProject{}).
		Select("status, COUNT(*) AS n").
		Where("budget_id = ?", id).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	counts := map[string]int64{}
	for _, r := range rows {
		counts[r.Status] = r.N
	}

	summary := &BudgetSummary{
		BudgetID:           budget.ID,
		Status:             budget.Status,
		VotingActive:       budget.VotingActive(s.now()),
		TotalFunds:         budget.TotalFunds,
		TotalAllocated:     allocated,
		RemainingFunds:     budget.TotalFunds.Sub(allocated),
		UtilizationPercent: models.UtilizationPercent(allocated, budget.TotalFunds),
		TotalVotesCast:     votesCast,
		Participants:       participants,
		ProjectCounts:      counts,
		Categories:         make([]CategoryUtilization, 0, len(budget.Categories)),
	}
	if current := models.CurrentPhase(budget.Phases, s.now()); current != nil {
		summary.CurrentPhaseID = &current.ID
	}
	for i := range budget.Categories {
		u, err := categoryUtilization(db, budget.TotalFunds, &budget.Categories[i])
		if err != nil {
			return nil, err
		}
		summary.Categories = append(summary.Categories, *u)
	}
	return summary, nil
}

// GetPhaseResults ranks the projects that received votes in a phase.
func (s *budgetService) GetPhaseResults(ctx context.Context, phaseID string) (*PhaseResults, error) {
	db := s.db.WithContext(ctx)
	phase, err := findByID[models.VotingPhase](db, phaseID, apperrors.ErrPhaseNotFound)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ProjectID string
		Title     string
		N         int64
		Weighted  decimal.Decimal
	}
	if err := db.Model(&models.Vote{}).
		Select("votes.project_id AS project_id, budget_projects.title AS title, COUNT(*) AS n, COALESCE(SUM(votes.vote_weight), 0) AS weighted").
		Joins("JOIN budget_projects ON budget_projects.id = votes.project_id").
		Where("votes.voting_phase_id = ?", phaseID).
		Group("votes.project_id, budget_projects.title").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var total int64
	for _, r := range rows {
		total += r.N
	}
	threshold := phase.Rules.ThresholdForNextPhase

	results := &PhaseResults{PhaseID: phase.ID, Threshold: threshold, Standings: make([]ProjectStanding, 0, len(rows))}
	for _, r := range rows {
		results.Standings = append(results.Standings, ProjectStanding{
			ProjectID:          r.ProjectID,
			Title:              r.Title,
			VotesCount:         r.N,
			WeightedVotes:      r.Weighted.Round(2),
			ApprovalPercentage: models.ApprovalPercentage(r.N, total),
			AdvancesToNext:     r.N >= int64(threshold),
		})
	}
	sort.SliceStable(results.Standings, func(i, j int) bool {
		a, b := results.Standings[i], results.Standings[j]
		if a.VotesCount != b.VotesCount {
			return a.VotesCount > b.VotesCount
		}
		return a.WeightedVotes.GreaterThan(b.WeightedVotes)
	})
	return results, nil
}

// ensureCategoriesFit rejects a funds change that would leave a capped category over its limit.
func ensureCategoriesFit(tx *gorm.DB, budgetID string, funds decimal.Decimal) error {
	var categories []models.BudgetCategory
	if err := tx.Where("budget_id = ?", budgetID).Find(&categories).Error; err != nil {
		return err
	}
	for i := range categories {
		c := &categories[i]
		if c.Unlimited() {
			continue
		}
		committed, err := committedInCategory(tx, c.ID)
		if err != nil {
			return err
		}
		if committed.GreaterThan(c.LimitAmount(funds)) {
			return apperrors.WithMessage(apperrors.ErrLimitBelowUtilization,
				"total funds would put category "+c.Name+" over its spending limit")
		}
	}
	return nil
}

func validateVotingWindow(b *models.Budget) error {
	if b.VotingStartDate != nil && b.VotingEndDate != nil && b.VotingEndDate.Before(*b.VotingStartDate) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "voting end date must not be before start date")
	}
	return nil
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := models.DateOf(*t)
	return &d
}
