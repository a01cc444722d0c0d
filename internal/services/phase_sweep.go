package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/logger"
	"civicbudget/internal/models"
)

// phaseSweeper reconciles phase active flags with the clock.
type phaseSweeper struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.SugaredLogger
}

// NewPhaseSweeper creates a new PhaseSweeper.
func NewPhaseSweeper(db *gorm.DB, opts ...Option) PhaseSweeper {
	o := applyOptions(opts)
	return &phaseSweeper{db: db, now: o.now, log: logger.Named("phase_sweep")}
}

// RunPhaseTransitionSweep deactivates expired phases, then for each budget
// activates the phase whose window contains now. Each budget is reconciled in
// its own transaction, so a failure in one budget leaves the others intact;
// the partial result is returned alongside the error.
//
// After a successful run every budget has at most one active phase and that
// phase contains now: any other active flag in the budget is cleared as well,
// including phases flagged active ahead of their window.
func (s *phaseSweeper) RunPhaseTransitionSweep(ctx context.Context) (*SweepResult, error) {
	started := time.Now()
	now := s.now()
	db := s.db.WithContext(ctx)
	result := &SweepResult{}

	deactivated, err := s.deactivateExpired(db, now)
	if err != nil {
		return nil, err
	}
	result.Deactivated += deactivated

	var budgetIDs []string
	if err := db.Model(&models.VotingPhase{}).Distinct().Pluck("budget_id", &budgetIDs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var failures []error
	for _, budgetID := range budgetIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		cleared, activated, err := s.reconcileBudget(db, budgetID, now)
		if err != nil {
			s.log.Errorw("phase sweep failed for budget", "budget_id", budgetID, "error", err)
			failures = append(failures, err)
			continue
		}
		result.BudgetsScanned++
		result.Deactivated += cleared
		if activated {
			result.Activated++
		}
	}

	result.Duration = time.Since(started)
	s.log.Infow("phase transition sweep completed",
		"deactivated", result.Deactivated,
		"activated", result.Activated,
		"budgets_scanned", result.BudgetsScanned,
		"duration", result.Duration,
		"failed_budgets", len(failures),
	)
	if len(failures) > 0 {
		return result, apperrors.Wrap(apperrors.ErrInternalServer, errors.Join(failures...))
	}
	return result, nil
}

// deactivateExpired clears the active flag of every phase whose window ended before now.
func (s *phaseSweeper) deactivateExpired(db *gorm.DB, now time.Time) (int, error) {
	var active []models.VotingPhase
	if err := db.Where("active = ?", true).Find(&active).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var expired []string
	for i := range active {
		if active[i].Completed(now) {
			expired = append(expired, active[i].ID)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}

	res := db.Model(&models.VotingPhase{}).Where("id IN ? AND active = ?", expired, true).Update("active", false)
	if res.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	return int(res.RowsAffected), nil
}

// reconcileBudget leaves only the budget's current phase active.
func (s *phaseSweeper) reconcileBudget(db *gorm.DB, budgetID string, now time.Time) (cleared int, activated bool, err error) {
	err = db.Transaction(func(tx *gorm.DB) error {
		if _, err := lockByID[models.Budget](tx, budgetID, apperrors.ErrBudgetNotFound); err != nil {
			return err
		}
		var phases []models.VotingPhase
		if err := tx.Where("budget_id = ?", budgetID).Find(&phases).Error; err != nil {
			return err
		}

		current := models.CurrentPhase(phases, now)
		keepID := ""
		if current != nil {
			keepID = current.ID
		}

		for i := range phases {
			p := &phases[i]
			if p.ID == keepID || !p.Active {
				continue
			}
			if err := tx.Model(&models.VotingPhase{}).Where("id = ?", p.ID).Update("active", false).Error; err != nil {
				return err
			}
			cleared++
		}

		if current != nil && !current.Active {
			if err := tx.Model(&models.VotingPhase{}).Where("id = ?", current.ID).Update("active", true).Error; err != nil {
				return err
			}
			activated = true
			s.log.Infow("activated voting phase", "budget_id", budgetID, "phase_id", current.ID)
		}
		return nil
	})
	return cleared, activated, err
}
