package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/models"
)

// phaseService handles voting phase business logic.
type phaseService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPhaseService creates a new PhaseServicer.
func NewPhaseService(db *gorm.DB, opts ...Option) PhaseServicer {
	o := applyOptions(opts)
	return &phaseService{db: db, now: o.now}
}

// CreatePhase adds a voting phase to a budget. The budget row is locked so
// concurrent phase writes for the same budget see each other.
func (s *phaseService) CreatePhase(ctx context.Context, budgetID string, input PhaseInput) (*models.VotingPhase, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name is required")
	}
	if input.StartDate == nil || input.EndDate == nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "start and end dates are required")
	}

	phase := &models.VotingPhase{
		BudgetID:        budgetID,
		Name:            name,
		StartDate:       input.StartDate.UTC(),
		EndDate:         input.EndDate.UTC(),
		MaxVotesPerUser: models.DefaultMaxVotesPerUser,
	}
	if input.Description != nil {
		phase.Description = *input.Description
	}
	if input.MaxVotesPerUser != nil {
		phase.MaxVotesPerUser = *input.MaxVotesPerUser
	}
	if input.Position != nil {
		phase.Position = *input.Position
	}
	if input.Active != nil {
		phase.Active = *input.Active
	}
	if input.Rules != nil {
		phase.Rules = *input.Rules
	}
	if err := validatePhase(phase); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockByID[models.Budget](tx, budgetID, apperrors.ErrBudgetNotFound); err != nil {
			return err
		}
		if err := ensureNoOverlap(tx, phase); err != nil {
			return err
		}
		if phase.Active {
			if err := deactivateSiblings(tx, phase.BudgetID, ""); err != nil {
				return err
			}
		}
		return tx.Create(phase).Error
	})
	if err != nil {
		return nil, wrapTx(err)
	}
	return phase, nil
}

// GetPhaseByID returns a voting phase by ID.
func (s *phaseService) GetPhaseByID(id string) (*models.VotingPhase, error) {
	return findByID[models.VotingPhase](s.db, id, apperrors.ErrPhaseNotFound)
}

// ListBudgetPhases returns a budget's phases ordered by position then start.
func (s *phaseService) ListBudgetPhases(budgetID string) ([]models.VotingPhase, error) {
	if _, err := findByID[models.Budget](s.db, budgetID, apperrors.ErrBudgetNotFound); err != nil {
		return nil, err
	}
	phases := []models.VotingPhase{}
	if err := s.db.Where("budget_id = ?", budgetID).Order("position ASC, start_date ASC").Find(&phases).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return phases, nil
}

// UpdatePhase edits a phase, re-checking its window against its siblings.
func (s *phaseService) UpdatePhase(ctx context.Context, id string, input PhaseInput) (*models.VotingPhase, error) {
	var phase *models.VotingPhase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		phase, err = findByID[models.VotingPhase](tx, id, apperrors.ErrPhaseNotFound)
		if err != nil {
			return err
		}
		if _, err := lockByID[models.Budget](tx, phase.BudgetID, apperrors.ErrBudgetNotFound); err != nil {
			return err
		}

		if name := strings.TrimSpace(input.Name); name != "" {
			phase.Name = name
		}
		if input.Description != nil {
			phase.Description = *input.Description
		}
		if input.StartDate != nil {
			phase.StartDate = input.StartDate.UTC()
		}
		if input.EndDate != nil {
			phase.EndDate = input.EndDate.UTC()
		}
		if input.MaxVotesPerUser != nil {
			phase.MaxVotesPerUser = *input.MaxVotesPerUser
		}
		if input.Position != nil {
			phase.Position = *input.Position
		}
		if input.Active != nil {
			phase.Active = *input.Active
		}
		if input.Rules != nil {
			phase.Rules = *input.Rules
		}
		if err := validatePhase(phase); err != nil {
			return err
		}
		if err := ensureNoOverlap(tx, phase); err != nil {
			return err
		}
		if phase.Active {
			if err := deactivateSiblings(tx, phase.BudgetID, phase.ID); err != nil {
				return err
			}
		}
		return tx.Select("name", "description", "start_date", "end_date", "max_votes_per_user",
			"position", "active", "rules").Updates(phase).Error
	})
	if err != nil {
		return nil, wrapTx(err)
	}
	return phase, nil
}

// SetPhaseActive flips a phase's active flag. Activation deactivates every sibling.
func (s *phaseService) SetPhaseActive(ctx context.Context, id string, active bool) (*models.VotingPhase, error) {
	var phase *models.VotingPhase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		phase, err = findByID[models.VotingPhase](tx, id, apperrors.ErrPhaseNotFound)
		if err != nil {
			return err
		}
		if _, err := lockByID[models.Budget](tx, phase.BudgetID, apperrors.ErrBudgetNotFound); err != nil {
			return err
		}
		if active {
			if err := deactivateSiblings(tx, phase.BudgetID, phase.ID); err != nil {
				return err
			}
		}
		phase.Active = active
		return tx.Model(&models.VotingPhase{}).Where("id = ?", id).Update("active", active).Error
	})
	if err != nil {
		return nil, wrapTx(err)
	}
	return phase, nil
}

// DeletePhase removes a phase. Its projects stay in the budget without a phase;
// votes cast in the phase are removed and the affected counts recomputed.
func (s *phaseService) DeletePhase(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findByID[models.VotingPhase](tx, id, apperrors.ErrPhaseNotFound); err != nil {
			return err
		}
		if err := tx.Model(&models.BudgetProject{}).Where("voting_phase_id = ?", id).
			Update("voting_phase_id", nil).Error; err != nil {
			return err
		}
		if err := deleteVotesWhere(tx, "voting_phase_id = ?", id); err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.VotingPhase{}).Error
	})
	return wrapTx(err)
}

// GetPhaseStatus reports the derived lifecycle and participation of a phase.
// When userID is set, the report includes that user's remaining phase votes.
func (s *phaseService) GetPhaseStatus(ctx context.Context, id string, userID *string) (*PhaseStatusReport, error) {
	db := s.db.WithContext(ctx)
	phase, err := findByID[models.VotingPhase](db, id, apperrors.ErrPhaseNotFound)
	if err != nil {
		return nil, err
	}
	now := s.now()

	votesCast, err := countRows(db.Model(&models.Vote{}).Where("voting_phase_id = ?", id))
	if err != nil {
		return nil, err
	}
	participants, err := countRows(db.Model(&models.Vote{}).Where("voting_phase_id = ?", id).Distinct("user_id"))
	if err != nil {
		return nil, err
	}
	projects, err := countRows(db.Model(&models.BudgetProject{}).Where("voting_phase_id = ?", id))
	if err != nil {
		return nil, err
	}

	report := &PhaseStatusReport{
		PhaseID:         phase.ID,
		Name:            phase.Name,
		Status:          phase.Status(now),
		Active:          phase.Active,
		DurationInDays:  phase.DurationInDays(),
		VotesCast:       votesCast,
		Participants:    participants,
		ProjectsCount:   projects,
		MaxVotesPerUser: phase.MaxVotesPerUser,
		Rules:           phase.Rules,
	}
	if userID != nil {
		remaining, err := phaseVotesRemaining(db, phase, *userID, now)
		if err != nil {
			return nil, err
		}
		report.VotesRemaining = &remaining
	}
	return report, nil
}

// phaseVotesRemaining is max-per-user minus the user's votes in the phase, or 0 when not active.
func phaseVotesRemaining(db *gorm.DB, phase *models.VotingPhase, userID string, now time.Time) (int, error) {
	if !phase.CurrentlyActive(now) {
		return 0, nil
	}
	used, err := countRows(db.Model(&models.Vote{}).Where("voting_phase_id = ? AND user_id = ?", phase.ID, userID))
	if err != nil {
		return 0, err
	}
	remaining := phase.MaxVotesPerUser - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func validatePhase(p *models.VotingPhase) error {
	if !p.EndDate.After(p.StartDate) {
		return apperrors.ErrInvalidPhaseWindow
	}
	if p.MaxVotesPerUser < 1 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "max votes per user must be at least 1")
	}
	if p.Position < 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "position must be >= 0")
	}
	if err := p.Rules.Validate(); err != nil {
		return apperrors.WithMessage(apperrors.ErrInvalidPhaseRules, err.Error())
	}
	return nil
}

// ensureNoOverlap rejects p when its window intersects another phase of the same budget.
func ensureNoOverlap(tx *gorm.DB, p *models.VotingPhase) error {
	var siblings []models.VotingPhase
	q := tx.Where("budget_id = ?", p.BudgetID)
	if p.ID != "" {
		q = q.Where("id <> ?", p.ID)
	}
	if err := q.Find(&siblings).Error; err != nil {
		return err
	}
	for i := range siblings {
		if p.Overlaps(&siblings[i]) {
			return apperrors.WithMessage(apperrors.ErrPhaseOverlap,
				"Phase dates overlap with existing phase "+siblings[i].Name)
		}
	}
	return nil
}

// deactivateSiblings clears the active flag on every phase of the budget except keepID.
func deactivateSiblings(tx *gorm.DB, budgetID, keepID string) error {
	q := tx.Model(&models.VotingPhase{}).Where("budget_id = ? AND active = ?", budgetID, true)
	if keepID != "" {
		q = q.Where("id <> ?", keepID)
	}
	return q.Update("active", false).Error
}
