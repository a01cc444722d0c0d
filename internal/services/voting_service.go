package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/logger"
	"civicbudget/internal/models"
)

// votingService casts and retracts votes through the eligibility gate.
type votingService struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.SugaredLogger
}

// NewVotingService creates a new VotingServicer.
func NewVotingService(db *gorm.DB, opts ...Option) VotingServicer {
	o := applyOptions(opts)
	return &votingService{db: db, now: o.now, log: logger.Named("voting")}
}

// ballot is everything the gate needs to judge a vote on one project.
type ballot struct {
	project *models.BudgetProject
	budget  *models.Budget
	// phase is the project's own phase, nil when unassigned.
	phase *models.VotingPhase
	// votingPhase is the phase the vote is recorded against: the project's
	// phase, else the budget's current phase.
	votingPhase *models.VotingPhase
}

func (b *ballot) rules() models.PhaseRules {
	if b.votingPhase == nil {
		return models.PhaseRules{VotingType: models.VotingTypeWeighted}
	}
	return b.votingPhase.Rules
}

func loadBallot(tx *gorm.DB, projectID string, now time.Time) (*ballot, error) {
	project, err := findByID[models.BudgetProject](tx, projectID, apperrors.ErrProjectNotFound)
	if err != nil {
		return nil, err
	}
	budget, err := findByID[models.Budget](tx, project.BudgetID, apperrors.ErrBudgetNotFound)
	if err != nil {
		return nil, err
	}
	b := &ballot{project: project, budget: budget}

	if project.VotingPhaseID != nil {
		b.phase, err = findByID[models.VotingPhase](tx, *project.VotingPhaseID, apperrors.ErrPhaseNotFound)
		if err != nil {
			return nil, err
		}
		b.votingPhase = b.phase
		return b, nil
	}

	var phases []models.VotingPhase
	if err := tx.Where("budget_id = ?", budget.ID).Find(&phases).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	b.votingPhase = models.CurrentPhase(phases, now)
	return b, nil
}

// gate runs the eligibility checks in order and returns the first failure:
// budget voting window, project phase active, not already voted, budget
// votes remaining, phase vote limit.
func (s *votingService) gate(tx *gorm.DB, b *ballot, user *models.User, now time.Time) error {
	err := s.evaluate(tx, b, user, now)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && apperrors.IsBusiness(err) {
		s.log.Infow("vote denied",
			"reason", appErr.Code,
			"user_id", user.ID,
			"project_id", b.project.ID,
			"budget_id", b.budget.ID,
		)
	}
	return err
}

func (s *votingService) evaluate(tx *gorm.DB, b *ballot, user *models.User, now time.Time) error {
	if !b.budget.VotingActive(now) {
		return apperrors.ErrVotingClosed
	}

	if b.phase != nil && !b.phase.CurrentlyActive(now) {
		return apperrors.ErrPhaseNotActive
	}

	voted, err := countRows(tx.Model(&models.Vote{}).Where("user_id = ? AND project_id = ?", user.ID, b.project.ID))
	if err != nil {
		return err
	}
	if voted > 0 {
		return apperrors.ErrAlreadyVoted
	}

	used, err := votesUsedInBudget(tx, user.ID, b.budget.ID)
	if err != nil {
		return err
	}
	if user.AvailableVotes-int(used) <= 0 {
		return apperrors.ErrVoteBudgetExhausted
	}

	if p := b.votingPhase; p != nil && p.Active {
		inPhase, err := countRows(tx.Model(&models.Vote{}).Where("user_id = ? AND voting_phase_id = ?", user.ID, p.ID))
		if err != nil {
			return err
		}
		if inPhase >= int64(p.MaxVotesPerUser) {
			return apperrors.ErrPhaseVoteLimitReached
		}
	}
	return nil
}

// CastVote records a vote after re-running the gate inside the write
// transaction with the project and user rows locked, in that order. The project
// lock serializes the vote count refresh. The storage-level unique index on
// (user, project) turns a lost race into ErrAlreadyVoted.
func (s *votingService) CastVote(ctx context.Context, projectID, userID string, input VoteInput) (*models.Vote, error) {
	weight := models.DefaultVoteWeight
	if input.Weight != nil {
		weight = *input.Weight
	}
	if !weight.IsPositive() || weight.GreaterThan(models.MaxVoteWeight) {
		return nil, apperrors.ErrInvalidVoteWeight
	}
	comment := strings.TrimSpace(input.Comment)
	now := s.now()

	var vote *models.Vote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockByID[models.BudgetProject](tx, projectID, apperrors.ErrProjectNotFound); err != nil {
			return err
		}
		user, err := lockByID[models.User](tx, userID, apperrors.ErrUserNotFound)
		if err != nil {
			return err
		}
		b, err := loadBallot(tx, projectID, now)
		if err != nil {
			return err
		}
		if err := s.gate(tx, b, user, now); err != nil {
			return err
		}

		rules := b.rules()
		if !rules.AcceptsWeight(weight) {
			return apperrors.WithMessage(apperrors.ErrInvalidVoteWeight, weightRuleMessage(rules))
		}
		if comment != "" && !rules.CommentsAllowed() {
			return apperrors.ErrCommentsNotAllowed
		}
		if comment == "" && rules.RequireJustification {
			return apperrors.ErrJustificationRequired
		}

		vote = &models.Vote{
			UserID:    userID,
			ProjectID: projectID,
			Weight:    weight.Round(2),
			Comment:   comment,
		}
		if b.votingPhase != nil {
			vote.VotingPhaseID = &b.votingPhase.ID
		}
		if err := tx.Create(vote).Error; err != nil {
			if isUniqueViolation(err) {
				return apperrors.ErrAlreadyVoted
			}
			return err
		}

		_, err = refreshVoteCount(tx, projectID)
		return err
	})
	if err != nil {
		return nil, wrapTx(err)
	}

	s.log.Infow("vote cast", "user_id", userID, "project_id", projectID, "weight", vote.Weight.String())
	return vote, nil
}

func weightRuleMessage(rules models.PhaseRules) string {
	switch rules.Type() {
	case models.VotingTypeSimple:
		return "Vote weight must be " + models.DefaultVoteWeight.String() + " in a simple voting phase"
	case models.VotingTypeRanked:
		lo, hi := rules.WeightBounds()
		return "Vote weight must be a whole number greater than " + lo.String() + " and at most " + hi.String() + " in this phase"
	}
	lo, hi := rules.WeightBounds()
	return "Vote weight must be greater than " + lo.String() + " and at most " + hi.String() + " in this phase"
}

// RetractVote removes the user's vote on a project and recomputes its count
// under the project row lock.
func (s *votingService) RetractVote(ctx context.Context, projectID, userID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockByID[models.BudgetProject](tx, projectID, apperrors.ErrProjectNotFound); err != nil {
			return err
		}
		res := tx.Where("user_id = ? AND project_id = ?", userID, projectID).Delete(&models.Vote{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrVoteNotFound
		}
		_, err := refreshVoteCount(tx, projectID)
		return err
	})
	if err != nil {
		return wrapTx(err)
	}

	s.log.Infow("vote retracted", "user_id", userID, "project_id", projectID)
	return nil
}

// CheckEligibility runs the gate without writing anything.
func (s *votingService) CheckEligibility(ctx context.Context, projectID, userID string) (*Eligibility, error) {
	db := s.db.WithContext(ctx)
	now := s.now()

	user, err := findByID[models.User](db, userID, apperrors.ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	b, err := loadBallot(db, projectID, now)
	if err != nil {
		return nil, err
	}

	err = s.gate(db, b, user, now)
	if err == nil {
		return &Eligibility{Eligible: true}, nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && apperrors.IsBusiness(err) {
		return &Eligibility{Eligible: false, Code: appErr.Code, Reason: appErr.Message}, nil
	}
	return nil, err
}

// VotesRemaining is the user's available votes minus the votes already cast in the budget.
func (s *votingService) VotesRemaining(ctx context.Context, userID, budgetID string) (int, error) {
	db := s.db.WithContext(ctx)
	user, err := findByID[models.User](db, userID, apperrors.ErrUserNotFound)
	if err != nil {
		return 0, err
	}
	if _, err := findByID[models.Budget](db, budgetID, apperrors.ErrBudgetNotFound); err != nil {
		return 0, err
	}
	used, err := votesUsedInBudget(db, userID, budgetID)
	if err != nil {
		return 0, err
	}
	remaining := user.AvailableVotes - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func votesUsedInBudget(db *gorm.DB, userID, budgetID string) (int64, error) {
	return countRows(db.Model(&models.Vote{}).
		Joins("JOIN budget_projects ON budget_projects.id = votes.project_id").
		Where("votes.user_id = ? AND budget_projects.budget_id = ?", userID, budgetID))
}
