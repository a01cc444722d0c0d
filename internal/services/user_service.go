package services

import (
	"strings"

	"gorm.io/gorm"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/models"
)

// userService handles user-related business logic.
type userService struct {
	db *gorm.DB
}

// NewUserService creates a new UserServicer.
func NewUserService(db *gorm.DB) UserServicer {
	return &userService{db: db}
}

// CreateUser registers a new participant. availableVotes defaults to models.DefaultAvailableVotes.
func (s *userService) CreateUser(email, firstName, lastName string, availableVotes *int) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "email is required")
	}

	votes := models.DefaultAvailableVotes
	if availableVotes != nil {
		votes = *availableVotes
	}
	if votes < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "available votes must be >= 0")
	}

	user := &models.User{
		Email:          email,
		FirstName:      firstName,
		LastName:       lastName,
		AvailableVotes: votes,
	}
	if err := s.db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.ErrDuplicateEmail
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(id string) (*models.User, error) {
	return findByID[models.User](s.db, id, apperrors.ErrUserNotFound)
}

// SetAvailableVotes replaces a user's vote budget. Votes already cast are kept.
func (s *userService) SetAvailableVotes(id string, votes int) (*models.User, error) {
	if votes < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "available votes must be >= 0")
	}
	user, err := s.GetUserByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(user).Update("available_votes", votes).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	user.AvailableVotes = votes
	return user, nil
}

// DeleteUser removes a user with their projects and votes.
func (s *userService) DeleteUser(id string) error {
	if _, err := s.GetUserByID(id); err != nil {
		return err
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := deleteVotesWhere(tx, "user_id = ?", id); err != nil {
			return err
		}
		ids, err := projectIDsWhere(tx, "user_id = ?", id)
		if err != nil {
			return err
		}
		if err := deleteProjects(tx, ids); err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.User{}).Error
	})
	return wrapTx(err)
}
