package services

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/models"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// committedStatuses are the project states whose allocation counts against a category.
// Implemented projects have spent their funds and no longer hold the limit.
var committedStatuses = []models.ProjectStatus{models.ProjectStatusApproved}

// fundedStatuses are the project states reported as funded work.
var fundedStatuses = []models.ProjectStatus{models.ProjectStatusApproved, models.ProjectStatusImplemented}

// Option configures optional collaborators of a service.
type Option func(*serviceOptions)

type serviceOptions struct {
	now func() time.Time
}

// WithClock overrides the time source used for window and phase checks.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) {
		o.now = now
	}
}

func applyOptions(opts []Option) serviceOptions {
	o := serviceOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Result is the {success, message} envelope returned by engine operations.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Outcome folds an operation's error into a Result. Business failures become
// an unsuccessful Result with a nil error; infrastructure faults are returned.
func Outcome(err error, okMessage string) (Result, error) {
	if err == nil {
		return Result{Success: true, Message: okMessage}, nil
	}
	if apperrors.IsBusiness(err) {
		return Result{Success: false, Message: err.Error()}, nil
	}
	return Result{Success: false, Message: apperrors.ErrInternalServer.Message}, err
}

// isUniqueViolation reports whether err came from a unique index.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// findByID loads a row by primary key, mapping a miss to notFound.
func findByID[T any](db *gorm.DB, id string, notFound *apperrors.AppError) (*T, error) {
	var out T
	if err := db.Where("id = ?", id).First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &out, nil
}

// lockByID is findByID with SELECT ... FOR UPDATE.
func lockByID[T any](tx *gorm.DB, id string, notFound *apperrors.AppError) (*T, error) {
	return findByID[T](tx.Clauses(clause.Locking{Strength: "UPDATE"}), id, notFound)
}

// sumDecimal runs a COALESCE(SUM(column), 0) aggregate and rounds to cents.
func sumDecimal(q *gorm.DB, column string) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := q.Select("COALESCE(SUM(" + column + "), 0)").Row().Scan(&total); err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return total.Round(2), nil
}

// committedInCategory sums allocations of approved projects in a category.
func committedInCategory(tx *gorm.DB, categoryID string) (decimal.Decimal, error) {
	return sumDecimal(tx.Model(&models.BudgetProject{}).
		Where("category_id = ? AND status IN ?", categoryID, committedStatuses), "allocated_amount")
}

// countRows wraps a Count query.
func countRows(q *gorm.DB) (int64, error) {
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return n, nil
}

// refreshVoteCount sets a project's cached count from its live votes.
func refreshVoteCount(tx *gorm.DB, projectID string) (int64, error) {
	n, err := countRows(tx.Model(&models.Vote{}).Where("project_id = ?", projectID))
	if err != nil {
		return 0, err
	}
	if err := tx.Model(&models.BudgetProject{}).Where("id = ?", projectID).
		UpdateColumn("votes_count", n).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return n, nil
}

// wrapTx returns AppErrors from a transaction untouched and wraps everything else.
func wrapTx(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}
