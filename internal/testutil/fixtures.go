package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"civicbudget/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Amount parses a decimal literal, failing the test on malformed input.
func Amount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

// CreateTestUser creates a user with the default vote allowance and a unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithVotes(t, db, models.DefaultAvailableVotes)
}

// CreateTestUserWithVotes creates a user holding the given number of available votes.
func CreateTestUserWithVotes(t *testing.T, db *gorm.DB, votes int) *models.User {
	t.Helper()

	n := nextID()
	user := &models.User{
		Email:          fmt.Sprintf("user%d@test.com", n),
		FirstName:      "Test",
		LastName:       fmt.Sprintf("User%d", n),
		AvailableVotes: votes,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestBudget creates a budget in the voting stage whose window covers today.
func CreateTestBudget(t *testing.T, db *gorm.DB, totalFunds string) *models.Budget {
	t.Helper()

	today := models.DateOf(time.Now())
	start := today.AddDate(0, 0, -7)
	end := today.AddDate(0, 0, 7)
	budget := &models.Budget{
		Name:            fmt.Sprintf("Test Budget %d", nextID()),
		TotalFunds:      Amount(t, totalFunds),
		VotingStartDate: &start,
		VotingEndDate:   &end,
		Status:          models.BudgetStatusVoting,
		Active:          true,
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestCategory creates a category capped at pct percent of the budget.
func CreateTestCategory(t *testing.T, db *gorm.DB, budgetID string, pct int) *models.BudgetCategory {
	t.Helper()

	category := &models.BudgetCategory{
		BudgetID:                budgetID,
		Name:                    fmt.Sprintf("Test Category %d", nextID()),
		Color:                   models.DefaultCategoryColor,
		SpendingLimitPercentage: pct,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestPhase creates a voting phase over [start, end].
func CreateTestPhase(t *testing.T, db *gorm.DB, budgetID string, start, end time.Time, active bool, maxVotes int) *models.VotingPhase {
	t.Helper()

	phase := &models.VotingPhase{
		BudgetID:        budgetID,
		Name:            fmt.Sprintf("Test Phase %d", nextID()),
		StartDate:       start,
		EndDate:         end,
		MaxVotesPerUser: maxVotes,
		Active:          active,
	}
	if err := db.Create(phase).Error; err != nil {
		t.Fatalf("failed to create test phase: %v", err)
	}
	return phase
}

// CreateTestProject creates a pending project with a neutral impact metric.
func CreateTestProject(t *testing.T, db *gorm.DB, budgetID, categoryID, userID, requested string) *models.BudgetProject {
	t.Helper()

	project := &models.BudgetProject{
		BudgetID:        budgetID,
		CategoryID:      categoryID,
		UserID:          userID,
		Title:           fmt.Sprintf("Test Project %d", nextID()),
		Description:     "A test project",
		RequestedAmount: Amount(t, requested),
		AllocatedAmount: decimal.Zero,
		Status:          models.ProjectStatusPending,
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}
	metric := &models.ImpactMetric{
		ProjectID:           project.ID,
		SustainabilityScore: models.DefaultSustainabilityScore,
		Timeline:            models.DefaultTimeline,
	}
	if err := db.Create(metric).Error; err != nil {
		t.Fatalf("failed to create test impact metric: %v", err)
	}
	return project
}

// AssignPhase attaches a project to a voting phase.
func AssignPhase(t *testing.T, db *gorm.DB, projectID, phaseID string) {
	t.Helper()
	if err := db.Model(&models.BudgetProject{}).Where("id = ?", projectID).
		Update("voting_phase_id", phaseID).Error; err != nil {
		t.Fatalf("failed to assign phase: %v", err)
	}
}

// ReloadProject fetches the current state of a project.
func ReloadProject(t *testing.T, db *gorm.DB, id string) *models.BudgetProject {
	t.Helper()
	var project models.BudgetProject
	if err := db.First(&project, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload project: %v", err)
	}
	return &project
}
