package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"civicbudget/internal/models"
	"civicbudget/internal/testutil"
)

func intPtr(v int) *int { return &v }

func TestCreateCategory(t *testing.T) {
	t.Run("defaults_to_unlimited", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewCategoryService(db)
		budget := testutil.CreateTestBudget(t, db, "1000")

		category, err := svc.CreateCategory(budget.ID, CategoryInput{Name: "Parks"})
		testutil.AssertNoError(t, err)
		if category.SpendingLimitPercentage != models.UnlimitedPercentage {
			t.Errorf("expected 100%%, got %d", category.SpendingLimitPercentage)
		}
		if category.Color != models.DefaultCategoryColor {
			t.Errorf("expected default color, got %s", category.Color)
		}
	})

	t.Run("duplicate_name_in_budget", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewCategoryService(db)
		budget := testutil.CreateTestBudget(t, db, "1000")
		other := testutil.CreateTestBudget(t, db, "1000")

		_, err := svc.CreateCategory(budget.ID, CategoryInput{Name: "Parks"})
		testutil.AssertNoError(t, err)
		_, err = svc.CreateCategory(budget.ID, CategoryInput{Name: "Parks"})
		testutil.AssertAppError(t, err, "DUPLICATE_CATEGORY_NAME")
		_, err = svc.CreateCategory(other.ID, CategoryInput{Name: "Parks"})
		testutil.AssertNoError(t, err)
	})

	t.Run("limit_out_of_range", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewCategoryService(db)
		budget := testutil.CreateTestBudget(t, db, "1000")

		for _, pct := range []int{0, 101, -5} {
			_, err := svc.CreateCategory(budget.ID, CategoryInput{Name: "Bad", SpendingLimitPercentage: intPtr(pct)})
			testutil.AssertAppError(t, err, "INVALID_INPUT")
		}
	})

	t.Run("unknown_budget", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewCategoryService(db)

		_, err := svc.CreateCategory("01890a5d-ac96-774b-bcce-b302099a8057", CategoryInput{Name: "Parks"})
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
	})
}

func TestUpdateCategory(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := NewCategoryService(db)
	user := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, "1000")
	category := testutil.CreateTestCategory(t, db, budget.ID, 50)
	project := testutil.CreateTestProject(t, db, budget.ID, category.ID, user.ID, "300")
	_, err := NewApprovalService(db).ApproveProject(ctx, project.ID, nil)
	testutil.AssertNoError(t, err)

	t.Run("reduction_below_allocations", func(t *testing.T) {
		_, err := svc.UpdateCategory(category.ID, CategoryInput{SpendingLimitPercentage: intPtr(29)})
		testutil.AssertAppError(t, err, "LIMIT_BELOW_UTILIZATION")

		reloaded, err := svc.GetCategoryByID(category.ID)
		testutil.AssertNoError(t, err)
		if reloaded.SpendingLimitPercentage != 50 {
			t.Errorf("expected limit unchanged, got %d", reloaded.SpendingLimitPercentage)
		}
	})

	t.Run("reduction_to_exact_allocation", func(t *testing.T) {
		updated, err := svc.UpdateCategory(category.ID, CategoryInput{SpendingLimitPercentage: intPtr(30)})
		testutil.AssertNoError(t, err)
		if updated.SpendingLimitPercentage != 30 {
			t.Errorf("expected 30, got %d", updated.SpendingLimitPercentage)
		}
	})

	t.Run("rename_to_existing", func(t *testing.T) {
		other := testutil.CreateTestCategory(t, db, budget.ID, 100)
		_, err := svc.UpdateCategory(category.ID, CategoryInput{Name: other.Name})
		testutil.AssertAppError(t, err, "DUPLICATE_CATEGORY_NAME")
	})
}

func TestGetUtilization(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := NewCategoryService(db)
	user := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, "1000")
	category := testutil.CreateTestCategory(t, db, budget.ID, 40)
	approved := testutil.CreateTestProject(t, db, budget.ID, category.ID, user.ID, "380")
	testutil.CreateTestProject(t, db, budget.ID, category.ID, user.ID, "100")
	_, err := NewApprovalService(db).ApproveProject(ctx, approved.ID, nil)
	testutil.AssertNoError(t, err)

	u, err := svc.GetUtilization(ctx, category.ID)
	testutil.AssertNoError(t, err)
	testutil.AssertDecimal(t, u.LimitAmount, "400", "limit")
	testutil.AssertDecimal(t, u.UtilizationPercent, "95", "utilization")
	if u.Status != models.UtilizationCritical || !u.NearLimit || u.OverLimit {
		t.Errorf("unexpected flags: %+v", u)
	}
	if u.ProjectsCount != 2 || u.ApprovedCount != 1 || u.PendingCount != 1 {
		t.Errorf("unexpected counts: %+v", u)
	}
	testutil.AssertDecimal(t, u.TotalRequested, "480", "requested")
	testutil.AssertDecimal(t, u.Remaining, "20", "remaining")

	within, err := svc.WithinLimit(ctx, category.ID, decimal.NewFromInt(20))
	testutil.AssertNoError(t, err)
	if !within {
		t.Error("expected 20 to fit exactly")
	}
	within, err = svc.WithinLimit(ctx, category.ID, decimal.RequireFromString("20.01"))
	testutil.AssertNoError(t, err)
	if within {
		t.Error("expected 20.01 not to fit")
	}
}

func TestDeleteCategory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewCategoryService(db)
	user := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, "1000")
	category := testutil.CreateTestCategory(t, db, budget.ID, 100)
	testutil.CreateTestProject(t, db, budget.ID, category.ID, user.ID, "100")

	testutil.AssertNoError(t, svc.DeleteCategory(category.ID))

	var n int64
	db.Model(&models.BudgetProject{}).Where("category_id = ?", category.ID).Count(&n)
	if n != 0 {
		t.Errorf("expected category projects removed, %d left", n)
	}
	err := svc.DeleteCategory(category.ID)
	testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
}
