package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/models"
	"civicbudget/internal/testutil"
)

func TestApproveProject(t *testing.T) {
	ctx := context.Background()

	t.Run("forty_percent_category_blocks_second_approval", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewApprovalService(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, "1000000")
		cat := testutil.CreateTestCategory(t, db, budget.ID, 40)
		first := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "250000")
		second := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "250000")

		approved, err := svc.ApproveProject(ctx, first.ID, nil)
		testutil.AssertNoError(t, err)
		if approved.Status != models.ProjectStatusApproved {
			t.Errorf("expected approved, got %s", approved.Status)
		}
		if !approved.AllocatedAmount.Equal(testutil.Amount(t, "250000")) {
			t.Errorf("expected allocation 250000, got %s", approved.AllocatedAmount)
		}

		util, err := NewCategoryService(db).GetUtilization(ctx, cat.ID)
		testutil.AssertNoError(t, err)
		if !util.UtilizationPercent.Equal(decimal.RequireFromString("62.5")) {
			t.Errorf("expected 62.5%% of the limit, got %s", util.UtilizationPercent)
		}

		_, err = svc.ApproveProject(ctx, second.ID, nil)
		testutil.AssertAppError(t, err, "CATEGORY_LIMIT_EXCEEDED")
		testutil.AssertErrorKind(t, err, apperrors.KindLimit)
		if err.Error() != "would exceed category spending limit" {
			t.Errorf("unexpected message %q", err.Error())
		}

		reloaded := testutil.ReloadProject(t, db, second.ID)
		if reloaded.Status != models.ProjectStatusPending {
			t.Errorf("expected second project to stay pending, got %s", reloaded.Status)
		}
		if !reloaded.AllocatedAmount.IsZero() {
			t.Errorf("expected no allocation, got %s", reloaded.AllocatedAmount)
		}
	})

	t.Run("custom_allocation", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewApprovalService(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, "1000")
		cat := testutil.CreateTestCategory(t, db, budget.ID, 50)
		project := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "800")

		allocation := testutil.Amount(t, "500")
		approved, err := svc.ApproveProject(ctx, project.ID, &allocation)
		testutil.AssertNoError(t, err)
		if !approved.AllocatedAmount.Equal(allocation) {
			t.Errorf("expected allocation 500, got %s", approved.AllocatedAmount)
		}
	})

	t.Run("hundred_percent_category_is_uncapped", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewApprovalService(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, "1000")
		cat := testutil.CreateTestCategory(t, db, budget.ID, 100)
		a := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "900")
		b := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "900")

		_, err := svc.ApproveProject(ctx, a.ID, nil)
		testutil.AssertNoError(t, err)
		_, err = svc.ApproveProject(ctx, b.ID, nil)
		testutil.AssertNoError(t, err)
	})

	t.Run("non_pending_is_conflict", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewApprovalService(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, "1000")
		cat := testutil.CreateTestCategory(t, db, budget.ID, 100)
		project := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "100")

		_, err := svc.ApproveProject(ctx, project.ID, nil)
		testutil.AssertNoError(t, err)

		_, err = svc.ApproveProject(ctx, project.ID, nil)
		testutil.AssertAppError(t, err, "PROJECT_NOT_PENDING")
		testutil.AssertErrorKind(t, err, apperrors.KindConflict)
	})

	t.Run("zero_allocation_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewApprovalService(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, "1000")
		cat := testutil.CreateTestCategory(t, db, budget.ID, 100)
		project := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "100")

		zero := decimal.Zero
		_, err := svc.ApproveProject(ctx, project.ID, &zero)
		testutil.AssertAppError(t, err, "INVALID_ALLOCATION")
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewApprovalService(db)

		_, err := svc.ApproveProject(ctx, "01890a5d-ac96-774b-bcce-b302099a8057", nil)
		testutil.AssertAppError(t, err, "PROJECT_NOT_FOUND")
	})

	t.Run("implemented_projects_release_category_limit", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewApprovalService(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, "1000000")
		cat := testutil.CreateTestCategory(t, db, budget.ID, 40)
		done := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "250000")
		next := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "250000")

		_, err := svc.ApproveProject(ctx, done.ID, nil)
		testutil.AssertNoError(t, err)
		_, err = svc.MarkImplemented(ctx, done.ID)
		testutil.AssertNoError(t, err)

		util, err := NewCategoryService(db).GetUtilization(ctx, cat.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, util.TotalAllocated, "0", "total allocated after implementation")

		approved, err := svc.ApproveProject(ctx, next.ID, nil)
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, approved.AllocatedAmount, "250000", "allocated amount")
	})
}

func TestApproveProject_ConcurrentApprovalsSerialize(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := NewApprovalService(db)
	user := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, "1000000")
	cat := testutil.CreateTestCategory(t, db, budget.ID, 40)

	const n = 4
	ids := make([]string, n)
	for i := range ids {
		ids[i] = testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "150000").ID
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ApproveProject(ctx, ids[i], nil)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperrors.KindOf(err) != apperrors.KindLimit:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 2 {
		t.Errorf("expected exactly 2 approvals to fit in 400000, got %d", succeeded)
	}

	util, err := NewCategoryService(db).GetUtilization(ctx, cat.ID)
	testutil.AssertNoError(t, err)
	if util.TotalAllocated.GreaterThan(util.LimitAmount) {
		t.Errorf("allocated %s exceeds limit %s", util.TotalAllocated, util.LimitAmount)
	}
}

func TestRejectProject(t *testing.T) {
	ctx := context.Background()

	t.Run("appends_reason", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewApprovalService(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, "1000")
		cat := testutil.CreateTestCategory(t, db, budget.ID, 100)
		project := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "100")
		db.Model(project).Update("justification", "Needed for the park")

		rejected, err := svc.RejectProject(ctx, project.ID, "Out of scope")
		testutil.AssertNoError(t, err)
		if rejected.Status != models.ProjectStatusRejected {
			t.Errorf("expected rejected, got %s", rejected.Status)
		}
		want := "Needed for the park\n\nRejection reason: Out of scope"
		if got := testutil.ReloadProject(t, db, project.ID).Justification; got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("blank_reason_leaves_justification", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewApprovalService(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, "1000")
		cat := testutil.CreateTestCategory(t, db, budget.ID, 100)
		project := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "100")

		_, err := svc.RejectProject(ctx, project.ID, "   ")
		testutil.AssertNoError(t, err)
		if got := testutil.ReloadProject(t, db, project.ID).Justification; strings.Contains(got, "Rejection reason") {
			t.Errorf("unexpected justification %q", got)
		}
	})

	t.Run("approved_project_is_conflict", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewApprovalService(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, "1000")
		cat := testutil.CreateTestCategory(t, db, budget.ID, 100)
		project := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "100")
		_, err := svc.ApproveProject(ctx, project.ID, nil)
		testutil.AssertNoError(t, err)

		_, err = svc.RejectProject(ctx, project.ID, "late")
		testutil.AssertAppError(t, err, "PROJECT_NOT_PENDING")
		if got := testutil.ReloadProject(t, db, project.ID).Status; got != models.ProjectStatusApproved {
			t.Errorf("expected project to stay approved, got %s", got)
		}
	})
}

func TestAdjustAllocation(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := NewApprovalService(db)
	user := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, "1000")
	cat := testutil.CreateTestCategory(t, db, budget.ID, 50)
	a := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "300")
	b := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "100")
	pending := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "100")

	_, err := svc.ApproveProject(ctx, a.ID, nil)
	testutil.AssertNoError(t, err)
	_, err = svc.ApproveProject(ctx, b.ID, nil)
	testutil.AssertNoError(t, err)

	t.Run("raise_within_limit_credits_own_allocation", func(t *testing.T) {
		adjusted, err := svc.AdjustAllocation(ctx, a.ID, testutil.Amount(t, "400"))
		testutil.AssertNoError(t, err)
		if !adjusted.AllocatedAmount.Equal(testutil.Amount(t, "400")) {
			t.Errorf("expected 400, got %s", adjusted.AllocatedAmount)
		}
	})

	t.Run("raise_beyond_limit", func(t *testing.T) {
		_, err := svc.AdjustAllocation(ctx, a.ID, testutil.Amount(t, "401"))
		testutil.AssertAppError(t, err, "CATEGORY_LIMIT_EXCEEDED")
		if got := testutil.ReloadProject(t, db, a.ID).AllocatedAmount; !got.Equal(testutil.Amount(t, "400")) {
			t.Errorf("expected allocation unchanged at 400, got %s", got)
		}
	})

	t.Run("pending_project", func(t *testing.T) {
		_, err := svc.AdjustAllocation(ctx, pending.ID, testutil.Amount(t, "50"))
		testutil.AssertAppError(t, err, "PROJECT_NOT_APPROVED")
	})
}

func TestCanApprove(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := NewApprovalService(db)
	user := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, "1000")
	cat := testutil.CreateTestCategory(t, db, budget.ID, 30)
	small := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "300")
	large := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "301")

	ok, err := svc.CanApprove(ctx, small.ID, nil)
	testutil.AssertNoError(t, err)
	if !ok {
		t.Error("expected 300 to fit a 300 limit")
	}

	ok, err = svc.CanApprove(ctx, large.ID, nil)
	testutil.AssertNoError(t, err)
	if ok {
		t.Error("expected 301 not to fit a 300 limit")
	}

	if got := testutil.ReloadProject(t, db, small.ID).Status; got != models.ProjectStatusPending {
		t.Errorf("dry run must not change status, got %s", got)
	}
}

func TestBatchApproveAndReject(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := NewApprovalService(db)
	user := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, "1000")
	cat := testutil.CreateTestCategory(t, db, budget.ID, 50)
	a := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "300")
	b := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "300")
	c := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "100")

	result, err := svc.BatchApprove(ctx, []string{a.ID, b.ID, c.ID})
	testutil.AssertNoError(t, err)
	if result.Succeeded != 2 || result.Failed != 1 {
		t.Fatalf("expected 2 approved and 1 failed, got %+v", result)
	}
	if result.Outcomes[1].Success || result.Outcomes[1].Message != "would exceed category spending limit" {
		t.Errorf("unexpected outcome for second project: %+v", result.Outcomes[1])
	}

	result, err = svc.BatchReject(ctx, []string{a.ID, b.ID}, "budget exhausted")
	testutil.AssertNoError(t, err)
	if result.Succeeded != 1 || result.Failed != 1 {
		t.Errorf("expected 1 rejected and 1 failed, got %+v", result)
	}
	if got := testutil.ReloadProject(t, db, b.ID).Status; got != models.ProjectStatusRejected {
		t.Errorf("expected b rejected, got %s", got)
	}
}

func TestBatchApprove_DuplicateIDs(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := NewApprovalService(db)
	user := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, "1000")
	cat := testutil.CreateTestCategory(t, db, budget.ID, 100)
	p := testutil.CreateTestProject(t, db, budget.ID, cat.ID, user.ID, "100")

	result, err := svc.BatchApprove(ctx, []string{p.ID, p.ID})
	testutil.AssertNoError(t, err)
	if len(result.Outcomes) != 1 || result.Succeeded != 1 {
		t.Errorf("expected a single outcome for a repeated id, got %+v", result)
	}
}
