package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/models"
	"civicbudget/internal/pagination"
	"civicbudget/internal/services"
)

// --- mock budget service ---

type mockBudgetService struct {
	createBudgetFn     func(input services.BudgetInput) (*models.Budget, error)
	getBudgetByIDFn    func(id string) (*models.Budget, error)
	listBudgetsFn      func(page pagination.PageRequest, status *models.BudgetStatus) (*pagination.PageResponse[models.Budget], error)
	updateBudgetFn     func(id string, input services.BudgetInput) (*models.Budget, error)
	transitionStatusFn func(id string, next models.BudgetStatus) (*models.Budget, error)
	deleteBudgetFn     func(id string) error
	getSummaryFn       func(ctx context.Context, id string) (*services.BudgetSummary, error)
	getPhaseResultsFn  func(ctx context.Context, phaseID string) (*services.PhaseResults, error)
}

func (m *mockBudgetService) CreateBudget(input services.BudgetInput) (*models.Budget, error) {
	if m.createBudgetFn != nil {
		return m.createBudgetFn(input)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) GetBudgetByID(id string) (*models.Budget, error) {
	if m.getBudgetByIDFn != nil {
		return m.getBudgetByIDFn(id)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) ListBudgets(page pagination.PageRequest, status *models.BudgetStatus) (*pagination.PageResponse[models.Budget], error) {
	if m.listBudgetsFn != nil {
		return m.listBudgetsFn(page, status)
	}
	resp := pagination.NewPageResponse([]models.Budget{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockBudgetService) UpdateBudget(id string, input services.BudgetInput) (*models.Budget, error) {
	if m.updateBudgetFn != nil {
		return m.updateBudgetFn(id, input)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) TransitionStatus(id string, next models.BudgetStatus) (*models.Budget, error) {
	if m.transitionStatusFn != nil {
		return m.transitionStatusFn(id, next)
	}
	return &models.Budget{Status: next}, nil
}

func (m *mockBudgetService) DeleteBudget(id string) error {
	if m.deleteBudgetFn != nil {
		return m.deleteBudgetFn(id)
	}
	return nil
}

func (m *mockBudgetService) GetBudgetSummary(ctx context.Context, id string) (*services.BudgetSummary, error) {
	if m.getSummaryFn != nil {
		return m.getSummaryFn(ctx, id)
	}
	return &services.BudgetSummary{BudgetID: id}, nil
}

func (m *mockBudgetService) GetPhaseResults(ctx context.Context, phaseID string) (*services.PhaseResults, error) {
	if m.getPhaseResultsFn != nil {
		return m.getPhaseResultsFn(ctx, phaseID)
	}
	return &services.PhaseResults{PhaseID: phaseID}, nil
}

var _ services.BudgetServicer = (*mockBudgetService)(nil)

func setupBudgetRouter(handler *BudgetHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/budgets", handler.CreateBudget)
	auth.GET("/budgets", handler.GetBudgets)
	auth.GET("/budgets/:id", handler.GetBudget)
	auth.PUT("/budgets/:id", handler.UpdateBudget)
	auth.POST("/budgets/:id/status", handler.TransitionStatus)
	auth.DELETE("/budgets/:id", handler.DeleteBudget)
	auth.GET("/budgets/:id/summary", handler.GetBudgetSummary)
	auth.GET("/phases/:id/results", handler.GetPhaseResults)
	return r
}

func TestBudgetHandler_CreateBudget(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		svc := &mockBudgetService{
			createBudgetFn: func(input services.BudgetInput) (*models.Budget, error) {
				return &models.Budget{
					Base:       models.Base{ID: testBudgetID},
					Name:       input.Name,
					TotalFunds: *input.TotalFunds,
					Status:     models.BudgetStatusPlanning,
				}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc))

		rec := doRequest(r, "POST", "/budgets", `{"name":"City 2026","total_funds":"1000000.00"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		budget := parseJSON(t, rec)["budget"].(map[string]interface{})
		if budget["name"] != "City 2026" {
			t.Errorf("expected City 2026, got %v", budget["name"])
		}
		if budget["total_funds"] != "1000000" {
			t.Errorf("expected total_funds 1000000, got %v", budget["total_funds"])
		}
	})

	t.Run("returns 400 on missing name", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}))

		rec := doRequest(r, "POST", "/budgets", `{"total_funds":"100"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on zero funds", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}))

		rec := doRequest(r, "POST", "/budgets", `{"name":"x","total_funds":"0"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on sub-cent funds", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}))

		rec := doRequest(r, "POST", "/budgets", `{"name":"x","total_funds":"10.005"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_GetBudgets(t *testing.T) {
	t.Run("passes status filter", func(t *testing.T) {
		var gotStatus *models.BudgetStatus
		svc := &mockBudgetService{
			listBudgetsFn: func(page pagination.PageRequest, status *models.BudgetStatus) (*pagination.PageResponse[models.Budget], error) {
				gotStatus = status
				resp := pagination.NewPageResponse([]models.Budget{{Name: "a"}}, 1, 20, 1)
				return &resp, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc))

		rec := doRequest(r, "GET", "/budgets?status=voting", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotStatus == nil || *gotStatus != models.BudgetStatusVoting {
			t.Errorf("expected voting filter, got %v", gotStatus)
		}
		if parseJSON(t, rec)["total_items"] != float64(1) {
			t.Error("expected total_items 1")
		}
	})

	t.Run("returns 400 on unknown status", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}))

		rec := doRequest(r, "GET", "/budgets?status=archived", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on oversized page", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}))

		rec := doRequest(r, "GET", "/budgets?page_size=500", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_GetBudget(t *testing.T) {
	t.Run("returns 404 when missing", func(t *testing.T) {
		svc := &mockBudgetService{
			getBudgetByIDFn: func(string) (*models.Budget, error) { return nil, apperrors.ErrBudgetNotFound },
		}
		r := setupBudgetRouter(NewBudgetHandler(svc))

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "BUDGET_NOT_FOUND")
	})

	t.Run("returns 400 on invalid id", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}))

		rec := doRequest(r, "GET", "/budgets/42", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_UpdateBudget(t *testing.T) {
	t.Run("passes only provided fields", func(t *testing.T) {
		var got services.BudgetInput
		svc := &mockBudgetService{
			updateBudgetFn: func(_ string, input services.BudgetInput) (*models.Budget, error) {
				got = input
				return &models.Budget{}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc))

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID, `{"total_funds":"500.50"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.TotalFunds == nil || !got.TotalFunds.Equal(decimal.RequireFromString("500.50")) {
			t.Errorf("expected funds 500.50, got %v", got.TotalFunds)
		}
		if got.Name != "" || got.Active != nil {
			t.Errorf("expected untouched fields, got %+v", got)
		}
	})

	t.Run("funds below commitments is 422", func(t *testing.T) {
		svc := &mockBudgetService{
			updateBudgetFn: func(string, services.BudgetInput) (*models.Budget, error) {
				return nil, apperrors.ErrLimitBelowUtilization
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc))

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID, `{"total_funds":"1.00"}`)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "LIMIT_BELOW_UTILIZATION")
	})
}

func TestBudgetHandler_TransitionStatus(t *testing.T) {
	t.Run("advances status", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}))

		rec := doRequest(r, "POST", "/budgets/"+testBudgetID+"/status", `{"status":"voting"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		budget := parseJSON(t, rec)["budget"].(map[string]interface{})
		if budget["status"] != "voting" {
			t.Errorf("expected voting, got %v", budget["status"])
		}
	})

	t.Run("unknown status is 400", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}))

		rec := doRequest(r, "POST", "/budgets/"+testBudgetID+"/status", `{"status":"archived"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("skipping a stage is 409", func(t *testing.T) {
		svc := &mockBudgetService{
			transitionStatusFn: func(string, models.BudgetStatus) (*models.Budget, error) {
				return nil, apperrors.ErrInvalidStatusTransition
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc))

		rec := doRequest(r, "POST", "/budgets/"+testBudgetID+"/status", `{"status":"completed"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_DeleteBudget(t *testing.T) {
	deleted := ""
	svc := &mockBudgetService{
		deleteBudgetFn: func(id string) error {
			deleted = id
			return nil
		},
	}
	r := setupBudgetRouter(NewBudgetHandler(svc))

	rec := doRequest(r, "DELETE", "/budgets/"+testBudgetID, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if deleted != testBudgetID {
		t.Errorf("expected %s deleted, got %s", testBudgetID, deleted)
	}
}

func TestBudgetHandler_Reports(t *testing.T) {
	t.Run("summary", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}))

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID+"/summary", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		summary := parseJSON(t, rec)["summary"].(map[string]interface{})
		if summary["budget_id"] != testBudgetID {
			t.Errorf("expected budget_id %s, got %v", testBudgetID, summary["budget_id"])
		}
	})

	t.Run("phase results not found", func(t *testing.T) {
		svc := &mockBudgetService{
			getPhaseResultsFn: func(context.Context, string) (*services.PhaseResults, error) {
				return nil, apperrors.ErrPhaseNotFound
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc))

		rec := doRequest(r, "GET", "/phases/"+testPhaseID+"/results", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}
