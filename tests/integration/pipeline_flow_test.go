package integration

import (
	"net/http"
	"testing"
	"time"

	"civicbudget/internal/models"
	"civicbudget/internal/testutil"
)

func TestPipelineFlow_PhaseSweep(t *testing.T) {
	app := setupApp(t)

	budget := testutil.CreateTestBudget(t, app.DB, "1000")
	now := time.Now()
	expired := testutil.CreateTestPhase(t, app.DB, budget.ID, now.Add(-72*time.Hour), now.Add(-48*time.Hour), true, 3)
	current := testutil.CreateTestPhase(t, app.DB, budget.ID, now.Add(-time.Hour), now.Add(time.Hour), false, 3)

	// Missing and wrong keys are refused
	rec := app.pipelineRequest("/api/v1/pipeline/phase-sweep", "")
	assertFailure(t, rec, http.StatusUnauthorized, "INVALID_API_KEY")
	rec = app.pipelineRequest("/api/v1/pipeline/phase-sweep", "wrong-key")
	assertFailure(t, rec, http.StatusUnauthorized, "INVALID_API_KEY")

	rec = app.pipelineRequest("/api/v1/pipeline/phase-sweep", testPipelineKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := parseJSON(t, rec)
	if body["success"] != true {
		t.Fatalf("expected success=true, got %v", body)
	}
	result := object(t, body, "result")
	if result["activated"].(float64) != 1 {
		t.Errorf("expected 1 phase activated, got %v", result["activated"])
	}
	if result["deactivated"].(float64) < 1 {
		t.Errorf("expected the expired phase deactivated, got %v", result["deactivated"])
	}

	var phases []models.VotingPhase
	if err := app.DB.Where("budget_id = ?", budget.ID).Find(&phases).Error; err != nil {
		t.Fatalf("failed to load phases: %v", err)
	}
	for _, p := range phases {
		switch p.ID {
		case expired.ID:
			if p.Active {
				t.Error("expired phase should be inactive")
			}
		case current.ID:
			if !p.Active {
				t.Error("current phase should be active")
			}
		}
	}

	// A second sweep has nothing left to do
	rec = app.pipelineRequest("/api/v1/pipeline/phase-sweep", testPipelineKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result = object(t, parseJSON(t, rec), "result")
	if result["activated"].(float64) != 0 || result["deactivated"].(float64) != 0 {
		t.Errorf("expected idempotent sweep, got %v", result)
	}
}
