package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"civicbudget/internal/cache"
	"civicbudget/internal/logger"
	"civicbudget/internal/middleware"
	"civicbudget/internal/models"
	"civicbudget/internal/scheduler"
	"civicbudget/internal/server"
	"civicbudget/internal/services"
	"civicbudget/internal/testutil"
	"civicbudget/internal/validator"
)

const testPipelineKey = "integration-pipeline-key"

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	sweeper := scheduler.New(services.NewPhaseSweeper(db), cache.NewMemoryLocker(), "test:phase-sweep", time.Minute)

	router := server.NewRouter(server.Options{
		DB:             db,
		Sweeper:        sweeper,
		VoteLimiter:    middleware.NewLimiterStore(100, 100),
		PipelineAPIKey: testPipelineKey,
	})

	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// pipelineRequest calls a pipeline route with the given API key.
func (app *testApp) pipelineRequest(path, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, http.NoBody)
	if apiKey != "" {
		req.Header.Set(middleware.APIKeyHeader, apiKey)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// newUser creates a participant and returns it with a signed access token.
func (app *testApp) newUser(t *testing.T, votes int) (*models.User, string) {
	t.Helper()
	user := testutil.CreateTestUserWithVotes(t, app.DB, votes)
	return user, tokenFor(t, user.ID, false)
}

// newReviewer creates a privileged user and returns it with a signed access token.
func (app *testApp) newReviewer(t *testing.T) (*models.User, string) {
	t.Helper()
	user := testutil.CreateTestUser(t, app.DB)
	return user, tokenFor(t, user.ID, true)
}

func tokenFor(t *testing.T, userID string, privileged bool) string {
	t.Helper()
	token, err := middleware.GenerateAccessToken(userID, privileged)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// object returns the nested JSON object stored under key.
func object(t *testing.T, body map[string]interface{}, key string) map[string]interface{} {
	t.Helper()
	obj, ok := body[key].(map[string]interface{})
	if !ok {
		t.Fatalf("expected %q object in response, got %v", key, body)
	}
	return obj
}

// amount reads a decimal field that may be encoded as a JSON string or number.
func amount(t *testing.T, obj map[string]interface{}, key string) decimal.Decimal {
	t.Helper()
	switch v := obj[key].(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			t.Fatalf("field %q is not a decimal: %v", key, err)
		}
		return d
	case float64:
		return decimal.NewFromFloat(v)
	}
	t.Fatalf("field %q missing or not numeric: %v", key, obj[key])
	return decimal.Zero
}

// assertFailure checks a failed outcome: status, success=false and the error code.
func assertFailure(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	body := parseJSON(t, rec)
	if success, _ := body["success"].(bool); success {
		t.Errorf("expected success=false, got %v", body)
	}
	got, _ := body["code"].(string)
	if got == "" {
		if errObj, ok := body["error"].(map[string]interface{}); ok {
			got, _ = errObj["code"].(string)
		}
	}
	if got != code {
		t.Errorf("expected error code %q, got %q", code, got)
	}
}
