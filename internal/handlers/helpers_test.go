package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"civicbudget/internal/middleware"
	"civicbudget/internal/validator"
)

const (
	testUserID    = "01890a5d-ac96-774b-bcce-b302099a8057"
	testBudgetID  = "01890a5d-ac96-774b-bcce-b302099a8058"
	testProjectID = "01890a5d-ac96-774b-bcce-b302099a8059"
	testPhaseID   = "01890a5d-ac96-774b-bcce-b302099a805a"
	testCatID     = "01890a5d-ac96-774b-bcce-b302099a805b"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

// assertOutcome checks the {success, message} envelope of an engine operation.
func assertOutcome(t *testing.T, result map[string]interface{}, success bool, message string) {
	t.Helper()
	if result["success"] != success {
		t.Errorf("expected success=%v, got %v", success, result["success"])
	}
	if result["message"] != message {
		t.Errorf("expected message %q, got %q", message, result["message"])
	}
}
