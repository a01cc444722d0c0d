package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"civicbudget/internal/config"
)

const testUserID = "01890a5d-ac96-774b-bcce-b302099a8057"

func setupAuthRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	chain := append([]gin.HandlerFunc{AuthMiddleware()}, handlers...)
	chain = append(chain, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":    c.GetString(ContextUserID),
			"privileged": c.GetBool(ContextPrivileged),
		})
	})
	r.GET("/me", chain...)
	return r
}

func doAuthRequest(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := parseBody(t, rec)
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response: %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("valid_token_sets_user", func(t *testing.T) {
		token, err := GenerateAccessToken(testUserID, false)
		if err != nil {
			t.Fatalf("GenerateAccessToken: %v", err)
		}

		rec := doAuthRequest(setupAuthRouter(), "Bearer "+token)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		body := parseBody(t, rec)
		if body["user_id"] != testUserID {
			t.Errorf("expected user_id %s, got %v", testUserID, body["user_id"])
		}
		if body["privileged"] != false {
			t.Errorf("expected privileged false, got %v", body["privileged"])
		}
	})

	t.Run("privileged_claim_propagates", func(t *testing.T) {
		token, err := GenerateAccessToken(testUserID, true)
		if err != nil {
			t.Fatalf("GenerateAccessToken: %v", err)
		}

		rec := doAuthRequest(setupAuthRouter(), "Bearer "+token)
		if body := parseBody(t, rec); body["privileged"] != true {
			t.Errorf("expected privileged true, got %v", body["privileged"])
		}
	})

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing_header", header: ""},
		{name: "wrong_scheme", header: "Basic abc"},
		{name: "malformed_token", header: "Bearer not-a-jwt"},
		{name: "extra_parts", header: "Bearer a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doAuthRequest(setupAuthRouter(), tt.header)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if code := errorCode(t, rec); code != "UNAUTHORIZED" {
				t.Errorf("expected UNAUTHORIZED, got %s", code)
			}
		})
	}

	t.Run("expired_token", func(t *testing.T) {
		past := time.Now().Add(-2 * time.Hour)
		claims := &JWTClaims{
			UserID: testUserID,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
				IssuedAt:  jwt.NewNumericDate(past),
				Issuer:    tokenIssuer,
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(config.Get().JWTSecret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}

		rec := doAuthRequest(setupAuthRouter(), "Bearer "+token)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("wrong_signing_key", func(t *testing.T) {
		claims := &JWTClaims{
			UserID: testUserID,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				Issuer:    tokenIssuer,
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("some-other-secret"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}

		rec := doAuthRequest(setupAuthRouter(), "Bearer "+token)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("missing_user_id", func(t *testing.T) {
		token, err := GenerateAccessToken("", false)
		if err != nil {
			t.Fatalf("GenerateAccessToken: %v", err)
		}

		rec := doAuthRequest(setupAuthRouter(), "Bearer "+token)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestRequirePrivileged(t *testing.T) {
	t.Run("privileged_passes", func(t *testing.T) {
		token, _ := GenerateAccessToken(testUserID, true)
		rec := doAuthRequest(setupAuthRouter(RequirePrivileged()), "Bearer "+token)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("regular_user_forbidden", func(t *testing.T) {
		token, _ := GenerateAccessToken(testUserID, false)
		rec := doAuthRequest(setupAuthRouter(RequirePrivileged()), "Bearer "+token)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		if code := errorCode(t, rec); code != "FORBIDDEN" {
			t.Errorf("expected FORBIDDEN, got %s", code)
		}
	})
}
