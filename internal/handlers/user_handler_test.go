package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/models"
	"civicbudget/internal/services"
)

// --- mock user service ---

type mockUserService struct {
	createFn   func(email, firstName, lastName string, availableVotes *int) (*models.User, error)
	getFn      func(id string) (*models.User, error)
	setVotesFn func(id string, votes int) (*models.User, error)
	deleteFn   func(id string) error
}

func (m *mockUserService) CreateUser(email, firstName, lastName string, availableVotes *int) (*models.User, error) {
	if m.createFn != nil {
		return m.createFn(email, firstName, lastName, availableVotes)
	}
	return &models.User{Email: email}, nil
}

func (m *mockUserService) GetUserByID(id string) (*models.User, error) {
	if m.getFn != nil {
		return m.getFn(id)
	}
	return &models.User{Base: models.Base{ID: id}}, nil
}

func (m *mockUserService) SetAvailableVotes(id string, votes int) (*models.User, error) {
	if m.setVotesFn != nil {
		return m.setVotesFn(id, votes)
	}
	return &models.User{Base: models.Base{ID: id}, AvailableVotes: votes}, nil
}

func (m *mockUserService) DeleteUser(id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(id)
	}
	return nil
}

var _ services.UserServicer = (*mockUserService)(nil)

func setupUserRouter(handler *UserHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/users", handler.CreateUser)
	auth.GET("/users/me", handler.GetMe)
	auth.GET("/users/:id", handler.GetUser)
	auth.PUT("/users/:id/votes", handler.SetAvailableVotes)
	auth.DELETE("/users/:id", handler.DeleteUser)
	return r
}

func TestUserHandler_CreateUser(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		r := setupUserRouter(NewUserHandler(&mockUserService{}))

		rec := doRequest(r, "POST", "/users", `{"email":"alice@example.com","first_name":"Alice"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("returns 400 on invalid email", func(t *testing.T) {
		r := setupUserRouter(NewUserHandler(&mockUserService{}))

		rec := doRequest(r, "POST", "/users", `{"email":"not-an-email"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 409 on duplicate email", func(t *testing.T) {
		svc := &mockUserService{
			createFn: func(string, string, string, *int) (*models.User, error) {
				return nil, apperrors.ErrDuplicateEmail
			},
		}
		r := setupUserRouter(NewUserHandler(svc))

		rec := doRequest(r, "POST", "/users", `{"email":"alice@example.com"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "DUPLICATE_EMAIL")
	})
}

func TestUserHandler_GetMe(t *testing.T) {
	r := setupUserRouter(NewUserHandler(&mockUserService{}))

	rec := doRequest(r, "GET", "/users/me", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	user := parseJSON(t, rec)["user"].(map[string]interface{})
	if user["id"] != testUserID {
		t.Errorf("expected %s, got %v", testUserID, user["id"])
	}
}

func TestUserHandler_SetAvailableVotes(t *testing.T) {
	t.Run("zero is allowed", func(t *testing.T) {
		r := setupUserRouter(NewUserHandler(&mockUserService{}))

		rec := doRequest(r, "PUT", "/users/"+testUserID+"/votes", `{"available_votes":0}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("missing value is 400", func(t *testing.T) {
		r := setupUserRouter(NewUserHandler(&mockUserService{}))

		rec := doRequest(r, "PUT", "/users/"+testUserID+"/votes", `{}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestUserHandler_DeleteUser(t *testing.T) {
	svc := &mockUserService{
		deleteFn: func(string) error { return apperrors.ErrUserNotFound },
	}
	r := setupUserRouter(NewUserHandler(svc))

	rec := doRequest(r, "DELETE", "/users/"+testUserID, "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
