package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "civicbudget/internal/errors"
	"civicbudget/internal/services"
)

// CategoryHandler handles category-related requests
type CategoryHandler struct {
	categoryService services.CategoryServicer
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categoryService services.CategoryServicer) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// CreateCategoryRequest represents the request payload for creating a category
type CreateCategoryRequest struct {
	Name                    string  `json:"name" binding:"required,min=1,max=100"`
	Description             *string `json:"description" binding:"omitempty,max=1000"`
	Color                   *string `json:"color" binding:"omitempty,hex_color"`
	SpendingLimitPercentage *int    `json:"spending_limit_percentage" binding:"omitempty,min=1,max=100"`
	Position                *int    `json:"position" binding:"omitempty,min=0"`
}

// UpdateCategoryRequest represents the request payload for updating a category
type UpdateCategoryRequest struct {
	Name                    string  `json:"name" binding:"omitempty,min=1,max=100"`
	Description             *string `json:"description" binding:"omitempty,max=1000"`
	Color                   *string `json:"color" binding:"omitempty,hex_color"`
	SpendingLimitPercentage *int    `json:"spending_limit_percentage" binding:"omitempty,min=1,max=100"`
	Position                *int    `json:"position" binding:"omitempty,min=0"`
}

// CreateCategory handles the creation of a new category
// @Summary     Create a category
// @Description Create a spending category in a budget
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                true "Budget ID"
// @Param       request body CreateCategoryRequest true "Category details"
// @Success     201 {object} models.BudgetCategory "Category created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     409 {object} ErrorResponse "Duplicate name"
// @Router      /budgets/{id}/categories [post]
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := h.categoryService.CreateCategory(budgetID, services.CategoryInput(req))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// GetCategories handles listing a budget's categories
// @Summary     List categories
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {array}  models.BudgetCategory "Categories"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id}/categories [get]
func (h *CategoryHandler) GetCategories(c *gin.Context) {
	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	categories, err := h.categoryService.ListBudgetCategories(budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// GetCategory handles retrieving a specific category
// @Summary     Get category by ID
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} models.BudgetCategory "Category"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id} [get]
func (h *CategoryHandler) GetCategory(c *gin.Context) {
	categoryID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	category, err := h.categoryService.GetCategoryByID(categoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// UpdateCategory handles updating a category
// @Summary     Update category
// @Description Update a category. The spending limit cannot drop below current allocations.
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                true "Category ID"
// @Param       request body UpdateCategoryRequest true "Updated category"
// @Success     200 {object} models.BudgetCategory "Updated category"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     422 {object} ErrorResponse "Limit below utilization"
// @Router      /categories/{id} [put]
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	categoryID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateCategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := h.categoryService.UpdateCategory(categoryID, services.CategoryInput(req))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// DeleteCategory handles deleting a category
// @Summary     Delete category
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} MessageResponse "Category deleted"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id} [delete]
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	categoryID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.categoryService.DeleteCategory(categoryID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
}

// GetUtilization handles reporting how much of a category's limit is committed.
// With ?additional=<amount> the response also says whether that amount still fits.
// @Summary     Get category utilization
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id         path  string true  "Category ID"
// @Param       additional query string false "Amount to test against the remaining limit"
// @Success     200 {object} services.CategoryUtilization "Utilization"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id}/utilization [get]
func (h *CategoryHandler) GetUtilization(c *gin.Context) {
	categoryID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	utilization, err := h.categoryService.GetUtilization(ctx, categoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	resp := gin.H{"utilization": utilization}
	if raw := c.Query("additional"); raw != "" {
		additional, err := decimal.NewFromString(raw)
		if err != nil || additional.IsNegative() {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "additional must be a non-negative amount"))
			return
		}
		ok, err := h.categoryService.WithinLimit(ctx, categoryID, additional)
		if err != nil {
			respondWithError(c, err)
			return
		}
		resp["within_limit"] = ok
	}

	c.JSON(http.StatusOK, resp)
}
