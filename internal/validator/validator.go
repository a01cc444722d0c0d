// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"reflect"
	"regexp"

	"civicbudget/internal/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var hexColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn installs the custom tags on an arbitrary validator instance.
func RegisterOn(v *validator.Validate) {
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	_ = v.RegisterValidation("hex_color", validateHexColor)
	_ = v.RegisterValidation("budget_status", validateBudgetStatus)
	_ = v.RegisterValidation("project_status", validateProjectStatus)
	_ = v.RegisterValidation("voting_type", validateVotingType)
	_ = v.RegisterValidation("sort_order", validateSortOrder)
	_ = v.RegisterValidation("decimal_amount", validateDecimalAmount)
}

// decimalValue lets tags such as required see through decimal.Decimal.
func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

func validateHexColor(fl validator.FieldLevel) bool {
	return hexColorRegex.MatchString(fl.Field().String())
}

func validateBudgetStatus(fl validator.FieldLevel) bool {
	return models.BudgetStatus(fl.Field().String()).Valid()
}

func validateProjectStatus(fl validator.FieldLevel) bool {
	switch models.ProjectStatus(fl.Field().String()) {
	case models.ProjectStatusPending, models.ProjectStatusApproved,
		models.ProjectStatusRejected, models.ProjectStatusImplemented:
		return true
	}
	return false
}

func validateVotingType(fl validator.FieldLevel) bool {
	switch models.VotingType(fl.Field().String()) {
	case models.VotingTypeSimple, models.VotingTypeWeighted, models.VotingTypeRanked:
		return true
	}
	return false
}

func validateSortOrder(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "asc", "desc":
		return true
	}
	return false
}

// validateDecimalAmount accepts positive amounts with at most two decimal places.
func validateDecimalAmount(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	d, err := decimal.NewFromString(s)
	if err != nil {
		return false
	}
	return d.IsPositive() && d.Equal(d.Round(2))
}
