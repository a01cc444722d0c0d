package models

import "github.com/shopspring/decimal"

// UnlimitedPercentage is the spending limit that disables the category cap.
const UnlimitedPercentage = 100

// DefaultCategoryColor is used when a category is created without a color.
const DefaultCategoryColor = "#007bff"

var hundred = decimal.NewFromInt(100)

// UtilizationStatus buckets a category's utilization percentage.
type UtilizationStatus string

const (
	UtilizationLow      UtilizationStatus = "low"
	UtilizationMedium   UtilizationStatus = "medium"
	UtilizationHigh     UtilizationStatus = "high"
	UtilizationCritical UtilizationStatus = "critical"
	UtilizationOver     UtilizationStatus = "over_limit"
)

// BudgetCategory is a spending bucket capped at a percentage of its budget's funds.
type BudgetCategory struct {
	Base
	BudgetID                string `gorm:"type:uuid;not null;uniqueIndex:idx_budget_categories_budget_name,priority:1" json:"budget_id"`
	Name                    string `gorm:"not null;uniqueIndex:idx_budget_categories_budget_name,priority:2" json:"name"`
	Description             string `json:"description"`
	Color                   string `gorm:"not null" json:"color"`
	SpendingLimitPercentage int    `gorm:"not null" json:"spending_limit_percentage"`
	Position                int    `gorm:"not null" json:"position"`
}

// LimitAmount returns the category ceiling for a budget holding totalFunds.
func (c *BudgetCategory) LimitAmount(totalFunds decimal.Decimal) decimal.Decimal {
	return LimitAmount(totalFunds, c.SpendingLimitPercentage)
}

// Unlimited reports whether the category cap is disabled.
func (c *BudgetCategory) Unlimited() bool {
	return c.SpendingLimitPercentage >= UnlimitedPercentage
}

// LimitAmount computes totalFunds * percentage / 100.
func LimitAmount(totalFunds decimal.Decimal, percentage int) decimal.Decimal {
	return totalFunds.Mul(decimal.NewFromInt(int64(percentage))).Div(hundred)
}

// WithinLimit reports whether adding additional to allocated stays within limit.
// A 100% category is never capped, whatever rounding the limit amount went through.
func WithinLimit(percentage int, allocated, additional, limit decimal.Decimal) bool {
	if percentage >= UnlimitedPercentage {
		return true
	}
	return allocated.Add(additional).LessThanOrEqual(limit)
}

// UtilizationPercent returns allocated/limit as a percentage rounded to 2 places,
// or zero when the limit is zero.
func UtilizationPercent(allocated, limit decimal.Decimal) decimal.Decimal {
	if limit.IsZero() {
		return decimal.Zero
	}
	return allocated.Div(limit).Mul(hundred).Round(2)
}

// UtilizationStatusFor classifies a utilization percentage.
func UtilizationStatusFor(percent decimal.Decimal) UtilizationStatus {
	switch {
	case percent.LessThan(decimal.NewFromInt(50)):
		return UtilizationLow
	case percent.LessThan(decimal.NewFromInt(80)):
		return UtilizationMedium
	case percent.LessThan(decimal.NewFromInt(95)):
		return UtilizationHigh
	case percent.LessThanOrEqual(hundred):
		return UtilizationCritical
	default:
		return UtilizationOver
	}
}
