package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLimitAmount(t *testing.T) {
	c := &BudgetCategory{SpendingLimitPercentage: 40}
	if got := c.LimitAmount(d("1000000")); !got.Equal(d("400000")) {
		t.Errorf("expected 400000, got %s", got)
	}
	if got := LimitAmount(d("999.99"), 33); !got.Equal(d("329.9967")) {
		t.Errorf("expected 329.9967, got %s", got)
	}
}

func TestWithinLimit(t *testing.T) {
	t.Run("second_approval_exceeds_forty_percent", func(t *testing.T) {
		limit := LimitAmount(d("1000000"), 40)
		if !WithinLimit(40, decimal.Zero, d("250000"), limit) {
			t.Error("first 250000 should fit in 400000")
		}
		if WithinLimit(40, d("250000"), d("250000"), limit) {
			t.Error("500000 should not fit in 400000")
		}
	})

	t.Run("exact_limit_fits", func(t *testing.T) {
		if !WithinLimit(40, d("150000"), d("250000"), d("400000")) {
			t.Error("allocations equal to the limit should fit")
		}
	})

	t.Run("hundred_percent_is_never_capped", func(t *testing.T) {
		if !WithinLimit(100, d("1000000"), d("1"), d("1000000")) {
			t.Error("100% category should always be within limit")
		}
	})
}

func TestUtilizationPercent(t *testing.T) {
	if got := UtilizationPercent(d("250000"), d("400000")); !got.Equal(d("62.5")) {
		t.Errorf("expected 62.5, got %s", got)
	}
	if got := UtilizationPercent(d("1"), d("3")); !got.Equal(d("33.33")) {
		t.Errorf("expected 33.33, got %s", got)
	}
	if got := UtilizationPercent(d("100"), decimal.Zero); !got.IsZero() {
		t.Errorf("expected 0 for zero limit, got %s", got)
	}
}

func TestUtilizationStatusFor(t *testing.T) {
	cases := map[string]UtilizationStatus{
		"0":      UtilizationLow,
		"49.99":  UtilizationLow,
		"50":     UtilizationMedium,
		"79.99":  UtilizationMedium,
		"80":     UtilizationHigh,
		"94.99":  UtilizationHigh,
		"95":     UtilizationCritical,
		"100":    UtilizationCritical,
		"100.01": UtilizationOver,
	}
	for pct, want := range cases {
		if got := UtilizationStatusFor(d(pct)); got != want {
			t.Errorf("%s%%: expected %s, got %s", pct, want, got)
		}
	}
}
