package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestImpactScore(t *testing.T) {
	tests := []struct {
		name           string
		beneficiaries  int
		sustainability int
		cpb            decimal.NullDecimal
		wantScore      string
		wantCategory   string
	}{
		{
			name:           "reference_example",
			beneficiaries:  100,
			sustainability: 10,
			cpb:            decimal.NewNullDecimal(decimal.NewFromInt(100)),
			wantScore:      "6.4",
			wantCategory:   "High Impact",
		},
		{
			name:           "no_cost_data",
			beneficiaries:  0,
			sustainability: 5,
			cpb:            decimal.NullDecimal{},
			wantScore:      "2",
			wantCategory:   "Low Impact",
		},
		{
			name:           "beneficiary_score_capped_at_ten",
			beneficiaries:  5000,
			sustainability: 10,
			cpb:            decimal.NewNullDecimal(decimal.NewFromInt(50)),
			wantScore:      "10",
			wantCategory:   "Very High Impact",
		},
		{
			name:           "cost_score_capped_at_ten",
			beneficiaries:  200,
			sustainability: 5,
			cpb:            decimal.NewNullDecimal(decimal.RequireFromString("0.5")),
			wantScore:      "4.8",
			wantCategory:   "Medium Impact",
		},
		{
			name:           "rounds_to_two_places",
			beneficiaries:  333,
			sustainability: 3,
			cpb:            decimal.NewNullDecimal(decimal.NewFromInt(300)),
			wantScore:      "3.2",
			wantCategory:   "Medium Impact",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ImpactScore(tt.beneficiaries, tt.sustainability, tt.cpb)
			if !got.Equal(decimal.RequireFromString(tt.wantScore)) {
				t.Errorf("expected score %s, got %s", tt.wantScore, got)
			}
			if cat := ImpactCategory(got); cat != tt.wantCategory {
				t.Errorf("expected category %q, got %q", tt.wantCategory, cat)
			}
		})
	}
}

func TestImpactCategoryBoundaries(t *testing.T) {
	cases := map[string]string{
		"0":    "Low Impact",
		"2.99": "Low Impact",
		"3":    "Medium Impact",
		"5.99": "Medium Impact",
		"6":    "High Impact",
		"7.99": "High Impact",
		"8":    "Very High Impact",
		"10":   "Very High Impact",
	}
	for score, want := range cases {
		if got := ImpactCategory(decimal.RequireFromString(score)); got != want {
			t.Errorf("score %s: expected %q, got %q", score, want, got)
		}
	}
}

func TestSustainabilityLevel(t *testing.T) {
	want := map[int]string{1: "Low", 3: "Low", 4: "Medium", 6: "Medium", 7: "High", 8: "High", 9: "Very High", 10: "Very High"}
	for score, level := range want {
		if got := SustainabilityLevel(score); got != level {
			t.Errorf("score %d: expected %q, got %q", score, level, got)
		}
	}
}

func TestCostPerBeneficiary(t *testing.T) {
	t.Run("divides_and_rounds", func(t *testing.T) {
		got := CostPerBeneficiary(decimal.NewFromInt(1000), 3)
		if !got.Valid || !got.Decimal.Equal(decimal.RequireFromString("333.33")) {
			t.Errorf("expected 333.33, got %v", got)
		}
	})

	t.Run("unset_without_beneficiaries", func(t *testing.T) {
		if got := CostPerBeneficiary(decimal.NewFromInt(1000), 0); got.Valid {
			t.Errorf("expected null, got %s", got.Decimal)
		}
	})
}

func TestImpactMetricDescriptions(t *testing.T) {
	m := &ImpactMetric{
		EstimatedBeneficiaries: 250,
		SustainabilityScore:    8,
		Timeline:               "1-2 years",
		SocialImpact:           "new community space",
		EconomicImpact:         "  ",
		CostPerBeneficiary:     decimal.NewNullDecimal(decimal.NewFromInt(40)),
	}

	if got := m.ImpactSummary(); got != "250 estimated beneficiaries, high sustainability, 1-2 years timeline, $40.00/beneficiary" {
		t.Errorf("unexpected summary: %q", got)
	}
	types := m.ImpactTypes()
	if len(types) != 1 || types[0] != "Social" {
		t.Errorf("expected [Social], got %v", types)
	}
}

func TestProjectImpactFallbacks(t *testing.T) {
	p := &BudgetProject{RequestedAmount: decimal.NewFromInt(100)}

	if !p.ImpactScore().IsZero() {
		t.Errorf("expected zero score, got %s", p.ImpactScore())
	}
	if p.ImpactCategory() != NotAssessed {
		t.Errorf("expected %q, got %q", NotAssessed, p.ImpactCategory())
	}
	if p.EstimatedBeneficiaries() != 0 {
		t.Errorf("expected 0 beneficiaries, got %d", p.EstimatedBeneficiaries())
	}
	if p.ImpactSummary() != NotAssessed {
		t.Errorf("expected %q, got %q", NotAssessed, p.ImpactSummary())
	}
}

func TestFundingPercentage(t *testing.T) {
	p := &BudgetProject{RequestedAmount: decimal.NewFromInt(300), AllocatedAmount: decimal.NewFromInt(100)}
	if got := p.FundingPercentage(); !got.Equal(decimal.RequireFromString("33.33")) {
		t.Errorf("expected 33.33, got %s", got)
	}
	if p.FullyFunded() {
		t.Error("expected not fully funded")
	}

	if got := ApprovalPercentage(0, 0); !got.IsZero() {
		t.Errorf("expected 0 with no votes, got %s", got)
	}
	if got := ApprovalPercentage(1, 4); !got.Equal(decimal.NewFromInt(25)) {
		t.Errorf("expected 25, got %s", got)
	}
}
