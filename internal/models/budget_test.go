package models

import (
	"testing"
	"time"
)

func TestBudgetStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to BudgetStatus
		want     bool
	}{
		{BudgetStatusPlanning, BudgetStatusVoting, true},
		{BudgetStatusVoting, BudgetStatusResults, true},
		{BudgetStatusResults, BudgetStatusCompleted, true},
		{BudgetStatusPlanning, BudgetStatusResults, false},
		{BudgetStatusVoting, BudgetStatusPlanning, false},
		{BudgetStatusCompleted, BudgetStatusPlanning, false},
		{BudgetStatus("draft"), BudgetStatusPlanning, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestBudgetVotingActive(t *testing.T) {
	now := time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	t.Run("last_day_is_inclusive", func(t *testing.T) {
		b := &Budget{Status: BudgetStatusVoting, VotingStartDate: &start, VotingEndDate: &end}
		if !b.VotingActive(now) {
			t.Error("voting should be open on the end date")
		}
	})

	t.Run("requires_voting_status", func(t *testing.T) {
		b := &Budget{Status: BudgetStatusPlanning, VotingStartDate: &start, VotingEndDate: &end}
		if b.VotingActive(now) {
			t.Error("planning budget should not accept votes")
		}
	})

	t.Run("requires_window", func(t *testing.T) {
		b := &Budget{Status: BudgetStatusVoting, VotingStartDate: &start}
		if b.VotingActive(now) {
			t.Error("budget without an end date should not accept votes")
		}
	})

	t.Run("closed_after_end", func(t *testing.T) {
		b := &Budget{Status: BudgetStatusVoting, VotingStartDate: &start, VotingEndDate: &end}
		if b.VotingActive(now.AddDate(0, 0, 1)) {
			t.Error("voting should be closed the day after the end date")
		}
	})
}
