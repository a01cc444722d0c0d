package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetStatus represents the lifecycle stage of a budget
type BudgetStatus string

const (
	BudgetStatusPlanning  BudgetStatus = "planning"
	BudgetStatusVoting    BudgetStatus = "voting"
	BudgetStatusResults   BudgetStatus = "results"
	BudgetStatusCompleted BudgetStatus = "completed"
)

var budgetStatusOrder = []BudgetStatus{
	BudgetStatusPlanning,
	BudgetStatusVoting,
	BudgetStatusResults,
	BudgetStatusCompleted,
}

// Valid reports whether s is a known budget status.
func (s BudgetStatus) Valid() bool {
	return s.rank() >= 0
}

// CanTransitionTo reports whether next is the stage directly after s.
// Budgets only move forward, one stage at a time.
func (s BudgetStatus) CanTransitionTo(next BudgetStatus) bool {
	from, to := s.rank(), next.rank()
	return from >= 0 && to == from+1
}

func (s BudgetStatus) rank() int {
	for i, st := range budgetStatusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Budget is the root aggregate: a named pool of funds that owns its
// categories, voting phases and proposals.
type Budget struct {
	Base
	Name            string          `gorm:"not null" json:"name"`
	Description     string          `json:"description"`
	TotalFunds      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_funds"`
	VotingStartDate *time.Time      `json:"voting_start_date,omitempty"`
	VotingEndDate   *time.Time      `json:"voting_end_date,omitempty"`
	Status          BudgetStatus    `gorm:"not null;index" json:"status"`
	Active          bool            `gorm:"not null;index" json:"active"`

	// Relationships
	Categories []BudgetCategory `gorm:"foreignKey:BudgetID" json:"categories,omitempty"`
	Phases     []VotingPhase    `gorm:"foreignKey:BudgetID" json:"phases,omitempty"`
	Projects   []BudgetProject  `gorm:"foreignKey:BudgetID" json:"projects,omitempty"`
}

// VotingActive reports whether the budget accepts votes on the calendar day of now.
func (b *Budget) VotingActive(now time.Time) bool {
	if b.Status != BudgetStatusVoting {
		return false
	}
	if b.VotingStartDate == nil || b.VotingEndDate == nil {
		return false
	}
	today := DateOf(now)
	return !DateOf(*b.VotingStartDate).After(today) && !DateOf(*b.VotingEndDate).Before(today)
}

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
