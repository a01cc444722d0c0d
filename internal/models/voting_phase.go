package models

import (
	"sort"
	"time"
)

// PhaseStatus is the lifecycle state derived from a phase's window and active flag
type PhaseStatus string

const (
	PhaseStatusCompleted PhaseStatus = "completed"
	PhaseStatusActive    PhaseStatus = "active"
	PhaseStatusUpcoming  PhaseStatus = "upcoming"
	PhaseStatusInactive  PhaseStatus = "inactive"
)

// DefaultMaxVotesPerUser is the per-phase vote allowance when none is given.
const DefaultMaxVotesPerUser = 5

// VotingPhase is a time-boxed voting round within a budget
type VotingPhase struct {
	Base
	BudgetID        string     `gorm:"type:uuid;not null;index" json:"budget_id"`
	Name            string     `gorm:"not null" json:"name"`
	Description     string     `json:"description"`
	StartDate       time.Time  `gorm:"not null;index" json:"start_date"`
	EndDate         time.Time  `gorm:"not null" json:"end_date"`
	MaxVotesPerUser int        `gorm:"not null" json:"max_votes_per_user"`
	Position        int        `gorm:"not null" json:"position"`
	Active          bool       `gorm:"not null;index" json:"active"`
	Rules           PhaseRules `gorm:"type:text;serializer:json" json:"rules"`
}

// Contains reports whether now falls inside [StartDate, EndDate].
func (p *VotingPhase) Contains(now time.Time) bool {
	return !now.Before(p.StartDate) && !now.After(p.EndDate)
}

// CurrentlyActive reports whether the phase is flagged active and now is inside its window.
func (p *VotingPhase) CurrentlyActive(now time.Time) bool {
	return p.Active && p.Contains(now)
}

func (p *VotingPhase) Upcoming(now time.Time) bool {
	return p.StartDate.After(now)
}

func (p *VotingPhase) Completed(now time.Time) bool {
	return p.EndDate.Before(now)
}

// Status derives the lifecycle state. Completed wins over everything else.
func (p *VotingPhase) Status(now time.Time) PhaseStatus {
	switch {
	case p.Completed(now):
		return PhaseStatusCompleted
	case p.CurrentlyActive(now):
		return PhaseStatusActive
	case p.Upcoming(now):
		return PhaseStatusUpcoming
	default:
		return PhaseStatusInactive
	}
}

// DurationInDays counts calendar days covered by the window, inclusive.
func (p *VotingPhase) DurationInDays() int {
	return int(DateOf(p.EndDate).Sub(DateOf(p.StartDate)).Hours()/24) + 1
}

// Overlaps reports whether the two windows intersect, bounds inclusive.
func (p *VotingPhase) Overlaps(other *VotingPhase) bool {
	return other.Contains(p.StartDate) || p.Contains(other.StartDate)
}

// CurrentPhase returns the phase whose window contains now, preferring the
// earliest start when several do. It returns nil when none does.
func CurrentPhase(phases []VotingPhase, now time.Time) *VotingPhase {
	candidates := make([]*VotingPhase, 0, len(phases))
	for i := range phases {
		if phases[i].Contains(now) {
			candidates = append(candidates, &phases[i])
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].StartDate.Before(candidates[j].StartDate)
	})
	return candidates[0]
}
