package models

import "github.com/shopspring/decimal"

// Vote is a single user's support for a project. A user votes on a project at most once.
type Vote struct {
	Base
	UserID        string          `gorm:"type:uuid;not null;uniqueIndex:idx_votes_user_project,priority:1" json:"user_id"`
	ProjectID     string          `gorm:"type:uuid;not null;uniqueIndex:idx_votes_user_project,priority:2;index" json:"project_id"`
	VotingPhaseID *string         `gorm:"type:uuid;index" json:"voting_phase_id,omitempty"`
	Weight        decimal.Decimal `gorm:"column:vote_weight;type:decimal(5,2);not null" json:"vote_weight"`
	Comment       string          `json:"comment,omitempty"`
}
