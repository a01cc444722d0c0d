package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// VotingType controls how vote weights are interpreted within a phase
type VotingType string

const (
	VotingTypeSimple   VotingType = "simple"
	VotingTypeWeighted VotingType = "weighted"
	VotingTypeRanked   VotingType = "ranked"
)

var (
	// MaxVoteWeight is the absolute upper bound on a vote's weight.
	MaxVoteWeight = decimal.NewFromInt(10)
	// DefaultVoteWeight is applied when a vote is cast without a weight.
	DefaultVoteWeight = decimal.NewFromInt(1)
)

// PhaseRules is the typed rule set attached to a voting phase.
// Zero values mean "use the default".
type PhaseRules struct {
	VotingType            VotingType       `json:"voting_type,omitempty" binding:"omitempty,voting_type"`
	AllowComments         *bool            `json:"allow_comments,omitempty"`
	ThresholdForNextPhase int              `json:"threshold_for_next_phase,omitempty"`
	MinWeight             *decimal.Decimal `json:"min_weight,omitempty"`
	MaxWeight             *decimal.Decimal `json:"max_weight,omitempty"`
	RequireJustification  bool             `json:"require_justification,omitempty"`
}

// UnmarshalJSON rejects keys that are not part of the rule set.
func (r *PhaseRules) UnmarshalJSON(data []byte) error {
	type plain PhaseRules
	var out plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return err
	}
	*r = PhaseRules(out)
	return nil
}

// Validate checks the rule values against their allowed ranges.
func (r PhaseRules) Validate() error {
	switch r.VotingType {
	case "", VotingTypeSimple, VotingTypeWeighted, VotingTypeRanked:
	default:
		return fmt.Errorf("unknown voting_type %q", r.VotingType)
	}
	if r.ThresholdForNextPhase < 0 {
		return fmt.Errorf("threshold_for_next_phase must be >= 0")
	}
	lo, hi := r.WeightBounds()
	if lo.IsNegative() || hi.LessThanOrEqual(decimal.Zero) || hi.GreaterThan(MaxVoteWeight) {
		return fmt.Errorf("weight bounds must lie within (0, %s]", MaxVoteWeight)
	}
	if lo.GreaterThanOrEqual(hi) {
		return fmt.Errorf("min_weight must be below max_weight")
	}
	if r.RequireJustification && !r.CommentsAllowed() {
		return fmt.Errorf("require_justification needs allow_comments")
	}
	return nil
}

// Type returns the voting type, defaulting to weighted.
func (r PhaseRules) Type() VotingType {
	if r.VotingType == "" {
		return VotingTypeWeighted
	}
	return r.VotingType
}

// CommentsAllowed defaults to true.
func (r PhaseRules) CommentsAllowed() bool {
	return r.AllowComments == nil || *r.AllowComments
}

// WeightBounds returns the exclusive lower and inclusive upper weight bound.
func (r PhaseRules) WeightBounds() (decimal.Decimal, decimal.Decimal) {
	lo, hi := decimal.Zero, MaxVoteWeight
	if r.MinWeight != nil {
		lo = *r.MinWeight
	}
	if r.MaxWeight != nil {
		hi = *r.MaxWeight
	}
	return lo, hi
}

// AcceptsWeight reports whether w is a legal weight under these rules.
// Simple phases only accept the default weight; ranked phases need whole numbers.
func (r PhaseRules) AcceptsWeight(w decimal.Decimal) bool {
	switch r.Type() {
	case VotingTypeSimple:
		return w.Equal(DefaultVoteWeight)
	case VotingTypeRanked:
		if !w.Equal(w.Truncate(0)) {
			return false
		}
	}
	lo, hi := r.WeightBounds()
	return w.GreaterThan(lo) && w.LessThanOrEqual(hi)
}
