// Package decisioning decides, for one media item, which candidates to
// commit and whether they add to or replace what the cache already holds.
package decisioning

import (
	"github.com/cachegrab/cachegrab/internal/debrid"
	"github.com/cachegrab/cachegrab/internal/release"
)

// State is the progress of one media item through a run.
type State string

const (
	StateSearched State = "SEARCHED"
	StateProbed   State = "PROBED"
	StateFiltered State = "FILTERED"
	StateScored   State = "SCORED"
	StateDecided  State = "DECIDED"
	StateAdded    State = "ADDED"
	StateUpgraded State = "UPGRADED"
	StateSkipped  State = "SKIPPED"
	StateFailed   State = "FAILED"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	switch s {
	case StateAdded, StateUpgraded, StateSkipped, StateFailed:
		return true
	}
	return false
}

// Action is what to do with a selected candidate.
type Action string

const (
	ActionAdd     Action = "ADD"
	ActionUpgrade Action = "UPGRADE"
	ActionSkip    Action = "SKIP"
)

// Decision is the outcome of reconciling one candidate against the cache.
type Decision struct {
	Action    Action            `json:"action"`
	Candidate release.Candidate `json:"candidate"`
	// Existing is the committed item the candidate was compared with, if any.
	Existing      *debrid.CommittedItem `json:"existing,omitempty"`
	ExistingScore float64               `json:"existingScore,omitempty"`
	Reason        string                `json:"reason,omitempty"`
}
