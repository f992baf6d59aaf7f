// Package autosearch runs the acquisition pipeline: collect titles, search,
// probe, select and commit, one title at a time.
package autosearch

import (
	"time"

	"github.com/cachegrab/cachegrab/internal/catalog"
	"github.com/cachegrab/cachegrab/internal/decisioning"
)

// Trigger indicates what started a run.
type Trigger string

const (
	TriggerManual    Trigger = "manual"    // CLI invocation
	TriggerScheduled Trigger = "scheduled" // cron task
	TriggerAPI       Trigger = "api"       // POST /api/v1/runs
)

// RunState holds the counters of one run. It is owned by a single Run call.
type RunState struct {
	RunID     string `json:"runId"`
	Added     int    `json:"added"`
	Upgraded  int    `json:"upgraded"`
	Planned   int    `json:"planned"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

// Committed is what counts against the run cap.
func (s RunState) Committed() int {
	return s.Added + s.Upgraded + s.Planned
}

// ActionResult records one decided candidate.
type ActionResult struct {
	Action       decisioning.Action `json:"action"`
	Release      string             `json:"release"`
	Hash         string             `json:"hash"`
	SizeBytes    uint64             `json:"sizeBytes"`
	Score        float64            `json:"score"`
	TorrentID    string             `json:"torrentId,omitempty"`
	ReplacedID   string             `json:"replacedId,omitempty"`
	Replaced     string             `json:"replaced,omitempty"`
	DryRun       bool               `json:"dryRun,omitempty"`
	DeleteFailed bool               `json:"deleteFailed,omitempty"`
	Reason       string             `json:"reason,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Succeeded reports whether the action committed (or would have, in a dry run).
func (a ActionResult) Succeeded() bool {
	return a.Error == "" && (a.Action == decisioning.ActionAdd || a.Action == decisioning.ActionUpgrade)
}

// TitleResult is the outcome for one media item.
type TitleResult struct {
	Item                catalog.MediaItem `json:"item"`
	State               decisioning.State `json:"state"`
	Candidates          int               `json:"candidates"`
	Eligible            int               `json:"eligible"`
	AvailabilityAssumed bool              `json:"availabilityAssumed,omitempty"`
	Actions             []ActionResult    `json:"actions,omitempty"`
	Reason              string            `json:"reason,omitempty"`
	Error               string            `json:"error,omitempty"`
}

// RunSummary is the report of a finished run.
type RunSummary struct {
	RunState
	Trigger    Trigger       `json:"trigger"`
	DryRun     bool          `json:"dryRun"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Duration   time.Duration `json:"duration"`
	Titles     []TitleResult `json:"titles"`
	CapReached bool          `json:"capReached,omitempty"`
	Cancelled  bool          `json:"cancelled,omitempty"`
	Error      string        `json:"error,omitempty"`
}
