// Package history persists run summaries and the per-title actions taken.
package history

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run is a stored run summary.
type Run struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	DryRun     bool      `json:"dryRun"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	DurationMs int64     `json:"durationMs"`
	Added      int       `json:"added"`
	Upgraded   int       `json:"upgraded"`
	Planned    int       `json:"planned"`
	Processed  int       `json:"processed"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	CapReached bool      `json:"capReached"`
	Cancelled  bool      `json:"cancelled"`
	Error      string    `json:"error,omitempty"`
	Actions    []*Action `json:"actions,omitempty"`
}

// Action is one stored title outcome. Titles that ended without a decision
// are stored with an empty Action.
type Action struct {
	ID                  int64   `json:"id"`
	RunID               string  `json:"runId"`
	ExternalID          string  `json:"externalId"`
	MediaType           string  `json:"mediaType"`
	MediaTitle          string  `json:"mediaTitle"`
	MediaYear           int     `json:"mediaYear,omitempty"`
	State               string  `json:"state"`
	Action              string  `json:"action,omitempty"`
	Release             string  `json:"release,omitempty"`
	Hash                string  `json:"hash,omitempty"`
	SizeBytes           uint64  `json:"sizeBytes,omitempty"`
	Score               float64 `json:"score,omitempty"`
	TorrentID           string  `json:"torrentId,omitempty"`
	ReplacedID          string  `json:"replacedId,omitempty"`
	AvailabilityAssumed bool    `json:"availabilityAssumed,omitempty"`
	DryRun              bool    `json:"dryRun,omitempty"`
	Reason              string  `json:"reason,omitempty"`
	Error               string  `json:"error,omitempty"`
}

// ListOptions contains options for listing runs.
type ListOptions struct {
	Page     int
	PageSize int
}

// ListResponse is a page of runs, newest first.
type ListResponse struct {
	Items      []*Run `json:"items"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalCount int64  `json:"totalCount"`
	TotalPages int    `json:"totalPages"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return time.Time{}
		}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
