// Package health tracks the state of the external collaborators as seen by
// the most recent calls.
package health

import (
	"encoding/json"
	"time"
)

// HealthStatus represents the health state of an item.
type HealthStatus string

const (
	StatusOK      HealthStatus = "ok"
	StatusWarning HealthStatus = "warning" // transient failures, retried
	StatusError   HealthStatus = "error"
)

// HealthItem represents a single health-tracked collaborator.
type HealthItem struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	Timestamp   *time.Time   `json:"timestamp,omitempty"`
	LastChecked *time.Time   `json:"lastChecked,omitempty"`
}

// MarshalJSON customizes JSON output to omit timestamp for OK status.
func (h HealthItem) MarshalJSON() ([]byte, error) {
	type Alias HealthItem
	alias := Alias(h)

	if h.Status == StatusOK {
		alias.Timestamp = nil
		alias.Message = ""
	}

	return json.Marshal(alias)
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status     string       `json:"status"` // "ok" or "degraded"
	Components []HealthItem `json:"components"`
}
