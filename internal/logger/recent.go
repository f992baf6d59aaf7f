package logger

import (
	"encoding/json"
	"sync"
)

const defaultRecentSize = 500

// Entry is one captured log line.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Recent is an io.Writer that keeps the last N zerolog JSON entries in memory
// so the status API can serve them.
type Recent struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	count   int
}

// NewRecent creates a capture buffer holding up to size entries.
func NewRecent(size int) *Recent {
	if size <= 0 {
		size = defaultRecentSize
	}
	return &Recent{entries: make([]Entry, size)}
}

// Write implements io.Writer. Malformed lines are ignored.
func (r *Recent) Write(p []byte) (int, error) {
	entry, ok := parseEntry(p)
	if !ok {
		return len(p), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tail := (r.head + r.count) % len(r.entries)
	r.entries[tail] = entry
	if r.count < len(r.entries) {
		r.count++
	} else {
		r.head = (r.head + 1) % len(r.entries)
	}
	return len(p), nil
}

// Entries returns up to limit of the newest entries, oldest first.
// A limit of zero or less returns everything held.
func (r *Recent) Entries(limit int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, n)
	start := r.count - n
	for i := 0; i < n; i++ {
		out[i] = r.entries[(r.head+start+i)%len(r.entries)]
	}
	return out
}

// Len returns the number of entries held.
func (r *Recent) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

func parseEntry(data []byte) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Entry{}, false
	}

	entry := Entry{}
	if ts, ok := raw["time"].(string); ok {
		entry.Timestamp = ts
		delete(raw, "time")
	}
	if level, ok := raw["level"].(string); ok {
		entry.Level = level
		delete(raw, "level")
	}
	if component, ok := raw["component"].(string); ok {
		entry.Component = component
		delete(raw, "component")
	}
	if msg, ok := raw["message"].(string); ok {
		entry.Message = msg
		delete(raw, "message")
	}
	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry, true
}
