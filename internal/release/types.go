// Package release turns raw release-index entries into candidates.
package release

import (
	"errors"

	"github.com/cachegrab/cachegrab/internal/quality"
)

// ErrInvalidHash marks an entry whose info hash cannot be acted upon.
var ErrInvalidHash = errors.New("missing or malformed info hash")

// Raw is one entry as returned by the release index.
type Raw struct {
	// Title may span several lines and embed seeders, size and source markers.
	Title string
	// Size is a human size such as "7.5 GB". Empty means "read it from Title".
	Size     string
	InfoHash string
}

// Candidate is a release considered for one media item. It is enriched in
// place while that item moves through the pipeline and is never shared
// across items.
type Candidate struct {
	Title     string `json:"title"`
	SizeBytes uint64 `json:"sizeBytes"`
	Hash      string `json:"hash"`

	// Set from the availability probe.
	Available bool `json:"available"`
	// AvailabilityAssumed is true when the probe could not run and the
	// candidate is optimistically treated as available.
	AvailabilityAssumed bool `json:"availabilityAssumed,omitempty"`

	// Set by the scorer.
	Tags         quality.Tags `json:"tags"`
	QualityScore float64      `json:"qualityScore"`
	Score        float64      `json:"score"`
}

// ReleaseTitle implements quality.Release.
func (c Candidate) ReleaseTitle() string { return c.Title }

// ReleaseSize implements quality.Release.
func (c Candidate) ReleaseSize() uint64 { return c.SizeBytes }
