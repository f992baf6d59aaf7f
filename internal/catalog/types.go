// Package catalog yields the media titles a pipeline run works through.
package catalog

import (
	"context"
	"fmt"
)

// MediaType represents the type of media being acquired.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeShow  MediaType = "show"
)

// MediaItem identifies one unit of work for a pipeline pass.
type MediaItem struct {
	ExternalID string    `json:"imdbId"`
	Title      string    `json:"title"`
	Year       int       `json:"year,omitempty"`
	MediaType  MediaType `json:"mediaType"`
}

// Key returns the identity used for de-duplication across sources.
func (m MediaItem) Key() string {
	return string(m.MediaType) + ":" + m.ExternalID
}

func (m MediaItem) String() string {
	if m.Year > 0 {
		return fmt.Sprintf("%s (%d)", m.Title, m.Year)
	}
	return m.Title
}

// Source is a catalog collaborator returning ranked title lists.
// Methods return an empty list plus a provider auth error when the
// credentials they need are missing.
type Source interface {
	ListTrending(ctx context.Context, mediaType MediaType, limit int) ([]MediaItem, error)
	ListPopular(ctx context.Context, mediaType MediaType, limit int) ([]MediaItem, error)
	ListCustomList(ctx context.Context, owner, slug string) ([]MediaItem, error)
	ListWatchlist(ctx context.Context, owner string) ([]MediaItem, error)
}
