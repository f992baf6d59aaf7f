// Package debrid defines the cache-service collaborator: a cloud download
// cache that can report, commit and drop torrents by info hash.
package debrid

import "context"

// CommittedItem is a release already held by the cache service.
type CommittedItem struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	SizeBytes uint64 `json:"sizeBytes"`
	Hash      string `json:"hash,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Provider is the cache-service API the pipeline needs.
type Provider interface {
	Name() string
	// InstantAvailability reports, for each requested hash it knows about,
	// whether it is cached. Hash keys are lower-case.
	InstantAvailability(ctx context.Context, hashes []string) (map[string]bool, error)
	// AddMagnet commits a hash for download and returns its commitment id.
	AddMagnet(ctx context.Context, hash string) (string, error)
	// SelectFiles selects files of a committed torrent; "all" selects every file.
	SelectFiles(ctx context.Context, id, files string) error
	// ListTorrents returns every currently committed item.
	ListTorrents(ctx context.Context) ([]CommittedItem, error)
	// Delete drops a commitment.
	Delete(ctx context.Context, id string) error
}

// MagnetURI builds a bare magnet link for an info hash.
func MagnetURI(hash string) string {
	return "magnet:?xt=urn:btih:" + hash
}
