// Package torrentio searches the Torrentio stream index for releases of a title.
package torrentio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cachegrab/cachegrab/internal/catalog"
	"github.com/cachegrab/cachegrab/internal/provider"
	"github.com/cachegrab/cachegrab/internal/release"
)

const (
	DefaultBaseURL = "https://torrentio.strem.fun"
	DefaultSort    = "qualitysize"
	providerName   = "torrentio"
)

// Config controls the Torrentio endpoint and its path options.
type Config struct {
	BaseURL string `mapstructure:"baseUrl" yaml:"baseUrl"`
	// Sort is the server-side sort strategy, e.g. "qualitysize" or "seeders".
	Sort string `mapstructure:"sort" yaml:"sort"`
	// QualityFilter lists qualities Torrentio should exclude, e.g. "cam", "scr".
	QualityFilter []string `mapstructure:"qualityFilter" yaml:"qualityFilter"`
}

// Client queries Torrentio.
type Client struct {
	httpClient *http.Client
	baseURL    string
	options    string
	logger     zerolog.Logger
}

// NewClient creates a new Torrentio client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		options:    BuildOptions(cfg.Sort, cfg.QualityFilter),
		logger:     logger.With().Str("component", "torrentio").Logger(),
	}
}

// BuildOptions renders the Torrentio path options segment,
// e.g. "sort=qualitysize|qualityfilter=cam,scr".
func BuildOptions(sort string, qualityFilter []string) string {
	var parts []string
	if s := strings.TrimSpace(sort); s != "" {
		parts = append(parts, "sort="+s)
	}

	tokens := make([]string, 0, len(qualityFilter))
	for _, q := range qualityFilter {
		if q = strings.TrimSpace(q); q != "" {
			tokens = append(tokens, q)
		}
	}
	if len(tokens) > 0 {
		parts = append(parts, "qualityfilter="+strings.Join(tokens, ","))
	}
	return strings.Join(parts, "|")
}

type streamsResponse struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Name          string         `json:"name"`
	Title         string         `json:"title"`
	InfoHash      string         `json:"infoHash"`
	FileIdx       *int           `json:"fileIdx"`
	BehaviorHints *behaviorHints `json:"behaviorHints,omitempty"`
}

type behaviorHints struct {
	BingeGroup string `json:"bingeGroup,omitempty"`
	Filename   string `json:"filename,omitempty"`
	VideoSize  int64  `json:"videoSize,omitempty"`
}

// StreamID returns the identifier Torrentio expects for a title. Shows are
// looked up by their first episode, which also returns season and complete packs.
func StreamID(externalID string, mediaType catalog.MediaType) string {
	if mediaType == catalog.MediaTypeShow {
		return externalID + ":1:1"
	}
	return externalID
}

func streamType(mediaType catalog.MediaType) string {
	if mediaType == catalog.MediaTypeShow {
		return "series"
	}
	return "movie"
}

// Search returns the raw releases Torrentio lists for a title.
func (c *Client) Search(ctx context.Context, externalID string, mediaType catalog.MediaType) ([]release.Raw, error) {
	if externalID == "" {
		return nil, fmt.Errorf("empty external id")
	}

	id := StreamID(externalID, mediaType)
	endpoint := c.baseURL
	if c.options != "" {
		endpoint += "/" + c.options
	}
	endpoint += fmt.Sprintf("/stream/%s/%s.json", streamType(mediaType), url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.FromTransport(providerName, "search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, provider.FromStatus(providerName, "search", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload streamsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, provider.NewParseError(providerName, "search", err)
	}

	raws := make([]release.Raw, 0, len(payload.Streams))
	for _, s := range payload.Streams {
		raw := release.Raw{
			Title:    strings.TrimSpace(s.Title),
			InfoHash: s.InfoHash,
		}
		if raw.Title == "" {
			raw.Title = strings.TrimSpace(s.Name)
		}
		// Prefer the size embedded in the title; fall back to the hint.
		if !strings.Contains(raw.Title, "💾") && s.BehaviorHints != nil && s.BehaviorHints.VideoSize > 0 {
			raw.Size = strconv.FormatInt(s.BehaviorHints.VideoSize, 10)
		}
		raws = append(raws, raw)
	}

	c.logger.Debug().
		Str("id", id).
		Int("streams", len(raws)).
		Msg("Torrentio search complete")

	return raws, nil
}
