// Package trakt implements the catalog source against the Trakt API.
package trakt

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
)

const (
	DefaultBaseURL = "https://api.trakt.tv"
	apiVersion     = "2"
	providerName   = "trakt"
	pageLimit      = 100
)

var _ catalog.Source = (*Client)(nil)

// Config holds Trakt credentials.
type Config struct {
	ClientID    string `mapstructure:"clientId" yaml:"clientId"`
	AccessToken string `mapstructure:"accessToken" yaml:"accessToken"`
	BaseURL     string `mapstructure:"baseUrl" yaml:"baseUrl"`
}

// Client handles Trakt list fetching.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	clientID    string
	accessToken string
	logger      zerolog.Logger
}

// NewClient creates a new Trakt API client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		baseURL:     baseURL,
		clientID:    strings.TrimSpace(cfg.ClientID),
		accessToken: strings.TrimSpace(cfg.AccessToken),
		logger:      logger.With().Str("component", "trakt").Logger(),
	}
}

// HasCredentials returns true if a client id is configured.
func (c *Client) HasCredentials() bool {
	return c.clientID != ""
}

// ids holds external identifiers for a media item
type ids struct {
	Trakt int    `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
}

// media is the shared shape of a Trakt movie or show.
type media struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   ids    `json:"ids"`
}

// trendingItem wraps a media entry with its watcher count.
type trendingItem struct {
	Watchers int    `json:"watchers"`
	Movie    *media `json:"movie,omitempty"`
	Show     *media `json:"show,omitempty"`
}

// listItem represents an entry of a custom list or watchlist.
type listItem struct {
	Rank  int    `json:"rank"`
	Type  string `json:"type"` // "movie", "show", "season", "episode"
	Movie *media `json:"movie,omitempty"`
	Show  *media `json:"show,omitempty"`
}

func toItem(m *media, mediaType catalog.MediaType) (catalog.MediaItem, bool) {
	if m == nil || m.IDs.IMDB == "" {
		return catalog.MediaItem{}, false
	}
	return catalog.MediaItem{
		ExternalID: m.IDs.IMDB,
		Title:      m.Title,
		Year:       m.Year,
		MediaType:  mediaType,
	}, true
}

func pathSegment(mediaType catalog.MediaType) string {
	if mediaType == catalog.MediaTypeShow {
		return "shows"
	}
	return "movies"
}

// setHeaders adds required Trakt API headers to a request
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", apiVersion)
	req.Header.Set("trakt-api-key", c.clientID)
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
}

// get performs a GET and decodes the JSON body into out. It returns the
// pagination page count reported by Trakt (1 when absent).
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) (int, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, provider.FromTransport(providerName, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, provider.FromStatus(providerName, op, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return 0, provider.NewParseError(providerName, op, err)
	}

	pages := 1
	if h := resp.Header.Get("X-Pagination-Page-Count"); h != "" {
		if n, err := strconv.Atoi(h); err == nil && n > 0 {
			pages = n
		}
	}
	return pages, nil
}

func (c *Client) requireClientID(op string) error {
	if c.clientID == "" {
		c.logger.Warn().Str("operation", op).Msg("Trakt client id not configured, returning empty list")
		return provider.NewAuthError(providerName, op, "client id not configured")
	}
	return nil
}

// ListTrending returns currently trending titles, most-watched first.
func (c *Client) ListTrending(ctx context.Context, mediaType catalog.MediaType, limit int) ([]catalog.MediaItem, error) {
	if err := c.requireClientID("trending"); err != nil {
		return nil, err
	}

	var raw []trendingItem
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if _, err := c.get(ctx, "trending", "/"+pathSegment(mediaType)+"/trending", q, &raw); err != nil {
		return nil, err
	}

	items := make([]catalog.MediaItem, 0, len(raw))
	for _, r := range raw {
		m := r.Movie
		if mediaType == catalog.MediaTypeShow {
			m = r.Show
		}
		if item, ok := toItem(m, mediaType); ok {
			items = append(items, item)
		}
	}
	return capItems(items, limit), nil
}

// ListPopular returns the most popular titles.
func (c *Client) ListPopular(ctx context.Context, mediaType catalog.MediaType, limit int) ([]catalog.MediaItem, error) {
	if err := c.requireClientID("popular"); err != nil {
		return nil, err
	}

	var raw []media
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if _, err := c.get(ctx, "popular", "/"+pathSegment(mediaType)+"/popular", q, &raw); err != nil {
		return nil, err
	}

	items := make([]catalog.MediaItem, 0, len(raw))
	for i := range raw {
		if item, ok := toItem(&raw[i], mediaType); ok {
			items = append(items, item)
		}
	}
	return capItems(items, limit), nil
}

// ListCustomList returns the movies and shows of a user list. Private lists
// need an access token; public lists work with the client id alone.
func (c *Client) ListCustomList(ctx context.Context, owner, slug string) ([]catalog.MediaItem, error) {
	if err := c.requireClientID("list"); err != nil {
		return nil, err
	}
	if owner == "" || slug == "" {
		return nil, fmt.Errorf("custom list requires owner and slug")
	}
	path := fmt.Sprintf("/users/%s/lists/%s/items", url.PathEscape(owner), url.PathEscape(slug))
	return c.listItems(ctx, "list", path)
}

// ListWatchlist returns the movies and shows on a user's watchlist.
func (c *Client) ListWatchlist(ctx context.Context, owner string) ([]catalog.MediaItem, error) {
	if err := c.requireClientID("watchlist"); err != nil {
		return nil, err
	}
	if c.accessToken == "" {
		c.logger.Warn().Str("owner", owner).Msg("Trakt access token not configured, watchlist skipped")
		return nil, provider.NewAuthError(providerName, "watchlist", "access token not configured")
	}
	if owner == "" {
		owner = "me"
	}
	path := fmt.Sprintf("/users/%s/watchlist", url.PathEscape(owner))
	return c.listItems(ctx, "watchlist", path)
}

// listItems pages through a list endpoint.
func (c *Client) listItems(ctx context.Context, op, path string) ([]catalog.MediaItem, error) {
	var items []catalog.MediaItem
	page := 1

	for {
		var raw []listItem
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(pageLimit))

		pages, err := c.get(ctx, op, path, q, &raw)
		if err != nil {
			return nil, err
		}

		for _, r := range raw {
			switch r.Type {
			case "movie":
				if item, ok := toItem(r.Movie, catalog.MediaTypeMovie); ok {
					items = append(items, item)
				}
			case "show":
				if item, ok := toItem(r.Show, catalog.MediaTypeShow); ok {
					items = append(items, item)
				}
			}
		}

		if page >= pages || len(raw) == 0 {
			break
		}
		page++
	}

	return items, nil
}

func capItems(items []catalog.MediaItem, limit int) []catalog.MediaItem {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
