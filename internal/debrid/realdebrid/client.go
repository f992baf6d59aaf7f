// Package realdebrid implements debrid.Provider against the Real-Debrid REST API.
package realdebrid

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

	"github.com/cachegrab/cachegrab/internal/debrid"
	"github.com/cachegrab/cachegrab/internal/provider"
)

const (
	DefaultBaseURL = "https://api.real-debrid.com/rest/1.0"
	providerName   = "realdebrid"
	listPageSize   = 100
)

var _ debrid.Provider = (*Client)(nil)

// Config holds Real-Debrid credentials.
type Config struct {
	APIToken string `mapstructure:"apiToken" yaml:"apiToken"`
	BaseURL  string `mapstructure:"baseUrl" yaml:"baseUrl"`
}

// Client is a Real-Debrid API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     zerolog.Logger
}

// NewClient creates a new Real-Debrid client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		token:      strings.TrimSpace(cfg.APIToken),
		logger:     logger.With().Str("component", "realdebrid").Logger(),
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return providerName
}

type addMagnetResponse struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

type torrentInfo struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Hash     string `json:"hash"`
	Bytes    int64  `json:"bytes"`
	Status   string `json:"status"`
}

func (c *Client) do(ctx context.Context, op, method, path string, form url.Values, out any) (*http.Response, error) {
	var body io.Reader = http.NoBody
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.FromTransport(providerName, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, provider.FromStatus(providerName, op, resp.StatusCode, string(msg))
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, provider.NewParseError(providerName, op, err)
		}
	}
	return resp, nil
}

// InstantAvailability checks which hashes are cached. A hash is available
// when Real-Debrid reports at least one cached file variant for it.
func (c *Client) InstantAvailability(ctx context.Context, hashes []string) (map[string]bool, error) {
	result := make(map[string]bool, len(hashes))
	if len(hashes) == 0 {
		return result, nil
	}

	// Hashes missing from the response are uncached, so a {} reply still
	// answers for every hash asked about.
	segments := make([]string, 0, len(hashes))
	for _, h := range hashes {
		h = strings.ToLower(h)
		result[h] = false
		segments = append(segments, url.PathEscape(h))
	}

	var raw map[string]json.RawMessage
	if _, err := c.do(ctx, "instantAvailability", http.MethodGet, "/torrents/instantAvailability/"+strings.Join(segments, "/"), nil, &raw); err != nil {
		return nil, err
	}

	for hash, entry := range raw {
		result[strings.ToLower(hash)] = hasCachedVariant(entry)
	}
	return result, nil
}

// hasCachedVariant reports whether an availability entry carries a
// non-empty "rd" variant list. Uncached hashes come back as [] or {}.
func hasCachedVariant(entry json.RawMessage) bool {
	var hosts map[string]json.RawMessage
	if err := json.Unmarshal(entry, &hosts); err != nil {
		return false
	}
	var variants []json.RawMessage
	if err := json.Unmarshal(hosts["rd"], &variants); err != nil {
		return false
	}
	return len(variants) > 0
}

// AddMagnet adds a magnet for the hash and returns the torrent id.
func (c *Client) AddMagnet(ctx context.Context, hash string) (string, error) {
	form := url.Values{}
	form.Set("magnet", debrid.MagnetURI(strings.ToLower(hash)))

	var result addMagnetResponse
	if _, err := c.do(ctx, "addMagnet", http.MethodPost, "/torrents/addMagnet", form, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", provider.NewParseError(providerName, "addMagnet", fmt.Errorf("response carried no torrent id"))
	}

	c.logger.Debug().Str("hash", hash).Str("id", result.ID).Msg("Magnet added")
	return result.ID, nil
}

// SelectFiles selects files of a torrent so it starts downloading.
func (c *Client) SelectFiles(ctx context.Context, id, files string) error {
	if files == "" {
		files = "all"
	}
	form := url.Values{}
	form.Set("files", files)

	_, err := c.do(ctx, "selectFiles", http.MethodPost, "/torrents/selectFiles/"+url.PathEscape(id), form, nil)
	return err
}

// ListTorrents returns every torrent on the account, following pagination.
func (c *Client) ListTorrents(ctx context.Context) ([]debrid.CommittedItem, error) {
	var items []debrid.CommittedItem

	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(listPageSize))

		var batch []torrentInfo
		resp, err := c.do(ctx, "listTorrents", http.MethodGet, "/torrents?"+q.Encode(), nil, &batch)
		if err != nil {
			return nil, err
		}

		for _, t := range batch {
			size := uint64(0)
			if t.Bytes > 0 {
				size = uint64(t.Bytes)
			}
			items = append(items, debrid.CommittedItem{
				ID:        t.ID,
				Filename:  t.Filename,
				SizeBytes: size,
				Hash:      strings.ToLower(t.Hash),
				Status:    t.Status,
			})
		}

		if resp.StatusCode == http.StatusNoContent || len(batch) < listPageSize {
			break
		}
		if total, err := strconv.Atoi(resp.Header.Get("X-Total-Count")); err == nil && len(items) >= total {
			break
		}
	}

	c.logger.Debug().Int("count", len(items)).Msg("Listed committed torrents")
	return items, nil
}

// Delete removes a torrent from the account.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, "delete", http.MethodDelete, "/torrents/delete/"+url.PathEscape(id), nil, nil)
	return err
}
