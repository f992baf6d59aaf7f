// Package mock provides an in-memory cache service for tests.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cachegrab/cachegrab/internal/debrid"
)

// Operation names used for call recording and scripted failures.
const (
	OpInstantAvailability = "instantAvailability"
	OpAddMagnet           = "addMagnet"
	OpSelectFiles         = "selectFiles"
	OpListTorrents        = "listTorrents"
	OpDelete              = "delete"
)

// Call is one recorded provider call.
type Call struct {
	Op   string
	Args []string
}

// Client implements debrid.Provider entirely in memory.
// It records every call and can fail the next N calls of an operation.
type Client struct {
	mu       sync.Mutex
	cached   map[string]bool
	names    map[string]string
	torrents []debrid.CommittedItem
	failures map[string][]error
	calls    []Call
	nextID   int
}

var _ debrid.Provider = (*Client)(nil)

// New creates an empty mock cache service.
func New() *Client {
	return &Client{
		cached:   make(map[string]bool),
		names:    make(map[string]string),
		failures: make(map[string][]error),
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return "mock"
}

// SetCached marks hashes as instantly available.
func (c *Client) SetCached(hashes ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range hashes {
		c.cached[strings.ToLower(h)] = true
	}
}

// SetReleaseName sets the filename reported for a hash once it is added.
func (c *Client) SetReleaseName(hash, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[strings.ToLower(hash)] = name
}

// AddExisting seeds an already committed item.
func (c *Client) AddExisting(items ...debrid.CommittedItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.torrents = append(c.torrents, items...)
}

// FailNext makes the next len(errs) calls of op return errs in order.
func (c *Client) FailNext(op string, errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[op] = append(c.failures[op], errs...)
}

// Calls returns a copy of the recorded calls.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns how many times op was invoked.
func (c *Client) CallCount(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call.Op == op {
			n++
		}
	}
	return n
}

// Mutations counts calls that change account state.
func (c *Client) Mutations() int {
	return c.CallCount(OpAddMagnet) + c.CallCount(OpSelectFiles) + c.CallCount(OpDelete)
}

// Torrents returns a copy of the committed items.
func (c *Client) Torrents() []debrid.CommittedItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]debrid.CommittedItem, len(c.torrents))
	copy(out, c.torrents)
	return out
}

// record must be called with mu held. It returns the scripted failure, if any.
func (c *Client) record(op string, args ...string) error {
	c.calls = append(c.calls, Call{Op: op, Args: args})
	queue := c.failures[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	c.failures[op] = queue[1:]
	return err
}

func (c *Client) InstantAvailability(_ context.Context, hashes []string) (map[string]bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(OpInstantAvailability, hashes...); err != nil {
		return nil, err
	}

	result := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		h = strings.ToLower(h)
		result[h] = c.cached[h]
	}
	return result, nil
}

func (c *Client) AddMagnet(_ context.Context, hash string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(OpAddMagnet, hash); err != nil {
		return "", err
	}

	c.nextID++
	id := fmt.Sprintf("MOCK%d", c.nextID)
	hash = strings.ToLower(hash)
	name := c.names[hash]
	if name == "" {
		name = hash
	}
	c.torrents = append(c.torrents, debrid.CommittedItem{
		ID:       id,
		Filename: name,
		Hash:     hash,
		Status:   "magnet_conversion",
	})
	return id, nil
}

func (c *Client) SelectFiles(_ context.Context, id, files string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(OpSelectFiles, id, files); err != nil {
		return err
	}
	for i := range c.torrents {
		if c.torrents[i].ID == id {
			c.torrents[i].Status = "downloaded"
			return nil
		}
	}
	return fmt.Errorf("unknown torrent %s", id)
}

func (c *Client) ListTorrents(_ context.Context) ([]debrid.CommittedItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(OpListTorrents); err != nil {
		return nil, err
	}
	out := make([]debrid.CommittedItem, len(c.torrents))
	copy(out, c.torrents)
	return out, nil
}

func (c *Client) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record(OpDelete, id); err != nil {
		return err
	}
	for i := range c.torrents {
		if c.torrents[i].ID == id {
			c.torrents = append(c.torrents[:i], c.torrents[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("unknown torrent %s", id)
}
