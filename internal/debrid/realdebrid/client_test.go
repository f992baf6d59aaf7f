package realdebrid

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachegrab/cachegrab/internal/provider"
)

const (
	hashA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	hashB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	hashC = "cccccccccccccccccccccccccccccccccccccccc"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{APIToken: "rd-token", BaseURL: server.URL}, zerolog.Nop())
}

func TestClient_InstantAvailability(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/torrents/instantAvailability/"+hashA+"/"+hashB+"/"+hashC, r.URL.Path)
		assert.Equal(t, "Bearer rd-token", r.Header.Get("Authorization"))

		w.Write([]byte(`{
			"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA": {"rd": [{"1": {"filename": "movie.mkv", "filesize": 1024}}]},
			"` + hashB + `": [],
			"` + hashC + `": {"rd": []}
		}`))
	})

	got, err := client.InstantAvailability(context.Background(), []string{hashA, strings.ToUpper(hashB), hashC})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{hashA: true, hashB: false, hashC: false}, got)
}

func TestClient_InstantAvailabilityEmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	got, err := client.InstantAvailability(context.Background(), []string{hashA, hashB})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{hashA: false, hashB: false}, got)
}

func TestClient_InstantAvailabilityErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"forbidden is blocked", http.StatusForbidden, provider.IsBlocked},
		{"429 is transient", http.StatusTooManyRequests, provider.IsTransient},
		{"401 is auth", http.StatusUnauthorized, provider.IsAuthError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error": "nope"}`))
			})

			got, err := client.InstantAvailability(context.Background(), []string{hashA})
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
}

func TestClient_InstantAvailabilityEmptyInput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request: %s", r.URL.Path)
	})

	got, err := client.InstantAvailability(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClient_AddMagnetAndSelectFiles(t *testing.T) {
	var calls []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		calls = append(calls, r.Method+" "+r.URL.Path)

		switch r.URL.Path {
		case "/torrents/addMagnet":
			assert.Equal(t, "magnet:?xt=urn:btih:"+hashA, r.PostForm.Get("magnet"))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": "TORRENT1", "uri": "https://real-debrid.com/rest/1.0/torrents/info/TORRENT1"}`))
		case "/torrents/selectFiles/TORRENT1":
			assert.Equal(t, "all", r.PostForm.Get("files"))
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	id, err := client.AddMagnet(context.Background(), hashA)
	require.NoError(t, err)
	assert.Equal(t, "TORRENT1", id)

	require.NoError(t, client.SelectFiles(context.Background(), id, "all"))
	assert.Equal(t, []string{"POST /torrents/addMagnet", "POST /torrents/selectFiles/TORRENT1"}, calls)
}

func TestClient_AddMagnetWithoutID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	})

	_, err := client.AddMagnet(context.Background(), hashA)
	assert.ErrorIs(t, err, provider.ErrParse)
}

func TestClient_ListTorrentsPaginates(t *testing.T) {
	pages := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/torrents", r.URL.Path)
		pages++
		page := r.URL.Query().Get("page")
		w.Header().Set("X-Total-Count", fmt.Sprint(listPageSize+1))

		var b strings.Builder
		b.WriteString("[")
		switch page {
		case "1":
			for i := 0; i < listPageSize; i++ {
				if i > 0 {
					b.WriteString(",")
				}
				fmt.Fprintf(&b, `{"id": "T%d", "filename": "Movie.%d.1080p.mkv", "hash": "%040d", "bytes": 1000, "status": "downloaded"}`, i, i, i)
			}
		case "2":
			b.WriteString(`{"id": "LAST", "filename": "Dune.Part.Two.2024.2160p.mkv", "hash": "` + strings.ToUpper(hashA) + `", "bytes": 42949672960, "status": "downloaded"}`)
		}
		b.WriteString("]")
		w.Write([]byte(b.String()))
	})

	items, err := client.ListTorrents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	require.Len(t, items, listPageSize+1)

	last := items[len(items)-1]
	assert.Equal(t, "LAST", last.ID)
	assert.Equal(t, hashA, last.Hash)
	assert.Equal(t, uint64(42949672960), last.SizeBytes)
}

func TestClient_ListTorrentsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	items, err := client.ListTorrents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestClient_Delete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/torrents/delete/OLD", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.Delete(context.Background(), "OLD"))
}
