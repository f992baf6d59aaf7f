package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecent_CapturesZerologEntries(t *testing.T) {
	recent := NewRecent(10)
	log := zerolog.New(recent).With().Timestamp().Str("component", "grab").Logger()

	log.Info().Str("hash", "abc").Msg("Added release")

	entries := recent.Entries(0)
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0].Level)
	assert.Equal(t, "grab", entries[0].Component)
	assert.Equal(t, "Added release", entries[0].Message)
	assert.Equal(t, "abc", entries[0].Fields["hash"])
	assert.NotEmpty(t, entries[0].Timestamp)
}

func TestRecent_WrapsOldestFirst(t *testing.T) {
	recent := NewRecent(3)
	log := zerolog.New(recent)

	for _, msg := range []string{"one", "two", "three", "four", "five"} {
		log.Info().Msg(msg)
	}

	assert.Equal(t, 3, recent.Len())
	messages := func(entries []Entry) []string {
		out := make([]string, len(entries))
		for i, e := range entries {
			out[i] = e.Message
		}
		return out
	}
	assert.Equal(t, []string{"three", "four", "five"}, messages(recent.Entries(0)))
	assert.Equal(t, []string{"four", "five"}, messages(recent.Entries(2)))
}

func TestRecent_IgnoresMalformedLines(t *testing.T) {
	recent := NewRecent(3)
	n, err := recent.Write([]byte("not json"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Zero(t, recent.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}
