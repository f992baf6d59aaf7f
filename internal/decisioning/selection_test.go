package decisioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cachegrab/cachegrab/internal/quality"
	"github.com/cachegrab/cachegrab/internal/release"
)

const gib = 1024 * 1024 * 1024

func candidate(title string, sizeGB uint64, hash string) release.Candidate {
	return release.Candidate{Title: title, SizeBytes: sizeGB * gib, Hash: hash}
}

func TestAnnotate(t *testing.T) {
	cands := []release.Candidate{
		candidate("A.2020.1080p", 8, "aa"),
		candidate("B.2020.2160p", 40, "bb"),
	}

	assumed := Annotate(cands, map[string]bool{"aa": true, "bb": false})
	assert.False(t, assumed)
	assert.True(t, cands[0].Available)
	assert.False(t, cands[1].Available)
	assert.False(t, cands[0].AvailabilityAssumed)
}

func TestAnnotate_DegradesOpenOnEmptyProbe(t *testing.T) {
	cands := []release.Candidate{
		candidate("A.2020.1080p", 8, "aa"),
		candidate("B.2020.2160p", 40, "bb"),
	}

	assumed := Annotate(cands, map[string]bool{})
	assert.True(t, assumed)
	for _, c := range cands {
		assert.True(t, c.Available)
		assert.True(t, c.AvailabilityAssumed)
	}
}

func TestAnnotate_EmptyInputIsNotDegraded(t *testing.T) {
	assert.False(t, Annotate(nil, nil))
	assert.False(t, ProbeUnavailable(0, nil))
	assert.True(t, ProbeUnavailable(3, nil))
}

func TestSelect_AvailabilityOutranksSize(t *testing.T) {
	cands := []release.Candidate{
		candidate("Movie.2020.2160p.REMUX", 80, "big"),
		candidate("Movie.2020.1080p.WEB-DL", 6, "cached"),
	}
	Annotate(cands, map[string]bool{"cached": true, "big": false})

	scorer := quality.NewDefaultScorer(quality.Preferences{})
	selected := Select(cands, quality.Preferences{}, scorer, 1)
	require.Len(t, selected, 1)
	assert.Equal(t, "cached", selected[0].Hash)
	assert.Greater(t, selected[0].Score, selected[0].QualityScore)
}

func TestSelect_FiltersThenRanksAndLimits(t *testing.T) {
	prefs := quality.Preferences{MinResolution: "1080p", ExcludeKeywords: []string{"cam"}}
	cands := []release.Candidate{
		candidate("Movie.2020.720p.WEB", 2, "h720"),
		candidate("Movie.2020.1080p.WEB", 6, "h1080"),
		candidate("Movie.2020.2160p.CAM", 20, "hcam"),
		candidate("Movie.2020.2160p.WEB", 20, "h2160"),
	}
	Annotate(cands, map[string]bool{"h720": true, "h1080": true, "hcam": true, "h2160": true})

	selected := Select(cands, prefs, quality.NewDefaultScorer(prefs), 5)
	require.Len(t, selected, 2)
	assert.Equal(t, "h2160", selected[0].Hash)
	assert.Equal(t, "h1080", selected[1].Hash)
	assert.Equal(t, quality.Resolution2160p, selected[0].Tags.Resolution)

	// Input untouched.
	assert.Zero(t, cands[3].Score)
}

func TestSelect_TiesKeepDiscoveryOrder(t *testing.T) {
	cands := []release.Candidate{
		candidate("Movie.2020.1080p.WEB", 6, "first"),
		candidate("Movie.2020.1080p.WEB", 6, "second"),
	}
	selected := Select(cands, quality.Preferences{}, quality.NewDefaultScorer(quality.Preferences{}), 0)
	require.Len(t, selected, 2)
	assert.Equal(t, "first", selected[0].Hash)
}

func TestHashes(t *testing.T) {
	cands := []release.Candidate{candidate("a", 1, "x"), candidate("b", 1, "y")}
	assert.Equal(t, []string{"x", "y"}, Hashes(cands))
}
