package decisioning

import (
	"github.com/cachegrab/cachegrab/internal/quality"
	"github.com/cachegrab/cachegrab/internal/release"
)

// ProbeUnavailable reports whether a probe over hashes returned nothing,
// meaning availability is unknown rather than "nothing cached".
func ProbeUnavailable(hashes int, probe map[string]bool) bool {
	return hashes > 0 && len(probe) == 0
}

// Annotate copies probe results onto the candidates. When the probe was
// unavailable every candidate is assumed available. It returns true in
// that case.
func Annotate(candidates []release.Candidate, probe map[string]bool) bool {
	if ProbeUnavailable(len(candidates), probe) {
		for i := range candidates {
			candidates[i].Available = true
			candidates[i].AvailabilityAssumed = true
		}
		return true
	}

	for i := range candidates {
		candidates[i].Available = probe[candidates[i].Hash]
		candidates[i].AvailabilityAssumed = false
	}
	return false
}

// Select filters candidates against prefs, scores and ranks the survivors and
// returns at most limit of them, best first. A limit of zero or less keeps all.
func Select(candidates []release.Candidate, prefs quality.Preferences, scorer *quality.Scorer, limit int) []release.Candidate {
	selected := quality.Filter(candidates, prefs)
	release.Score(selected, scorer)
	release.Rank(selected)

	if limit > 0 && len(selected) > limit {
		selected = selected[:limit]
	}
	return selected
}

// Hashes returns the hash of every candidate in order.
func Hashes(candidates []release.Candidate) []string {
	out := make([]string, len(candidates))
	for i := range candidates {
		out[i] = candidates[i].Hash
	}
	return out
}
