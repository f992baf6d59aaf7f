package release

import (
	"sort"

	"github.com/cachegrab/cachegrab/internal/quality"
)

// Score sets tags, quality score and ranking score on every candidate.
// The ranking score adds the availability bonus to cached candidates.
func Score(candidates []Candidate, scorer *quality.Scorer) {
	for i := range candidates {
		c := &candidates[i]
		c.Tags = quality.ParseTags(c.Title)
		c.QualityScore = scorer.QualityScore(c.Title, c.SizeBytes)
		c.Score = c.QualityScore
		if c.Available {
			c.Score += scorer.AvailabilityBonus()
		}
	}
}

// Rank sorts candidates by score descending. Equal scores keep their
// discovery order.
func Rank(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}
