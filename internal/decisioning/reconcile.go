package decisioning

import (
	"fmt"

	"github.com/cachegrab/cachegrab/internal/debrid"
	"github.com/cachegrab/cachegrab/internal/quality"
	"github.com/cachegrab/cachegrab/internal/release"
)

// Decide compares a candidate with the committed item already held for the
// same title. Without one the candidate is added; with one it replaces it
// only when its quality score is strictly higher.
func Decide(candidate release.Candidate, existing *debrid.CommittedItem, scorer *quality.Scorer) Decision {
	d := Decision{Candidate: candidate}
	if existing == nil {
		d.Action = ActionAdd
		return d
	}

	d.Existing = existing
	if existing.Hash != "" && existing.Hash == candidate.Hash {
		d.Action = ActionSkip
		d.Reason = "release already held"
		return d
	}

	candidateScore := scorer.QualityScore(candidate.Title, candidate.SizeBytes)
	d.ExistingScore = scorer.QualityScore(existing.Filename, existing.SizeBytes)

	if candidateScore > d.ExistingScore {
		d.Action = ActionUpgrade
		d.Reason = fmt.Sprintf("score %.1f beats held %.1f", candidateScore, d.ExistingScore)
		return d
	}

	d.Action = ActionSkip
	d.Reason = fmt.Sprintf("score %.1f does not beat held %.1f", candidateScore, d.ExistingScore)
	return d
}

// Plan decides every selected candidate of a title. When an item is already
// held only the top candidate is considered, so an upgrade replaces one for
// one. Candidates whose hash is anywhere in the held set are skipped.
func Plan(selected []release.Candidate, existing *debrid.CommittedItem, held map[string]struct{}, scorer *quality.Scorer) []Decision {
	if existing != nil && len(selected) > 1 {
		selected = selected[:1]
	}

	decisions := make([]Decision, 0, len(selected))
	for _, c := range selected {
		if _, ok := held[c.Hash]; ok && (existing == nil || existing.Hash != c.Hash) {
			decisions = append(decisions, Decision{
				Action:    ActionSkip,
				Candidate: c,
				Existing:  existing,
				Reason:    "hash already committed",
			})
			continue
		}
		decisions = append(decisions, Decide(c, existing, scorer))
	}
	return decisions
}

// HeldHashes indexes the hashes of a committed snapshot.
func HeldHashes(snapshot []debrid.CommittedItem) map[string]struct{} {
	held := make(map[string]struct{}, len(snapshot))
	for _, item := range snapshot {
		if item.Hash != "" {
			held[item.Hash] = struct{}{}
		}
	}
	return held
}
