package decisioning

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/cachegrab/cachegrab/internal/catalog"
	"github.com/cachegrab/cachegrab/internal/debrid"
)

var (
	apostropheRegex   = regexp.MustCompile(`['\x60\x{2018}\x{2019}\x{02BC}]`)
	specialCharsRegex = regexp.MustCompile(`[^a-z0-9\s]`)

	stopWords = map[string]struct{}{
		"the": {},
		"a":   {},
		"an":  {},
		"of":  {},
	}
)

// maxMatchWords is how many leading significant words must appear in a filename.
const maxMatchWords = 2

// foldAccents strips combining marks so "Amélie" compares as "amelie".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeTitle lower-cases, folds accents and replaces punctuation with
// spaces. Apostrophes are dropped so "Schitt's" matches "Schitts".
func NormalizeTitle(title string) string {
	normalized := strings.ToLower(foldAccents(title))
	normalized = apostropheRegex.ReplaceAllString(normalized, "")
	normalized = specialCharsRegex.ReplaceAllString(normalized, " ")
	return strings.Join(strings.Fields(normalized), " ")
}

// SignificantWords returns the words of a title with stop words removed.
// A title made only of stop words keeps all of them.
func SignificantWords(title string) []string {
	words := strings.Fields(NormalizeTitle(title))
	significant := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopWords[w]; !stop {
			significant = append(significant, w)
		}
	}
	if len(significant) == 0 {
		return words
	}
	return significant
}

// MatchesFilename reports whether a committed filename looks like the item:
// its first two significant words appear in the filename and so does its year.
func MatchesFilename(item catalog.MediaItem, filename string) bool {
	words := SignificantWords(item.Title)
	if len(words) == 0 {
		return false
	}

	name := strings.ToLower(foldAccents(filename))
	if item.Year > 0 && !strings.Contains(name, strconv.Itoa(item.Year)) {
		return false
	}

	for _, w := range words[:min(maxMatchWords, len(words))] {
		if !strings.Contains(name, w) {
			return false
		}
	}
	return true
}

// MatchCommitted returns the first committed item matching the media item, or nil.
func MatchCommitted(item catalog.MediaItem, snapshot []debrid.CommittedItem) *debrid.CommittedItem {
	for i := range snapshot {
		if MatchesFilename(item, snapshot[i].Filename) {
			return &snapshot[i]
		}
	}
	return nil
}
