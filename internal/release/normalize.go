package release

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	sizeMarker    = "💾"
	seedersMarker = "👤"
	sourceMarker  = "⚙️"
)

var (
	reSize    = regexp.MustCompile(`(?i)([\d][\d.,]*)\s*([KMGT]?i?B)\b`)
	reInfoHex = regexp.MustCompile(`^[0-9a-f]{40}$`)

	unitMultipliers = map[string]float64{
		"B":  1,
		"KB": 1024,
		"MB": 1024 * 1024,
		"GB": 1024 * 1024 * 1024,
		"TB": 1024 * 1024 * 1024 * 1024,
	}
)

// Normalize converts raw index entries into candidates. Entries without a
// usable info hash are dropped; duplicate hashes keep their first entry.
func Normalize(raws []Raw, logger zerolog.Logger) []Candidate {
	candidates := make([]Candidate, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))

	for _, raw := range raws {
		c, err := NormalizeOne(raw)
		if err != nil {
			logger.Debug().Err(err).Str("title", firstLine(raw.Title)).Msg("Dropping release")
			continue
		}
		if _, dup := seen[c.Hash]; dup {
			continue
		}
		seen[c.Hash] = struct{}{}
		candidates = append(candidates, c)
	}

	return candidates
}

// NormalizeOne converts a single raw entry.
func NormalizeOne(raw Raw) (Candidate, error) {
	hash, err := NormalizeHash(raw.InfoHash)
	if err != nil {
		return Candidate{}, err
	}

	sizeText := raw.Size
	if strings.TrimSpace(sizeText) == "" {
		sizeText = sizeFromTitle(raw.Title)
	}

	return Candidate{
		Title:     ExtractTitle(raw.Title),
		SizeBytes: ParseSize(sizeText),
		Hash:      hash,
	}, nil
}

// NormalizeHash lower-cases and validates a hex info hash.
func NormalizeHash(h string) (string, error) {
	h = strings.ToLower(strings.TrimSpace(h))
	if !reInfoHex.MatchString(h) {
		return "", ErrInvalidHash
	}
	return h, nil
}

// ExtractTitle returns the display name of a possibly multi-line index
// title. The first non-empty line without a size or seeders marker wins.
// Titles without any size marker are returned whole.
func ExtractTitle(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.Contains(trimmed, sizeMarker) {
		return trimmed
	}

	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, sizeMarker) || strings.Contains(line, seedersMarker) {
			continue
		}
		return line
	}

	return trimmed
}

// ParseSize converts "7.5 GB" style strings to bytes using binary
// multipliers. An unrecognized unit leaves the number as bytes; an
// unparsable string yields 0.
func ParseSize(s string) uint64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	if match := reSize.FindStringSubmatch(s); match != nil {
		value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
		if err != nil || value < 0 {
			return 0
		}
		unit := strings.Replace(strings.ToUpper(match[2]), "IB", "B", 1)
		mult, ok := unitMultipliers[unit]
		if !ok {
			mult = 1
		}
		return uint64(value * mult)
	}

	// Number followed by something that is not a known unit.
	fields := strings.Fields(s)
	value, err := strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", ""), 64)
	if err != nil || value < 0 {
		return 0
	}
	return uint64(value)
}

func sizeFromTitle(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		idx := strings.Index(line, sizeMarker)
		if idx < 0 {
			continue
		}
		rest := line[idx+len(sizeMarker):]
		if end := strings.Index(rest, sourceMarker); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}
	return ""
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}
