// Package quality extracts quality signals from release titles, scores
// releases and applies user quality preferences.
package quality

import (
	"regexp"
	"strings"
)

// Resolution is a normalized resolution token.
type Resolution string

const (
	Resolution2160p   Resolution = "2160p"
	Resolution1080p   Resolution = "1080p"
	Resolution720p    Resolution = "720p"
	Resolution480p    Resolution = "480p"
	Resolution360p    Resolution = "360p"
	ResolutionUnknown Resolution = "unknown"
)

// Tags are the quality signals found in a release title.
type Tags struct {
	Resolution  Resolution `json:"resolution"`
	HDR         bool       `json:"hdr,omitempty"`
	DolbyVision bool       `json:"dolbyVision,omitempty"`
	HDR10Plus   bool       `json:"hdr10plus,omitempty"`
	Remux       bool       `json:"remux,omitempty"`
	Codec       string     `json:"codec,omitempty"`
}

// HasAnyHDR reports whether any HDR flavour was detected.
func (t Tags) HasAnyHDR() bool {
	return t.HDR || t.DolbyVision || t.HDR10Plus
}

type pattern struct {
	name string
	re   *regexp.Regexp
}

var (
	// Checked in order; the first hit wins. Tokens must stand alone so that
	// e.g. "h264kor" is not read as 4K.
	resolutionTokens = []struct {
		token string
		res   Resolution
		re    *regexp.Regexp
	}{
		{"2160p", Resolution2160p, tokenPattern("2160p")},
		{"4k", Resolution2160p, tokenPattern("4k")},
		{"1080p", Resolution1080p, tokenPattern("1080p")},
		{"720p", Resolution720p, tokenPattern("720p")},
		{"480p", Resolution480p, tokenPattern("480p")},
		{"360p", Resolution360p, tokenPattern("360p")},
	}

	// Checked in order; the first hit wins.
	codecPatterns = []pattern{
		{"x265", regexp.MustCompile(`(?i)(x265|h\.?265|(^|[^a-z0-9])hevc([^a-z0-9]|$))`)},
		{"x264", regexp.MustCompile(`(?i)(x264|h\.?264|(^|[^a-z0-9])avc([^a-z0-9]|$))`)},
		{"AV1", regexp.MustCompile(`(?i)av1`)},
		{"XviD", regexp.MustCompile(`(?i)xvid`)},
	}

	dolbyVisionPattern = regexp.MustCompile(`(?i)(dolby[\.\s_-]?vision|dovi|(^|[\.\s_\-\[(])dv([\.\s_\-\])]|$))`)
	hdr10PlusPattern   = regexp.MustCompile(`(?i)hdr10(\+|plus)`)
	hdrPattern         = regexp.MustCompile(`hdr(ip)?`)

	resolutionPriority = map[Resolution]int{
		Resolution2160p:   5,
		Resolution1080p:   4,
		Resolution720p:    3,
		Resolution480p:    2,
		Resolution360p:    1,
		ResolutionUnknown: 0,
	}
)

// ParseTags derives quality tags from a free-text release title using
// case-insensitive matching.
func ParseTags(title string) Tags {
	lower := strings.ToLower(title)

	tags := Tags{Resolution: ResolutionUnknown}
	for _, rt := range resolutionTokens {
		if rt.re.MatchString(lower) {
			tags.Resolution = rt.res
			break
		}
	}

	tags.HDR = hasHDR(lower)
	tags.HDR10Plus = hdr10PlusPattern.MatchString(title)
	tags.DolbyVision = dolbyVisionPattern.MatchString(title)
	tags.Remux = strings.Contains(lower, "remux")

	for _, p := range codecPatterns {
		if p.re.MatchString(title) {
			tags.Codec = p.name
			break
		}
	}

	return tags
}

func tokenPattern(token string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[^a-z0-9])` + regexp.QuoteMeta(token) + `([^a-z0-9]|$)`)
}

// hasHDR reports an "hdr" marker in a lowercased title. "HDRip" names a
// plain rip and does not count.
func hasHDR(lower string) bool {
	for _, m := range hdrPattern.FindAllString(lower, -1) {
		if m == "hdr" {
			return true
		}
	}
	return false
}

// ParseResolution normalizes a configured resolution such as "4K" or
// "1080P". Unrecognized values return ResolutionUnknown.
func ParseResolution(s string) Resolution {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, rt := range resolutionTokens {
		if s == rt.token {
			return rt.res
		}
	}
	return ResolutionUnknown
}

// ResolutionPriority ranks resolutions: 2160p highest, unknown lowest (0).
func ResolutionPriority(r Resolution) int {
	return resolutionPriority[r]
}

// BytesToGB converts bytes to binary gigabytes.
func BytesToGB(b uint64) float64 {
	return float64(b) / (1024 * 1024 * 1024)
}
