package quality

import (
	"fmt"
	"strings"
)

// Release is the part of a candidate the filter inspects.
type Release interface {
	ReleaseTitle() string
	ReleaseSize() uint64
}

// Filter returns the items that pass every active preference rule, in their
// original order. It does not modify its input.
func Filter[T Release](items []T, prefs Preferences) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if Rejection(item.ReleaseTitle(), item.ReleaseSize(), prefs) == "" {
			out = append(out, item)
		}
	}
	return out
}

// Rejection returns why a release fails the preferences, or "" when it
// passes. Rules run in a fixed order and stop at the first failure:
// excluded keyword, minimum resolution, size bounds, HDR, remux.
func Rejection(title string, sizeBytes uint64, prefs Preferences) string {
	lower := strings.ToLower(title)
	for _, kw := range prefs.ExcludeKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return fmt.Sprintf("excluded keyword %q", kw)
		}
	}

	tags := ParseTags(title)

	if prefs.MinResolution != "" && !meetsResolution(tags.Resolution, prefs.MinResolution) {
		return fmt.Sprintf("resolution %s below minimum %s", tags.Resolution, prefs.MinResolution)
	}

	sizeGB := BytesToGB(sizeBytes)
	if prefs.MinFileSizeGB > 0 && sizeGB < prefs.MinFileSizeGB {
		return fmt.Sprintf("size %.2fGB below minimum %.2fGB", sizeGB, prefs.MinFileSizeGB)
	}
	if prefs.MaxFileSizeGB > 0 && sizeGB > prefs.MaxFileSizeGB {
		return fmt.Sprintf("size %.2fGB above maximum %.2fGB", sizeGB, prefs.MaxFileSizeGB)
	}

	if prefs.RequireHDR && !tags.HasAnyHDR() {
		return "HDR required"
	}
	if prefs.RequireRemux && !tags.Remux {
		return "remux required"
	}

	return ""
}

// MeetsResolutionRequirement reports whether the title's resolution is at
// least min. An unknown resolution never meets a non-empty minimum.
func MeetsResolutionRequirement(title, min string) bool {
	if strings.TrimSpace(min) == "" {
		return true
	}
	return meetsResolution(ParseTags(title).Resolution, min)
}

func meetsResolution(r Resolution, min string) bool {
	if r == ResolutionUnknown {
		return false
	}
	threshold := ParseResolution(min)
	if threshold == ResolutionUnknown {
		return false
	}
	return ResolutionPriority(r) >= ResolutionPriority(threshold)
}
