package quality

import (
	"fmt"
	"strings"
)

// Preferences is the user's quality configuration. It is read-only for the
// duration of a run.
type Preferences struct {
	MinFileSizeGB        float64  `mapstructure:"minFileSizeGB" yaml:"minFileSizeGB" json:"minFileSizeGB,omitempty"`
	MaxFileSizeGB        float64  `mapstructure:"maxFileSizeGB" yaml:"maxFileSizeGB" json:"maxFileSizeGB,omitempty"`
	MinResolution        string   `mapstructure:"minResolution" yaml:"minResolution" json:"minResolution,omitempty"`
	PreferredResolutions []string `mapstructure:"preferredResolutions" yaml:"preferredResolutions" json:"preferredResolutions,omitempty"`
	PreferredKeywords    []string `mapstructure:"preferredKeywords" yaml:"preferredKeywords" json:"preferredKeywords,omitempty"`
	PreferredCodecs      []string `mapstructure:"preferredCodecs" yaml:"preferredCodecs" json:"preferredCodecs,omitempty"`
	ExcludeKeywords      []string `mapstructure:"excludeKeywords" yaml:"excludeKeywords" json:"excludeKeywords,omitempty"`
	RequireHDR           bool     `mapstructure:"requireHDR" yaml:"requireHDR" json:"requireHDR,omitempty"`
	RequireRemux         bool     `mapstructure:"requireRemux" yaml:"requireRemux" json:"requireRemux,omitempty"`
}

// Validate checks the preferences for contradictions.
func (p Preferences) Validate() error {
	if p.MinFileSizeGB < 0 || p.MaxFileSizeGB < 0 {
		return fmt.Errorf("file size bounds must not be negative")
	}
	if p.MaxFileSizeGB > 0 && p.MinFileSizeGB > p.MaxFileSizeGB {
		return fmt.Errorf("minFileSizeGB (%.2f) exceeds maxFileSizeGB (%.2f)", p.MinFileSizeGB, p.MaxFileSizeGB)
	}
	if p.MinResolution != "" && ParseResolution(p.MinResolution) == ResolutionUnknown {
		return fmt.Errorf("unknown minResolution %q", p.MinResolution)
	}
	for _, r := range p.PreferredResolutions {
		if ParseResolution(r) == ResolutionUnknown {
			return fmt.Errorf("unknown preferred resolution %q", r)
		}
	}
	return nil
}

// prefersResolution reports whether r is one of the preferred resolutions.
func (p Preferences) prefersResolution(r Resolution) bool {
	if r == ResolutionUnknown {
		return false
	}
	for _, pr := range p.PreferredResolutions {
		if ParseResolution(pr) == r {
			return true
		}
	}
	return false
}

// prefersCodec reports whether codec is one of the preferred codecs.
func (p Preferences) prefersCodec(codec string) bool {
	if codec == "" {
		return false
	}
	for _, pc := range p.PreferredCodecs {
		if strings.EqualFold(strings.TrimSpace(pc), codec) {
			return true
		}
		// "hevc" and "h265" are spelled many ways; compare via the tagger.
		if tag := ParseTags(pc).Codec; tag != "" && tag == codec {
			return true
		}
	}
	return false
}
