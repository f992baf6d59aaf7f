package quality

import "strings"

// Weights holds the additive bonuses of the scoring function.
type Weights struct {
	// Points per binary GB; keeps the score strictly increasing in size.
	SizePerGB float64

	Resolution map[Resolution]float64

	DolbyVision float64
	HDR10Plus   float64
	HDR         float64
	Remux       float64

	PreferredResolution float64
	PreferredKeyword    float64 // per matching keyword
	PreferredCodec      float64

	// Available is added to the ranking score of cached releases only. It is
	// the largest single bonus so cached releases win in practice.
	Available float64
}

// DefaultWeights returns the default scoring weights.
func DefaultWeights() Weights {
	return Weights{
		SizePerGB: 1,
		Resolution: map[Resolution]float64{
			Resolution2160p:   40,
			Resolution1080p:   20,
			Resolution720p:    10,
			Resolution480p:    5,
			Resolution360p:    2,
			ResolutionUnknown: 0,
		},
		DolbyVision:         15,
		HDR10Plus:           12,
		HDR:                 10,
		Remux:               20,
		PreferredResolution: 15,
		PreferredKeyword:    10,
		PreferredCodec:      8,
		Available:           1000,
	}
}

// Breakdown itemizes a quality score.
type Breakdown struct {
	Size       float64 `json:"size"`
	Resolution float64 `json:"resolution"`
	HDR        float64 `json:"hdr"`
	Remux      float64 `json:"remux"`
	Preference float64 `json:"preference"`
	Total      float64 `json:"total"`
}

// Scorer calculates desirability scores for releases.
type Scorer struct {
	weights Weights
	prefs   Preferences
}

// NewScorer creates a new scorer with the given preferences and weights.
func NewScorer(prefs Preferences, weights Weights) *Scorer {
	return &Scorer{weights: weights, prefs: prefs}
}

// NewDefaultScorer creates a scorer with default weights.
func NewDefaultScorer(prefs Preferences) *Scorer {
	return NewScorer(prefs, DefaultWeights())
}

// QualityScore scores a release from its title and size alone. The same
// function scores new candidates and already-held releases, so the two are
// directly comparable.
func (s *Scorer) QualityScore(title string, sizeBytes uint64) float64 {
	return s.Breakdown(title, sizeBytes).Total
}

// Breakdown returns the itemized quality score.
func (s *Scorer) Breakdown(title string, sizeBytes uint64) Breakdown {
	tags := ParseTags(title)
	w := s.weights

	var b Breakdown
	b.Size = BytesToGB(sizeBytes) * w.SizePerGB
	b.Resolution = w.Resolution[tags.Resolution]

	if tags.DolbyVision {
		b.HDR += w.DolbyVision
	}
	if tags.HDR10Plus {
		b.HDR += w.HDR10Plus
	}
	if tags.HDR {
		b.HDR += w.HDR
	}
	if tags.Remux {
		b.Remux = w.Remux
	}

	if s.prefs.prefersResolution(tags.Resolution) {
		b.Preference += w.PreferredResolution
	}
	lower := strings.ToLower(title)
	for _, kw := range s.prefs.PreferredKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			b.Preference += w.PreferredKeyword
		}
	}
	if s.prefs.prefersCodec(tags.Codec) {
		b.Preference += w.PreferredCodec
	}

	b.Total = b.Size + b.Resolution + b.HDR + b.Remux + b.Preference
	return b
}

// AvailabilityBonus returns the ranking bonus for cached releases.
func (s *Scorer) AvailabilityBonus() float64 {
	return s.weights.Available
}

// Preferences returns the preferences the scorer was built with.
func (s *Scorer) Preferences() Preferences {
	return s.prefs
}
