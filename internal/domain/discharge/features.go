package discharge

import (
	"math"
	"sort"

	"github.com/readmit/dashboard/internal/platform/predictionapi"
)

const (
	// SummaryFeatureCount features are shown on the discharge summary,
	// DetailFeatureCount everywhere else.
	SummaryFeatureCount = 5
	DetailFeatureCount  = 10
)

// RankFeatures orders features by absolute weight, largest first, keeping
// the original order among equal magnitudes, and returns at most n of them.
// A negative n returns all.
func RankFeatures(features predictionapi.Features, n int) []predictionapi.Feature {
	ranked := make([]predictionapi.Feature, len(features))
	copy(ranked, features)
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].Weight) > math.Abs(ranked[j].Weight)
	})
	if n >= 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

type Tone string

const (
	ToneLow    Tone = "low"
	ToneMedium Tone = "medium"
	ToneHigh   Tone = "high"
)

// ScoreTone picks the display colour for a risk score. It is presentation
// only; the band always comes from the prediction service.
func ScoreTone(score float64) Tone {
	switch {
	case score <= 0.3:
		return ToneLow
	case score <= 0.6:
		return ToneMedium
	}
	return ToneHigh
}
