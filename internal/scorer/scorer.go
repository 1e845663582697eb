// Package scorer combines technical factors with text-derived sentiment and
// event-impact features into a single (score, strength) pair.
package scorer

import (
	"math"

	"signal-engine/internal/factors"
)

// Declared domains for the upstream NLP features. Values outside are
// clamped, never rejected: malformed model output reads as low confidence.
const (
	SentimentMin   = -1.0
	SentimentMax   = 1.0
	EventImpactMin = 0.0
	EventImpactMax = 1.0
)

// Score combines a factor vector with the last known sentiment and event
// impact under the given weights. The score is clamped to
// [-w.MaxScore, +w.MaxScore]; strength is |score|/w.MaxScore in [0,1].
// Never fails, regardless of input magnitude.
func Score(f factors.Vector, sentiment, eventImpact float64, w Weights) (score, strength float64) {
	sentiment = clamp(sentiment, SentimentMin, SentimentMax)
	eventImpact = clamp(eventImpact, EventImpactMin, EventImpactMax)

	score = w.ShortReturn*f.ShortReturn +
		w.LongReturn*f.LongReturn +
		w.Volatility*f.Volatility +
		w.Momentum*f.Momentum +
		w.Sentiment*sentiment +
		w.EventImpact*eventImpact

	score = clamp(score, -w.MaxScore, w.MaxScore)
	strength = clamp(math.Abs(score)/w.MaxScore, 0, 1)
	return score, strength
}

// clamp bounds v to [lo, hi]; NaN maps to the neutral midpoint of a
// symmetric range only when lo == -hi, otherwise to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		if lo == -hi {
			return 0
		}
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
