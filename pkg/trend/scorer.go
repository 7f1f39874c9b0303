package trend

import (
	"math"
	"time"
)

const (
	noveltyVelocity       = 2.0
	singleMentionVelocity = 1.5
	maxVelocity           = 10.0

	crossSourceStep     = 0.15
	maxCrossSourceBonus = 2.0

	engagementScale = 0.2
)

// ShareMetric is the engagement metric weighted double: amplification
// spreads a story further than a like or a reply.
const ShareMetric = "retweets"

// Velocity compares a term's current mention count with its historical
// average. Terms never seen before get a fixed novelty value, lower for a
// single mention. Ratios are capped so tiny denominators cannot dominate.
func Velocity(historicalAvg float64, count int) float64 {
	if historicalAvg == 0 {
		if count >= 2 {
			return noveltyVelocity
		}
		return singleMentionVelocity
	}
	return math.Min(float64(count)/historicalAvg, maxVelocity)
}

// CrossSourceBonus rewards terms confirmed by several distinct sources.
func CrossSourceBonus(numSources int) float64 {
	return math.Min(1.0+crossSourceStep*float64(numSources-1), maxCrossSourceBonus)
}

// EngagementFactor maps engagement counts onto a log-scaled multiplier.
// Missing engagement is neutral.
func EngagementFactor(engagement map[string]int) float64 {
	if len(engagement) == 0 {
		return 1.0
	}

	total := 0
	for metric, n := range engagement {
		if metric == ShareMetric {
			n *= 2
		}
		total += n
	}
	if total <= 0 {
		return 1.0
	}
	return 1.0 + math.Log10(1+float64(total))*engagementScale
}

// TemporalWeight decays an article's score with its age.
func TemporalWeight(age time.Duration) float64 {
	switch {
	case age < time.Hour:
		return 1.0
	case age < 6*time.Hour:
		return 0.85
	case age < 12*time.Hour:
		return 0.7
	case age < 24*time.Hour:
		return 0.5
	default:
		return 0.3
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
