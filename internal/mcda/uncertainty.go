package mcda

import (
	"math"

	"github.com/adaptivecare/pulse/pkg/hospital"
)

// Confidence weights. Assessment confidence dominates; clarity and
// consistency temper it.
const (
	confWeightAssessment  = 0.4
	confWeightClarity     = 0.3
	confWeightConsistency = 0.3

	// clarityBand is the distance from the escalation threshold at which a
	// top total counts as fully unambiguous.
	clarityBand = 0.25

	// maxSubScoreVariance is the variance of four values in [0,1] split
	// evenly between the extremes, the worst possible disagreement.
	maxSubScoreVariance = 0.25
)

// Confidence combines the risk assessment's own confidence with how clear-cut
// the ranked result is. With no candidates there is nothing to read clarity
// or consistency from, so the assessment confidence passes through.
func (e *Engine) Confidence(assessmentConfidence float64, candidates []hospital.MCDAScoreSet) float64 {
	if len(candidates) == 0 {
		return clamp01(assessmentConfidence)
	}

	top := candidates[0]
	clarity := clamp01(math.Abs(top.WeightedTotal-e.escalateThreshold) / clarityBand)
	consistency := 1 - subScoreVariance(top)/maxSubScoreVariance

	return clamp01(confWeightAssessment*assessmentConfidence +
		confWeightClarity*clarity +
		confWeightConsistency*consistency)
}

// subScoreVariance measures disagreement between the four criteria. The
// resource criterion contributes as its benefit form (1 - penalty), matching
// how it enters the weighted total.
func subScoreVariance(s hospital.MCDAScoreSet) float64 {
	vals := [4]float64{s.Safety, s.Urgency, s.CapacityFit, 1 - s.ResourceImpact}

	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= 4

	var variance float64
	for _, v := range vals {
		variance += (v - mean) * (v - mean)
	}
	return variance / 4
}
