// Package risk assesses patient deterioration risk from vital signs. The
// scoring functions are pure; the agent wraps them in a bus subscription and
// writes results back through the state store.
package risk

import (
	"math"

	"github.com/adaptivecare/pulse/pkg/hospital"
)

// vitalBand is the normal range for one vital plus the deviation scale: a
// reading scale units outside the band counts as a full deviation of 1.
type vitalBand struct {
	label  string
	low    float64
	high   float64
	scale  float64
	weight float64
}

// Illustrative adult clinical bands. Weights sum to 1.
var vitalBands = []vitalBand{
	{label: "heart rate", low: 60, high: 100, scale: 50, weight: 0.20},
	{label: "systolic blood pressure", low: 90, high: 140, scale: 50, weight: 0.20},
	{label: "oxygen saturation", low: 95, high: 100, scale: 10, weight: 0.20},
	{label: "respiratory rate", low: 12, high: 20, scale: 10, weight: 0.15},
	{label: "temperature", low: 36.1, high: 37.8, scale: 2.5, weight: 0.10},
	{label: "consciousness", low: 15, high: 15, scale: 7, weight: 0.15},
}

func vitalValues(v *hospital.VitalSigns) []*float64 {
	return []*float64{v.HeartRate, v.SystolicBP, v.SpO2, v.RespiratoryRate, v.Temperature, v.GCS}
}

// deviation measures how far a reading sits outside its normal band,
// normalized to [0,1].
func (b vitalBand) deviation(value float64) float64 {
	var dist float64
	switch {
	case value < b.low:
		dist = b.low - value
	case value > b.high:
		dist = value - b.high
	default:
		return 0
	}
	return math.Min(1, dist/b.scale)
}

// Score computes the composite risk score in [0,100] from one sample,
// together with the contributing factors (vitals deviating by more than 0.5).
// Missing vitals are skipped; the remaining weights are renormalized so a
// sparse sample with an alarming reading still scores high. A sample with no
// vitals scores 0.
func Score(v *hospital.VitalSigns) (score float64, factors []string) {
	values := vitalValues(v)

	var weighted, weightSum float64
	for i, b := range vitalBands {
		if values[i] == nil {
			continue
		}
		dev := b.deviation(*values[i])
		weighted += b.weight * dev
		weightSum += b.weight
		if dev > 0.5 {
			factors = append(factors, b.label)
		}
	}
	if weightSum == 0 {
		return 0, nil
	}
	return 100 * weighted / weightSum, factors
}

// NextTrajectory derives the trend from the previous score (nil when no prior
// assessment exists) and the new one. A jump of 20 points or a score at the
// critical-risk threshold is critical regardless of direction history.
func NextTrajectory(prev *float64, score, criticalThreshold float64) hospital.Trajectory {
	if score >= criticalThreshold {
		return hospital.TrajectoryCritical
	}
	if prev == nil {
		return hospital.TrajectoryStable
	}
	delta := score - *prev
	switch {
	case delta >= 20:
		return hospital.TrajectoryCritical
	case delta >= 10:
		return hospital.TrajectoryDeteriorating
	case delta <= -10:
		return hospital.TrajectoryImproving
	default:
		return hospital.TrajectoryStable
	}
}

// firstAssessmentConfidenceCap bounds confidence when no history backs the
// score.
const firstAssessmentConfidenceCap = 0.85

// Confidence is the fraction of expected vitals present, capped for a first
// assessment.
func Confidence(v *hospital.VitalSigns, first bool) float64 {
	c := float64(v.PresentCount()) / hospital.ExpectedVitalCount
	if first && c > firstAssessmentConfidenceCap {
		c = firstAssessmentConfidenceCap
	}
	return c
}
