// Package mcda implements multi-criteria decision analysis over candidate
// placements. All functions are pure: they take a patient's current
// assessment plus a capacity view and return scored, ranked candidates.
// Identical inputs always produce identical output, including order.
package mcda

import (
	"math"
	"sort"

	"github.com/adaptivecare/pulse/internal/config"
	"github.com/adaptivecare/pulse/pkg/hospital"
)

// PatientInput is the slice of patient state the engine scores against.
type PatientInput struct {
	PatientID      string
	RiskScore      float64 // 0-100
	Trajectory     hospital.Trajectory
	CriticalVitals bool
	WaitMinutes    int
	AcuityLevel    int // 1 (most severe) to 5
}

// Engine scores and ranks candidate units for a patient.
type Engine struct {
	weights           config.Weights
	escalateThreshold float64
}

// New creates an engine with the given criteria weights and the escalation
// threshold used for confidence clarity.
func New(weights config.Weights, escalateThreshold float64) *Engine {
	return &Engine{weights: weights, escalateThreshold: escalateThreshold}
}

var trajectoryWeight = map[hospital.Trajectory]float64{
	hospital.TrajectoryCritical:      1.0,
	hospital.TrajectoryDeteriorating: 0.75,
	hospital.TrajectoryStable:        0.4,
	hospital.TrajectoryImproving:     0.15,
}

// Safety scores how strongly the patient's condition argues for placement.
func Safety(riskScore float64, trajectory hospital.Trajectory, criticalVitals bool) float64 {
	s := clamp01(0.7*riskScore/100 + 0.3*trajectoryWeight[trajectory])
	if criticalVitals {
		s = clamp01(s + 0.1)
	}
	return s
}

// waitThresholdMinutes is the acceptable wait per acuity level (1..5).
var waitThresholdMinutes = map[int]float64{1: 5, 2: 15, 3: 30, 4: 60, 5: 120}

// waitScore grows along a sigmoid centered on the acuity's acceptable wait,
// reaching 0.5 at the threshold and saturating by three times it.
func waitScore(waitMinutes, acuityLevel int) float64 {
	threshold, ok := waitThresholdMinutes[acuityLevel]
	if !ok {
		threshold = waitThresholdMinutes[3]
	}
	w := float64(waitMinutes)
	if w >= 3*threshold {
		return 1.0
	}
	return 1.0 / (1.0 + math.Exp(-(w-threshold)*4/threshold))
}

// Urgency scores how time-pressured the placement is.
func Urgency(waitMinutes, acuityLevel int) float64 {
	acuityScore := float64(5-acuityLevel) / 4
	return clamp01(0.6*waitScore(waitMinutes, acuityLevel) + 0.4*acuityScore)
}

// CapacityFit scores how comfortably the unit can absorb one more patient.
// A unit with no available beds is hard-excluded (ok = false).
func CapacityFit(u *hospital.UnitAssessment) (score float64, ok bool) {
	if u.AvailableBeds <= 0 || u.TotalBeds <= 0 {
		return 0, false
	}
	bedRatio := float64(u.AvailableBeds) / float64(u.TotalBeds)
	return clamp01(0.7*bedRatio + 0.3*staffHeadroom(u)), true
}

// ResourceImpact is the strain penalty of admitting one more patient:
// higher means worse. It enters the weighted total as (1 - penalty).
func ResourceImpact(u *hospital.UnitAssessment) float64 {
	occupiedAfter := u.TotalBeds - u.AvailableBeds + 1
	occupancyAfter := 1.0
	if u.TotalBeds > 0 && occupiedAfter < u.TotalBeds {
		occupancyAfter = float64(occupiedAfter) / float64(u.TotalBeds)
	}
	return clamp01(0.6*occupancyAfter + 0.4*(1-staffHeadroom(u)))
}

// staffHeadroom is staff per occupied bed after admission, capped at 1.
func staffHeadroom(u *hospital.UnitAssessment) float64 {
	occupiedAfter := u.TotalBeds - u.AvailableBeds + 1
	if occupiedAfter <= 0 {
		return 1
	}
	return math.Min(1, float64(u.AvailableStaff)/float64(occupiedAfter))
}

// ScoreUnit computes the full score set for one (patient, unit) pair.
// ok is false when the unit is hard-excluded (no free beds).
func (e *Engine) ScoreUnit(p PatientInput, u *hospital.UnitAssessment) (hospital.MCDAScoreSet, bool) {
	fit, ok := CapacityFit(u)
	if !ok {
		return hospital.MCDAScoreSet{}, false
	}

	safety := Safety(p.RiskScore, p.Trajectory, p.CriticalVitals)
	urgency := Urgency(p.WaitMinutes, p.AcuityLevel)
	impact := ResourceImpact(u)

	total := e.weights.Safety*safety +
		e.weights.Urgency*urgency +
		e.weights.Capacity*fit +
		e.weights.Resource*(1-impact)

	return hospital.MCDAScoreSet{
		PatientID:      p.PatientID,
		UnitID:         u.UnitID,
		UnitType:       u.Type,
		Safety:         safety,
		Urgency:        urgency,
		CapacityFit:    fit,
		ResourceImpact: impact,
		WeightedTotal:  total,
	}, true
}

// Rank scores every candidate unit and returns them best first. Full units
// are excluded; an empty result is the valid no-viable-placement state.
//
// Ordering: descending weighted total; ties break on higher capacity fit,
// then lower resource impact, then lexicographic unit ID.
func (e *Engine) Rank(p PatientInput, units []*hospital.UnitAssessment) []hospital.MCDAScoreSet {
	scored := make([]hospital.MCDAScoreSet, 0, len(units))
	for _, u := range units {
		if s, ok := e.ScoreUnit(p, u); ok {
			scored = append(scored, s)
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.WeightedTotal != b.WeightedTotal {
			return a.WeightedTotal > b.WeightedTotal
		}
		if a.CapacityFit != b.CapacityFit {
			return a.CapacityFit > b.CapacityFit
		}
		if a.ResourceImpact != b.ResourceImpact {
			return a.ResourceImpact < b.ResourceImpact
		}
		return a.UnitID < b.UnitID
	})
	return scored
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
