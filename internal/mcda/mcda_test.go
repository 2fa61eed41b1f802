package mcda

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaptivecare/pulse/internal/config"
	"github.com/adaptivecare/pulse/pkg/hospital"
)

func testEngine() *Engine {
	cfg := config.Default()
	return New(cfg.Weights, cfg.Thresholds.Escalate)
}

func unitAssessment(id string, total, available, staff int) *hospital.UnitAssessment {
	return &hospital.UnitAssessment{
		UnitID:         id,
		Type:           hospital.UnitTypeICU,
		TotalBeds:      total,
		AvailableBeds:  available,
		AvailableStaff: staff,
	}
}

func TestSafety(t *testing.T) {
	tests := []struct {
		name           string
		risk           float64
		trajectory     hospital.Trajectory
		criticalVitals bool
		want           float64
	}{
		{"critical patient maxes out", 100, hospital.TrajectoryCritical, true, 1.0},
		{"stable mid-risk", 50, hospital.TrajectoryStable, false, 0.7*0.5 + 0.3*0.4},
		{"improving low-risk", 10, hospital.TrajectoryImproving, false, 0.7*0.1 + 0.3*0.15},
		{"critical vitals add bonus", 50, hospital.TrajectoryStable, true, 0.7*0.5 + 0.3*0.4 + 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Safety(tt.risk, tt.trajectory, tt.criticalVitals)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestUrgency_AcuityAndWait(t *testing.T) {
	// Acuity 1 with no wait still outscores acuity 5 with no wait.
	assert.Greater(t, Urgency(0, 1), Urgency(0, 5))

	// At exactly the acceptable wait the sigmoid sits at 0.5.
	assert.InDelta(t, 0.6*0.5+0.4*1.0, Urgency(5, 1), 1e-9)

	// Far past the threshold the wait component saturates.
	assert.InDelta(t, 0.6*1.0+0.4*1.0, Urgency(60, 1), 1e-9)

	// Urgency never decreases as the wait grows.
	prev := -1.0
	for wait := 0; wait <= 400; wait += 10 {
		u := Urgency(wait, 3)
		assert.GreaterOrEqual(t, u, prev, "wait %d", wait)
		prev = u
	}
}

func TestCapacityFit_HardExcludesFullUnits(t *testing.T) {
	_, ok := CapacityFit(unitAssessment("icu-1", 10, 0, 5))
	assert.False(t, ok)

	fit, ok := CapacityFit(unitAssessment("icu-1", 10, 10, 20))
	require.True(t, ok)
	assert.InDelta(t, 1.0, fit, 1e-9)

	// Fewer beds and thin staffing score lower.
	tight, ok := CapacityFit(unitAssessment("icu-2", 10, 1, 1))
	require.True(t, ok)
	assert.Less(t, tight, fit)
}

func TestResourceImpact_StrainedUnitScoresHigher(t *testing.T) {
	relaxed := ResourceImpact(unitAssessment("a", 10, 9, 20))
	strained := ResourceImpact(unitAssessment("b", 10, 1, 1))
	assert.Greater(t, strained, relaxed)
	assert.LessOrEqual(t, strained, 1.0)
	assert.GreaterOrEqual(t, relaxed, 0.0)
}

func highRiskInput() PatientInput {
	return PatientInput{
		PatientID:      "patient-1",
		RiskScore:      90,
		Trajectory:     hospital.TrajectoryDeteriorating,
		CriticalVitals: true,
		WaitMinutes:    45,
		AcuityLevel:    1,
	}
}

func TestRank_ExcludesFullAndOrdersByTotal(t *testing.T) {
	e := testEngine()
	units := []*hospital.UnitAssessment{
		unitAssessment("icu-full", 10, 0, 5),
		unitAssessment("icu-tight", 10, 1, 2),
		unitAssessment("icu-open", 10, 8, 12),
	}

	ranked := e.Rank(highRiskInput(), units)
	require.Len(t, ranked, 2)
	assert.Equal(t, "icu-open", ranked[0].UnitID)
	assert.Equal(t, "icu-tight", ranked[1].UnitID)
	assert.Greater(t, ranked[0].WeightedTotal, ranked[1].WeightedTotal)
}

func TestRank_TieBreaksOnUnitID(t *testing.T) {
	e := testEngine()
	// Identical units produce identical totals; order must be lexicographic.
	units := []*hospital.UnitAssessment{
		unitAssessment("icu-b", 10, 5, 8),
		unitAssessment("icu-a", 10, 5, 8),
	}

	ranked := e.Rank(highRiskInput(), units)
	require.Len(t, ranked, 2)
	assert.Equal(t, "icu-a", ranked[0].UnitID)
	assert.Equal(t, "icu-b", ranked[1].UnitID)
}

func TestRank_TieBreaksOnFitThenImpact(t *testing.T) {
	// A safety-only weighting gives every candidate the same weighted total,
	// so ordering falls entirely to the tie-break chain.
	e := New(config.Weights{Safety: 1}, 0.75)
	units := []*hospital.UnitAssessment{
		unitAssessment("icu-small", 10, 5, 9),
		unitAssessment("icu-tight", 10, 2, 12),
		unitAssessment("icu-large", 20, 10, 18),
	}

	ranked := e.Rank(highRiskInput(), units)
	require.Len(t, ranked, 3)
	assert.InDelta(t, ranked[0].WeightedTotal, ranked[1].WeightedTotal, 1e-9)
	assert.InDelta(t, ranked[1].WeightedTotal, ranked[2].WeightedTotal, 1e-9)

	// icu-small and icu-large share a 0.65 capacity fit, which beats
	// icu-tight; between them the larger unit's lower post-admission
	// occupancy gives the smaller resource impact.
	assert.Equal(t, "icu-large", ranked[0].UnitID)
	assert.Equal(t, "icu-small", ranked[1].UnitID)
	assert.Equal(t, "icu-tight", ranked[2].UnitID)

	assert.InDelta(t, ranked[0].CapacityFit, ranked[1].CapacityFit, 1e-9)
	assert.Less(t, ranked[0].ResourceImpact, ranked[1].ResourceImpact)
	assert.Greater(t, ranked[1].CapacityFit, ranked[2].CapacityFit)
}

func TestRank_Deterministic(t *testing.T) {
	e := testEngine()
	units := []*hospital.UnitAssessment{
		unitAssessment("ward-1", 20, 3, 4),
		unitAssessment("icu-1", 8, 2, 6),
		unitAssessment("ward-2", 20, 3, 4),
	}

	first := e.Rank(highRiskInput(), units)
	for i := 0; i < 10; i++ {
		again := e.Rank(highRiskInput(), units)
		assert.Equal(t, first, again)
	}
}

func TestRank_AllFullYieldsEmpty(t *testing.T) {
	e := testEngine()
	units := []*hospital.UnitAssessment{
		unitAssessment("icu-1", 10, 0, 5),
		unitAssessment("ward-1", 20, 0, 8),
	}
	assert.Empty(t, e.Rank(highRiskInput(), units))
}

func TestConfidence_EmptyCandidatesPassThrough(t *testing.T) {
	e := testEngine()
	assert.InDelta(t, 0.6, e.Confidence(0.6, nil), 1e-9)
	assert.InDelta(t, 1.0, e.Confidence(1.5, nil), 1e-9)
}

func TestConfidence_ClearResultScoresHigher(t *testing.T) {
	e := testEngine()

	// A top total far from the threshold with agreeing sub-scores.
	clear := []hospital.MCDAScoreSet{{
		Safety: 0.9, Urgency: 0.9, CapacityFit: 0.9, ResourceImpact: 0.1,
		WeightedTotal: 1.0,
	}}
	// A borderline total with disagreeing sub-scores.
	murky := []hospital.MCDAScoreSet{{
		Safety: 1.0, Urgency: 0.0, CapacityFit: 1.0, ResourceImpact: 1.0,
		WeightedTotal: 0.75,
	}}

	assert.Greater(t, e.Confidence(0.8, clear), e.Confidence(0.8, murky))
}

func TestConfidence_Bounds(t *testing.T) {
	e := testEngine()
	candidates := []hospital.MCDAScoreSet{{
		Safety: 0.5, Urgency: 0.5, CapacityFit: 0.5, ResourceImpact: 0.5,
		WeightedTotal: 0.5,
	}}
	for _, ac := range []float64{0, 0.25, 0.5, 0.75, 1} {
		c := e.Confidence(ac, candidates)
		assert.GreaterOrEqual(t, c, 0.0)
		assert.LessOrEqual(t, c, 1.0)
	}
}
