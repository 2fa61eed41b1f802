package store

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaptivecare/pulse/pkg/hospital"
)

func testUnit() *hospital.Unit {
	return &hospital.Unit{
		ID: "icu-1", Name: "Intensive Care", Type: hospital.UnitTypeICU,
		TotalBeds: 10, AvailableBeds: 5, AvailableStaff: 6,
	}
}

func testPatient(id string) *hospital.Patient {
	return &hospital.Patient{
		ID: id, Name: "Test Patient", Age: 60, AcuityLevel: 3,
		UnitID: "icu-1", UnitType: hospital.UnitTypeICU,
	}
}

func TestRegisterAndGetUnit(t *testing.T) {
	s := New()
	require.NoError(t, s.RegisterUnit(testUnit()))

	u, err := s.GetUnit("icu-1")
	require.NoError(t, err)
	assert.Equal(t, 5, u.AvailableBeds)

	_, err = s.GetUnit("missing")
	assert.True(t, IsNotFound(err))

	assert.Error(t, s.RegisterUnit(&hospital.Unit{ID: ""}))
}

func TestGetUnit_ReturnsCopy(t *testing.T) {
	s := New()
	require.NoError(t, s.RegisterUnit(testUnit()))

	u, err := s.GetUnit("icu-1")
	require.NoError(t, err)
	u.AvailableBeds = 0

	again, err := s.GetUnit("icu-1")
	require.NoError(t, err)
	assert.Equal(t, 5, again.AvailableBeds)
}

func TestListUnits_SortedByID(t *testing.T) {
	s := New()
	for _, id := range []string{"ward-1", "ed-1", "icu-1"} {
		u := testUnit()
		u.ID = id
		require.NoError(t, s.RegisterUnit(u))
	}
	units := s.ListUnits()
	require.Len(t, units, 3)
	assert.Equal(t, "ed-1", units[0].ID)
	assert.Equal(t, "icu-1", units[1].ID)
	assert.Equal(t, "ward-1", units[2].ID)
}

func TestApplyUnitDelta_RejectsViolations(t *testing.T) {
	s := New()
	require.NoError(t, s.RegisterUnit(testUnit()))

	_, err := s.ApplyUnitDelta("icu-1", -6, 0)
	assert.True(t, IsCapacityViolation(err))

	_, err = s.ApplyUnitDelta("icu-1", 6, 0)
	assert.True(t, IsCapacityViolation(err))

	_, err = s.ApplyUnitDelta("icu-1", 0, -7)
	assert.True(t, IsCapacityViolation(err))

	// No partial update on rejection.
	u, err := s.GetUnit("icu-1")
	require.NoError(t, err)
	assert.Equal(t, 5, u.AvailableBeds)
	assert.Equal(t, 6, u.AvailableStaff)

	_, err = s.ApplyUnitDelta("missing", -1, 0)
	assert.True(t, IsNotFound(err))
}

func TestApplyUnitDelta_ConcurrentNeverViolatesInvariant(t *testing.T) {
	s := New()
	require.NoError(t, s.RegisterUnit(testUnit()))

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 500; i++ {
				bedDelta := rng.Intn(7) - 3
				staffDelta := rng.Intn(5) - 2
				s.ApplyUnitDelta("icu-1", bedDelta, staffDelta)
			}
		}(int64(w))
	}
	wg.Wait()

	u, err := s.GetUnit("icu-1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, u.AvailableBeds, 0)
	assert.LessOrEqual(t, u.AvailableBeds, u.TotalBeds)
	assert.GreaterOrEqual(t, u.AvailableStaff, 0)
	assert.NoError(t, s.Check())
}

func TestAdjustPendingDischarges_ClampsAtZero(t *testing.T) {
	s := New()
	require.NoError(t, s.RegisterUnit(testUnit()))

	require.NoError(t, s.AdjustPendingDischarges("icu-1", 3))
	require.NoError(t, s.AdjustPendingDischarges("icu-1", -5))

	u, err := s.GetUnit("icu-1")
	require.NoError(t, err)
	assert.Zero(t, u.PendingDischarges)
}

func TestPatientLifecycle(t *testing.T) {
	s := New()
	require.NoError(t, s.UpsertPatient(testPatient("patient-1")))

	p, err := s.GetPatient("patient-1")
	require.NoError(t, err)
	assert.Equal(t, "patient-1", p.ID)

	_, err = s.AppendVitals("patient-1", hospital.VitalSigns{HeartRate: hospital.Float(90)}, 10)
	require.NoError(t, err)

	require.NoError(t, s.SetRisk("patient-1", 72.5, hospital.TrajectoryDeteriorating, 20))
	require.NoError(t, s.SetLocation("patient-1", "ward-1", hospital.UnitTypeWard, 30))

	p, err = s.GetPatient("patient-1")
	require.NoError(t, err)
	assert.Len(t, p.Vitals, 1)
	assert.Equal(t, 72.5, p.RiskScore)
	assert.Equal(t, hospital.TrajectoryDeteriorating, p.Trajectory)
	assert.Equal(t, "ward-1", p.UnitID)
	assert.Equal(t, int64(30), p.LastUpdatedMs)

	_, err = s.GetPatient("missing")
	assert.True(t, IsNotFound(err))
}

func TestSetRisk_ValidatesInputs(t *testing.T) {
	s := New()
	require.NoError(t, s.UpsertPatient(testPatient("patient-1")))

	assert.Error(t, s.SetRisk("patient-1", 101, hospital.TrajectoryStable, 1))
	assert.Error(t, s.SetRisk("patient-1", 50, "sideways", 1))
	assert.True(t, IsNotFound(s.SetRisk("missing", 50, hospital.TrajectoryStable, 1)))
}

func TestTombstone_HiddenFromListVisibleToGet(t *testing.T) {
	s := New()
	require.NoError(t, s.UpsertPatient(testPatient("patient-1")))
	require.NoError(t, s.UpsertPatient(testPatient("patient-2")))

	p, err := s.Tombstone("patient-1", 99)
	require.NoError(t, err)
	assert.True(t, p.Tombstoned)

	list := s.ListPatients()
	require.Len(t, list, 1)
	assert.Equal(t, "patient-2", list[0].ID)

	got, err := s.GetPatient("patient-1")
	require.NoError(t, err)
	assert.True(t, got.Tombstoned)

	_, err = s.Tombstone("missing", 99)
	assert.True(t, IsNotFound(err))
}

func TestGetPatient_ReturnsCopy(t *testing.T) {
	s := New()
	require.NoError(t, s.UpsertPatient(testPatient("patient-1")))

	p, err := s.GetPatient("patient-1")
	require.NoError(t, err)
	p.RiskScore = 99
	p.Vitals = append(p.Vitals, hospital.VitalSigns{})

	again, err := s.GetPatient("patient-1")
	require.NoError(t, err)
	assert.Zero(t, again.RiskScore)
	assert.Empty(t, again.Vitals)
}

func TestCheck_CleanStore(t *testing.T) {
	s := New()
	require.NoError(t, s.RegisterUnit(testUnit()))
	require.NoError(t, s.UpsertPatient(testPatient("patient-1")))
	assert.NoError(t, s.Check())
}
