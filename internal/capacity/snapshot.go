// Package capacity tracks unit occupancy and staffing, and publishes
// point-in-time capacity snapshots with a deterministic short-horizon
// forecast.
package capacity

import (
	"github.com/adaptivecare/pulse/pkg/hospital"
)

// Forecast parameters. Predictions scale the current trend counters by
// horizon over trend window, floored; the functions are deterministic and
// monotonic in their inputs.
type Forecast struct {
	HorizonMinutes     int
	TrendWindowMinutes int
}

// scale projects a trend counter onto the horizon, integer floor.
func (f Forecast) scale(count int) int {
	if count <= 0 || f.TrendWindowMinutes <= 0 {
		return 0
	}
	return count * f.HorizonMinutes / f.TrendWindowMinutes
}

// BuildSnapshot computes a wholesale capacity view from the full current unit
// set. waitingPatients is the number of non-tombstoned patients awaiting
// placement; it feeds the admission forecast. Each snapshot supersedes the
// previous one entirely.
func BuildSnapshot(units []*hospital.Unit, waitingPatients int, f Forecast, nowMs int64) *hospital.CapacitySnapshot {
	snap := &hospital.CapacitySnapshot{
		CreatedAtMs: nowMs,
		Units:       make([]hospital.UnitAssessment, 0, len(units)),
	}

	pendingTotal := 0
	for _, u := range units {
		predicted := u.AvailableBeds + f.scale(u.PendingDischarges)
		if predicted > u.TotalBeds {
			predicted = u.TotalBeds
		}
		snap.Units = append(snap.Units, hospital.UnitAssessment{
			UnitID:             u.ID,
			Type:               u.Type,
			TotalBeds:          u.TotalBeds,
			AvailableBeds:      u.AvailableBeds,
			AvailableStaff:     u.AvailableStaff,
			PendingDischarges:  u.PendingDischarges,
			OccupancyRate:      u.OccupancyRate(),
			PredictedAvailable: predicted,
		})
		snap.TotalBeds += u.TotalBeds
		snap.TotalAvailable += u.AvailableBeds
		pendingTotal += u.PendingDischarges
	}

	if snap.TotalBeds > 0 {
		snap.OverallOccupancy = float64(snap.TotalBeds-snap.TotalAvailable) / float64(snap.TotalBeds)
	}
	snap.PredictedDischarges = f.scale(pendingTotal)
	snap.PredictedAdmissions = f.scale(waitingPatients)
	return snap
}
