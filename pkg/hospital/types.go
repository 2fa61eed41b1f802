package hospital

import (
	"fmt"

	"github.com/google/uuid"
)

// UnitType classifies a hospital unit by the level of care it provides.
type UnitType string

const (
	UnitTypeICU  UnitType = "icu"
	UnitTypeED   UnitType = "ed"
	UnitTypeWard UnitType = "ward"
)

// Validate checks if the UnitType is a known value.
func (ut UnitType) Validate() error {
	switch ut {
	case UnitTypeICU, UnitTypeED, UnitTypeWard:
		return nil
	default:
		return fmt.Errorf("unknown unit type: %q", ut)
	}
}

// Trajectory is the direction of a patient's risk trend.
type Trajectory string

const (
	TrajectoryImproving     Trajectory = "improving"
	TrajectoryStable        Trajectory = "stable"
	TrajectoryDeteriorating Trajectory = "deteriorating"
	TrajectoryCritical      Trajectory = "critical"
)

// Validate checks if the Trajectory is a known value.
func (t Trajectory) Validate() error {
	switch t {
	case TrajectoryImproving, TrajectoryStable, TrajectoryDeteriorating, TrajectoryCritical:
		return nil
	default:
		return fmt.Errorf("unknown trajectory: %q", t)
	}
}

// Action is the outcome of one decision cycle.
type Action string

const (
	ActionEscalate Action = "escalate"
	ActionObserve  Action = "observe"
	ActionDelay    Action = "delay"
	ActionTransfer Action = "transfer"
	ActionAdmit    Action = "admit"
)

// Validate checks if the Action is a known value.
func (a Action) Validate() error {
	switch a {
	case ActionEscalate, ActionObserve, ActionDelay, ActionTransfer, ActionAdmit:
		return nil
	default:
		return fmt.Errorf("unknown action: %q", a)
	}
}

// Patient is the authoritative record of a patient known to the system.
// Owned exclusively by the state store; the risk agent mutates the risk
// fields through the store, state-transition events mutate location.
// Discharged patients are tombstoned, never deleted, so decision history
// stays resolvable.
type Patient struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Age        int    `json:"age"`
	AcuityLevel int   `json:"acuity_level"` // 1 (most severe) to 5

	// UnitID is the unit the patient currently occupies; empty while the
	// patient is waiting for first placement.
	UnitID      string   `json:"unit_id"`
	UnitType    UnitType `json:"unit_type"`
	ArrivedAtMs int64    `json:"arrived_at_ms"`

	// Vitals is the ordered history of samples, oldest first.
	Vitals []VitalSigns `json:"vitals"`

	RiskScore  float64    `json:"risk_score"` // 0-100, written by the risk agent
	Trajectory Trajectory `json:"trajectory"`

	Tombstoned    bool  `json:"tombstoned"`
	LastUpdatedMs int64 `json:"last_updated_ms"`
}

// Validate checks if the Patient has valid field values.
func (p *Patient) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("patient ID cannot be empty")
	}
	if p.AcuityLevel < 1 || p.AcuityLevel > 5 {
		return fmt.Errorf("invalid acuity level: must be 1-5, got %d", p.AcuityLevel)
	}
	if p.RiskScore < 0 || p.RiskScore > 100 {
		return fmt.Errorf("invalid risk score: must be 0-100, got %.1f", p.RiskScore)
	}
	if p.Trajectory != "" {
		if err := p.Trajectory.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// WaitMinutes returns how long the patient has been waiting, relative to now.
func (p *Patient) WaitMinutes(nowMs int64) int {
	if p.ArrivedAtMs == 0 || nowMs <= p.ArrivedAtMs {
		return 0
	}
	return int((nowMs - p.ArrivedAtMs) / 60000)
}

// LatestVitals returns the most recent sample, or nil if none recorded.
func (p *Patient) LatestVitals() *VitalSigns {
	if len(p.Vitals) == 0 {
		return nil
	}
	return &p.Vitals[len(p.Vitals)-1]
}

// Clone returns a deep copy. Store reads hand out clones so a caller's
// in-flight computation is never perturbed by a concurrent writer.
func (p *Patient) Clone() *Patient {
	cp := *p
	cp.Vitals = make([]VitalSigns, len(p.Vitals))
	copy(cp.Vitals, p.Vitals)
	return &cp
}

// Unit is the authoritative record of a hospital unit. Mutated only through
// the state store's delta primitive.
// Invariant: 0 <= AvailableBeds <= TotalBeds at all times.
type Unit struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Type              UnitType `json:"type"`
	TotalBeds         int      `json:"total_beds"`
	AvailableBeds     int      `json:"available_beds"`
	AvailableStaff    int      `json:"available_staff"`
	PendingDischarges int      `json:"pending_discharges"`
}

// Validate checks if the Unit has valid field values, including the bed
// invariant.
func (u *Unit) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("unit ID cannot be empty")
	}
	if err := u.Type.Validate(); err != nil {
		return err
	}
	if u.TotalBeds < 0 {
		return fmt.Errorf("invalid total beds: %d", u.TotalBeds)
	}
	if u.AvailableBeds < 0 || u.AvailableBeds > u.TotalBeds {
		return fmt.Errorf("available beds %d outside [0, %d]", u.AvailableBeds, u.TotalBeds)
	}
	if u.AvailableStaff < 0 {
		return fmt.Errorf("invalid available staff: %d", u.AvailableStaff)
	}
	if u.PendingDischarges < 0 {
		return fmt.Errorf("invalid pending discharges: %d", u.PendingDischarges)
	}
	return nil
}

// OccupiedBeds returns the number of beds currently in use.
func (u *Unit) OccupiedBeds() int {
	return u.TotalBeds - u.AvailableBeds
}

// OccupancyRate returns occupancy as a fraction in [0,1].
func (u *Unit) OccupancyRate() float64 {
	if u.TotalBeds == 0 {
		return 0
	}
	return float64(u.OccupiedBeds()) / float64(u.TotalBeds)
}

// Clone returns a copy of the unit.
func (u *Unit) Clone() *Unit {
	cp := *u
	return &cp
}

// RiskAssessment is the risk agent's output for one patient. Exactly one
// current assessment exists per patient; a newer one supersedes it entirely.
type RiskAssessment struct {
	PatientID      string     `json:"patient_id"`
	Score          float64    `json:"score"` // 0-100
	Trajectory     Trajectory `json:"trajectory"`
	Confidence     float64    `json:"confidence"` // 0-1
	Factors        []string   `json:"factors"`
	CriticalVitals bool       `json:"critical_vitals"`
	First          bool       `json:"first"` // no prior assessment existed
	CreatedAtMs    int64      `json:"created_at_ms"`
}

// Validate checks if the RiskAssessment has valid field values.
func (r *RiskAssessment) Validate() error {
	if r.PatientID == "" {
		return fmt.Errorf("risk assessment patient ID cannot be empty")
	}
	if r.Score < 0 || r.Score > 100 {
		return fmt.Errorf("invalid risk score: %.1f", r.Score)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("invalid confidence: %.2f", r.Confidence)
	}
	return r.Trajectory.Validate()
}

// UnitAssessment is the capacity agent's per-unit view inside a snapshot.
type UnitAssessment struct {
	UnitID             string   `json:"unit_id"`
	Type               UnitType `json:"type"`
	TotalBeds          int      `json:"total_beds"`
	AvailableBeds      int      `json:"available_beds"`
	AvailableStaff     int      `json:"available_staff"`
	PendingDischarges  int      `json:"pending_discharges"`
	OccupancyRate      float64  `json:"occupancy_rate"`
	PredictedAvailable int      `json:"predicted_available"`
}

// CapacitySnapshot is a point-in-time view of hospital capacity. Each
// recomputation supersedes the previous snapshot wholesale; snapshots are
// never merged.
type CapacitySnapshot struct {
	CreatedAtMs         int64            `json:"created_at_ms"`
	Units               []UnitAssessment `json:"units"`
	TotalBeds           int              `json:"total_beds"`
	TotalAvailable      int              `json:"total_available"`
	OverallOccupancy    float64          `json:"overall_occupancy"`
	PredictedDischarges int              `json:"predicted_discharges"`
	PredictedAdmissions int              `json:"predicted_admissions"`
}

// Unit returns the assessment for a unit ID, or nil if absent.
func (s *CapacitySnapshot) Unit(unitID string) *UnitAssessment {
	for i := range s.Units {
		if s.Units[i].UnitID == unitID {
			return &s.Units[i]
		}
	}
	return nil
}

// MCDAScoreSet holds the four normalized sub-scores and the weighted total
// for one (patient, candidate unit) pair. Produced and consumed within a
// single decision cycle.
//
// ResourceImpact is a strain penalty: higher means the move strains the unit
// more. It enters WeightedTotal as (1 - ResourceImpact).
type MCDAScoreSet struct {
	PatientID      string   `json:"patient_id"`
	UnitID         string   `json:"unit_id"`
	UnitType       UnitType `json:"unit_type"`
	Safety         float64  `json:"safety"`
	Urgency        float64  `json:"urgency"`
	CapacityFit    float64  `json:"capacity_fit"`
	ResourceImpact float64  `json:"resource_impact"`
	WeightedTotal  float64  `json:"weighted_total"`
}

// Recommendation is the flow agent's ranked output for one patient.
// An empty Candidates list is the valid "no viable placement" state.
type Recommendation struct {
	PatientID   string         `json:"patient_id"`
	RiskScore   float64        `json:"risk_score"`
	Trajectory  Trajectory     `json:"trajectory"`
	Candidates  []MCDAScoreSet `json:"candidates"` // ranked, best first
	Confidence  float64        `json:"confidence"`
	CreatedAtMs int64          `json:"created_at_ms"`
}

// NoViablePlacement reports whether no candidate unit could accept the
// patient.
func (r *Recommendation) NoViablePlacement() bool {
	return len(r.Candidates) == 0
}

// Top returns the best-ranked candidate, or nil for an empty recommendation.
func (r *Recommendation) Top() *MCDAScoreSet {
	if len(r.Candidates) == 0 {
		return nil
	}
	return &r.Candidates[0]
}

// Decision is the immutable, append-only output of record for one decision
// cycle. Never mutated after emission.
type Decision struct {
	ID           string        `json:"id"`
	PatientID    string        `json:"patient_id"`
	Action       Action        `json:"action"`
	TargetUnitID string        `json:"target_unit_id,omitempty"`
	Confidence   float64       `json:"confidence"`
	Reasoning    string        `json:"reasoning"`
	Scores       *MCDAScoreSet `json:"scores,omitempty"` // top candidate, if any

	// Stale marks a decision whose patient was tombstoned while the cycle
	// was in flight. The decision is emitted for auditability but must not
	// be applied as a placement.
	Stale bool `json:"stale,omitempty"`

	CreatedAtMs int64 `json:"created_at_ms"`
}

// Validate checks if the Decision has valid field values.
func (d *Decision) Validate() error {
	if !isValidUUID(d.ID) {
		return fmt.Errorf("invalid decision ID: not a valid UUID")
	}
	if d.PatientID == "" {
		return fmt.Errorf("decision patient ID cannot be empty")
	}
	if err := d.Action.Validate(); err != nil {
		return err
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("invalid confidence: %.2f", d.Confidence)
	}
	return nil
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
