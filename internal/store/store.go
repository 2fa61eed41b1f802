// Package store is the authoritative in-memory view of patients and units.
//
// The store is the only mutable state shared between agents. Each entity
// class has its own lock, so a unit update never blocks a concurrent patient
// read. Every read returns a deep copy: a caller's in-flight computation is
// never perturbed by a concurrent writer.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/adaptivecare/pulse/pkg/hospital"
)

var (
	// ErrCapacityViolation rejects a unit delta that would push available
	// beds outside [0, total] or staff below zero. The unit is unchanged.
	ErrCapacityViolation = errors.New("capacity violation")

	// ErrPatientNotFound is returned for lookups of unknown patients.
	ErrPatientNotFound = errors.New("patient not found")

	// ErrUnitNotFound is returned for lookups of unknown units.
	ErrUnitNotFound = errors.New("unit not found")

	// ErrCorrupted reports an invariant violated despite the guards. This is
	// the one process-fatal condition: decision emission must halt.
	ErrCorrupted = errors.New("state store corrupted")
)

// IsNotFound reports whether err is a patient or unit lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPatientNotFound) || errors.Is(err, ErrUnitNotFound)
}

// IsCapacityViolation reports whether err is a rejected unit delta.
func IsCapacityViolation(err error) bool {
	return errors.Is(err, ErrCapacityViolation)
}

// Store holds the patient and unit registries.
type Store struct {
	patientsMu sync.RWMutex
	patients   map[string]*hospital.Patient

	unitsMu sync.RWMutex
	units   map[string]*hospital.Unit
}

// New creates an empty store.
func New() *Store {
	return &Store{
		patients: make(map[string]*hospital.Patient),
		units:    make(map[string]*hospital.Unit),
	}
}

// RegisterUnit adds a unit to the registry. Called at startup from config;
// re-registering an existing ID replaces it.
func (s *Store) RegisterUnit(u *hospital.Unit) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("invalid unit: %w", err)
	}
	s.unitsMu.Lock()
	defer s.unitsMu.Unlock()
	s.units[u.ID] = u.Clone()
	return nil
}

// GetUnit returns a copy of the unit.
func (s *Store) GetUnit(id string) (*hospital.Unit, error) {
	s.unitsMu.RLock()
	defer s.unitsMu.RUnlock()
	u, ok := s.units[id]
	if !ok {
		return nil, fmt.Errorf("unit %q: %w", id, ErrUnitNotFound)
	}
	return u.Clone(), nil
}

// ListUnits returns copies of all units, ordered by ID for deterministic
// downstream computation.
func (s *Store) ListUnits() []*hospital.Unit {
	s.unitsMu.RLock()
	defer s.unitsMu.RUnlock()
	out := make([]*hospital.Unit, 0, len(s.units))
	for _, u := range s.units {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ApplyUnitDelta is the sole unit mutation primitive. The check and the set
// happen under one critical section, so concurrent admissions and discharges
// can never drive available beds outside [0, total]. A delta that would
// violate the invariant returns ErrCapacityViolation and leaves the unit
// untouched.
func (s *Store) ApplyUnitDelta(id string, bedDelta, staffDelta int) (*hospital.Unit, error) {
	s.unitsMu.Lock()
	defer s.unitsMu.Unlock()

	u, ok := s.units[id]
	if !ok {
		return nil, fmt.Errorf("unit %q: %w", id, ErrUnitNotFound)
	}

	newBeds := u.AvailableBeds + bedDelta
	newStaff := u.AvailableStaff + staffDelta
	if newBeds < 0 || newBeds > u.TotalBeds {
		return nil, fmt.Errorf("unit %q: beds %d%+d outside [0, %d]: %w",
			id, u.AvailableBeds, bedDelta, u.TotalBeds, ErrCapacityViolation)
	}
	if newStaff < 0 {
		return nil, fmt.Errorf("unit %q: staff %d%+d below zero: %w",
			id, u.AvailableStaff, staffDelta, ErrCapacityViolation)
	}

	u.AvailableBeds = newBeds
	u.AvailableStaff = newStaff
	return u.Clone(), nil
}

// AdjustPendingDischarges moves the pending-discharge counter, clamped at
// zero.
func (s *Store) AdjustPendingDischarges(id string, delta int) error {
	s.unitsMu.Lock()
	defer s.unitsMu.Unlock()
	u, ok := s.units[id]
	if !ok {
		return fmt.Errorf("unit %q: %w", id, ErrUnitNotFound)
	}
	u.PendingDischarges += delta
	if u.PendingDischarges < 0 {
		u.PendingDischarges = 0
	}
	return nil
}

// UpsertPatient inserts or replaces a patient record.
func (s *Store) UpsertPatient(p *hospital.Patient) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid patient: %w", err)
	}
	s.patientsMu.Lock()
	defer s.patientsMu.Unlock()
	s.patients[p.ID] = p.Clone()
	return nil
}

// GetPatient returns a copy of the patient. Tombstoned patients remain
// visible here so in-flight computations can tag their output instead of
// failing.
func (s *Store) GetPatient(id string) (*hospital.Patient, error) {
	s.patientsMu.RLock()
	defer s.patientsMu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, fmt.Errorf("patient %q: %w", id, ErrPatientNotFound)
	}
	return p.Clone(), nil
}

// ListPatients returns copies of all active (non-tombstoned) patients,
// ordered by ID.
func (s *Store) ListPatients() []*hospital.Patient {
	s.patientsMu.RLock()
	defer s.patientsMu.RUnlock()
	out := make([]*hospital.Patient, 0, len(s.patients))
	for _, p := range s.patients {
		if p.Tombstoned {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AppendVitals appends a sample to the patient's history and returns the
// updated record.
func (s *Store) AppendVitals(id string, v hospital.VitalSigns, nowMs int64) (*hospital.Patient, error) {
	s.patientsMu.Lock()
	defer s.patientsMu.Unlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, fmt.Errorf("patient %q: %w", id, ErrPatientNotFound)
	}
	p.Vitals = append(p.Vitals, v)
	p.LastUpdatedMs = nowMs
	return p.Clone(), nil
}

// SetRisk writes the risk agent's score and trajectory onto the patient.
// The risk agent is the single writer of these fields.
func (s *Store) SetRisk(id string, score float64, trajectory hospital.Trajectory, nowMs int64) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("risk score %.1f outside [0, 100]", score)
	}
	if err := trajectory.Validate(); err != nil {
		return err
	}
	s.patientsMu.Lock()
	defer s.patientsMu.Unlock()
	p, ok := s.patients[id]
	if !ok {
		return fmt.Errorf("patient %q: %w", id, ErrPatientNotFound)
	}
	p.RiskScore = score
	p.Trajectory = trajectory
	p.LastUpdatedMs = nowMs
	return nil
}

// SetLocation moves the patient to a unit.
func (s *Store) SetLocation(id, unitID string, unitType hospital.UnitType, nowMs int64) error {
	s.patientsMu.Lock()
	defer s.patientsMu.Unlock()
	p, ok := s.patients[id]
	if !ok {
		return fmt.Errorf("patient %q: %w", id, ErrPatientNotFound)
	}
	p.UnitID = unitID
	p.UnitType = unitType
	p.LastUpdatedMs = nowMs
	return nil
}

// Tombstone logically removes a patient on discharge or transfer-out. The
// record is retained so decision history stays resolvable. Returns the
// record as it stood, or ErrPatientNotFound.
func (s *Store) Tombstone(id string, nowMs int64) (*hospital.Patient, error) {
	s.patientsMu.Lock()
	defer s.patientsMu.Unlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, fmt.Errorf("patient %q: %w", id, ErrPatientNotFound)
	}
	p.Tombstoned = true
	p.LastUpdatedMs = nowMs
	return p.Clone(), nil
}

// Check audits every stored entity against its invariants. A non-nil result
// wraps ErrCorrupted and means the guards failed: decision emission must
// halt and the condition surfaced loudly.
func (s *Store) Check() error {
	s.unitsMu.RLock()
	for id, u := range s.units {
		if u.AvailableBeds < 0 || u.AvailableBeds > u.TotalBeds {
			s.unitsMu.RUnlock()
			return fmt.Errorf("unit %q has %d/%d available beds: %w",
				id, u.AvailableBeds, u.TotalBeds, ErrCorrupted)
		}
	}
	s.unitsMu.RUnlock()

	s.patientsMu.RLock()
	defer s.patientsMu.RUnlock()
	for id, p := range s.patients {
		if p.RiskScore < 0 || p.RiskScore > 100 {
			return fmt.Errorf("patient %q has risk score %.1f: %w", id, p.RiskScore, ErrCorrupted)
		}
	}
	return nil
}
