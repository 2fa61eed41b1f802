package hospital

import (
	"errors"
	"fmt"
)

// EventType tags an inbound event from collaborators (simulator, transport
// layer, integrations).
type EventType string

const (
	EventArrival   EventType = "arrival"
	EventVitals    EventType = "vitals"
	EventLabResult EventType = "lab_result"
	EventDischarge EventType = "discharge"
	EventTransfer  EventType = "transfer"
	EventStaffing  EventType = "staffing"
)

// Validate checks if the EventType is a known value.
func (et EventType) Validate() error {
	switch et {
	case EventArrival, EventVitals, EventLabResult, EventDischarge, EventTransfer, EventStaffing:
		return nil
	default:
		return fmt.Errorf("unknown event type: %q", et)
	}
}

// ValidationError marks a malformed inbound event payload. Per the error
// policy such events are logged and dropped; the pipeline continues.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid event: " + e.Reason
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func validationf(format string, a ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, a...)}
}

// Arrival describes a newly arriving patient.
type Arrival struct {
	Name        string `json:"name" yaml:"name"`
	Age         int    `json:"age" yaml:"age"`
	AcuityLevel int    `json:"acuity_level" yaml:"acuity_level"`
	// UnitID is the unit the patient physically arrives at (normally the ED).
	UnitID string `json:"unit_id" yaml:"unit_id"`
}

// InboundEvent is the tagged payload consumed from collaborators. Exactly the
// fields relevant to its Type are set; Validate enforces per-type shape.
// YAML tags support scenario files fed through the CLI.
type InboundEvent struct {
	ID           string    `json:"id" yaml:"id,omitempty"`
	Type         EventType `json:"type" yaml:"type"`
	OccurredAtMs int64     `json:"occurred_at_ms" yaml:"occurred_at_ms,omitempty"`

	PatientID string `json:"patient_id,omitempty" yaml:"patient_id,omitempty"`
	UnitID    string `json:"unit_id,omitempty" yaml:"unit_id,omitempty"`

	Arrival *Arrival    `json:"arrival,omitempty" yaml:"arrival,omitempty"`
	Vitals  *VitalSigns `json:"vitals,omitempty" yaml:"vitals,omitempty"`

	// Transfer destination (EventTransfer).
	ToUnitID string `json:"to_unit_id,omitempty" yaml:"to_unit_id,omitempty"`

	// Staffing change (EventStaffing).
	StaffDelta int `json:"staff_delta,omitempty" yaml:"staff_delta,omitempty"`
}

// Validate enforces the per-type payload shape. Failures are ValidationError
// values, which the consuming agent logs and drops.
func (e *InboundEvent) Validate() error {
	if err := e.Type.Validate(); err != nil {
		return validationf("%v", err)
	}
	if e.OccurredAtMs <= 0 {
		return validationf("missing timestamp")
	}
	switch e.Type {
	case EventArrival:
		if e.PatientID == "" {
			return validationf("arrival requires patient_id")
		}
		if e.Arrival == nil {
			return validationf("arrival requires arrival payload")
		}
		if e.Arrival.AcuityLevel < 1 || e.Arrival.AcuityLevel > 5 {
			return validationf("arrival acuity level %d outside 1-5", e.Arrival.AcuityLevel)
		}
		if e.Arrival.UnitID == "" {
			return validationf("arrival requires unit_id")
		}
	case EventVitals, EventLabResult:
		if e.PatientID == "" {
			return validationf("%s requires patient_id", e.Type)
		}
		if e.Vitals == nil {
			return validationf("%s requires vitals payload", e.Type)
		}
		// A sample with zero present fields carries no information.
		if e.Vitals.PresentCount() == 0 {
			return validationf("%s payload has no vital fields", e.Type)
		}
	case EventDischarge:
		if e.PatientID == "" {
			return validationf("discharge requires patient_id")
		}
	case EventTransfer:
		if e.PatientID == "" {
			return validationf("transfer requires patient_id")
		}
		if e.ToUnitID == "" {
			return validationf("transfer requires to_unit_id")
		}
	case EventStaffing:
		if e.UnitID == "" {
			return validationf("staffing requires unit_id")
		}
		if e.StaffDelta == 0 {
			return validationf("staffing requires a nonzero staff_delta")
		}
	}
	return nil
}
