package hospital

// VitalSigns is one timestamped sample. Every field except the timestamp is
// optional: monitors report what they have, and the risk agent scores
// whatever is present with reduced confidence rather than failing.
type VitalSigns struct {
	HeartRate       *float64 `json:"heart_rate,omitempty" yaml:"heart_rate,omitempty"`             // bpm
	SystolicBP      *float64 `json:"systolic_bp,omitempty" yaml:"systolic_bp,omitempty"`           // mmHg
	SpO2            *float64 `json:"spo2,omitempty" yaml:"spo2,omitempty"`                         // %
	RespiratoryRate *float64 `json:"respiratory_rate,omitempty" yaml:"respiratory_rate,omitempty"` // breaths/min
	Temperature     *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`           // Celsius
	GCS             *float64 `json:"gcs,omitempty" yaml:"gcs,omitempty"`                           // Glasgow Coma Scale 3-15
	MeasuredAtMs    int64    `json:"measured_at_ms" yaml:"measured_at_ms,omitempty"`
}

// ExpectedVitalCount is the number of vital fields a complete sample carries.
const ExpectedVitalCount = 6

// PresentCount returns how many of the expected vital fields are present.
func (v *VitalSigns) PresentCount() int {
	n := 0
	for _, f := range []*float64{v.HeartRate, v.SystolicBP, v.SpO2, v.RespiratoryRate, v.Temperature, v.GCS} {
		if f != nil {
			n++
		}
	}
	return n
}

// Critical reports whether any present vital is in a range that on its own
// indicates a critical condition. Missing fields are not critical.
func (v *VitalSigns) Critical() bool {
	if v.HeartRate != nil && (*v.HeartRate < 40 || *v.HeartRate > 150) {
		return true
	}
	if v.SystolicBP != nil && (*v.SystolicBP < 80 || *v.SystolicBP > 200) {
		return true
	}
	if v.SpO2 != nil && *v.SpO2 < 90 {
		return true
	}
	if v.Temperature != nil && (*v.Temperature < 35 || *v.Temperature > 40) {
		return true
	}
	if v.GCS != nil && *v.GCS <= 8 {
		return true
	}
	return false
}

// Float returns a pointer to the given value. Convenience for building
// samples in events and tests.
func Float(f float64) *float64 {
	return &f
}
