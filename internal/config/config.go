// Package config loads and validates the pulse.yml configuration consumed by
// the decision core.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adaptivecare/pulse/pkg/hospital"
)

// Duration wraps time.Duration so YAML values can be written as "2s", "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Weights are the MCDA criteria weights. They must sum to 1.
type Weights struct {
	Safety   float64 `yaml:"safety"`
	Urgency  float64 `yaml:"urgency"`
	Capacity float64 `yaml:"capacity"`
	Resource float64 `yaml:"resource"`
}

// Sum returns the total of the four weights.
func (w Weights) Sum() float64 {
	return w.Safety + w.Urgency + w.Capacity + w.Resource
}

// Thresholds are the escalation policy boundaries.
// Escalate applies to the MCDA weighted total (0-1); the risk thresholds
// apply to the 0-100 risk score.
type Thresholds struct {
	Escalate     float64 `yaml:"escalate"`
	HighRisk     float64 `yaml:"high_risk"`
	CriticalRisk float64 `yaml:"critical_risk"`
}

// ExplainerConfig describes the external reasoning collaborator.
// An empty endpoint selects the no-op explainer, which always falls back to
// the deterministic template.
type ExplainerConfig struct {
	Endpoint string   `yaml:"endpoint,omitempty"`
	Timeout  Duration `yaml:"timeout,omitempty"`
}

// ForecastConfig parameterizes the capacity agent's deterministic forecast.
type ForecastConfig struct {
	HorizonMinutes     int `yaml:"horizon_minutes,omitempty"`
	TrendWindowMinutes int `yaml:"trend_window_minutes,omitempty"`
}

// UnitConfig seeds one hospital unit into the state store at startup.
type UnitConfig struct {
	ID                string            `yaml:"id"`
	Name              string            `yaml:"name,omitempty"`
	Type              hospital.UnitType `yaml:"type"`
	TotalBeds         int               `yaml:"total_beds"`
	AvailableBeds     int               `yaml:"available_beds"`
	AvailableStaff    int               `yaml:"available_staff"`
	PendingDischarges int               `yaml:"pending_discharges,omitempty"`
}

// Config is the top-level pulse.yml configuration.
type Config struct {
	Instance string `yaml:"instance"`
	RedisURL string `yaml:"redis_url,omitempty"`

	LogLevel  string `yaml:"log_level,omitempty"`
	LogFormat string `yaml:"log_format,omitempty"`

	HealthAddr string `yaml:"health_addr,omitempty"`

	Weights    Weights         `yaml:"mcda_weights"`
	Thresholds Thresholds      `yaml:"thresholds"`
	Explainer  ExplainerConfig `yaml:"explainer,omitempty"`
	Forecast   ForecastConfig  `yaml:"forecast,omitempty"`

	// Eligibility maps a patient's current unit type to the unit types that
	// may receive them. A type with no entry gets no candidates.
	Eligibility map[hospital.UnitType][]hospital.UnitType `yaml:"eligibility,omitempty"`

	Units []UnitConfig `yaml:"units"`
}

const weightsEpsilon = 1e-6

// Default returns a configuration with the documented defaults applied and
// no units. Tests and the CLI start from this.
func Default() *Config {
	return &Config{
		Instance:  "default",
		LogLevel:  "info",
		LogFormat: "json",
		Weights:   Weights{Safety: 0.4, Urgency: 0.3, Capacity: 0.2, Resource: 0.1},
		Thresholds: Thresholds{
			Escalate:     0.75,
			HighRisk:     70,
			CriticalRisk: 85,
		},
		Explainer: ExplainerConfig{Timeout: Duration(2 * time.Second)},
		Forecast:  ForecastConfig{HorizonMinutes: 60, TrendWindowMinutes: 120},
		Eligibility: map[hospital.UnitType][]hospital.UnitType{
			hospital.UnitTypeED:   {hospital.UnitTypeICU, hospital.UnitTypeWard},
			hospital.UnitTypeWard: {hospital.UnitTypeICU},
			hospital.UnitTypeICU:  {hospital.UnitTypeWard},
		},
	}
}

// Validate performs strict validation and fills unset optional fields with
// defaults.
func (c *Config) Validate() error {
	if c.Instance == "" {
		return fmt.Errorf("instance is required")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.HealthAddr == "" {
		c.HealthAddr = ":8080"
	}

	if math.Abs(c.Weights.Sum()-1.0) > weightsEpsilon {
		return fmt.Errorf("mcda_weights must sum to 1, got %.4f", c.Weights.Sum())
	}
	for name, w := range map[string]float64{
		"safety":   c.Weights.Safety,
		"urgency":  c.Weights.Urgency,
		"capacity": c.Weights.Capacity,
		"resource": c.Weights.Resource,
	} {
		if w < 0 {
			return fmt.Errorf("mcda_weights.%s must be >= 0, got %.4f", name, w)
		}
	}

	if c.Thresholds.Escalate <= 0 || c.Thresholds.Escalate > 1 {
		return fmt.Errorf("thresholds.escalate must be in (0, 1], got %.2f", c.Thresholds.Escalate)
	}
	if c.Thresholds.HighRisk < 0 || c.Thresholds.HighRisk > 100 {
		return fmt.Errorf("thresholds.high_risk must be in [0, 100], got %.1f", c.Thresholds.HighRisk)
	}
	if c.Thresholds.CriticalRisk < c.Thresholds.HighRisk || c.Thresholds.CriticalRisk > 100 {
		return fmt.Errorf("thresholds.critical_risk must be in [high_risk, 100], got %.1f", c.Thresholds.CriticalRisk)
	}

	if c.Explainer.Timeout == 0 {
		c.Explainer.Timeout = Duration(2 * time.Second)
	}
	if c.Explainer.Timeout < 0 {
		return fmt.Errorf("explainer.timeout must be positive")
	}

	if c.Forecast.HorizonMinutes == 0 {
		c.Forecast.HorizonMinutes = 60
	}
	if c.Forecast.TrendWindowMinutes == 0 {
		c.Forecast.TrendWindowMinutes = 120
	}
	if c.Forecast.HorizonMinutes < 0 || c.Forecast.TrendWindowMinutes <= 0 {
		return fmt.Errorf("forecast horizon and trend window must be positive")
	}

	if c.Eligibility == nil {
		c.Eligibility = Default().Eligibility
	}
	for from, tos := range c.Eligibility {
		if err := from.Validate(); err != nil {
			return fmt.Errorf("eligibility: %w", err)
		}
		for _, to := range tos {
			if err := to.Validate(); err != nil {
				return fmt.Errorf("eligibility for %s: %w", from, err)
			}
		}
	}

	seen := make(map[string]bool, len(c.Units))
	for i, u := range c.Units {
		if u.ID == "" {
			return fmt.Errorf("units[%d]: id is required", i)
		}
		if seen[u.ID] {
			return fmt.Errorf("duplicate unit id %q", u.ID)
		}
		seen[u.ID] = true
		if err := u.Type.Validate(); err != nil {
			return fmt.Errorf("unit %q: %w", u.ID, err)
		}
		if u.TotalBeds <= 0 {
			return fmt.Errorf("unit %q: total_beds must be > 0", u.ID)
		}
		if u.AvailableBeds < 0 || u.AvailableBeds > u.TotalBeds {
			return fmt.Errorf("unit %q: available_beds %d outside [0, %d]", u.ID, u.AvailableBeds, u.TotalBeds)
		}
		if u.AvailableStaff < 0 {
			return fmt.Errorf("unit %q: available_staff must be >= 0", u.ID)
		}
		if u.PendingDischarges < 0 {
			return fmt.Errorf("unit %q: pending_discharges must be >= 0", u.ID)
		}
	}

	return nil
}

// Load reads and validates a pulse.yml from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
