package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaptivecare/pulse/pkg/hospital"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pulse.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
instance: icu-east
redis_url: redis://localhost:6379
log_level: debug
log_format: console
mcda_weights:
  safety: 0.4
  urgency: 0.3
  capacity: 0.2
  resource: 0.1
thresholds:
  escalate: 0.75
  high_risk: 70
  critical_risk: 85
explainer:
  endpoint: http://localhost:9000/explain
  timeout: 500ms
forecast:
  horizon_minutes: 30
  trend_window_minutes: 60
eligibility:
  ed: [icu, ward]
  ward: [icu]
units:
  - id: ed-1
    name: Emergency
    type: ed
    total_beds: 20
    available_beds: 8
    available_staff: 10
  - id: icu-1
    name: Intensive Care
    type: icu
    total_beds: 6
    available_beds: 2
    available_staff: 5
    pending_discharges: 1
`

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "icu-east", cfg.Instance)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 500*time.Millisecond, cfg.Explainer.Timeout.Std())
	assert.Equal(t, 30, cfg.Forecast.HorizonMinutes)
	assert.Len(t, cfg.Units, 2)
	assert.Equal(t, hospital.UnitTypeICU, cfg.Units[1].Type)
	assert.Equal(t, 1, cfg.Units[1].PendingDischarges)
	assert.Equal(t,
		[]hospital.UnitType{hospital.UnitTypeICU, hospital.UnitTypeWard},
		cfg.Eligibility[hospital.UnitTypeED])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "instance: [unclosed"))
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.InDelta(t, 1.0, cfg.Weights.Sum(), 1e-9)
}

func TestValidate_FillsDefaults(t *testing.T) {
	cfg := &Config{
		Instance:   "x",
		Weights:    Weights{Safety: 0.4, Urgency: 0.3, Capacity: 0.2, Resource: 0.1},
		Thresholds: Thresholds{Escalate: 0.75, HighRisk: 70, CriticalRisk: 85},
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, ":8080", cfg.HealthAddr)
	assert.Equal(t, 2*time.Second, cfg.Explainer.Timeout.Std())
	assert.Equal(t, 60, cfg.Forecast.HorizonMinutes)
	assert.Equal(t, 120, cfg.Forecast.TrendWindowMinutes)
	assert.NotEmpty(t, cfg.Eligibility)
}

func TestValidate_Rejections(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Units = []UnitConfig{
			{ID: "icu-1", Type: hospital.UnitTypeICU, TotalBeds: 6, AvailableBeds: 2, AvailableStaff: 5},
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"missing instance", func(c *Config) { c.Instance = "" }, "instance is required"},
		{"weights not summing to 1", func(c *Config) { c.Weights.Safety = 0.9 }, "must sum to 1"},
		{"negative weight", func(c *Config) {
			c.Weights = Weights{Safety: 1.2, Urgency: 0.1, Capacity: -0.2, Resource: -0.1}
		}, "must be >= 0"},
		{"escalate out of range", func(c *Config) { c.Thresholds.Escalate = 1.5 }, "escalate"},
		{"critical below high", func(c *Config) { c.Thresholds.CriticalRisk = 50 }, "critical_risk"},
		{"negative timeout", func(c *Config) { c.Explainer.Timeout = Duration(-time.Second) }, "timeout"},
		{"negative horizon", func(c *Config) { c.Forecast.HorizonMinutes = -1 }, "forecast"},
		{"unit without id", func(c *Config) { c.Units[0].ID = "" }, "id is required"},
		{"duplicate unit", func(c *Config) { c.Units = append(c.Units, c.Units[0]) }, "duplicate unit"},
		{"bad unit type", func(c *Config) { c.Units[0].Type = "garage" }, "unknown unit type"},
		{"zero total beds", func(c *Config) { c.Units[0].TotalBeds = 0 }, "total_beds"},
		{"beds over total", func(c *Config) { c.Units[0].AvailableBeds = 7 }, "available_beds"},
		{"negative staff", func(c *Config) { c.Units[0].AvailableStaff = -1 }, "available_staff"},
		{"negative pending discharges", func(c *Config) { c.Units[0].PendingDischarges = -1 }, "pending_discharges"},
		{"bad eligibility type", func(c *Config) {
			c.Eligibility = map[hospital.UnitType][]hospital.UnitType{"garage": {hospital.UnitTypeICU}}
		}, "eligibility"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.message)
		})
	}
}

func TestDuration_Unmarshal(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
instance: x
mcda_weights: {safety: 0.4, urgency: 0.3, capacity: 0.2, resource: 0.1}
thresholds: {escalate: 0.75, high_risk: 70, critical_risk: 85}
explainer: {timeout: 1m30s}
`))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Explainer.Timeout.Std())

	_, err = Load(writeConfig(t, `
instance: x
mcda_weights: {safety: 0.4, urgency: 0.3, capacity: 0.2, resource: 0.1}
thresholds: {escalate: 0.75, high_risk: 70, critical_risk: 85}
explainer: {timeout: soon}
`))
	assert.ErrorContains(t, err, "invalid duration")
}
