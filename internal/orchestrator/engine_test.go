package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adaptivecare/pulse/internal/config"
	"github.com/adaptivecare/pulse/pkg/bus"
	"github.com/adaptivecare/pulse/pkg/hospital"
)

func pipelineConfig(icuBeds int) *config.Config {
	cfg := config.Default()
	cfg.Instance = "test"
	cfg.HealthAddr = "127.0.0.1:0"
	cfg.Units = []config.UnitConfig{
		{ID: "ed-1", Name: "Emergency", Type: hospital.UnitTypeED,
			TotalBeds: 20, AvailableBeds: 10, AvailableStaff: 8},
		{ID: "icu-1", Name: "Intensive Care", Type: hospital.UnitTypeICU,
			TotalBeds: 6, AvailableBeds: icuBeds, AvailableStaff: 5},
	}
	return cfg
}

// startPipeline runs the full engine against miniredis and returns a client
// for injecting events and watching output topics.
func startPipeline(t *testing.T, cfg *config.Config) *bus.Client {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := bus.NewClientFromRedis(
		redis.NewClient(&redis.Options{Addr: mr.Addr()}), cfg.Instance)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, cfg.Validate())
	engine, err := NewEngine(cfg, client, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("engine did not shut down")
		}
	})

	// Give the agents a moment to attach their subscriptions.
	time.Sleep(200 * time.Millisecond)
	return client
}

func inject(t *testing.T, client *bus.Client, topic string, event *hospital.InboundEvent) {
	t.Helper()
	require.NoError(t, client.Publish(context.Background(), topic, event))
}

func arrival(patientID, unitID string, acuity int) *hospital.InboundEvent {
	return &hospital.InboundEvent{
		ID:           uuid.New().String(),
		Type:         hospital.EventArrival,
		OccurredAtMs: time.Now().Add(-45 * time.Minute).UnixMilli(),
		PatientID:    patientID,
		Arrival: &hospital.Arrival{
			Name: "Test Patient", Age: 74, AcuityLevel: acuity, UnitID: unitID,
		},
	}
}

func criticalVitals(patientID string) *hospital.InboundEvent {
	return &hospital.InboundEvent{
		ID:           uuid.New().String(),
		Type:         hospital.EventVitals,
		OccurredAtMs: time.Now().UnixMilli(),
		PatientID:    patientID,
		Vitals: &hospital.VitalSigns{
			HeartRate:       hospital.Float(165),
			SystolicBP:      hospital.Float(60),
			SpO2:            hospital.Float(84),
			RespiratoryRate: hospital.Float(32),
			Temperature:     hospital.Float(39.5),
			GCS:             hospital.Float(7),
			MeasuredAtMs:    time.Now().UnixMilli(),
		},
	}
}

// awaitDecision returns the first emitted decision matching the predicate.
// Earlier cycles may emit interim decisions (delay, observe) while the
// pipeline state is still converging; those are skipped.
func awaitDecision(t *testing.T, sub *bus.Subscription, match func(*hospital.Decision) bool) *hospital.Decision {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case env, ok := <-sub.Events():
			require.True(t, ok, "decision stream closed")
			d, err := bus.Decode[hospital.Decision](env)
			require.NoError(t, err)
			if match(d) {
				return d
			}
		case <-deadline:
			t.Fatal("no matching decision emitted")
		}
	}
}

func TestNewEngine_SeedsPendingDischarges(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := bus.NewClientFromRedis(
		redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	cfg := pipelineConfig(2)
	cfg.Units[1].PendingDischarges = 3
	require.NoError(t, cfg.Validate())

	engine, err := NewEngine(cfg, client, zap.NewNop())
	require.NoError(t, err)

	u, err := engine.Store().GetUnit("icu-1")
	require.NoError(t, err)
	assert.Equal(t, 3, u.PendingDischarges)
}

func TestPipeline_CriticalPatientEscalatedToICU(t *testing.T) {
	client := startPipeline(t, pipelineConfig(1))
	ctx := context.Background()

	sub, err := client.Subscribe(ctx, bus.TopicDecisionMade)
	require.NoError(t, err)
	defer sub.Close()
	time.Sleep(100 * time.Millisecond)

	inject(t, client, bus.TopicArrival, arrival("patient-1", "ed-1", 1))
	time.Sleep(200 * time.Millisecond)
	inject(t, client, bus.TopicVitals, criticalVitals("patient-1"))

	d := awaitDecision(t, sub, func(d *hospital.Decision) bool {
		return d.Action == hospital.ActionEscalate
	})
	assert.Equal(t, "patient-1", d.PatientID)
	assert.Equal(t, "icu-1", d.TargetUnitID)
	assert.False(t, d.Stale)
	assert.NotEmpty(t, d.Reasoning)
	require.NotNil(t, d.Scores)
	assert.Equal(t, hospital.UnitTypeICU, d.Scores.UnitType)
}

func TestPipeline_AllUnitsFullIsCapacityEmergency(t *testing.T) {
	client := startPipeline(t, pipelineConfig(0))
	ctx := context.Background()

	sub, err := client.Subscribe(ctx, bus.TopicDecisionMade)
	require.NoError(t, err)
	defer sub.Close()
	time.Sleep(100 * time.Millisecond)

	inject(t, client, bus.TopicArrival, arrival("patient-1", "ed-1", 1))
	time.Sleep(200 * time.Millisecond)
	inject(t, client, bus.TopicVitals, criticalVitals("patient-1"))

	d := awaitDecision(t, sub, func(d *hospital.Decision) bool {
		return d.Action == hospital.ActionEscalate
	})
	assert.Empty(t, d.TargetUnitID)
	assert.Nil(t, d.Scores)
}

func TestPipeline_PartialVitalsLowerConfidence(t *testing.T) {
	client := startPipeline(t, pipelineConfig(4))
	ctx := context.Background()

	sub, err := client.Subscribe(ctx, bus.TopicRiskUpdated)
	require.NoError(t, err)
	defer sub.Close()
	time.Sleep(100 * time.Millisecond)

	inject(t, client, bus.TopicArrival, arrival("patient-1", "ed-1", 3))
	inject(t, client, bus.TopicArrival, arrival("patient-2", "ed-1", 3))
	time.Sleep(200 * time.Millisecond)

	full := criticalVitals("patient-1")
	inject(t, client, bus.TopicVitals, full)

	partial := &hospital.InboundEvent{
		ID:           uuid.New().String(),
		Type:         hospital.EventVitals,
		OccurredAtMs: time.Now().UnixMilli(),
		PatientID:    "patient-2",
		Vitals: &hospital.VitalSigns{
			HeartRate:    hospital.Float(165),
			MeasuredAtMs: time.Now().UnixMilli(),
		},
	}
	inject(t, client, bus.TopicVitals, partial)

	confidences := map[string]float64{}
	for len(confidences) < 2 {
		select {
		case env := <-sub.Events():
			a, err := bus.Decode[hospital.RiskAssessment](env)
			require.NoError(t, err)
			confidences[a.PatientID] = a.Confidence
		case <-time.After(10 * time.Second):
			t.Fatal("expected two risk assessments")
		}
	}
	assert.Less(t, confidences["patient-2"], confidences["patient-1"])
}

func TestPipeline_DischargeMidStreamKeepsPipelineAlive(t *testing.T) {
	client := startPipeline(t, pipelineConfig(2))
	ctx := context.Background()

	sub, err := client.Subscribe(ctx, bus.TopicDecisionMade)
	require.NoError(t, err)
	defer sub.Close()
	time.Sleep(100 * time.Millisecond)

	inject(t, client, bus.TopicArrival, arrival("patient-1", "ed-1", 2))
	time.Sleep(200 * time.Millisecond)

	// Vitals and discharge race through the pipeline. The pre-discharge
	// triggers still produce a decision for the patient, and the discharge
	// must not wedge any agent.
	inject(t, client, bus.TopicVitals, criticalVitals("patient-1"))
	inject(t, client, bus.TopicDischarge, &hospital.InboundEvent{
		ID:           uuid.New().String(),
		Type:         hospital.EventDischarge,
		OccurredAtMs: time.Now().UnixMilli(),
		PatientID:    "patient-1",
	})

	awaitDecision(t, sub, func(d *hospital.Decision) bool {
		return d.PatientID == "patient-1"
	})

	// The pipeline keeps serving other patients after the discharge.
	inject(t, client, bus.TopicArrival, arrival("patient-2", "ed-1", 1))
	time.Sleep(200 * time.Millisecond)
	inject(t, client, bus.TopicVitals, criticalVitals("patient-2"))

	d := awaitDecision(t, sub, func(d *hospital.Decision) bool {
		return d.PatientID == "patient-2" && d.Action == hospital.ActionEscalate
	})
	assert.False(t, d.Stale)
}
