package risk

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adaptivecare/pulse/internal/store"
	"github.com/adaptivecare/pulse/pkg/bus"
	"github.com/adaptivecare/pulse/pkg/hospital"
)

// Agent consumes vitals and lab events, scores the patient and publishes the
// assessment. It is the single writer of the patient risk fields.
type Agent struct {
	client            *bus.Client
	store             *store.Store
	criticalThreshold float64
	logger            *zap.Logger

	now func() int64
}

// NewAgent creates a risk agent. criticalThreshold is the 0-100 risk score at
// which the trajectory is forced to critical.
func NewAgent(client *bus.Client, st *store.Store, criticalThreshold float64, logger *zap.Logger) *Agent {
	return &Agent{
		client:            client,
		store:             st,
		criticalThreshold: criticalThreshold,
		logger:            logger.With(zap.String("component", "risk-agent")),
		now:               func() int64 { return time.Now().UnixMilli() },
	}
}

// Run subscribes to vitals and lab topics and processes events until the
// context is cancelled. Per-event failures are logged and skipped.
func (a *Agent) Run(ctx context.Context) error {
	sub, err := a.client.Subscribe(ctx, bus.TopicVitals, bus.TopicLabResult)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Close()

	a.logger.Info("risk agent started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("risk agent shutting down")
			return nil

		case env, ok := <-sub.Events():
			if !ok {
				return nil
			}
			event, err := bus.Decode[hospital.InboundEvent](env)
			if err != nil {
				a.logger.Warn("dropping undecodable event", zap.String("topic", env.Topic), zap.Error(err))
				continue
			}
			if err := a.handle(ctx, event); err != nil {
				if hospital.IsValidation(err) || store.IsNotFound(err) {
					a.logger.Warn("dropping event", zap.String("patient_id", event.PatientID), zap.Error(err))
					continue
				}
				a.logger.Error("failed to process event", zap.String("patient_id", event.PatientID), zap.Error(err))
			}

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			a.logger.Warn("subscription error", zap.Error(err))
		}
	}
}

// handle runs one assessment cycle for a vitals or lab sample.
func (a *Agent) handle(ctx context.Context, event *hospital.InboundEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	nowMs := a.now()
	patient, err := a.store.AppendVitals(event.PatientID, *event.Vitals, nowMs)
	if err != nil {
		return err
	}
	if patient.Tombstoned {
		a.logger.Debug("skipping assessment for discharged patient", zap.String("patient_id", patient.ID))
		return nil
	}

	assessment := a.Assess(patient, event.Vitals, nowMs)

	if err := a.store.SetRisk(patient.ID, assessment.Score, assessment.Trajectory, nowMs); err != nil {
		return err
	}

	if err := a.client.Publish(ctx, bus.TopicRiskUpdated, assessment); err != nil {
		return fmt.Errorf("failed to publish assessment: %w", err)
	}

	a.logger.Info("risk assessed",
		zap.String("patient_id", patient.ID),
		zap.Float64("score", assessment.Score),
		zap.String("trajectory", string(assessment.Trajectory)),
		zap.Float64("confidence", assessment.Confidence),
		zap.Bool("critical_vitals", assessment.CriticalVitals))
	return nil
}

// Assess builds the assessment for a new sample against the patient's prior
// state. Pure given its inputs; exported for the pipeline tests.
func (a *Agent) Assess(patient *hospital.Patient, sample *hospital.VitalSigns, nowMs int64) *hospital.RiskAssessment {
	score, factors := Score(sample)

	// An empty prior trajectory marks the first assessment.
	var prev *float64
	first := patient.Trajectory == ""
	if !first {
		prevScore := patient.RiskScore
		prev = &prevScore
	}

	return &hospital.RiskAssessment{
		PatientID:      patient.ID,
		Score:          score,
		Trajectory:     NextTrajectory(prev, score, a.criticalThreshold),
		Confidence:     Confidence(sample, first),
		Factors:        factors,
		CriticalVitals: sample.Critical(),
		First:          first,
		CreatedAtMs:    nowMs,
	}
}
