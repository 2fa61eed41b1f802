// Package flow turns risk and capacity updates into ranked placement
// recommendations. Every trigger re-reads the authoritative store, so
// recomputation is idempotent under out-of-order or duplicated upstream
// events; event payloads serve only as hints about who to recompute.
package flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adaptivecare/pulse/internal/mcda"
	"github.com/adaptivecare/pulse/internal/store"
	"github.com/adaptivecare/pulse/pkg/bus"
	"github.com/adaptivecare/pulse/pkg/hospital"
)

// Eligibility maps a patient's current unit type to the unit types that may
// receive them. Unplaced patients are eligible everywhere.
type Eligibility map[hospital.UnitType][]hospital.UnitType

// allows reports whether a patient currently in `from` may move to `to`.
func (e Eligibility) allows(from, to hospital.UnitType) bool {
	if from == "" {
		return true
	}
	for _, t := range e[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Agent computes recommendations. It caches the latest assessment confidence
// per patient; score and trajectory always come from the store.
type Agent struct {
	client      *bus.Client
	store       *store.Store
	engine      *mcda.Engine
	eligibility Eligibility
	snapshotFn  func() *hospital.CapacitySnapshot
	logger      *zap.Logger

	mu         sync.Mutex
	confidence map[string]float64

	now func() int64
}

// defaultAssessmentConfidence stands in until a patient's first assessment
// arrives.
const defaultAssessmentConfidence = 0.5

// NewAgent creates a flow agent. snapshotFn must return a fresh capacity view
// built from current store state.
func NewAgent(client *bus.Client, st *store.Store, engine *mcda.Engine,
	eligibility Eligibility, snapshotFn func() *hospital.CapacitySnapshot, logger *zap.Logger) *Agent {
	return &Agent{
		client:      client,
		store:       st,
		engine:      engine,
		eligibility: eligibility,
		snapshotFn:  snapshotFn,
		logger:      logger.With(zap.String("component", "flow-agent")),
		confidence:  make(map[string]float64),
		now:         func() int64 { return time.Now().UnixMilli() },
	}
}

// Run subscribes to the upstream topics and recomputes recommendations until
// the context is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	sub, err := a.client.Subscribe(ctx, bus.TopicRiskUpdated, bus.TopicCapacityUpdate)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Close()

	a.logger.Info("flow agent started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("flow agent shutting down")
			return nil

		case env, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := a.dispatch(ctx, env); err != nil {
				a.logger.Error("failed to process trigger", zap.String("topic", env.Topic), zap.Error(err))
			}

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			a.logger.Warn("subscription error", zap.Error(err))
		}
	}
}

// dispatch fans a trigger out to the affected patients.
func (a *Agent) dispatch(ctx context.Context, env *bus.Envelope) error {
	switch env.Topic {
	case bus.TopicRiskUpdated:
		assessment, err := bus.Decode[hospital.RiskAssessment](env)
		if err != nil {
			return err
		}
		a.rememberConfidence(assessment.PatientID, assessment.Confidence)
		return a.Recommend(ctx, assessment.PatientID)

	case bus.TopicCapacityUpdate:
		// Capacity changed: every patient still waiting for placement is
		// affected.
		for _, p := range a.store.ListPatients() {
			if !waitingForPlacement(p) {
				continue
			}
			if err := a.Recommend(ctx, p.ID); err != nil {
				a.logger.Error("failed to recompute recommendation",
					zap.String("patient_id", p.ID), zap.Error(err))
			}
		}
		return nil
	}
	return nil
}

// waitingForPlacement reports whether a capacity change should trigger a
// fresh recommendation for the patient.
func waitingForPlacement(p *hospital.Patient) bool {
	return p.UnitID == "" || p.UnitType == hospital.UnitTypeED
}

func (a *Agent) rememberConfidence(patientID string, c float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.confidence[patientID] = c
}

func (a *Agent) assessmentConfidence(patientID string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.confidence[patientID]; ok {
		return c
	}
	return defaultAssessmentConfidence
}

// Recommend recomputes and publishes the ranked recommendation for one
// patient from current store state. Tombstoned or unknown patients are
// skipped silently.
func (a *Agent) Recommend(ctx context.Context, patientID string) error {
	patient, err := a.store.GetPatient(patientID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return err
	}
	if patient.Tombstoned {
		return nil
	}

	nowMs := a.now()
	rec := a.Build(patient, a.snapshotFn(), nowMs)

	if err := a.client.Publish(ctx, bus.TopicRecommendation, rec); err != nil {
		return fmt.Errorf("failed to publish recommendation: %w", err)
	}

	a.logger.Info("recommendation published",
		zap.String("patient_id", patientID),
		zap.Int("candidates", len(rec.Candidates)),
		zap.Float64("confidence", rec.Confidence))
	return nil
}

// Build computes the recommendation from explicit inputs. Pure given its
// arguments; exported for the pipeline tests.
func (a *Agent) Build(patient *hospital.Patient, snap *hospital.CapacitySnapshot, nowMs int64) *hospital.Recommendation {
	input := mcda.PatientInput{
		PatientID:   patient.ID,
		RiskScore:   patient.RiskScore,
		Trajectory:  patient.Trajectory,
		WaitMinutes: patient.WaitMinutes(nowMs),
		AcuityLevel: patient.AcuityLevel,
	}
	if v := patient.LatestVitals(); v != nil {
		input.CriticalVitals = v.Critical()
	}
	if input.Trajectory == "" {
		input.Trajectory = hospital.TrajectoryStable
	}

	candidates := make([]*hospital.UnitAssessment, 0, len(snap.Units))
	for i := range snap.Units {
		u := &snap.Units[i]
		if u.UnitID == patient.UnitID {
			continue
		}
		if !a.eligibility.allows(patient.UnitType, u.Type) {
			continue
		}
		candidates = append(candidates, u)
	}

	ranked := a.engine.Rank(input, candidates)
	return &hospital.Recommendation{
		PatientID:   patient.ID,
		RiskScore:   patient.RiskScore,
		Trajectory:  input.Trajectory,
		Candidates:  ranked,
		Confidence:  a.engine.Confidence(a.assessmentConfidence(patient.ID), ranked),
		CreatedAtMs: nowMs,
	}
}
