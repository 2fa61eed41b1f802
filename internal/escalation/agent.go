package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adaptivecare/pulse/internal/config"
	"github.com/adaptivecare/pulse/internal/explain"
	"github.com/adaptivecare/pulse/internal/journal"
	"github.com/adaptivecare/pulse/internal/store"
	"github.com/adaptivecare/pulse/pkg/bus"
	"github.com/adaptivecare/pulse/pkg/hospital"
)

// Agent consumes recommendations and emits decisions.
type Agent struct {
	client     *bus.Client
	store      *store.Store
	journal    *journal.Journal
	explainer  explain.Explainer
	thresholds config.Thresholds
	timeout    time.Duration
	logger     *zap.Logger

	now func() int64
}

// NewAgent creates an escalation agent. timeout bounds the single explainer
// call per cycle.
func NewAgent(client *bus.Client, st *store.Store, jrnl *journal.Journal,
	explainer explain.Explainer, thresholds config.Thresholds, timeout time.Duration,
	logger *zap.Logger) *Agent {
	return &Agent{
		client:     client,
		store:      st,
		journal:    jrnl,
		explainer:  explainer,
		thresholds: thresholds,
		timeout:    timeout,
		logger:     logger.With(zap.String("component", "escalation-agent")),
		now:        func() int64 { return time.Now().UnixMilli() },
	}
}

// Run subscribes to recommendations and processes them until the context is
// cancelled.
func (a *Agent) Run(ctx context.Context) error {
	sub, err := a.client.Subscribe(ctx, bus.TopicRecommendation)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Close()

	a.logger.Info("escalation agent started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("escalation agent shutting down")
			return nil

		case env, ok := <-sub.Events():
			if !ok {
				return nil
			}
			rec, err := bus.Decode[hospital.Recommendation](env)
			if err != nil {
				a.logger.Warn("dropping undecodable recommendation", zap.Error(err))
				continue
			}
			if _, err := a.Decide(ctx, rec); err != nil {
				a.logger.Error("decision cycle failed",
					zap.String("patient_id", rec.PatientID), zap.Error(err))
			}

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			a.logger.Warn("subscription error", zap.Error(err))
		}
	}
}

// Decide runs one full decision cycle for a recommendation and returns the
// emitted decision.
func (a *Agent) Decide(ctx context.Context, rec *hospital.Recommendation) (*hospital.Decision, error) {
	cycle := a.logger.With(zap.String("patient_id", rec.PatientID))
	a.transition(cycle, StateTriggered, StateScored)

	action, target := a.policy(rec)
	a.transition(cycle, StateScored, StateThresholded)

	patient, _ := a.store.GetPatient(rec.PatientID)

	reasoning, explained := a.explainDecision(ctx, patient, rec, action, target)
	if explained {
		a.transition(cycle, StateThresholded, StateExplained)
	} else {
		a.transition(cycle, StateThresholded, StateExplainTimedOut)
	}

	decision := &hospital.Decision{
		ID:           uuid.New().String(),
		PatientID:    rec.PatientID,
		Action:       action,
		TargetUnitID: target,
		Confidence:   rec.Confidence,
		Reasoning:    reasoning,
		Scores:       rec.Top(),
		CreatedAtMs:  a.now(),
	}
	// A patient tombstoned while the cycle was in flight still gets their
	// decision emitted for the audit trail, tagged so it is never applied.
	if patient != nil && patient.Tombstoned {
		decision.Stale = true
	}

	if err := a.journal.Append(ctx, decision); err != nil {
		return nil, fmt.Errorf("failed to append decision: %w", err)
	}
	if err := a.client.Publish(ctx, bus.TopicDecisionMade, decision); err != nil {
		return nil, fmt.Errorf("failed to publish decision: %w", err)
	}

	if explained {
		a.transition(cycle, StateExplained, StateEmitted)
	} else {
		a.transition(cycle, StateExplainTimedOut, StateEmitted)
	}
	a.logger.Info("decision emitted",
		zap.String("decision_id", decision.ID),
		zap.String("patient_id", decision.PatientID),
		zap.String("action", string(decision.Action)),
		zap.String("target_unit_id", decision.TargetUnitID),
		zap.Bool("stale", decision.Stale))
	return decision, nil
}

// policy applies the threshold rules to the ranked candidates.
func (a *Agent) policy(rec *hospital.Recommendation) (hospital.Action, string) {
	top := rec.Top()

	if top != nil && top.WeightedTotal >= a.thresholds.Escalate {
		return hospital.ActionEscalate, top.UnitID
	}
	if top == nil && rec.RiskScore >= a.thresholds.CriticalRisk {
		// Capacity emergency: a critical patient with nowhere to go.
		return hospital.ActionEscalate, ""
	}
	if rec.RiskScore >= a.thresholds.HighRisk {
		return hospital.ActionObserve, ""
	}
	if top == nil {
		return hospital.ActionDelay, ""
	}
	if p, err := a.store.GetPatient(rec.PatientID); err == nil &&
		p.UnitID != "" && p.UnitType != hospital.UnitTypeED {
		return hospital.ActionTransfer, top.UnitID
	}
	return hospital.ActionAdmit, top.UnitID
}

// explainDecision makes the single bounded explainer call. On any failure it
// substitutes the deterministic template; the second return reports whether
// the external explanation succeeded.
func (a *Agent) explainDecision(ctx context.Context, patient *hospital.Patient,
	rec *hospital.Recommendation, action hospital.Action, target string) (string, bool) {
	req := explain.Request{
		PatientID:  rec.PatientID,
		Action:     action,
		TargetUnit: target,
		RiskScore:  rec.RiskScore,
		Trajectory: rec.Trajectory,
		Scores:     rec.Top(),
	}
	if patient != nil {
		req.PatientName = patient.Name
		req.WaitMinutes = patient.WaitMinutes(a.now())
	}

	explainCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text, err := a.explainer.Explain(explainCtx, req)
	if err != nil {
		a.logger.Debug("explainer unavailable, using template",
			zap.String("patient_id", rec.PatientID), zap.Error(err))
		return explain.Template(req), false
	}
	return text, true
}

func (a *Agent) transition(logger *zap.Logger, from, to CycleState) {
	logger.Debug("cycle transition",
		zap.String("from", string(from)), zap.String("to", string(to)))
}
