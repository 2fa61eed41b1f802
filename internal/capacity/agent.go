package capacity

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adaptivecare/pulse/internal/store"
	"github.com/adaptivecare/pulse/pkg/bus"
	"github.com/adaptivecare/pulse/pkg/hospital"
)

// Agent consumes state-transition events, applies unit deltas through the
// store's atomic primitive and publishes a fresh snapshot after every change.
// Deltas the store rejects are logged and the event is ignored; the unit is
// left exactly as it was.
type Agent struct {
	client   *bus.Client
	store    *store.Store
	forecast Forecast
	logger   *zap.Logger

	now func() int64
}

// NewAgent creates a capacity agent.
func NewAgent(client *bus.Client, st *store.Store, forecast Forecast, logger *zap.Logger) *Agent {
	return &Agent{
		client:   client,
		store:    st,
		forecast: forecast,
		logger:   logger.With(zap.String("component", "capacity-agent")),
		now:      func() int64 { return time.Now().UnixMilli() },
	}
}

// Run subscribes to the state-transition topics and processes events until
// the context is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	sub, err := a.client.Subscribe(ctx,
		bus.TopicArrival, bus.TopicDischarge, bus.TopicTransfer, bus.TopicStaffing)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Close()

	a.logger.Info("capacity agent started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("capacity agent shutting down")
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
				a.logger.Error("failed to process event",
					zap.String("type", string(event.Type)), zap.Error(err))
			}

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			a.logger.Warn("subscription error", zap.Error(err))
		}
	}
}

// handle applies one state-transition event and publishes the resulting
// snapshot. Validation failures and rejected deltas are logged, the event is
// dropped and no snapshot is published.
func (a *Agent) handle(ctx context.Context, event *hospital.InboundEvent) error {
	if err := event.Validate(); err != nil {
		a.logger.Warn("dropping invalid event", zap.Error(err))
		return nil
	}

	var err error
	switch event.Type {
	case hospital.EventArrival:
		err = a.handleArrival(event)
	case hospital.EventDischarge:
		err = a.handleDischarge(event)
	case hospital.EventTransfer:
		err = a.handleTransfer(event)
	case hospital.EventStaffing:
		_, err = a.store.ApplyUnitDelta(event.UnitID, 0, event.StaffDelta)
	default:
		a.logger.Debug("ignoring event type", zap.String("type", string(event.Type)))
		return nil
	}
	if err != nil {
		if store.IsNotFound(err) || store.IsCapacityViolation(err) {
			a.logger.Warn("rejecting event", zap.String("type", string(event.Type)), zap.Error(err))
			return nil
		}
		return err
	}

	return a.publishSnapshot(ctx)
}

// handleArrival registers the patient and takes a bed in the arrival unit.
// When the unit is already full the patient is registered unplaced and waits
// for the flow pipeline to find them a bed.
func (a *Agent) handleArrival(event *hospital.InboundEvent) error {
	nowMs := a.now()
	p := &hospital.Patient{
		ID:            event.PatientID,
		Name:          event.Arrival.Name,
		Age:           event.Arrival.Age,
		AcuityLevel:   event.Arrival.AcuityLevel,
		ArrivedAtMs:   event.OccurredAtMs,
		LastUpdatedMs: nowMs,
	}

	unit, err := a.store.ApplyUnitDelta(event.Arrival.UnitID, -1, 0)
	switch {
	case err == nil:
		p.UnitID = unit.ID
		p.UnitType = unit.Type
	case store.IsCapacityViolation(err):
		a.logger.Warn("arrival unit full, patient waits unplaced",
			zap.String("patient_id", p.ID), zap.String("unit_id", event.Arrival.UnitID))
	default:
		return err
	}

	return a.store.UpsertPatient(p)
}

// handleDischarge tombstones the patient and frees their bed.
func (a *Agent) handleDischarge(event *hospital.InboundEvent) error {
	p, err := a.store.Tombstone(event.PatientID, a.now())
	if err != nil {
		return err
	}
	if p.UnitID == "" {
		return nil
	}
	if _, err := a.store.ApplyUnitDelta(p.UnitID, 1, 0); err != nil {
		return err
	}
	return a.store.AdjustPendingDischarges(p.UnitID, -1)
}

// handleTransfer moves the patient between units: the destination bed is
// claimed first, so a full destination rejects the whole event and the source
// unit is untouched. A transfer for a discharged patient is rejected outright;
// their bed was already freed at discharge.
func (a *Agent) handleTransfer(event *hospital.InboundEvent) error {
	p, err := a.store.GetPatient(event.PatientID)
	if err != nil {
		return err
	}
	if p.Tombstoned {
		return fmt.Errorf("patient %q is discharged: %w", p.ID, store.ErrPatientNotFound)
	}

	dest, err := a.store.ApplyUnitDelta(event.ToUnitID, -1, 0)
	if err != nil {
		return err
	}
	if p.UnitID != "" {
		if _, err := a.store.ApplyUnitDelta(p.UnitID, 1, 0); err != nil {
			return err
		}
	}
	return a.store.SetLocation(p.ID, dest.ID, dest.Type, a.now())
}

// publishSnapshot recomputes the wholesale capacity view and publishes it.
func (a *Agent) publishSnapshot(ctx context.Context) error {
	snap := a.Snapshot()
	if err := a.client.Publish(ctx, bus.TopicCapacityUpdate, snap); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	a.logger.Info("capacity snapshot published",
		zap.Int("total_available", snap.TotalAvailable),
		zap.Float64("overall_occupancy", snap.OverallOccupancy))
	return nil
}

// Snapshot builds the current capacity view from the store.
func (a *Agent) Snapshot() *hospital.CapacitySnapshot {
	waiting := 0
	for _, p := range a.store.ListPatients() {
		if p.UnitID == "" || p.UnitType == hospital.UnitTypeED {
			waiting++
		}
	}
	return BuildSnapshot(a.store.ListUnits(), waiting, a.forecast, a.now())
}
