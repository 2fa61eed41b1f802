// Package orchestrator wires the agents together and owns their lifecycle.
// Each agent consumes its own bus subscription in its own goroutine; the
// engine propagates cancellation, audits the store and serves health.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/adaptivecare/pulse/internal/capacity"
	"github.com/adaptivecare/pulse/internal/config"
	"github.com/adaptivecare/pulse/internal/escalation"
	"github.com/adaptivecare/pulse/internal/explain"
	"github.com/adaptivecare/pulse/internal/flow"
	"github.com/adaptivecare/pulse/internal/journal"
	"github.com/adaptivecare/pulse/internal/mcda"
	"github.com/adaptivecare/pulse/internal/risk"
	"github.com/adaptivecare/pulse/internal/store"
	"github.com/adaptivecare/pulse/pkg/bus"
	"github.com/adaptivecare/pulse/pkg/hospital"
)

// storeAuditInterval is how often the engine re-checks store invariants.
const storeAuditInterval = 5 * time.Second

// agent is one event-consuming loop. Run blocks until the context is
// cancelled or the agent fails fatally.
type agent interface {
	Run(ctx context.Context) error
}

// Engine owns the decision pipeline.
type Engine struct {
	cfg          *config.Config
	client       *bus.Client
	store        *store.Store
	healthServer *HealthServer
	agents       []agent
	logger       *zap.Logger

	corrupted atomic.Bool
}

// NewEngine builds the full pipeline from config: state store seeded with the
// configured units, journal, MCDA engine, explainer and the four agents.
func NewEngine(cfg *config.Config, client *bus.Client, logger *zap.Logger) (*Engine, error) {
	st := store.New()
	for _, uc := range cfg.Units {
		unit := &hospital.Unit{
			ID:                uc.ID,
			Name:              uc.Name,
			Type:              uc.Type,
			TotalBeds:         uc.TotalBeds,
			AvailableBeds:     uc.AvailableBeds,
			AvailableStaff:    uc.AvailableStaff,
			PendingDischarges: uc.PendingDischarges,
		}
		if err := st.RegisterUnit(unit); err != nil {
			return nil, fmt.Errorf("failed to register unit %q: %w", uc.ID, err)
		}
	}

	jrnl, err := journal.New(client.Redis(), client.InstanceName())
	if err != nil {
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}

	var explainer explain.Explainer = explain.NullExplainer{}
	if cfg.Explainer.Endpoint != "" {
		explainer = explain.NewHTTPExplainer(cfg.Explainer.Endpoint, cfg.Explainer.Timeout.Std())
	}

	engine := mcda.New(cfg.Weights, cfg.Thresholds.Escalate)
	forecast := capacity.Forecast{
		HorizonMinutes:     cfg.Forecast.HorizonMinutes,
		TrendWindowMinutes: cfg.Forecast.TrendWindowMinutes,
	}

	capacityAgent := capacity.NewAgent(client, st, forecast, logger)
	riskAgent := risk.NewAgent(client, st, cfg.Thresholds.CriticalRisk, logger)
	flowAgent := flow.NewAgent(client, st, engine,
		flow.Eligibility(cfg.Eligibility), capacityAgent.Snapshot, logger)
	escalationAgent := escalation.NewAgent(client, st, jrnl, explainer,
		cfg.Thresholds, cfg.Explainer.Timeout.Std(), logger)

	e := &Engine{
		cfg:    cfg,
		client: client,
		store:  st,
		agents: []agent{capacityAgent, riskAgent, flowAgent, escalationAgent},
		logger: logger.With(zap.String("component", "orchestrator")),
	}
	e.healthServer = NewHealthServer(client, cfg.HealthAddr, e.corrupted.Load, logger)
	return e, nil
}

// Store exposes the engine's state store for integration tests.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Run starts every agent and blocks until the context is cancelled or an
// agent fails. Store corruption is process-fatal: emission stops and the
// health check goes unhealthy before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.healthServer.Start(); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}
	defer e.healthServer.Shutdown(context.Background())

	e.logger.Info("starting decision pipeline",
		zap.String("instance", e.cfg.Instance),
		zap.Int("units", len(e.cfg.Units)))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(e.agents)+1)
	var wg sync.WaitGroup
	for _, a := range e.agents {
		wg.Add(1)
		go func(a agent) {
			defer wg.Done()
			if err := a.Run(runCtx); err != nil {
				errCh <- err
				cancel()
			}
		}(a)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := e.auditLoop(runCtx); err != nil {
			errCh <- err
			cancel()
		}
	}()

	wg.Wait()
	close(errCh)

	if err, ok := <-errCh; ok {
		return err
	}
	e.logger.Info("decision pipeline stopped")
	return nil
}

// auditLoop periodically re-checks store invariants. A failed audit means a
// guard was bypassed; the process must stop emitting decisions.
func (e *Engine) auditLoop(ctx context.Context) error {
	ticker := time.NewTicker(storeAuditInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := e.store.Check(); err != nil {
				e.corrupted.Store(true)
				e.logger.Error("store invariant audit failed, halting", zap.Error(err))
				return err
			}
		}
	}
}
