package store

import (
	"context"
	"sync"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/ml"
	"github.com/platformbuilds/becertain-core/internal/models"
	"github.com/platformbuilds/becertain-core/pkg/cache"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// TenantRegistry fronts the per-tenant adaptive state: signal weights
// held in memory and persisted through the weights store, and deployment
// events persisted through the event store. State is partitioned by
// tenant ID; nothing crosses tenants.
type TenantRegistry struct {
	mu      sync.Mutex
	states  map[string]*ml.SignalWeights
	weights *WeightsStore
	events  *EventStore
	cfg     config.RegistryConfig
}

func NewTenantRegistry(kv cache.KVStore, storeCfg config.StoreConfig, cfg config.RegistryConfig, log logger.Logger) *TenantRegistry {
	return &TenantRegistry{
		states:  map[string]*ml.SignalWeights{},
		weights: NewWeightsStore(kv, storeCfg, log),
		events:  NewEventStore(kv, storeCfg, log),
		cfg:     cfg,
	}
}

// State returns the tenant's weights, loading persisted state on first
// touch and falling back to the configured defaults.
func (r *TenantRegistry) State(ctx context.Context, tenantID string) *ml.SignalWeights {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked(ctx, tenantID)
}

func (r *TenantRegistry) stateLocked(ctx context.Context, tenantID string) *ml.SignalWeights {
	if state, ok := r.states[tenantID]; ok {
		return state
	}
	state := ml.NewSignalWeights(r.cfg.DefaultWeights, r.cfg.Alpha)
	if stored := r.weights.Load(ctx, tenantID); stored != nil {
		state.Load(*stored, r.cfg.DefaultWeights)
	}
	r.states[tenantID] = state
	return state
}

// UpdateWeight applies one reward observation and persists the result.
func (r *TenantRegistry) UpdateWeight(ctx context.Context, tenantID, signal string, wasCorrect bool) models.TenantSignalWeights {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.stateLocked(ctx, tenantID)
	state.Update(signal, wasCorrect)
	snapshot := state.Snapshot()
	r.weights.Save(ctx, tenantID, snapshot)
	return snapshot
}

// ResetWeights restores the defaults and drops persisted state.
func (r *TenantRegistry) ResetWeights(ctx context.Context, tenantID string) models.TenantSignalWeights {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.stateLocked(ctx, tenantID)
	state.Reset(r.cfg.DefaultWeights)
	r.weights.Delete(ctx, tenantID)
	delete(r.states, tenantID)
	return state.Snapshot()
}

// RegisterEvent appends a deployment event to the tenant's log.
func (r *TenantRegistry) RegisterEvent(ctx context.Context, tenantID string, event models.DeploymentEvent) {
	r.events.Append(ctx, tenantID, event)
}

// Events returns all stored deployment events for the tenant.
func (r *TenantRegistry) Events(ctx context.Context, tenantID string) []models.DeploymentEvent {
	return r.events.Load(ctx, tenantID)
}

// EventsInWindow returns events with timestamp in [start, end].
func (r *TenantRegistry) EventsInWindow(ctx context.Context, tenantID string, start, end float64) []models.DeploymentEvent {
	return r.events.InWindow(ctx, tenantID, start, end)
}

// ClearEvents drops the tenant's event log.
func (r *TenantRegistry) ClearEvents(ctx context.Context, tenantID string) {
	r.events.Clear(ctx, tenantID)
}
