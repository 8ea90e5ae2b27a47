package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/models"
	"github.com/platformbuilds/becertain-core/pkg/cache"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// EventStore keeps a capped, TTL-bounded append log of deployment events
// per tenant.
type EventStore struct {
	kv        cache.KVStore
	ttl       time.Duration
	maxEvents int
	log       logger.Logger
}

func NewEventStore(kv cache.KVStore, cfg config.StoreConfig, log logger.Logger) *EventStore {
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &EventStore{
		kv:        kv,
		ttl:       time.Duration(cfg.EventsTTL) * time.Second,
		maxEvents: maxEvents,
		log:       log,
	}
}

// Append adds an event to the tenant's log, trimming the oldest entries
// beyond the cap.
func (s *EventStore) Append(ctx context.Context, tenantID string, event models.DeploymentEvent) {
	raw, err := json.Marshal(event)
	if err != nil {
		s.log.Debug("event encode failed", "tenant_id", tenantID, "error", err)
		return
	}
	if err := s.kv.RPush(ctx, eventsKey(tenantID), string(raw), s.ttl, s.maxEvents); err != nil {
		s.log.Debug("event append failed", "tenant_id", tenantID, "error", err)
	}
}

// Load returns the tenant's events in append order, skipping entries that
// no longer decode.
func (s *EventStore) Load(ctx context.Context, tenantID string) []models.DeploymentEvent {
	items, err := s.kv.LRange(ctx, eventsKey(tenantID))
	if err != nil {
		s.log.Debug("events load failed", "tenant_id", tenantID, "error", err)
		return nil
	}
	out := make([]models.DeploymentEvent, 0, len(items))
	for _, item := range items {
		var e models.DeploymentEvent
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

// InWindow filters the tenant's events to [start, end].
func (s *EventStore) InWindow(ctx context.Context, tenantID string, start, end float64) []models.DeploymentEvent {
	var out []models.DeploymentEvent
	for _, e := range s.Load(ctx, tenantID) {
		if e.Timestamp >= start && e.Timestamp <= end {
			out = append(out, e)
		}
	}
	return out
}

func (s *EventStore) Clear(ctx context.Context, tenantID string) {
	if err := s.kv.Delete(ctx, eventsKey(tenantID)); err != nil {
		s.log.Debug("events clear failed", "tenant_id", tenantID, "error", err)
	}
}
