package store

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/models"
	"github.com/platformbuilds/becertain-core/pkg/cache"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// GrangerStore keeps per-service Granger histories, merged so each
// cause/effect pair retains its strongest observation.
type GrangerStore struct {
	kv  cache.KVStore
	ttl time.Duration
	log logger.Logger
}

func NewGrangerStore(kv cache.KVStore, cfg config.StoreConfig, log logger.Logger) *GrangerStore {
	return &GrangerStore{kv: kv, ttl: time.Duration(cfg.GrangerTTL) * time.Second, log: log}
}

func pairKey(cause, effect string) string {
	return cause + ">>>" + effect
}

// Load returns the cached history for one service, or nil.
func (s *GrangerStore) Load(ctx context.Context, tenantID, service string) []models.GrangerResult {
	raw, err := s.kv.Get(ctx, grangerKey(tenantID, service))
	if err != nil || len(raw) == 0 {
		return nil
	}
	var out []models.GrangerResult
	if err := json.Unmarshal(raw, &out); err != nil {
		s.log.Debug("granger decode failed", "tenant_id", tenantID, "service", service, "error", err)
		return nil
	}
	return out
}

// SaveAndMerge folds fresh results into the cached history, keeping the
// stronger entry per pair, persists and returns the merged set sorted by
// strength.
func (s *GrangerStore) SaveAndMerge(ctx context.Context, tenantID, service string, fresh []models.GrangerResult) []models.GrangerResult {
	stored := map[string]models.GrangerResult{}
	for _, r := range s.Load(ctx, tenantID, service) {
		stored[pairKey(r.CauseMetric, r.EffectMetric)] = r
	}
	for _, r := range fresh {
		pk := pairKey(r.CauseMetric, r.EffectMetric)
		if existing, ok := stored[pk]; !ok || r.Strength > existing.Strength {
			stored[pk] = r
		}
	}

	merged := make([]models.GrangerResult, 0, len(stored))
	for _, r := range stored {
		merged = append(merged, r)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Strength != merged[j].Strength {
			return merged[i].Strength > merged[j].Strength
		}
		return pairKey(merged[i].CauseMetric, merged[i].EffectMetric) < pairKey(merged[j].CauseMetric, merged[j].EffectMetric)
	})

	if err := s.kv.Set(ctx, grangerKey(tenantID, service), merged, s.ttl); err != nil {
		s.log.Debug("granger save failed", "tenant_id", tenantID, "service", service, "error", err)
	}
	return merged
}

// LoadAllServices merges the histories of several services, keeping the
// strongest entry per pair.
func (s *GrangerStore) LoadAllServices(ctx context.Context, tenantID string, services []string) []models.GrangerResult {
	all := map[string]models.GrangerResult{}
	for _, svc := range services {
		for _, r := range s.Load(ctx, tenantID, svc) {
			pk := pairKey(r.CauseMetric, r.EffectMetric)
			if existing, ok := all[pk]; !ok || r.Strength > existing.Strength {
				all[pk] = r
			}
		}
	}
	merged := make([]models.GrangerResult, 0, len(all))
	for _, r := range all {
		merged = append(merged, r)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Strength != merged[j].Strength {
			return merged[i].Strength > merged[j].Strength
		}
		return pairKey(merged[i].CauseMetric, merged[i].EffectMetric) < pairKey(merged[j].CauseMetric, merged[j].EffectMetric)
	})
	return merged
}
