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

// WeightsStore persists each tenant's adaptive signal weights.
type WeightsStore struct {
	kv  cache.KVStore
	ttl time.Duration
	log logger.Logger
}

func NewWeightsStore(kv cache.KVStore, cfg config.StoreConfig, log logger.Logger) *WeightsStore {
	return &WeightsStore{kv: kv, ttl: time.Duration(cfg.WeightsTTL) * time.Second, log: log}
}

// Load returns the stored weights or nil on miss or malformed payload.
// A negative update count is clamped to zero.
func (s *WeightsStore) Load(ctx context.Context, tenantID string) *models.TenantSignalWeights {
	raw, err := s.kv.Get(ctx, weightsKey(tenantID))
	if err != nil || len(raw) == 0 {
		return nil
	}
	var payload models.TenantSignalWeights
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Weights == nil {
		s.log.Debug("weights decode failed", "tenant_id", tenantID, "error", err)
		return nil
	}
	if payload.UpdateCount < 0 {
		payload.UpdateCount = 0
	}
	return &payload
}

func (s *WeightsStore) Save(ctx context.Context, tenantID string, w models.TenantSignalWeights) {
	if err := s.kv.Set(ctx, weightsKey(tenantID), w, s.ttl); err != nil {
		s.log.Debug("weights save failed", "tenant_id", tenantID, "error", err)
	}
}

func (s *WeightsStore) Delete(ctx context.Context, tenantID string) {
	if err := s.kv.Delete(ctx, weightsKey(tenantID)); err != nil {
		s.log.Debug("weights delete failed", "tenant_id", tenantID, "error", err)
	}
}
