package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/baseline"
	"github.com/platformbuilds/becertain-core/internal/models"
	"github.com/platformbuilds/becertain-core/pkg/cache"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// BaselineStore caches per-metric baselines and blends fresh computations
// into warm entries.
type BaselineStore struct {
	kv  cache.KVStore
	ttl time.Duration
	cfg config.BaselineConfig
	log logger.Logger
}

func NewBaselineStore(kv cache.KVStore, storeCfg config.StoreConfig, cfg config.BaselineConfig, log logger.Logger) *BaselineStore {
	return &BaselineStore{
		kv:  kv,
		ttl: time.Duration(storeCfg.BaselineTTL) * time.Second,
		cfg: cfg,
		log: log,
	}
}

// Load returns the cached baseline or nil on miss or decode failure.
func (s *BaselineStore) Load(ctx context.Context, tenantID, metricName string) *models.Baseline {
	raw, err := s.kv.Get(ctx, baselineKey(tenantID, metricName))
	if err != nil || len(raw) == 0 {
		return nil
	}
	var b models.Baseline
	if err := json.Unmarshal(raw, &b); err != nil {
		s.log.Debug("baseline decode failed", "tenant_id", tenantID, "metric", metricName, "error", err)
		return nil
	}
	return &b
}

// Save persists a baseline with the configured TTL. Failures are logged
// and swallowed.
func (s *BaselineStore) Save(ctx context.Context, tenantID, metricName string, b models.Baseline) {
	if err := s.kv.Set(ctx, baselineKey(tenantID, metricName), b, s.ttl); err != nil {
		s.log.Debug("baseline save failed", "tenant_id", tenantID, "metric", metricName, "error", err)
	}
}

// ComputeAndPersist derives a fresh baseline from the series, blends it
// into the cached one when that carries enough samples, and persists the
// result.
func (s *BaselineStore) ComputeAndPersist(ctx context.Context, tenantID, metricName string, ts, vals []float64, zThreshold float64) models.Baseline {
	fresh := baseline.Compute(ts, vals, zThreshold, s.cfg)

	result := fresh
	if cached := s.Load(ctx, tenantID, metricName); cached != nil && cached.SampleCount >= s.cfg.BlendMinSamples {
		result = baseline.Blend(*cached, fresh, s.cfg.BlendAlpha)
	}

	s.Save(ctx, tenantID, metricName, result)
	return result
}
