package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/models"
	"github.com/platformbuilds/becertain-core/pkg/cache"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

func storeConfig() config.StoreConfig {
	return config.StoreConfig{
		BaselineTTL: 86400,
		GrangerTTL:  604800,
		EventsTTL:   2592000,
		WeightsTTL:  604800,
		MaxEvents:   500,
	}
}

func baselineConfig() config.BaselineConfig {
	return config.BaselineConfig{
		ZScoreThreshold:    3.0,
		MinSamples:         6,
		SeasonalMinSamples: 24,
		BlendMinSamples:    20,
		BlendAlpha:         0.1,
	}
}

func registryConfig() config.RegistryConfig {
	return config.RegistryConfig{
		Alpha:          0.2,
		DefaultWeights: map[string]float64{"metrics": 0.30, "logs": 0.35, "traces": 0.35},
	}
}

func testKV(t *testing.T) cache.KVStore {
	t.Helper()
	return cache.NewMemoryStore(0, logger.NewNop())
}

func TestKeySlugsBoundLength(t *testing.T) {
	long := baselineKey("t1", string(make([]byte, 4096)))
	assert.Less(t, len(long), 64)
	assert.Equal(t, baselineKey("t1", "m"), baselineKey("t1", "m"))
	assert.NotEqual(t, baselineKey("t1", "m"), baselineKey("t2", "m"))
}

func TestBaselineComputeAndPersistBlends(t *testing.T) {
	ctx := context.Background()
	s := NewBaselineStore(testKV(t), storeConfig(), baselineConfig(), logger.NewNop())

	cached := models.Baseline{Mean: 100, Std: 10, Lower: 70, Upper: 130, SampleCount: 50}
	s.Save(ctx, "t1", "cpu", cached)

	ts := make([]float64, 10)
	vals := make([]float64, 10)
	for i := range ts {
		ts[i] = float64(i * 60)
		vals[i] = 200.0
	}

	result := s.ComputeAndPersist(ctx, "t1", "cpu", ts, vals, 3.0)
	// 0.9*100 + 0.1*200 with the fresh std floored to 1.0
	assert.InDelta(t, 110.0, result.Mean, 1e-6)
	assert.Equal(t, 60, result.SampleCount)

	reloaded := s.Load(ctx, "t1", "cpu")
	require.NotNil(t, reloaded)
	assert.InDelta(t, result.Mean, reloaded.Mean, 1e-9)
}

func TestBaselineColdCacheTakesFresh(t *testing.T) {
	ctx := context.Background()
	s := NewBaselineStore(testKV(t), storeConfig(), baselineConfig(), logger.NewNop())

	ts := []float64{0, 60, 120, 180, 240, 300}
	vals := []float64{5, 5, 5, 5, 5, 5}
	result := s.ComputeAndPersist(ctx, "t1", "cpu", ts, vals, 3.0)
	assert.Equal(t, 5.0, result.Mean)
	assert.Equal(t, 6, result.SampleCount)
}

func TestWeightsRoundTripAndClamp(t *testing.T) {
	ctx := context.Background()
	s := NewWeightsStore(testKV(t), storeConfig(), logger.NewNop())

	assert.Nil(t, s.Load(ctx, "t1"))

	s.Save(ctx, "t1", models.TenantSignalWeights{
		Weights:     map[string]float64{"metrics": 0.5, "logs": 0.5},
		UpdateCount: -3,
	})
	loaded := s.Load(ctx, "t1")
	require.NotNil(t, loaded)
	assert.Equal(t, 0, loaded.UpdateCount)

	s.Delete(ctx, "t1")
	assert.Nil(t, s.Load(ctx, "t1"))
}

func TestEventStoreAppendLoadWindow(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore(testKV(t), storeConfig(), logger.NewNop())

	s.Append(ctx, "t1", models.DeploymentEvent{Service: "api", Timestamp: 100, Version: "v1"})
	s.Append(ctx, "t1", models.DeploymentEvent{Service: "api", Timestamp: 200, Version: "v2"})
	s.Append(ctx, "t2", models.DeploymentEvent{Service: "api", Timestamp: 150, Version: "other-tenant"})

	events := s.Load(ctx, "t1")
	require.Len(t, events, 2)
	assert.Equal(t, "v1", events[0].Version)

	windowed := s.InWindow(ctx, "t1", 150, 250)
	require.Len(t, windowed, 1)
	assert.Equal(t, "v2", windowed[0].Version)

	s.Clear(ctx, "t1")
	assert.Empty(t, s.Load(ctx, "t1"))
	assert.Len(t, s.Load(ctx, "t2"), 1, "other tenants keep their events")
}

func TestGrangerSaveAndMergeKeepsStrongest(t *testing.T) {
	ctx := context.Background()
	s := NewGrangerStore(testKV(t), storeConfig(), logger.NewNop())

	first := s.SaveAndMerge(ctx, "t1", "api", []models.GrangerResult{
		{CauseMetric: "cpu", EffectMetric: "latency", Strength: 0.4, IsCausal: true},
	})
	require.Len(t, first, 1)

	merged := s.SaveAndMerge(ctx, "t1", "api", []models.GrangerResult{
		{CauseMetric: "cpu", EffectMetric: "latency", Strength: 0.9, IsCausal: true},
		{CauseMetric: "mem", EffectMetric: "latency", Strength: 0.2, IsCausal: true},
	})
	require.Len(t, merged, 2)
	assert.Equal(t, 0.9, merged[0].Strength)
	assert.Equal(t, "cpu", merged[0].CauseMetric)

	weaker := s.SaveAndMerge(ctx, "t1", "api", []models.GrangerResult{
		{CauseMetric: "cpu", EffectMetric: "latency", Strength: 0.1, IsCausal: true},
	})
	assert.Equal(t, 0.9, weaker[0].Strength, "weaker rerun must not overwrite")
}

func TestGrangerLoadAllServices(t *testing.T) {
	ctx := context.Background()
	s := NewGrangerStore(testKV(t), storeConfig(), logger.NewNop())

	s.SaveAndMerge(ctx, "t1", "api", []models.GrangerResult{
		{CauseMetric: "a", EffectMetric: "b", Strength: 0.5, IsCausal: true},
	})
	s.SaveAndMerge(ctx, "t1", "worker", []models.GrangerResult{
		{CauseMetric: "a", EffectMetric: "b", Strength: 0.8, IsCausal: true},
		{CauseMetric: "c", EffectMetric: "d", Strength: 0.3, IsCausal: true},
	})

	all := s.LoadAllServices(ctx, "t1", []string{"api", "worker"})
	require.Len(t, all, 2)
	assert.Equal(t, 0.8, all[0].Strength)
}

func TestRegistryTenantIsolation(t *testing.T) {
	ctx := context.Background()
	r := NewTenantRegistry(testKV(t), storeConfig(), registryConfig(), logger.NewNop())

	for i := 0; i < 10; i++ {
		r.UpdateWeight(ctx, "t1", "metrics", true)
	}

	t1 := r.State(ctx, "t1").Snapshot()
	t2 := r.State(ctx, "t2").Snapshot()
	assert.Equal(t, 10, t1.UpdateCount)
	assert.Equal(t, 0, t2.UpdateCount)
	assert.Greater(t, t1.Weights["metrics"], t2.Weights["metrics"])
}

func TestRegistryPersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	kv := testKV(t)

	r1 := NewTenantRegistry(kv, storeConfig(), registryConfig(), logger.NewNop())
	r1.UpdateWeight(ctx, "t1", "logs", true)
	r1.UpdateWeight(ctx, "t1", "logs", true)

	r2 := NewTenantRegistry(kv, storeConfig(), registryConfig(), logger.NewNop())
	state := r2.State(ctx, "t1").Snapshot()
	assert.Equal(t, 2, state.UpdateCount)
}

func TestRegistryResetRestoresDefaults(t *testing.T) {
	ctx := context.Background()
	r := NewTenantRegistry(testKV(t), storeConfig(), registryConfig(), logger.NewNop())

	r.UpdateWeight(ctx, "t1", "traces", false)
	reset := r.ResetWeights(ctx, "t1")
	assert.Equal(t, 0, reset.UpdateCount)
	assert.InDelta(t, 0.30, reset.Weights["metrics"], 1e-9)
}
