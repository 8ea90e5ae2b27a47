package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/becertain-core/internal/models"
)

func seeded() *Registry {
	r := NewRegistry()
	r.RegisterMany([]models.DeploymentEvent{
		{Service: "api", Timestamp: 100, Version: "v1"},
		{Service: "api", Timestamp: 300, Version: "v2"},
		{Service: "worker", Timestamp: 200, Version: "w1"},
	})
	return r
}

func TestInWindowBoundsInclusive(t *testing.T) {
	r := seeded()
	got := r.InWindow(100, 200)
	require.Len(t, got, 2)
	assert.Equal(t, "v1", got[0].Version)
	assert.Equal(t, "w1", got[1].Version)

	assert.Empty(t, r.InWindow(301, 400))
}

func TestNearTimestamp(t *testing.T) {
	r := seeded()
	got := r.NearTimestamp(250, 60)
	require.Len(t, got, 2)
	assert.Equal(t, "v2", got[0].Version)
	assert.Equal(t, "w1", got[1].Version)
}

func TestForServiceAndMostRecent(t *testing.T) {
	r := seeded()
	assert.Len(t, r.ForService("api"), 2)
	assert.Empty(t, r.ForService("db"))

	latest := r.MostRecent("api")
	require.NotNil(t, latest)
	assert.Equal(t, "v2", latest.Version)
	assert.Nil(t, r.MostRecent("db"))
}

func TestListAllReturnsCopy(t *testing.T) {
	r := seeded()
	all := r.ListAll()
	require.Len(t, all, 3)
	all[0].Version = "mutated"
	assert.Equal(t, "v1", r.ListAll()[0].Version)
}

func TestClear(t *testing.T) {
	r := seeded()
	r.Clear()
	assert.Empty(t, r.ListAll())
	r.Register(models.DeploymentEvent{Service: "api", Timestamp: 500})
	assert.Len(t, r.ListAll(), 1)
}
