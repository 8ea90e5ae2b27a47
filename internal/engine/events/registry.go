// Package events provides the request-scoped deployment event registry the
// RCA layer consults for deployment nearness.
package events

import (
	"math"

	"github.com/platformbuilds/becertain-core/internal/models"
)

// Registry is an in-memory view of a tenant's deployment events for one
// analysis window. It is not safe for concurrent mutation.
type Registry struct {
	events []models.DeploymentEvent
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(event models.DeploymentEvent) {
	r.events = append(r.events, event)
}

func (r *Registry) RegisterMany(events []models.DeploymentEvent) {
	r.events = append(r.events, events...)
}

// InWindow returns events with start <= timestamp <= end.
func (r *Registry) InWindow(start, end float64) []models.DeploymentEvent {
	var out []models.DeploymentEvent
	for _, e := range r.events {
		if e.Timestamp >= start && e.Timestamp <= end {
			out = append(out, e)
		}
	}
	return out
}

// NearTimestamp returns events within windowSeconds of ts on either side.
func (r *Registry) NearTimestamp(ts, windowSeconds float64) []models.DeploymentEvent {
	return r.InWindow(ts-windowSeconds, ts+windowSeconds)
}

func (r *Registry) ForService(service string) []models.DeploymentEvent {
	var out []models.DeploymentEvent
	for _, e := range r.events {
		if e.Service == service {
			out = append(out, e)
		}
	}
	return out
}

// MostRecent returns the latest event for a service, or nil.
func (r *Registry) MostRecent(service string) *models.DeploymentEvent {
	var best *models.DeploymentEvent
	bestTs := math.Inf(-1)
	for i := range r.events {
		e := &r.events[i]
		if e.Service == service && e.Timestamp > bestTs {
			best = e
			bestTs = e.Timestamp
		}
	}
	return best
}

func (r *Registry) ListAll() []models.DeploymentEvent {
	return append([]models.DeploymentEvent(nil), r.events...)
}

func (r *Registry) Clear() {
	r.events = nil
}
