// Package topology builds the service dependency graph from trace spans and
// answers blast-radius, upstream-root and critical-path queries over it.
package topology

import (
	"sort"

	"github.com/platformbuilds/becertain-core/internal/models"
)

// BlastRadius is the downstream reach of a failing service.
type BlastRadius struct {
	RootService        string   `json:"root_service"`
	AffectedDownstream []string `json:"affected_downstream"`
	Depth              int      `json:"depth"`
}

// DependencyGraph is a directed caller→callee graph.
type DependencyGraph struct {
	forward map[string]map[string]bool
	reverse map[string]map[string]bool
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		forward: map[string]map[string]bool{},
		reverse: map[string]map[string]bool{},
	}
}

// AddCall records one caller→callee edge. Self-calls and empty names are
// ignored.
func (g *DependencyGraph) AddCall(caller, callee string) {
	if caller == callee || caller == "" || callee == "" {
		return
	}
	if g.forward[caller] == nil {
		g.forward[caller] = map[string]bool{}
	}
	if g.reverse[callee] == nil {
		g.reverse[callee] = map[string]bool{}
	}
	g.forward[caller][callee] = true
	g.reverse[callee][caller] = true
}

// FromTraces extracts call edges from trace span attributes. A span that
// names both its own service and a peer becomes an edge; spans with only a
// peer are attributed to the trace's root service.
func (g *DependencyGraph) FromTraces(traces []models.Trace) {
	for _, trace := range traces {
		for _, span := range trace.AllSpans() {
			svc, _ := span.Attribute("service.name")
			peer, ok := span.Attribute("peer.service")
			if !ok {
				peer, _ = span.Attribute("db.name")
			}
			switch {
			case svc != "" && peer != "":
				g.AddCall(svc, peer)
			case trace.RootServiceName != "" && peer != "":
				g.AddCall(trace.RootServiceName, peer)
			}
		}
	}
}

// BlastRadius walks downstream from root up to maxDepth hops. Each service
// is counted once.
func (g *DependencyGraph) BlastRadius(root string, maxDepth int) BlastRadius {
	affected := []string{}
	seen := map[string]bool{root: true}
	type item struct {
		node  string
		depth int
	}
	queue := []item{{root, 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, next := range sortedKeys(g.forward[cur.node]) {
			if !seen[next] {
				seen[next] = true
				affected = append(affected, next)
				queue = append(queue, item{next, cur.depth + 1})
			}
		}
	}
	return BlastRadius{RootService: root, AffectedDownstream: affected, Depth: maxDepth}
}

// FindUpstreamRoots walks callers upward from service and returns the
// services with no callers of their own.
func (g *DependencyGraph) FindUpstreamRoots(service string) []string {
	roots := []string{}
	seen := map[string]bool{}
	queue := []string{service}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if seen[node] {
			continue
		}
		seen[node] = true
		callers := g.reverse[node]
		if len(callers) == 0 {
			roots = append(roots, node)
			continue
		}
		queue = append(queue, sortedKeys(callers)...)
	}
	return roots
}

// CriticalPath returns the shortest caller chain from source to target, or
// nil when no path exists.
func (g *DependencyGraph) CriticalPath(source, target string) []string {
	if source == target {
		return []string{source}
	}
	queue := [][]string{{source}}
	seen := map[string]bool{}
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		node := path[len(path)-1]
		if node == target {
			return path
		}
		if seen[node] {
			continue
		}
		seen[node] = true
		for _, next := range sortedKeys(g.forward[node]) {
			extended := append(append([]string{}, path...), next)
			queue = append(queue, extended)
		}
	}
	return nil
}

// AllServices lists every node seen on either side of an edge.
func (g *DependencyGraph) AllServices() []string {
	set := map[string]bool{}
	for s := range g.forward {
		set[s] = true
	}
	for s := range g.reverse {
		set[s] = true
	}
	return sortedKeys(set)
}

// sortedKeys keeps traversal order deterministic.
func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
