package causal

import (
	"sort"

	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// CausalEdge is one directed cause-to-effect link.
type CausalEdge struct {
	Cause      string
	Effect     string
	Strength   float64
	LagSeconds float64
}

// InterventionResult estimates the downstream impact of acting on a node.
type InterventionResult struct {
	Target           string
	ExpectedEffectOn map[string]float64
	CausalPath       []string
	TotalEffect      float64
}

// CausalGraph is a DAG of metric causality built from Granger results.
type CausalGraph struct {
	edges   []CausalEdge
	forward map[string][]CausalEdge
	reverse map[string]map[string]bool
}

func NewCausalGraph() *CausalGraph {
	return &CausalGraph{
		forward: map[string][]CausalEdge{},
		reverse: map[string]map[string]bool{},
	}
}

func (g *CausalGraph) AddEdge(cause, effect string, strength, lagSeconds float64) {
	edge := CausalEdge{Cause: cause, Effect: effect, Strength: strength, LagSeconds: lagSeconds}
	g.edges = append(g.edges, edge)
	g.forward[cause] = append(g.forward[cause], edge)
	if g.reverse[effect] == nil {
		g.reverse[effect] = map[string]bool{}
	}
	g.reverse[effect][cause] = true
}

// FromGrangerResults adds an edge for every causal result.
func (g *CausalGraph) FromGrangerResults(results []models.GrangerResult) {
	for _, r := range results {
		if r.IsCausal {
			g.AddEdge(r.CauseMetric, r.EffectMetric, r.Strength, 0)
		}
	}
}

// RootCauses lists nodes that cause something but are caused by nothing.
func (g *CausalGraph) RootCauses() []string {
	effects := map[string]bool{}
	for _, e := range g.edges {
		effects[e.Effect] = true
	}
	var roots []string
	for cause := range g.forward {
		if !effects[cause] {
			roots = append(roots, cause)
		}
	}
	sort.Strings(roots)
	return roots
}

// TopologicalSort orders nodes so every cause precedes its effects. Nodes
// at equal depth come out in lexicographic order.
func (g *CausalGraph) TopologicalSort() []string {
	nodes := g.AllNodes()
	inDegree := map[string]int{}
	for _, n := range nodes {
		inDegree[n] = 0
	}
	for _, e := range g.edges {
		inDegree[e.Effect]++
	}

	var queue []string
	for _, n := range nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)
		for _, edge := range g.forward[node] {
			inDegree[edge.Effect]--
			if inDegree[edge.Effect] == 0 {
				queue = append(queue, edge.Effect)
			}
		}
	}
	return order
}

// SimulateIntervention propagates a unit change at target through the
// graph up to maxDepth hops, multiplying edge strengths along each path
// and keeping the strongest estimate per node.
func (g *CausalGraph) SimulateIntervention(target string, maxDepth, roundPrecision int) InterventionResult {
	if maxDepth <= 0 {
		maxDepth = 5
	}
	type frame struct {
		node     string
		strength float64
		depth    int
	}

	effects := map[string]float64{}
	var path []string
	seen := map[string]bool{target: true}
	queue := []frame{{target, 1.0, 0}}

	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		if f.depth >= maxDepth {
			continue
		}
		for _, edge := range g.forward[f.node] {
			strength := f.strength * edge.Strength
			if !seen[edge.Effect] {
				seen[edge.Effect] = true
				path = append(path, edge.Effect)
			}
			if strength > effects[edge.Effect] {
				effects[edge.Effect] = stats.Round(strength, roundPrecision)
			}
			queue = append(queue, frame{edge.Effect, strength, f.depth + 1})
		}
	}

	var total float64
	for _, v := range effects {
		total += v
	}
	return InterventionResult{
		Target:           target,
		ExpectedEffectOn: effects,
		CausalPath:       path,
		TotalEffect:      stats.Round(total, roundPrecision),
	}
}

// FindCommonCauses returns the shared ancestors of two nodes.
func (g *CausalGraph) FindCommonCauses(a, b string) []string {
	ancestors := func(node string) map[string]bool {
		seen := map[string]bool{}
		queue := []string{node}
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			for parent := range g.reverse[n] {
				if !seen[parent] {
					seen[parent] = true
					queue = append(queue, parent)
				}
			}
		}
		return seen
	}

	fromA := ancestors(a)
	fromB := ancestors(b)
	var common []string
	for n := range fromA {
		if fromB[n] {
			common = append(common, n)
		}
	}
	sort.Strings(common)
	return common
}

// AllNodes returns every node mentioned by an edge, sorted.
func (g *CausalGraph) AllNodes() []string {
	set := map[string]bool{}
	for cause := range g.forward {
		set[cause] = true
	}
	for _, e := range g.edges {
		set[e.Effect] = true
	}
	nodes := make([]string, 0, len(set))
	for n := range set {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}
