// Package ml holds the request-scoped learners: a 1-D isolation forest for
// anomaly corroboration, a shallow random-forest classifier for cause
// ranking, DBSCAN clustering and the adaptive signal weights.
//
// The forests are seeded and single-threaded so identical inputs always
// produce identical outputs.
package ml

import (
	"math"
	"math/rand"
	"sort"

	"github.com/platformbuilds/becertain-core/internal/engine/stats"
)

const eulerGamma = 0.5772156649015329

// averagePathLength is the expected path length c(n) of an unsuccessful BST
// search over n samples.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
	}
}

// IsolationForest isolates outliers in a univariate sample by random
// partitioning. Shorter isolation paths mean more anomalous points.
type IsolationForest struct {
	trees        []*isoNode
	subsample    int
	nEstimators  int
	seed         int64
}

type isoNode struct {
	split float64
	left  *isoNode
	right *isoNode
	size  int // leaf only
}

func NewIsolationForest(nEstimators int, seed int64) *IsolationForest {
	if nEstimators <= 0 {
		nEstimators = 100
	}
	return &IsolationForest{nEstimators: nEstimators, seed: seed}
}

// Fit builds the ensemble over the given values.
func (f *IsolationForest) Fit(values []float64) {
	n := len(values)
	f.subsample = n
	if f.subsample > 256 {
		f.subsample = 256
	}
	maxDepth := int(math.Ceil(math.Log2(math.Max(2, float64(f.subsample)))))

	rng := rand.New(rand.NewSource(f.seed))
	f.trees = make([]*isoNode, 0, f.nEstimators)
	for i := 0; i < f.nEstimators; i++ {
		sample := make([]float64, f.subsample)
		perm := rng.Perm(n)
		for j := 0; j < f.subsample; j++ {
			sample[j] = values[perm[j]]
		}
		f.trees = append(f.trees, buildIsoTree(sample, 0, maxDepth, rng))
	}
}

func buildIsoTree(sample []float64, depth, maxDepth int, rng *rand.Rand) *isoNode {
	if len(sample) <= 1 || depth >= maxDepth {
		return &isoNode{size: len(sample)}
	}
	lo, hi := sample[0], sample[0]
	for _, v := range sample[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return &isoNode{size: len(sample)}
	}
	split := lo + rng.Float64()*(hi-lo)
	var left, right []float64
	for _, v := range sample {
		if v < split {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}
	return &isoNode{
		split: split,
		left:  buildIsoTree(left, depth+1, maxDepth, rng),
		right: buildIsoTree(right, depth+1, maxDepth, rng),
	}
}

func (n *isoNode) pathLength(v float64, depth float64) float64 {
	if n.left == nil && n.right == nil {
		return depth + averagePathLength(n.size)
	}
	if v < n.split {
		return n.left.pathLength(v, depth+1)
	}
	return n.right.pathLength(v, depth+1)
}

// ScoreSamples returns negated anomaly scores in [-1, 0); lower means more
// anomalous.
func (f *IsolationForest) ScoreSamples(values []float64) []float64 {
	cn := averagePathLength(f.subsample)
	out := make([]float64, len(values))
	for i, v := range values {
		var total float64
		for _, tree := range f.trees {
			total += tree.pathLength(v, 0)
		}
		avg := total / float64(len(f.trees))
		score := math.Pow(2, -avg/math.Max(cn, 1e-9))
		out[i] = -score
	}
	return out
}

// Predict labels each value -1 (outlier) or 1 (inlier). The contamination
// fraction sets the score cutoff; ties on the cutoff stay inliers.
func (f *IsolationForest) Predict(values []float64, contamination float64) ([]int, []float64) {
	scores := f.ScoreSamples(values)
	threshold := stats.Percentile(scores, 100*contamination)
	labels := make([]int, len(values))
	for i, s := range scores {
		if s < threshold {
			labels[i] = -1
		} else {
			labels[i] = 1
		}
	}
	return labels, scores
}

// RandomForest is a shallow random-forest binary classifier trained per
// request on the cause feature matrix.
type RandomForest struct {
	trees       []*rfNode
	importances []float64
	nFeatures   int

	nEstimators int
	maxDepth    int
	seed        int64
}

type rfNode struct {
	feature int
	split   float64
	left    *rfNode
	right   *rfNode
	leaf    bool
	prob    float64
}

func NewRandomForest(nEstimators, maxDepth int, seed int64) *RandomForest {
	if nEstimators <= 0 {
		nEstimators = 50
	}
	if maxDepth <= 0 {
		maxDepth = 4
	}
	return &RandomForest{nEstimators: nEstimators, maxDepth: maxDepth, seed: seed}
}

// Fit trains the ensemble. X rows are samples, y entries are 0/1 labels.
func (rf *RandomForest) Fit(X [][]float64, y []int) {
	n := len(X)
	if n == 0 {
		return
	}
	rf.nFeatures = len(X[0])
	rf.importances = make([]float64, rf.nFeatures)
	rng := rand.New(rand.NewSource(rf.seed))
	mtry := int(math.Ceil(math.Sqrt(float64(rf.nFeatures))))

	rf.trees = make([]*rfNode, 0, rf.nEstimators)
	for t := 0; t < rf.nEstimators; t++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		rf.trees = append(rf.trees, rf.buildTree(X, y, idx, 0, mtry, rng))
	}

	var total float64
	for _, imp := range rf.importances {
		total += imp
	}
	if total > 0 {
		for i := range rf.importances {
			rf.importances[i] /= total
		}
	}
}

func gini(pos, total int) float64 {
	if total == 0 {
		return 0
	}
	p := float64(pos) / float64(total)
	return 2 * p * (1 - p)
}

func (rf *RandomForest) buildTree(X [][]float64, y, idx []int, depth, mtry int, rng *rand.Rand) *rfNode {
	pos := 0
	for _, i := range idx {
		pos += y[i]
	}
	prob := 0.0
	if len(idx) > 0 {
		prob = float64(pos) / float64(len(idx))
	}
	if depth >= rf.maxDepth || len(idx) < 2 || pos == 0 || pos == len(idx) {
		return &rfNode{leaf: true, prob: prob}
	}

	parentImpurity := gini(pos, len(idx))
	bestGain := 0.0
	bestFeature := -1
	bestSplit := 0.0
	var bestLeft, bestRight []int

	features := rng.Perm(rf.nFeatures)[:mtry]
	for _, feat := range features {
		vals := make([]float64, 0, len(idx))
		for _, i := range idx {
			vals = append(vals, X[i][feat])
		}
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		for j := 0; j+1 < len(sorted); j++ {
			if sorted[j] == sorted[j+1] {
				continue
			}
			split := (sorted[j] + sorted[j+1]) / 2
			var left, right []int
			lpos, rpos := 0, 0
			for _, i := range idx {
				if X[i][feat] < split {
					left = append(left, i)
					lpos += y[i]
				} else {
					right = append(right, i)
					rpos += y[i]
				}
			}
			if len(left) == 0 || len(right) == 0 {
				continue
			}
			weighted := (float64(len(left))*gini(lpos, len(left)) +
				float64(len(right))*gini(rpos, len(right))) / float64(len(idx))
			gain := parentImpurity - weighted
			if gain > bestGain {
				bestGain = gain
				bestFeature = feat
				bestSplit = split
				bestLeft, bestRight = left, right
			}
		}
	}

	if bestFeature < 0 {
		return &rfNode{leaf: true, prob: prob}
	}

	rf.importances[bestFeature] += bestGain * float64(len(idx))
	return &rfNode{
		feature: bestFeature,
		split:   bestSplit,
		left:    rf.buildTree(X, y, bestLeft, depth+1, mtry, rng),
		right:   rf.buildTree(X, y, bestRight, depth+1, mtry, rng),
	}
}

// PredictProba returns the positive-class probability for each row.
func (rf *RandomForest) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	if len(rf.trees) == 0 {
		return out
	}
	for i, row := range X {
		var total float64
		for _, tree := range rf.trees {
			total += tree.predict(row)
		}
		out[i] = total / float64(len(rf.trees))
	}
	return out
}

func (n *rfNode) predict(row []float64) float64 {
	if n.leaf {
		return n.prob
	}
	if row[n.feature] < n.split {
		return n.left.predict(row)
	}
	return n.right.predict(row)
}

// FeatureImportances returns the normalized impurity-decrease importances.
func (rf *RandomForest) FeatureImportances() []float64 {
	return rf.importances
}
