package ml

import (
	"math"
	"sort"

	"github.com/platformbuilds/becertain-core/internal/engine/stats"
	"github.com/platformbuilds/becertain-core/internal/models"
)

// Cluster groups anomalies by DBSCAN over normalized (timestamp, value)
// features. Noise points end up in cluster -1. Output is sorted by size.
func Cluster(anomalies []models.MetricAnomaly, eps float64, minSamples int) []models.AnomalyCluster {
	if len(anomalies) < minSamples {
		return nil
	}

	X := featureMatrix(anomalies)
	labels := dbscan(X, eps, minSamples)

	byLabel := map[int][]models.MetricAnomaly{}
	order := []int{}
	for i, a := range anomalies {
		l := labels[i]
		if _, seen := byLabel[l]; !seen {
			order = append(order, l)
		}
		byLabel[l] = append(byLabel[l], a)
	}

	out := make([]models.AnomalyCluster, 0, len(byLabel))
	for _, cid := range order {
		members := byLabel[cid]
		tsSum, valSum := 0.0, 0.0
		names := []string{}
		seen := map[string]bool{}
		for _, m := range members {
			tsSum += m.Timestamp
			valSum += m.Value
			if !seen[m.MetricName] {
				seen[m.MetricName] = true
				names = append(names, m.MetricName)
			}
		}
		out = append(out, models.AnomalyCluster{
			ClusterID:         cid,
			Members:           members,
			CentroidTimestamp: tsSum / float64(len(members)),
			CentroidValue:     valSum / float64(len(members)),
			MetricNames:       names,
			Size:              len(members),
			IsNoise:           cid == -1,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Size > out[j].Size })
	return out
}

func featureMatrix(anomalies []models.MetricAnomaly) [][2]float64 {
	ts := make([]float64, len(anomalies))
	vals := make([]float64, len(anomalies))
	for i, a := range anomalies {
		ts[i] = a.Timestamp
		vals[i] = a.Value
	}
	tsMin, tsRange := minAndRange(ts)
	vMin, vRange := minAndRange(vals)

	X := make([][2]float64, len(anomalies))
	for i := range anomalies {
		X[i] = [2]float64{
			(ts[i] - tsMin) / (tsRange + 1e-9),
			(vals[i] - vMin) / (vRange + 1e-9),
		}
	}
	return X
}

func minAndRange(vals []float64) (float64, float64) {
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi - lo
}

// dbscan labels each point with its cluster id, or -1 for noise.
func dbscan(X [][2]float64, eps float64, minSamples int) []int {
	const (
		unvisited = -2
		noise     = -1
	)
	n := len(X)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	neighbors := func(i int) []int {
		var out []int
		for j := 0; j < n; j++ {
			if dist(X[i], X[j]) <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	cluster := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		nbrs := neighbors(i)
		if len(nbrs) < minSamples {
			labels[i] = noise
			continue
		}
		labels[i] = cluster
		queue := append([]int(nil), nbrs...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == noise {
				labels[j] = cluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster
			jn := neighbors(j)
			if len(jn) >= minSamples {
				queue = append(queue, jn...)
			}
		}
		cluster++
	}
	return labels
}

func dist(a, b [2]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return math.Sqrt(dx*dx + dy*dy)
}

// FallbackCluster wraps all anomalies in a single cluster when proper
// clustering is not applicable.
func FallbackCluster(anomalies []models.MetricAnomaly) []models.AnomalyCluster {
	if len(anomalies) == 0 {
		return nil
	}
	ts := make([]float64, len(anomalies))
	vals := make([]float64, len(anomalies))
	names := []string{}
	seen := map[string]bool{}
	for i, a := range anomalies {
		ts[i] = a.Timestamp
		vals[i] = a.Value
		if !seen[a.MetricName] {
			seen[a.MetricName] = true
			names = append(names, a.MetricName)
		}
	}
	return []models.AnomalyCluster{{
		ClusterID:         0,
		Members:           anomalies,
		CentroidTimestamp: stats.Mean(ts),
		CentroidValue:     stats.Mean(vals),
		MetricNames:       names,
		Size:              len(anomalies),
	}}
}
