// Package cluster implements seeded k-means clustering over a feature matrix.
package cluster

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Defaults used by New.
const (
	DefaultNInit   = 10
	DefaultMaxIter = 300
	DefaultTol     = 1e-4
	DefaultSeed    = 42
)

// KMeans partitions rows into K clusters with k-means++ seeding and Lloyd iterations.
// NInit independent runs are made from one seeded RNG and the lowest-inertia run wins.
type KMeans struct {
	K       int
	NInit   int
	MaxIter int
	Tol     float64
	Seed    int64
}

// Option configures a KMeans.
type Option func(*KMeans)

// WithNInit sets the number of restarts.
func WithNInit(n int) Option { return func(m *KMeans) { m.NInit = n } }

// WithMaxIter sets the per-run iteration cap.
func WithMaxIter(n int) Option { return func(m *KMeans) { m.MaxIter = n } }

// WithTolerance sets the relative centre-shift tolerance.
func WithTolerance(tol float64) Option { return func(m *KMeans) { m.Tol = tol } }

// WithSeed sets the RNG seed.
func WithSeed(seed int64) Option { return func(m *KMeans) { m.Seed = seed } }

// New returns a KMeans with defaults applied before opts.
func New(k int, opts ...Option) *KMeans {
	m := &KMeans{K: k, NInit: DefaultNInit, MaxIter: DefaultMaxIter, Tol: DefaultTol, Seed: DefaultSeed}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Result is the best run found by Fit.
type Result struct {
	Labels     []int
	Centroids  *mat.Dense
	Inertia    float64
	Iterations int
}

// Fit clusters the rows of x.
func (m *KMeans) Fit(x mat.Matrix) (*Result, error) {
	if x == nil {
		return nil, &ClusteringError{Reason: "empty feature matrix"}
	}
	n, p := x.Dims()
	if n == 0 || p == 0 {
		return nil, &ClusteringError{Reason: "empty feature matrix"}
	}
	if m.K < 1 || m.K > n {
		return nil, &ClusteringError{Reason: fmt.Sprintf("n_clusters=%d must be between 1 and n_samples=%d", m.K, n)}
	}
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, x)
		for j, v := range rows[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &ClusteringError{Reason: fmt.Sprintf("input contains NaN or infinity at row %d, column %d", i, j)}
			}
		}
	}
	nInit := m.NInit
	if nInit < 1 {
		nInit = 1
	}
	maxIter := m.MaxIter
	if maxIter < 1 {
		maxIter = DefaultMaxIter
	}
	tol := m.Tol * meanVariance(rows, p)

	rng := rand.New(rand.NewSource(m.Seed))
	var best *run
	for i := 0; i < nInit; i++ {
		centers := initPlusPlus(rows, m.K, rng)
		r := lloyd(rows, centers, maxIter, tol)
		if best == nil || r.inertia < best.inertia {
			best = r
		}
	}

	cm := mat.NewDense(m.K, p, nil)
	for k, c := range best.centers {
		cm.SetRow(k, c)
	}
	return &Result{Labels: best.labels, Centroids: cm, Inertia: best.inertia, Iterations: best.iters}, nil
}

type run struct {
	labels  []int
	centers [][]float64
	inertia float64
	iters   int
}

func meanVariance(rows [][]float64, p int) float64 {
	col := make([]float64, len(rows))
	total := 0.0
	for j := 0; j < p; j++ {
		for i, r := range rows {
			col[i] = r[j]
		}
		_, v := stat.PopMeanVariance(col, nil)
		total += v
	}
	return total / float64(p)
}

// initPlusPlus picks k centres with greedy k-means++: each step samples a few candidates
// proportionally to squared distance and keeps the one that lowers the potential most.
func initPlusPlus(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(rows)
	trials := 2 + int(math.Log(float64(k)))
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(rows[rng.Intn(n)]))

	closest := make([]float64, n)
	for i, r := range rows {
		closest[i] = sqDist(r, centers[0])
	}
	pot := floats.Sum(closest)
	cum := make([]float64, n)
	cand := make([]float64, n)
	bestNext := make([]float64, n)

	for len(centers) < k {
		floats.CumSum(cum, closest)
		bestIdx, bestPot := -1, math.Inf(1)
		for t := 0; t < trials; t++ {
			target := rng.Float64() * pot
			idx := sort.SearchFloat64s(cum, target)
			if idx >= n {
				idx = n - 1
			}
			for i, r := range rows {
				cand[i] = math.Min(closest[i], sqDist(r, rows[idx]))
			}
			if s := floats.Sum(cand); s < bestPot {
				bestIdx, bestPot = idx, s
				copy(bestNext, cand)
			}
		}
		centers = append(centers, clone(rows[bestIdx]))
		copy(closest, bestNext)
		pot = bestPot
	}
	return centers
}

// lloyd refines centres until labels are stable or the total squared shift is within tol.
func lloyd(rows [][]float64, centers [][]float64, maxIter int, tol float64) *run {
	n, k, p := len(rows), len(centers), len(rows[0])
	labels := make([]int, n)
	prev := make([]int, n)
	dist := make([]float64, n)
	iters := 0
	for it := 0; it < maxIter; it++ {
		assign(rows, centers, labels, dist)
		next := updateCenters(rows, labels, dist, k, p)
		shift := 0.0
		for c := range centers {
			shift += sqDist(centers[c], next[c])
		}
		centers = next
		iters = it + 1
		if it > 0 && equalLabels(labels, prev) {
			break
		}
		if shift <= tol {
			break
		}
		copy(prev, labels)
	}
	inertia := assign(rows, centers, labels, dist)
	return &run{labels: labels, centers: centers, inertia: inertia, iters: iters}
}

// assign labels each row with its nearest centre (ties go to the lower id) and returns the inertia.
func assign(rows, centers [][]float64, labels []int, dist []float64) float64 {
	total := 0.0
	for i, r := range rows {
		best, bestD := 0, math.Inf(1)
		for c, ctr := range centers {
			if d := sqDist(r, ctr); d < bestD {
				best, bestD = c, d
			}
		}
		labels[i], dist[i] = best, bestD
		total += bestD
	}
	return total
}

// updateCenters averages each cluster. An empty cluster takes over the row farthest
// from its current centre among clusters that can spare one.
func updateCenters(rows [][]float64, labels []int, dist []float64, k, p int) [][]float64 {
	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}
	for c := 0; c < k; c++ {
		if counts[c] > 0 {
			continue
		}
		far := -1
		for i := range rows {
			if counts[labels[i]] < 2 {
				continue
			}
			if far < 0 || dist[i] > dist[far] {
				far = i
			}
		}
		if far < 0 {
			break
		}
		counts[labels[far]]--
		labels[far] = c
		dist[far] = 0
		counts[c] = 1
	}
	next := make([][]float64, k)
	for c := range next {
		next[c] = make([]float64, p)
	}
	for i, r := range rows {
		floats.Add(next[labels[i]], r)
	}
	for c := range next {
		if counts[c] > 0 {
			floats.Scale(1/float64(counts[c]), next[c])
		}
	}
	return next
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func equalLabels(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
