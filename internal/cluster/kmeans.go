package cluster

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/IshaanNene/NewsLens/internal/types"
)

// KMeans partitions rows into K clusters with k-means++ seeding followed by
// Lloyd iterations. The same input and Seed always give the same result.
type KMeans struct {
	K         int
	Seed      int64
	MaxIter   int
	Tolerance float64
	NInit     int
}

// Model is a fitted partition.
type Model struct {
	// Labels holds one cluster id per row. Ids are numbered by first
	// appearance in the rows, so they run 0..Clusters()-1 with no gaps.
	Labels    []int
	Centroids *mat.Dense
	Inertia   float64
	Iter      int
}

// Clusters returns the number of populated clusters.
func (m *Model) Clusters() int {
	r, _ := m.Centroids.Dims()
	return r
}

// Sizes returns the number of rows in each cluster.
func (m *Model) Sizes() []int {
	sizes := make([]int, m.Clusters())
	for _, l := range m.Labels {
		sizes[l]++
	}
	return sizes
}

// Fit clusters the rows of x. It fails with types.ErrTooFewRecords when x has
// fewer rows than K. Fewer distinct rows than K is fine: the surplus
// clusters end up empty and are dropped from the model.
func (km *KMeans) Fit(x *mat.Dense) (*Model, error) {
	n, _ := x.Dims()
	if km.K < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", km.K)
	}
	if n < km.K {
		return nil, fmt.Errorf("%d records for k=%d: %w", n, km.K, types.ErrTooFewRecords)
	}

	maxIter := km.MaxIter
	if maxIter < 1 {
		maxIter = 300
	}
	nInit := km.NInit
	if nInit < 1 {
		nInit = 1
	}
	tol := km.Tolerance * meanVariance(x)

	rng := rand.New(rand.NewPCG(uint64(km.Seed), uint64(km.Seed)))

	var best *lloydResult
	for range nInit {
		centers := initPlusPlus(x, km.K, rng)
		res := lloyd(x, centers, maxIter, tol)
		if best == nil || res.inertia < best.inertia {
			best = res
		}
	}
	return canonicalize(x, best), nil
}

type lloydResult struct {
	labels  []int
	centers *mat.Dense
	inertia float64
	iter    int
}

// initPlusPlus picks k starting centers: the first uniformly, each next one
// as the best of a few D²-weighted candidates.
func initPlusPlus(x *mat.Dense, k int, rng *rand.Rand) *mat.Dense {
	n, d := x.Dims()
	centers := mat.NewDense(k, d, nil)
	trials := 2 + int(math.Log(float64(k)))

	first := rng.IntN(n)
	centers.SetRow(0, x.RawRowView(first))

	closest := make([]float64, n)
	for i := range n {
		closest[i] = sqDist(x.RawRowView(i), x.RawRowView(first))
	}
	potential := floats.Sum(closest)

	for c := 1; c < k; c++ {
		bestIdx := -1
		bestPot := math.Inf(1)
		var bestClosest []float64

		for range trials {
			cand := sampleWeighted(closest, potential, rng)
			next := make([]float64, n)
			for i := range n {
				next[i] = math.Min(closest[i], sqDist(x.RawRowView(i), x.RawRowView(cand)))
			}
			if pot := floats.Sum(next); pot < bestPot {
				bestIdx, bestPot, bestClosest = cand, pot, next
			}
		}

		centers.SetRow(c, x.RawRowView(bestIdx))
		closest, potential = bestClosest, bestPot
	}
	return centers
}

// sampleWeighted draws an index with probability proportional to w. With
// all weights zero every index is equally likely.
func sampleWeighted(w []float64, total float64, rng *rand.Rand) int {
	if total <= 0 {
		return rng.IntN(len(w))
	}
	target := rng.Float64() * total
	acc := 0.0
	for i, v := range w {
		acc += v
		if acc > target {
			return i
		}
	}
	// Rounding left target at the very end.
	for i := len(w) - 1; i >= 0; i-- {
		if w[i] > 0 {
			return i
		}
	}
	return len(w) - 1
}

func lloyd(x *mat.Dense, centers *mat.Dense, maxIter int, tol float64) *lloydResult {
	n, d := x.Dims()
	k, _ := centers.Dims()
	labels := make([]int, n)
	dists := make([]float64, n)
	for i := range labels {
		labels[i] = -1
	}

	iter := 0
	for iter < maxIter {
		iter++
		changed := assign(x, centers, labels, dists)

		next := mat.NewDense(k, d, nil)
		counts := make([]int, k)
		for i := range n {
			floats.Add(next.RawRowView(labels[i]), x.RawRowView(i))
			counts[labels[i]]++
		}
		relocateEmpty(x, next, counts, labels, dists)
		for c := range k {
			if counts[c] > 0 {
				floats.Scale(1/float64(counts[c]), next.RawRowView(c))
			}
		}

		shift := 0.0
		for c := range k {
			shift += sqDist(next.RawRowView(c), centers.RawRowView(c))
		}
		centers = next

		if !changed || shift <= tol {
			break
		}
	}

	assign(x, centers, labels, dists)
	return &lloydResult{
		labels:  labels,
		centers: centers,
		inertia: floats.Sum(dists),
		iter:    iter,
	}
}

// assign labels every row with its nearest center, lowest index on ties, and
// reports whether any label changed.
func assign(x, centers *mat.Dense, labels []int, dists []float64) bool {
	n, _ := x.Dims()
	k, _ := centers.Dims()
	changed := false
	for i := range n {
		row := x.RawRowView(i)
		best, bestDist := 0, math.Inf(1)
		for c := range k {
			if dd := sqDist(row, centers.RawRowView(c)); dd < bestDist {
				best, bestDist = c, dd
			}
		}
		if labels[i] != best {
			labels[i] = best
			changed = true
		}
		dists[i] = bestDist
	}
	return changed
}

// relocateEmpty moves each empty cluster onto the row farthest from its
// current center, taking that row out of its old cluster's sums. Rows that
// are alone in their cluster are never taken.
func relocateEmpty(x, sums *mat.Dense, counts, labels []int, dists []float64) {
	var empty []int
	for c, cnt := range counts {
		if cnt == 0 {
			empty = append(empty, c)
		}
	}
	if len(empty) == 0 {
		return
	}

	order := make([]int, len(dists))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return dists[order[a]] > dists[order[b]] })

	next := 0
	for _, c := range empty {
		for next < len(order) && counts[labels[order[next]]] <= 1 {
			next++
		}
		if next == len(order) {
			return
		}
		i := order[next]
		next++
		if dists[i] == 0 {
			// Every remaining row sits on its center; nothing to separate.
			return
		}

		old := labels[i]
		row := x.RawRowView(i)
		floats.Sub(sums.RawRowView(old), row)
		counts[old]--
		copy(sums.RawRowView(c), row)
		counts[c] = 1
	}
}

// canonicalize drops empty clusters and renumbers the rest by first
// appearance.
func canonicalize(x *mat.Dense, res *lloydResult) *Model {
	_, d := x.Dims()
	remap := make(map[int]int)
	labels := make([]int, len(res.labels))
	for i, l := range res.labels {
		id, ok := remap[l]
		if !ok {
			id = len(remap)
			remap[l] = id
		}
		labels[i] = id
	}

	centroids := mat.NewDense(len(remap), d, nil)
	counts := make([]int, len(remap))
	for i, l := range labels {
		floats.Add(centroids.RawRowView(l), x.RawRowView(i))
		counts[l]++
	}
	for c, cnt := range counts {
		floats.Scale(1/float64(cnt), centroids.RawRowView(c))
	}

	return &Model{
		Labels:    labels,
		Centroids: centroids,
		Inertia:   res.inertia,
		Iter:      res.iter,
	}
}

// meanVariance is the mean over columns of the per-column variance, used to
// scale the convergence tolerance to the data.
func meanVariance(x *mat.Dense) float64 {
	n, d := x.Dims()
	if n == 0 || d == 0 {
		return 0
	}
	total := 0.0
	col := make([]float64, n)
	for j := range d {
		mat.Col(col, j, x)
		mean := floats.Sum(col) / float64(n)
		for _, v := range col {
			total += (v - mean) * (v - mean)
		}
	}
	return total / float64(n) / float64(d)
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		diff := a[i] - b[i]
		s += diff * diff
	}
	return s
}
