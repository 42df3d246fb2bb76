package statmodel

import (
	"fmt"
	"math"
	"math/rand"
)

// KMeansResult holds one clustering of a point matrix: per-point labels,
// cluster centroids, the within-cluster sum of squares, and the mean
// silhouette over all points.
type KMeansResult struct {
	K          int         `json:"k"`
	Labels     []int       `json:"labels"`
	Centroids  [][]float64 `json:"centroids"`
	Inertia    float64     `json:"inertia"`
	Silhouette float64     `json:"silhouette"`
	Sizes      []int       `json:"sizes"`
}

// KMeans clusters the rows of points into k groups by Lloyd's algorithm
// with k-means++ seeding, keeping the best of nInit restarts by inertia.
// The supplied rng makes runs reproducible.
func KMeans(points [][]float64, k, nInit, maxIter int, rng *rand.Rand) (*KMeansResult, error) {
	n := len(points)
	if k < 1 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("%w: %d points for k=%d", ErrDegenerate, n, k)
	}
	if nInit < 1 {
		nInit = 1
	}
	if maxIter < 1 {
		maxIter = 300
	}

	var best *KMeansResult
	for restart := 0; restart < nInit; restart++ {
		centroids := seedPlusPlus(points, k, rng)
		labels := make([]int, n)
		for iter := 0; iter < maxIter; iter++ {
			changed := false
			for i, p := range points {
				l := nearestCentroid(p, centroids)
				if l != labels[i] {
					labels[i] = l
					changed = true
				}
			}
			centroids = recomputeCentroids(points, labels, k, centroids)
			if !changed && iter > 0 {
				break
			}
		}
		inertia := 0.0
		for i, p := range points {
			inertia += squaredDistance(p, centroids[labels[i]])
		}
		if best == nil || inertia < best.Inertia {
			sizes := make([]int, k)
			for _, l := range labels {
				sizes[l]++
			}
			best = &KMeansResult{
				K:         k,
				Labels:    labels,
				Centroids: centroids,
				Inertia:   inertia,
				Sizes:     sizes,
			}
		}
	}
	best.Silhouette = MeanSilhouette(points, best.Labels, k)
	return best, nil
}

// MeanSilhouette is the average silhouette coefficient over all points.
// Points in singleton clusters contribute zero. Returns zero when k < 2.
func MeanSilhouette(points [][]float64, labels []int, k int) float64 {
	n := len(points)
	if k < 2 || n < 2 {
		return 0
	}
	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}
	total := 0.0
	for i := 0; i < n; i++ {
		own := labels[i]
		if sizes[own] <= 1 {
			continue
		}
		sums := make([]float64, k)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			sums[labels[j]] += math.Sqrt(squaredDistance(points[i], points[j]))
		}
		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c == own || sizes[c] == 0 {
				continue
			}
			if d := sums[c] / float64(sizes[c]); d < b {
				b = d
			}
		}
		if math.IsInf(b, 1) {
			continue
		}
		denom := math.Max(a, b)
		if denom > 0 {
			total += (b - a) / denom
		}
	}
	return total / float64(n)
}

// seedPlusPlus picks k initial centroids, weighting each candidate by
// its squared distance from the nearest centroid chosen so far.
func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centroids := make([][]float64, 0, k)
	first := points[rng.Intn(n)]
	centroids = append(centroids, append([]float64(nil), first...))

	dists := make([]float64, n)
	for len(centroids) < k {
		total := 0.0
		for i, p := range points {
			d := math.Inf(1)
			for _, c := range centroids {
				if sq := squaredDistance(p, c); sq < d {
					d = sq
				}
			}
			dists[i] = d
			total += d
		}
		var next []float64
		if total <= 0 {
			next = points[rng.Intn(n)]
		} else {
			target := rng.Float64() * total
			acc := 0.0
			next = points[n-1]
			for i, d := range dists {
				acc += d
				if acc >= target {
					next = points[i]
					break
				}
			}
		}
		centroids = append(centroids, append([]float64(nil), next...))
	}
	return centroids
}

func nearestCentroid(p []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, c := range centroids {
		if d := squaredDistance(p, c); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// recomputeCentroids averages each cluster's members; an emptied cluster
// keeps its previous centroid.
func recomputeCentroids(points [][]float64, labels []int, k int, prev [][]float64) [][]float64 {
	dim := len(points[0])
	centroids := make([][]float64, k)
	counts := make([]int, k)
	for i := range centroids {
		centroids[i] = make([]float64, dim)
	}
	for i, p := range points {
		l := labels[i]
		counts[l]++
		for d, v := range p {
			centroids[l][d] += v
		}
	}
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			copy(centroids[c], prev[c])
			continue
		}
		for d := range centroids[c] {
			centroids[c][d] /= float64(counts[c])
		}
	}
	return centroids
}

func squaredDistance(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
