package statmodel

import (
	"fmt"
	"math"
	"math/rand"
)

// ClusterConfig controls item clustering. Candidate K values are swept
// for diagnostics; the selected K comes from the preferred range by a
// balance-weighted silhouette, with a fallback when no candidate yields
// an acceptable partition.
type ClusterConfig struct {
	SweepMin      int
	SweepMax      int
	PreferredMin  int
	PreferredMax  int
	FallbackK     int
	MinItems      int
	MaxComponents int
	NInit         int
	MaxIter       int
	RandomSeed    int64
}

// DefaultClusterConfig matches the historical analysis: sweep k=3..7,
// prefer K in 4..6, require every cluster to hold at least 3 items, fall
// back to 5 clusters, and project onto at most 10 principal components.
func DefaultClusterConfig(seed int64) ClusterConfig {
	return ClusterConfig{
		SweepMin:      3,
		SweepMax:      7,
		PreferredMin:  4,
		PreferredMax:  6,
		FallbackK:     5,
		MinItems:      3,
		MaxComponents: 10,
		NInit:         10,
		MaxIter:       300,
		RandomSeed:    seed,
	}
}

// ClusterDiagnostic records the quality of one swept K.
type ClusterDiagnostic struct {
	K          int     `json:"k"`
	Silhouette float64 `json:"silhouette"`
	Inertia    float64 `json:"inertia"`
	MinSize    int     `json:"min_size"`
}

// ItemCluster groups battery items that move together across
// respondents.
type ItemCluster struct {
	Index int      `json:"index"`
	Items []string `json:"items"`
}

// ClusterSolution is a fitted item clustering plus the diagnostics of
// every swept K.
type ClusterSolution struct {
	K           int                 `json:"k"`
	Fallback    bool                `json:"fallback"`
	Clusters    []ItemCluster       `json:"clusters"`
	Labels      []int               `json:"labels"` // aligned with Items
	Items       []string            `json:"items"`
	Silhouette  float64             `json:"silhouette"`
	Components  int                 `json:"components"`
	Diagnostics []ClusterDiagnostic `json:"diagnostics"`
}

// ClusterItems groups items by the similarity of their standardized
// response profiles. The respondent-by-item matrix is transposed to one
// profile per item, standardized, projected onto its leading principal
// components, and clustered by k-means across the configured K sweep.
func ClusterItems(items []string, rows [][]float64, cfg ClusterConfig) (*ClusterSolution, error) {
	p := len(items)
	if p < cfg.SweepMin {
		return nil, fmt.Errorf("%w: %d items cannot form %d clusters", ErrDegenerate, p, cfg.SweepMin)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: %d complete cases", ErrDegenerate, len(rows))
	}

	z, _, _, err := StandardizeColumns(rows)
	if err != nil {
		return nil, fmt.Errorf("standardization failed: %w", err)
	}

	// One row per item: its standardized profile across respondents.
	profiles := make([][]float64, p)
	for i := 0; i < p; i++ {
		profiles[i] = make([]float64, len(z))
		for r := range z {
			profiles[i][r] = z[r][i]
		}
	}

	projected, components, err := projectPCA(profiles, cfg.MaxComponents)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.RandomSeed))
	results := map[int]*KMeansResult{}
	var diagnostics []ClusterDiagnostic
	for k := cfg.SweepMin; k <= cfg.SweepMax && k <= p; k++ {
		res, err := KMeans(projected, k, cfg.NInit, cfg.MaxIter, rng)
		if err != nil {
			continue
		}
		results[k] = res
		diagnostics = append(diagnostics, ClusterDiagnostic{
			K:          k,
			Silhouette: res.Silhouette,
			Inertia:    res.Inertia,
			MinSize:    minInt(res.Sizes),
		})
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no K in [%d,%d] produced a clustering", ErrDegenerate, cfg.SweepMin, cfg.SweepMax)
	}

	// Prefer the K whose silhouette, weighted by cluster balance, is
	// highest while keeping every cluster at or above the item floor.
	chosen := 0
	bestScore := math.Inf(-1)
	for k := cfg.PreferredMin; k <= cfg.PreferredMax; k++ {
		res, ok := results[k]
		if !ok {
			continue
		}
		minSize := minInt(res.Sizes)
		if minSize < cfg.MinItems {
			continue
		}
		score := res.Silhouette * (float64(minSize) / 5.0)
		if score > bestScore {
			bestScore = score
			chosen = k
		}
	}
	fallback := false
	if chosen == 0 {
		chosen = cfg.FallbackK
		fallback = true
		if _, ok := results[chosen]; !ok {
			res, err := KMeans(projected, chosen, cfg.NInit, cfg.MaxIter, rng)
			if err != nil {
				return nil, err
			}
			results[chosen] = res
		}
	}

	final := results[chosen]
	clusters := make([]ItemCluster, chosen)
	for c := range clusters {
		clusters[c].Index = c + 1
	}
	for i, l := range final.Labels {
		clusters[l].Items = append(clusters[l].Items, items[i])
	}

	return &ClusterSolution{
		K:           chosen,
		Fallback:    fallback,
		Clusters:    clusters,
		Labels:      final.Labels,
		Items:       items,
		Silhouette:  final.Silhouette,
		Components:  components,
		Diagnostics: diagnostics,
	}, nil
}

// projectPCA centers the rows, decomposes their covariance, and projects
// onto the leading components. Returns the projected rows and the number
// of components kept.
func projectPCA(rows [][]float64, maxComponents int) ([][]float64, int, error) {
	n := len(rows)
	dim := len(rows[0])

	means := make([]float64, dim)
	for _, r := range rows {
		for j, v := range r {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= float64(n)
	}
	centered := make([][]float64, n)
	for i, r := range rows {
		centered[i] = make([]float64, dim)
		for j, v := range r {
			centered[i][j] = v - means[j]
		}
	}

	cov := make([][]float64, dim)
	for a := 0; a < dim; a++ {
		cov[a] = make([]float64, dim)
	}
	for _, r := range centered {
		for a := 0; a < dim; a++ {
			for b := a; b < dim; b++ {
				cov[a][b] += r[a] * r[b]
			}
		}
	}
	denom := float64(n - 1)
	for a := 0; a < dim; a++ {
		for b := a; b < dim; b++ {
			cov[a][b] /= denom
			cov[b][a] = cov[a][b]
		}
	}

	_, vecs, err := symmetricEigen(cov)
	if err != nil {
		return nil, 0, fmt.Errorf("covariance eigendecomposition: %w", err)
	}

	keep := maxComponents
	if keep > dim {
		keep = dim
	}
	if limit := n - 1; keep > limit && limit > 0 {
		keep = limit
	}

	projected := make([][]float64, n)
	for i, r := range centered {
		projected[i] = make([]float64, keep)
		for c := 0; c < keep; c++ {
			s := 0.0
			for j := 0; j < dim; j++ {
				s += r[j] * vecs[j][c]
			}
			projected[i][c] = s
		}
	}
	return projected, keep, nil
}

func minInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}
