package ml

import (
	"math"
	"math/rand"
)

// ForestRegressor is a bagged ensemble of regression trees with per-split
// feature subsampling.
type ForestRegressor struct {
	NumTrees    int
	MaxDepth    int
	MinLeaf     int
	Seed        int64
	Trees       []*RegressionTree
	Importances []float64
}

// NewForestRegressor returns an unfitted forest.
func NewForestRegressor(numTrees, maxDepth int, seed int64) *ForestRegressor {
	if numTrees <= 0 {
		numTrees = 100
	}
	if maxDepth <= 0 {
		maxDepth = 10
	}
	return &ForestRegressor{NumTrees: numTrees, MaxDepth: maxDepth, MinLeaf: 1, Seed: seed}
}

// Fit grows NumTrees trees on bootstrap samples. Deterministic for a fixed
// seed.
func (f *ForestRegressor) Fit(X [][]float64, y []float64) {
	n := len(X)
	if n == 0 {
		return
	}
	p := len(X[0])
	mtry := int(math.Sqrt(float64(p)))
	if mtry < 1 {
		mtry = 1
	}

	rng := rand.New(rand.NewSource(f.Seed))
	f.Trees = make([]*RegressionTree, 0, f.NumTrees)
	f.Importances = make([]float64, p)

	for t := 0; t < f.NumTrees; t++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		tree := NewRegressionTree(f.MaxDepth, f.MinLeaf)
		tree.FitIndices(X, y, idx, mtry, rng, f.Importances)
		f.Trees = append(f.Trees, tree)
	}

	normalize(f.Importances)
}

// Predict returns the mean prediction of all trees.
func (f *ForestRegressor) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for _, tree := range f.Trees {
		sum += tree.Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// PredictBatch applies Predict to every row.
func (f *ForestRegressor) PredictBatch(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = f.Predict(row)
	}
	return out
}

func normalize(xs []float64) {
	var total float64
	for _, v := range xs {
		total += v
	}
	if total == 0 {
		return
	}
	for i := range xs {
		xs[i] /= total
	}
}
