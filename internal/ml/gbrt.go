package ml

// GradientBoosting is a least-squares boosted ensemble of shallow regression
// trees with shrinkage.
type GradientBoosting struct {
	NumStages    int
	MaxDepth     int
	LearningRate float64
	Seed         int64
	Base         float64
	Trees        []*RegressionTree
	Importances  []float64
}

// NewGradientBoosting returns an unfitted booster.
func NewGradientBoosting(numStages, maxDepth int, learningRate float64, seed int64) *GradientBoosting {
	if numStages <= 0 {
		numStages = 100
	}
	if maxDepth <= 0 {
		maxDepth = 6
	}
	if learningRate <= 0 {
		learningRate = 0.1
	}
	return &GradientBoosting{NumStages: numStages, MaxDepth: maxDepth, LearningRate: learningRate, Seed: seed}
}

// Fit boosts on squared-loss residuals starting from the target mean.
func (g *GradientBoosting) Fit(X [][]float64, y []float64) {
	n := len(X)
	if n == 0 {
		return
	}
	p := len(X[0])

	g.Base = Mean(y)
	g.Trees = make([]*RegressionTree, 0, g.NumStages)
	g.Importances = make([]float64, p)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = g.Base
	}
	resid := make([]float64, n)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	for stage := 0; stage < g.NumStages; stage++ {
		var total float64
		for i := range resid {
			resid[i] = y[i] - pred[i]
			total += resid[i] * resid[i]
		}
		if total <= 1e-12 {
			break
		}

		tree := NewRegressionTree(g.MaxDepth, 1)
		tree.FitIndices(X, resid, idx, 0, nil, g.Importances)
		g.Trees = append(g.Trees, tree)

		for i := range pred {
			pred[i] += g.LearningRate * tree.Predict(X[i])
		}
	}

	normalize(g.Importances)
}

// Predict returns the boosted prediction for one feature row.
func (g *GradientBoosting) Predict(x []float64) float64 {
	out := g.Base
	for _, tree := range g.Trees {
		out += g.LearningRate * tree.Predict(x)
	}
	return out
}

// PredictBatch applies Predict to every row.
func (g *GradientBoosting) PredictBatch(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = g.Predict(row)
	}
	return out
}
