package ml

import (
	"math"
	"math/rand"
	"sort"
)

// IsoNode is one node of an isolation tree.
type IsoNode struct {
	External bool
	Size     int
	Feature  int
	Split    float64
	Left     *IsoNode
	Right    *IsoNode
}

// IsolationForest scores observations by average isolation path length. Short
// paths mean easy isolation, which marks anomalies.
type IsolationForest struct {
	NumTrees      int
	SampleSize    int
	Contamination float64
	Seed          int64
	Trees         []*IsoNode
	Threshold     float64
	FittedSample  int
}

// NewIsolationForest returns an unfitted forest.
func NewIsolationForest(numTrees int, contamination float64, seed int64) *IsolationForest {
	if numTrees <= 0 {
		numTrees = 100
	}
	if contamination <= 0 || contamination >= 0.5 {
		contamination = 0.1
	}
	return &IsolationForest{NumTrees: numTrees, SampleSize: 256, Contamination: contamination, Seed: seed}
}

// Fit builds the trees on subsamples and derives the score threshold from the
// contamination quantile of the training scores.
func (f *IsolationForest) Fit(X [][]float64) {
	n := len(X)
	if n == 0 {
		return
	}
	sample := f.SampleSize
	if sample <= 0 || sample > n {
		sample = n
	}
	f.FittedSample = sample
	heightLimit := int(math.Ceil(math.Log2(float64(sample))))
	if heightLimit < 1 {
		heightLimit = 1
	}

	rng := rand.New(rand.NewSource(f.Seed))
	f.Trees = make([]*IsoNode, 0, f.NumTrees)
	for t := 0; t < f.NumTrees; t++ {
		idx := make([]int, sample)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		f.Trees = append(f.Trees, buildIsoTree(X, idx, 0, heightLimit, rng))
	}

	scores := make([]float64, n)
	for i, row := range X {
		scores[i] = f.Score(row)
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	cut := int(math.Ceil(float64(n) * (1 - f.Contamination)))
	if cut >= n {
		cut = n - 1
	}
	if cut < 0 {
		cut = 0
	}
	f.Threshold = sorted[cut]
}

// Score returns the anomaly score in (0,1); values near 1 are anomalous.
func (f *IsolationForest) Score(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var total float64
	for _, tree := range f.Trees {
		total += pathLength(tree, x, 0)
	}
	avg := total / float64(len(f.Trees))
	c := avgPathLength(f.FittedSample)
	if c == 0 {
		return 0
	}
	return math.Pow(2, -avg/c)
}

// Predict reports whether x scores at or above the fitted threshold.
func (f *IsolationForest) Predict(x []float64) bool {
	return f.Score(x) >= f.Threshold
}

// Scores returns per-row anomaly scores.
func (f *IsolationForest) Scores(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = f.Score(row)
	}
	return out
}

func buildIsoTree(X [][]float64, idx []int, depth, heightLimit int, rng *rand.Rand) *IsoNode {
	if depth >= heightLimit || len(idx) <= 1 {
		return &IsoNode{External: true, Size: len(idx)}
	}

	p := len(X[idx[0]])
	feature := rng.Intn(p)

	lo, hi := X[idx[0]][feature], X[idx[0]][feature]
	for _, i := range idx[1:] {
		v := X[i][feature]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return &IsoNode{External: true, Size: len(idx)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right []int
	for _, i := range idx {
		if X[i][feature] < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &IsoNode{
		Feature: feature,
		Split:   split,
		Left:    buildIsoTree(X, left, depth+1, heightLimit, rng),
		Right:   buildIsoTree(X, right, depth+1, heightLimit, rng),
	}
}

func pathLength(node *IsoNode, x []float64, depth int) float64 {
	if node.External {
		return float64(depth) + avgPathLength(node.Size)
	}
	if x[node.Feature] < node.Split {
		return pathLength(node.Left, x, depth+1)
	}
	return pathLength(node.Right, x, depth+1)
}

// avgPathLength is c(n), the expected path length of an unsuccessful BST
// search over n points.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+0.5772156649) - 2*(fn-1)/fn
}
