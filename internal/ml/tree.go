package ml

import (
	"math/rand"
	"sort"
)

// TreeNode is one node of a fitted regression tree. Fields are exported for
// gob persistence.
type TreeNode struct {
	Leaf      bool
	Value     float64
	Feature   int
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode
}

// RegressionTree is a CART regression tree using variance reduction splits.
type RegressionTree struct {
	MaxDepth int
	MinLeaf  int
	Root     *TreeNode
}

// NewRegressionTree returns an unfitted tree.
func NewRegressionTree(maxDepth, minLeaf int) *RegressionTree {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	if minLeaf <= 0 {
		minLeaf = 1
	}
	return &RegressionTree{MaxDepth: maxDepth, MinLeaf: minLeaf}
}

// Fit grows the tree on the full sample considering all features.
func (t *RegressionTree) Fit(X [][]float64, y []float64) {
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	t.FitIndices(X, y, idx, 0, nil, nil)
}

// FitIndices grows the tree on the given sample indices. When mtry > 0 each
// split considers a random feature subset drawn from rng, and split gains are
// accumulated into importances when provided.
func (t *RegressionTree) FitIndices(X [][]float64, y []float64, idx []int, mtry int, rng *rand.Rand, importances []float64) {
	if len(idx) == 0 || len(X) == 0 {
		t.Root = &TreeNode{Leaf: true}
		return
	}
	g := &treeGrower{
		X: X, y: y,
		maxDepth:    t.MaxDepth,
		minLeaf:     t.MinLeaf,
		mtry:        mtry,
		rng:         rng,
		importances: importances,
		numFeatures: len(X[0]),
	}
	t.Root = g.build(idx, 0)
}

// Predict walks the tree for one feature row.
func (t *RegressionTree) Predict(x []float64) float64 {
	node := t.Root
	for node != nil && !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	if node == nil {
		return 0
	}
	return node.Value
}

// PredictBatch applies Predict to every row.
func (t *RegressionTree) PredictBatch(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = t.Predict(row)
	}
	return out
}

type treeGrower struct {
	X           [][]float64
	y           []float64
	maxDepth    int
	minLeaf     int
	mtry        int
	rng         *rand.Rand
	importances []float64
	numFeatures int
}

func (g *treeGrower) build(idx []int, depth int) *TreeNode {
	var sum, sumSq float64
	for _, i := range idx {
		sum += g.y[i]
		sumSq += g.y[i] * g.y[i]
	}
	n := float64(len(idx))
	mean := sum / n
	sse := sumSq - sum*sum/n

	if depth >= g.maxDepth || len(idx) < 2*g.minLeaf || sse <= 1e-12 {
		return &TreeNode{Leaf: true, Value: mean}
	}

	feature, threshold, gain, ok := g.bestSplit(idx, sse)
	if !ok {
		return &TreeNode{Leaf: true, Value: mean}
	}
	if g.importances != nil && feature < len(g.importances) {
		g.importances[feature] += gain
	}

	var left, right []int
	for _, i := range idx {
		if g.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < g.minLeaf || len(right) < g.minLeaf {
		return &TreeNode{Leaf: true, Value: mean}
	}

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      g.build(left, depth+1),
		Right:     g.build(right, depth+1),
	}
}

func (g *treeGrower) candidateFeatures() []int {
	all := make([]int, g.numFeatures)
	for i := range all {
		all[i] = i
	}
	if g.mtry <= 0 || g.mtry >= g.numFeatures || g.rng == nil {
		return all
	}
	g.rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all[:g.mtry]
}

func (g *treeGrower) bestSplit(idx []int, parentSSE float64) (feature int, threshold, gain float64, ok bool) {
	bestGain := 1e-12

	for _, f := range g.candidateFeatures() {
		order := append([]int(nil), idx...)
		sort.Slice(order, func(a, b int) bool { return g.X[order[a]][f] < g.X[order[b]][f] })

		var leftSum, leftSq float64
		var totalSum, totalSq float64
		for _, i := range order {
			totalSum += g.y[i]
			totalSq += g.y[i] * g.y[i]
		}

		n := len(order)
		for pos := 0; pos < n-1; pos++ {
			i := order[pos]
			leftSum += g.y[i]
			leftSq += g.y[i] * g.y[i]

			nl := pos + 1
			nr := n - nl
			if nl < g.minLeaf || nr < g.minLeaf {
				continue
			}
			// Cannot split between equal feature values.
			cur := g.X[i][f]
			next := g.X[order[pos+1]][f]
			if cur == next {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sseL := leftSq - leftSum*leftSum/float64(nl)
			sseR := rightSq - rightSum*rightSum/float64(nr)
			if split := parentSSE - (sseL + sseR); split > bestGain {
				bestGain = split
				feature = f
				threshold = (cur + next) / 2
				ok = true
			}
		}
	}
	return feature, threshold, bestGain, ok
}
