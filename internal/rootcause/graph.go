package rootcause

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/observastack/aiops-engine/internal/dataset"
	"github.com/observastack/aiops-engine/internal/ml"
	"github.com/observastack/aiops-engine/internal/models"
)

// ServiceNodePrefix marks graph nodes representing services rather than
// metric columns.
const ServiceNodePrefix = "service:"

// Edge is one correlation edge of the dependency graph.
type Edge struct {
	A      string
	B      string
	Weight float64
}

// DependencyGraph is a serializable correlation graph over metric columns
// and service aggregates.
type DependencyGraph struct {
	Nodes []string
	Edges []Edge
}

// BuildGraph links metric columns whose absolute Pearson correlation reaches
// the threshold, then links services whose average cross-service metric
// correlation reaches it.
func BuildGraph(tbl *dataset.Table, threshold float64) *DependencyGraph {
	g := &DependencyGraph{}
	for _, col := range tbl.Cols {
		g.Nodes = append(g.Nodes, col)
	}

	for i := 0; i < len(tbl.Cols); i++ {
		for j := i + 1; j < len(tbl.Cols); j++ {
			a, _ := tbl.Column(tbl.Cols[i])
			b, _ := tbl.Column(tbl.Cols[j])
			if r := math.Abs(ml.Pearson(a, b)); r >= threshold {
				g.Edges = append(g.Edges, Edge{A: tbl.Cols[i], B: tbl.Cols[j], Weight: r})
			}
		}
	}

	g.addServiceEdges(tbl, threshold)
	return g
}

// addServiceEdges aggregates each service's metrics over shared timestamps
// and links service pairs whose mean absolute correlation reaches the
// threshold.
func (g *DependencyGraph) addServiceEdges(tbl *dataset.Table, threshold float64) {
	services, ok := tbl.Labels[dataset.LabelService]
	if !ok || len(tbl.Times) == 0 {
		return
	}

	type key struct {
		service string
		metric  string
	}
	byTime := map[key]map[time.Time]float64{}
	serviceSet := map[string]bool{}
	for i, svc := range services {
		if svc == "" {
			continue
		}
		serviceSet[svc] = true
		for _, col := range tbl.Cols {
			v := tbl.Data[col][i]
			if dataset.IsMissing(v) {
				continue
			}
			k := key{service: svc, metric: col}
			if byTime[k] == nil {
				byTime[k] = map[time.Time]float64{}
			}
			byTime[k][tbl.Times[i]] = v
		}
	}
	if len(serviceSet) < 2 {
		return
	}

	names := make([]string, 0, len(serviceSet))
	for svc := range serviceSet {
		names = append(names, svc)
	}
	sort.Strings(names)

	for _, svc := range names {
		g.Nodes = append(g.Nodes, ServiceNodePrefix+svc)
	}

	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			var total float64
			var counted int
			for _, col := range tbl.Cols {
				a := byTime[key{service: names[i], metric: col}]
				b := byTime[key{service: names[j], metric: col}]
				var xs, ys []float64
				for ts, v := range a {
					if w, ok := b[ts]; ok {
						xs = append(xs, v)
						ys = append(ys, w)
					}
				}
				if len(xs) >= 3 {
					total += math.Abs(ml.Pearson(xs, ys))
					counted++
				}
			}
			if counted == 0 {
				continue
			}
			if avg := total / float64(counted); avg >= threshold {
				g.Edges = append(g.Edges, Edge{
					A:      ServiceNodePrefix + names[i],
					B:      ServiceNodePrefix + names[j],
					Weight: avg,
				})
			}
		}
	}
}

func (g *DependencyGraph) gonum() (*simple.WeightedUndirectedGraph, map[string]int64, map[int64]string) {
	wg := simple.NewWeightedUndirectedGraph(0, 0)
	ids := make(map[string]int64, len(g.Nodes))
	names := make(map[int64]string, len(g.Nodes))
	for i, name := range g.Nodes {
		id := int64(i)
		ids[name] = id
		names[id] = name
		wg.AddNode(simple.Node(id))
	}
	for _, e := range g.Edges {
		a, okA := ids[e.A]
		b, okB := ids[e.B]
		if !okA || !okB || a == b {
			continue
		}
		wg.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(a), T: simple.Node(b), W: e.Weight})
	}
	return wg, ids, names
}

// Density returns edge count over the maximum possible for the node count.
func (g *DependencyGraph) Density() float64 {
	n := len(g.Nodes)
	if n < 2 {
		return 0
	}
	return 2 * float64(len(g.Edges)) / (float64(n) * float64(n-1))
}

func (g *DependencyGraph) adjacency() map[string]map[string]bool {
	adj := map[string]map[string]bool{}
	for _, name := range g.Nodes {
		adj[name] = map[string]bool{}
	}
	for _, e := range g.Edges {
		adj[e.A][e.B] = true
		adj[e.B][e.A] = true
	}
	return adj
}

// AvgClustering returns the mean local clustering coefficient.
func (g *DependencyGraph) AvgClustering() float64 {
	if len(g.Nodes) == 0 {
		return 0
	}
	adj := g.adjacency()

	var total float64
	for _, name := range g.Nodes {
		neighbors := make([]string, 0, len(adj[name]))
		for n := range adj[name] {
			neighbors = append(neighbors, n)
		}
		k := len(neighbors)
		if k < 2 {
			continue
		}
		links := 0
		for i := 0; i < k; i++ {
			for j := i + 1; j < k; j++ {
				if adj[neighbors[i]][neighbors[j]] {
					links++
				}
			}
		}
		total += 2 * float64(links) / (float64(k) * float64(k-1))
	}
	return total / float64(len(g.Nodes))
}

// DegreeCentrality returns nodes ranked by normalized degree, highest first.
func (g *DependencyGraph) DegreeCentrality() []models.NodeScore {
	n := len(g.Nodes)
	if n < 2 {
		return nil
	}
	adj := g.adjacency()

	out := make([]models.NodeScore, 0, n)
	for _, name := range g.Nodes {
		out = append(out, models.NodeScore{
			Node:  name,
			Score: float64(len(adj[name])) / float64(n-1),
		})
	}
	sortScores(out)
	return out
}

// BetweennessCentrality returns nodes ranked by normalized betweenness,
// highest first.
func (g *DependencyGraph) BetweennessCentrality() []models.NodeScore {
	n := len(g.Nodes)
	if n < 3 {
		return nil
	}
	wg, _, names := g.gonum()
	scores := network.Betweenness(wg)

	norm := float64(n-1) * float64(n-2) / 2
	out := make([]models.NodeScore, 0, len(scores))
	for id, score := range scores {
		out = append(out, models.NodeScore{Node: names[id], Score: score / norm})
	}
	// Betweenness omits nodes with zero score.
	present := map[string]bool{}
	for _, s := range out {
		present[s.Node] = true
	}
	for _, name := range g.Nodes {
		if !present[name] {
			out = append(out, models.NodeScore{Node: name})
		}
	}
	sortScores(out)
	return out
}

// Communities returns greedy modularity communities as sorted node name
// groups.
func (g *DependencyGraph) Communities() [][]string {
	if len(g.Nodes) == 0 {
		return nil
	}
	wg, _, names := g.gonum()
	reduced := community.Modularize(wg, 1, nil)

	var out [][]string
	for _, group := range reduced.Communities() {
		members := make([]string, 0, len(group))
		for _, node := range group {
			members = append(members, names[node.ID()])
		}
		sort.Strings(members)
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) == 0 || len(out[j]) == 0 {
			return len(out[i]) > len(out[j])
		}
		return out[i][0] < out[j][0]
	})
	return out
}

// ShortestPathsFrom returns dependency paths from one source node to the
// given targets. Unreachable targets are silently omitted.
func (g *DependencyGraph) ShortestPathsFrom(source string, targets []string) []models.MetricPath {
	wg, ids, names := g.gonum()
	srcID, ok := ids[source]
	if !ok {
		return nil
	}

	shortest := path.DijkstraFrom(simple.Node(srcID), wg)
	var out []models.MetricPath
	for _, target := range targets {
		if target == source {
			continue
		}
		dstID, ok := ids[target]
		if !ok {
			continue
		}
		nodes, weight := shortest.To(dstID)
		if len(nodes) == 0 || math.IsInf(weight, 1) {
			continue
		}
		hop := make([]string, 0, len(nodes))
		for _, n := range nodes {
			hop = append(hop, names[n.ID()])
		}
		out = append(out, models.MetricPath{From: source, To: target, Nodes: hop, Weight: weight})
	}
	return out
}

// EdgeBetween reports whether two nodes are directly linked.
func (g *DependencyGraph) EdgeBetween(a, b string) bool {
	for _, e := range g.Edges {
		if (e.A == a && e.B == b) || (e.A == b && e.B == a) {
			return true
		}
	}
	return false
}

func sortScores(scores []models.NodeScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Node < scores[j].Node
	})
}
