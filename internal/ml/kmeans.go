package ml

import (
	"math"
	"math/rand"
)

// KMeans partitions rows into K clusters with k-means++ seeding.
type KMeans struct {
	K         int
	MaxIter   int
	Seed      int64
	Centroids [][]float64
}

// NewKMeans returns an unfitted clusterer.
func NewKMeans(k int, seed int64) *KMeans {
	if k < 2 {
		k = 2
	}
	return &KMeans{K: k, MaxIter: 100, Seed: seed}
}

// Fit learns centroids. Deterministic for a fixed seed.
func (m *KMeans) Fit(X [][]float64) {
	n := len(X)
	if n == 0 {
		return
	}
	k := m.K
	if k > n {
		k = n
	}
	rng := rand.New(rand.NewSource(m.Seed))
	m.Centroids = kmeansPlusPlus(X, k, rng)

	assign := make([]int, n)
	for iter := 0; iter < m.MaxIter; iter++ {
		changed := false
		for i, row := range X {
			best := nearestCentroid(m.Centroids, row)
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, len(X[0]))
		}
		for i, row := range X {
			c := assign[i]
			counts[c]++
			for j, v := range row {
				sums[c][j] += v
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for j := range sums[c] {
				sums[c][j] /= float64(counts[c])
			}
			m.Centroids[c] = sums[c]
		}

		if !changed {
			break
		}
	}
}

// Assign returns the nearest-centroid label per row.
func (m *KMeans) Assign(X [][]float64) []int {
	out := make([]int, len(X))
	for i, row := range X {
		out[i] = nearestCentroid(m.Centroids, row)
	}
	return out
}

func nearestCentroid(centroids [][]float64, x []float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, centroid := range centroids {
		if d := euclidean(centroid, x); d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

func kmeansPlusPlus(X [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(X)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), X[rng.Intn(n)]...))

	dist := make([]float64, n)
	for len(centroids) < k {
		var total float64
		for i, row := range X {
			d := math.Inf(1)
			for _, c := range centroids {
				if cur := euclidean(c, row); cur < d {
					d = cur
				}
			}
			dist[i] = d * d
			total += dist[i]
		}
		if total == 0 {
			centroids = append(centroids, append([]float64(nil), X[rng.Intn(n)]...))
			continue
		}
		target := rng.Float64() * total
		var acc float64
		chosen := n - 1
		for i, d := range dist {
			acc += d
			if acc >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), X[chosen]...))
	}
	return centroids
}

// Silhouette returns the mean silhouette coefficient of a labelling, in
// [-1, 1]. Returns zero when fewer than two clusters are populated.
func Silhouette(X [][]float64, labels []int) float64 {
	n := len(X)
	if n == 0 || len(labels) != n {
		return 0
	}

	members := map[int][]int{}
	for i, l := range labels {
		members[l] = append(members[l], i)
	}
	if len(members) < 2 {
		return 0
	}

	var total float64
	var counted int
	for i := 0; i < n; i++ {
		own := members[labels[i]]
		if len(own) <= 1 {
			continue
		}

		var a float64
		for _, j := range own {
			if j != i {
				a += euclidean(X[i], X[j])
			}
		}
		a /= float64(len(own) - 1)

		b := math.Inf(1)
		for l, group := range members {
			if l == labels[i] {
				continue
			}
			var d float64
			for _, j := range group {
				d += euclidean(X[i], X[j])
			}
			d /= float64(len(group))
			if d < b {
				b = d
			}
		}

		den := math.Max(a, b)
		if den > 0 {
			total += (b - a) / den
			counted++
		}
	}
	if counted == 0 {
		return 0
	}
	return total / float64(counted)
}
