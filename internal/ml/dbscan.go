package ml

import "math"

// NoiseLabel marks points not assigned to any density cluster.
const NoiseLabel = -1

// DBSCAN clusters rows by density and returns one label per row, NoiseLabel
// for outliers. Distances are Euclidean.
func DBSCAN(X [][]float64, eps float64, minPoints int) []int {
	n := len(X)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = NoiseLabel
	}
	if n == 0 || eps <= 0 || minPoints <= 0 {
		return labels
	}

	visited := make([]bool, n)
	cluster := 0

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := regionQuery(X, i, eps)
		if len(neighbors) < minPoints {
			continue
		}

		labels[i] = cluster
		queue := append([]int(nil), neighbors...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]

			if !visited[j] {
				visited[j] = true
				expanded := regionQuery(X, j, eps)
				if len(expanded) >= minPoints {
					queue = append(queue, expanded...)
				}
			}
			if labels[j] == NoiseLabel {
				labels[j] = cluster
			}
		}
		cluster++
	}
	return labels
}

func regionQuery(X [][]float64, i int, eps float64) []int {
	var out []int
	for j := range X {
		if euclidean(X[i], X[j]) <= eps {
			out = append(out, j)
		}
	}
	return out
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for k := range a {
		d := a[k] - b[k]
		sum += d * d
	}
	return math.Sqrt(sum)
}
