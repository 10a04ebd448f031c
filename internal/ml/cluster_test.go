package ml

import (
	"math/rand"
	"testing"
)

func twoBlobs() [][]float64 {
	rng := rand.New(rand.NewSource(3))
	var X [][]float64
	for i := 0; i < 50; i++ {
		X = append(X, []float64{rng.NormFloat64() * 0.1, rng.NormFloat64() * 0.1})
	}
	for i := 0; i < 50; i++ {
		X = append(X, []float64{10 + rng.NormFloat64()*0.1, 10 + rng.NormFloat64()*0.1})
	}
	return X
}

func TestKMeansSeparatesBlobs(t *testing.T) {
	X := twoBlobs()
	m := NewKMeans(2, 42)
	m.Fit(X)

	labels := m.Assign(X)
	first := labels[0]
	for i := 1; i < 50; i++ {
		if labels[i] != first {
			t.Fatalf("first blob split across clusters at %d", i)
		}
	}
	for i := 50; i < 100; i++ {
		if labels[i] == first {
			t.Fatalf("blobs not separated at %d", i)
		}
	}

	if s := Silhouette(X, labels); s < 0.9 {
		t.Fatalf("expected high silhouette for clean blobs, got %v", s)
	}
}

func TestDBSCANMarksIsolatedPointAsNoise(t *testing.T) {
	X := twoBlobs()
	X = append(X, []float64{100, -100})

	labels := DBSCAN(X, 0.5, 5)
	if labels[len(labels)-1] != NoiseLabel {
		t.Fatal("isolated point should be labelled noise")
	}

	clusters := map[int]bool{}
	for _, l := range labels[:100] {
		if l == NoiseLabel {
			t.Fatal("dense blob point labelled noise")
		}
		clusters[l] = true
	}
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
}

func TestSilhouetteSingleClusterIsZero(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}}
	if s := Silhouette(X, []int{0, 0, 0}); s != 0 {
		t.Fatalf("expected 0 for single cluster, got %v", s)
	}
}
