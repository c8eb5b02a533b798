package vector

import (
	"errors"
	"math"
	"testing"
)

func TestParseMetric(t *testing.T) {
	for _, s := range []string{"cosine", "euclidean", "manhattan", ""} {
		if _, err := ParseMetric(s); err != nil {
			t.Errorf("ParseMetric(%q) failed: %v", s, err)
		}
	}
	if _, err := ParseMetric("hamming"); !errors.Is(err, ErrUnsupportedMetric) {
		t.Errorf("expected ErrUnsupportedMetric, got %v", err)
	}
}

func TestScoreHigherMeansMoreSimilar(t *testing.T) {
	base := []float32{1, 0, 0}
	near := []float32{0.9, 0.1, 0}
	far := []float32{0, 0, 1}

	for _, m := range []Metric{MetricCosine, MetricEuclidean, MetricManhattan} {
		if m.Score(base, near) <= m.Score(base, far) {
			t.Errorf("%s: nearer vector must score higher", m)
		}
	}
}

func TestScoreSelfIsMaximum(t *testing.T) {
	v := []float32{0.3, -0.2, 0.8}
	others := [][]float32{{1, 0, 0}, {0.2, -0.2, 0.9}, {-0.3, 0.2, -0.8}}
	for _, m := range []Metric{MetricCosine, MetricEuclidean, MetricManhattan} {
		self := m.Score(v, v)
		for _, o := range others {
			if m.Score(v, o) > self {
				t.Errorf("%s: no vector may outscore the vector itself", m)
			}
		}
	}
}

func TestCosineZeroVector(t *testing.T) {
	if s := MetricCosine.Score([]float32{0, 0}, []float32{1, 0}); s != 0 {
		t.Errorf("zero vector cosine score should be 0, got %f", s)
	}
}

func TestEuclideanIdentical(t *testing.T) {
	v := []float32{1, 2, 3}
	if s := MetricEuclidean.Score(v, v); math.Abs(s-1.0) > 1e-9 {
		t.Errorf("identical vectors should score 1.0 under euclidean, got %f", s)
	}
}
