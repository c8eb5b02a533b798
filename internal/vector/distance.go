package vector

import (
	"fmt"
	"math"
)

// Metric identifies the distance function an index is built with.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricEuclidean Metric = "euclidean"
	MetricManhattan Metric = "manhattan"
)

// ParseMetric validates a configured metric name.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, "":
		return MetricCosine, nil
	case MetricEuclidean:
		return MetricEuclidean, nil
	case MetricManhattan:
		return MetricManhattan, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: cosine, euclidean, manhattan)", ErrUnsupportedMetric, s)
	}
}

// Score returns the similarity of a and b under the metric, normalized so
// that higher always means more similar. Cosine distance becomes cosine
// similarity; euclidean and manhattan distances are mapped through 1/(1+d),
// which is monotonically decreasing in distance. The shared convention keeps
// scores comparable across index variants for a fixed configuration.
func (m Metric) Score(a, b []float32) float64 {
	switch m {
	case MetricEuclidean:
		var sum float64
		for i := range a {
			d := float64(a[i] - b[i])
			sum += d * d
		}
		return 1.0 / (1.0 + math.Sqrt(sum))
	case MetricManhattan:
		var sum float64
		for i := range a {
			sum += math.Abs(float64(a[i] - b[i]))
		}
		return 1.0 / (1.0 + sum)
	default: // cosine
		var dot, na, nb float64
		for i := range a {
			dot += float64(a[i] * b[i])
			na += float64(a[i] * a[i])
			nb += float64(b[i] * b[i])
		}
		if na == 0 || nb == 0 {
			return 0
		}
		return dot / (math.Sqrt(na) * math.Sqrt(nb))
	}
}
