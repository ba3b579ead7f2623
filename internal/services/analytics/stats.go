package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// pearson returns the correlation of x and y and whether it is defined.
// It is undefined for fewer than two pairs or a constant input.
func pearson(x, y []float64) (float64, bool) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, false
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	// clamp rounding drift so the t statistic stays finite
	return math.Max(-1, math.Min(1, r)), true
}

// pValue is the two-tailed p-value of a Pearson r over n pairs under the
// null hypothesis of no correlation (Student t with n-2 degrees of freedom).
func pValue(r float64, n int) float64 {
	if n < 3 {
		return 1
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * dist.Survival(math.Abs(t))
}

// strength buckets |r| into strong (>=0.7), moderate (>=0.4) or weak.
func strength(r float64) string {
	switch a := math.Abs(r); {
	case a >= 0.7:
		return "strong"
	case a >= 0.4:
		return "moderate"
	default:
		return "weak"
	}
}

func sign(r float64) string {
	if r < 0 {
		return "negative"
	}
	return "positive"
}
