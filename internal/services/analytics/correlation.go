package analytics

import (
	"fmt"
	"math"

	"IndiPull/internal/domain/models"
	domsvc "IndiPull/internal/domain/service"
	"IndiPull/internal/series"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	// MinLagPairs is the fewest paired observations a lag is computed from.
	MinLagPairs = 11
	// MinMatrixRows is the fewest complete rows a correlation matrix needs.
	MinMatrixRows = 3
	DefaultAlpha  = 0.05

	// coefficients closer than this count as a tie
	tieTolerance = 1e-12
)

// Correlator computes correlation matrices and lead/lag profiles.
type Correlator struct {
	alpha float64
}

var _ domsvc.CorrelationAnalyzer = (*Correlator)(nil)

// NewCorrelator uses alpha as the significance level; values outside (0,1)
// fall back to 0.05.
func NewCorrelator(alpha float64) *Correlator {
	if alpha <= 0 || alpha >= 1 {
		alpha = DefaultAlpha
	}
	return &Correlator{alpha: alpha}
}

// Lag correlates leading[0:n-k] with lagging[k:n] for k = 0..maxLag over
// the rows where both indicators are present. Lags with fewer than
// MinLagPairs pairs are reported as undefined. The optimal lag is the
// defined lag with the largest |r|, the smaller lag winning ties.
func (c *Correlator) Lag(ts series.TimeSeries, leading, lagging string, maxLag int) (models.LagAnalysis, error) {
	if maxLag < 0 {
		return models.LagAnalysis{}, fmt.Errorf("%w: max lag %d", ErrInvalidArgument, maxLag)
	}
	pairs := ts.Complete(leading, lagging)
	lead, lagd := pairs.Column(leading), pairs.Column(lagging)
	n := len(lead)

	out := models.LagAnalysis{
		Leading: leading,
		Lagging: lagging,
		MaxLag:  maxLag,
		Results: make([]models.LagResult, 0, maxLag+1),
	}
	for k := 0; k <= maxLag; k++ {
		res := models.LagResult{Lag: k, N: max(n-k, 0)}
		if res.N >= MinLagPairs {
			if r, ok := pearson(lead[:n-k], lagd[k:]); ok {
				res.Coefficient = r
				res.PValue = pValue(r, res.N)
				res.Defined = true
				res.Significant = res.PValue < c.alpha
			}
		}
		out.Results = append(out.Results, res)

		if res.Defined && (out.Optimal == nil || math.Abs(res.Coefficient) > math.Abs(out.Optimal.Coefficient)+tieTolerance) {
			best := res
			out.Optimal = &best
		}
	}

	if out.Optimal == nil {
		return out, &InsufficientDataError{Required: MinLagPairs, Got: n}
	}
	out.Strength = strength(out.Optimal.Coefficient)
	out.Sign = sign(out.Optimal.Coefficient)
	return out, nil
}

// Matrix computes pairwise Pearson correlation of codes over the trailing
// windowDays (0 = whole series), using only rows where every code is present.
func (c *Correlator) Matrix(ts series.TimeSeries, codes []string, windowDays int) (models.CorrelationMatrix, error) {
	if len(codes) == 0 {
		return models.CorrelationMatrix{}, fmt.Errorf("%w: no indicators selected", ErrInvalidArgument)
	}
	rows := ts.Window(windowDays).Complete(codes...)
	n := rows.Len()
	if n < MinMatrixRows {
		return models.CorrelationMatrix{}, &InsufficientDataError{Required: MinMatrixRows, Got: n}
	}

	x := mat.NewDense(n, len(codes), nil)
	for i := 0; i < n; i++ {
		r := rows.Row(i)
		for j, code := range codes {
			v, _ := r.Get(code)
			x.Set(i, j, v)
		}
	}
	var sym mat.SymDense
	stat.CorrelationMatrix(&sym, x, nil)

	coef := make([][]float64, len(codes))
	for i := range codes {
		coef[i] = make([]float64, len(codes))
		for j := range codes {
			coef[i][j] = sym.At(i, j)
		}
	}

	first, last := rows.Row(0), rows.Row(n-1)
	return models.CorrelationMatrix{
		Codes:        append([]string(nil), codes...),
		WindowDays:   windowDays,
		Observations: n,
		From:         first.Date,
		To:           last.Date,
		Coefficients: coef,
	}, nil
}
