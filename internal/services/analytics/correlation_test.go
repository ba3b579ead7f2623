package analytics

import (
	"errors"
	"math"
	"testing"

	"IndiPull/internal/series"
	"IndiPull/pkg/date"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

var start = date.MustParse("2025-01-01")

// build makes a daily series with one column per entry of cols.
func build(cols map[string][]float64) series.TimeSeries {
	names := make([]string, 0, len(cols))
	n := 0
	for k, v := range cols {
		names = append(names, k)
		n = max(n, len(v))
	}
	rows := make([]series.Row, n)
	for i := range rows {
		rows[i] = series.Row{Date: start.Add(i), Values: map[string]float64{}}
		for k, v := range cols {
			if i < len(v) && !math.IsNaN(v[i]) {
				rows[i].Values[k] = v[i]
			}
		}
	}
	return series.New(names, rows)
}

func wave(n int, shift int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(float64(i-shift)/3) + 0.01*float64(i%5)
	}
	return out
}

func TestLagZeroMatchesPearson(t *testing.T) {
	a := wave(40, 0)
	b := make([]float64, 40)
	for i := range b {
		b[i] = 2*a[i] + math.Cos(float64(i))
	}
	res, err := NewCorrelator(0.05).Lag(build(map[string][]float64{"A": a, "B": b}), "A", "B", 0)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.InDelta(t, stat.Correlation(a, b, nil), res.Results[0].Coefficient, 1e-12)
	assert.Equal(t, 40, res.Results[0].N)
}

func TestLagFindsShift(t *testing.T) {
	lead := wave(60, 0)
	lag := make([]float64, 60)
	for i := range lag {
		if i >= 4 {
			lag[i] = 10 + 3*lead[i-4]
		} else {
			lag[i] = 10
		}
	}
	res, err := NewCorrelator(0.05).Lag(build(map[string][]float64{"LEAD": lead, "LAG": lag}), "LEAD", "LAG", 8)
	require.NoError(t, err)
	require.NotNil(t, res.Optimal)
	assert.Equal(t, 4, res.Optimal.Lag)
	assert.InDelta(t, 1.0, res.Optimal.Coefficient, 1e-9)
	assert.True(t, res.Optimal.Significant)
	assert.Equal(t, "strong", res.Strength)
	assert.Equal(t, "positive", res.Sign)
	assert.Len(t, res.Results, 9)
}

func TestLagUndefinedBelowMinimumPairs(t *testing.T) {
	a := wave(13, 0)
	b := wave(13, 1)
	res, err := NewCorrelator(0.05).Lag(build(map[string][]float64{"A": a, "B": b}), "A", "B", 4)
	require.NoError(t, err)
	for _, r := range res.Results {
		assert.Equal(t, r.N >= MinLagPairs, r.Defined, "lag %d with %d pairs", r.Lag, r.N)
	}
	assert.False(t, res.Results[3].Defined)
}

func TestLagTiesPreferSmallestLag(t *testing.T) {
	// alternating series correlate perfectly at every even lag
	a := make([]float64, 30)
	for i := range a {
		a[i] = float64(i % 2)
	}
	res, err := NewCorrelator(0.05).Lag(build(map[string][]float64{"A": a, "B": a}), "A", "B", 4)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Optimal.Lag)
	assert.InDelta(t, -1.0, res.Results[1].Coefficient, 1e-12)
}

func TestLagInsufficientData(t *testing.T) {
	_, err := NewCorrelator(0.05).Lag(build(map[string][]float64{"A": wave(8, 0), "B": wave(8, 2)}), "A", "B", 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))
	var ide *InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, MinLagPairs, ide.Required)
	assert.Equal(t, 8, ide.Got)
}

func TestLagSkipsNullRows(t *testing.T) {
	a := wave(20, 0)
	b := wave(20, 0)
	b[3] = math.NaN()
	res, err := NewCorrelator(0.05).Lag(build(map[string][]float64{"A": a, "B": b}), "A", "B", 0)
	require.NoError(t, err)
	assert.Equal(t, 19, res.Results[0].N)
}

func TestPValue(t *testing.T) {
	assert.InDelta(t, 1.0, pValue(0, 30), 1e-12)
	assert.Equal(t, 0.0, pValue(1, 30))
	// r=0.5, n=20: t=2.449, df=18, two-tailed p≈0.0248
	assert.InDelta(t, 0.0248, pValue(0.5, 20), 5e-4)
}

func TestStrengthBands(t *testing.T) {
	assert.Equal(t, "strong", strength(-0.7))
	assert.Equal(t, "moderate", strength(0.4))
	assert.Equal(t, "weak", strength(0.39))
}

func TestMatrix(t *testing.T) {
	a := wave(30, 0)
	b := make([]float64, 30)
	c := make([]float64, 30)
	for i := range a {
		b[i] = -a[i]
		c[i] = float64(i)
	}
	c[29] = math.NaN()
	m, err := NewCorrelator(0.05).Matrix(build(map[string][]float64{"A": a, "B": b, "C": c}), []string{"A", "B", "C"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 29, m.Observations)
	assert.InDelta(t, 1.0, m.Coefficients[0][0], 1e-12)
	assert.InDelta(t, -1.0, m.Coefficients[0][1], 1e-12)
	assert.InDelta(t, m.Coefficients[0][2], m.Coefficients[2][0], 1e-12)
	assert.Equal(t, start.Add(28), m.To)
}

func TestMatrixWindowAndInsufficient(t *testing.T) {
	ts := build(map[string][]float64{"A": wave(30, 0), "B": wave(30, 3)})
	m, err := NewCorrelator(0.05).Matrix(ts, []string{"A", "B"}, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, m.Observations)

	_, err = NewCorrelator(0.05).Matrix(ts, []string{"A", "B"}, 2)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
