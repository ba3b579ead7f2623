package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecastPerfectLinear(t *testing.T) {
	x := make([]float64, 40)
	y := make([]float64, 40)
	for i := range x {
		x[i] = float64(i) + math.Sin(float64(i))
		y[i] = 2*x[i] + 5
	}
	// latest row has the feature but no target yet
	x = append(x, 100)
	y = append(y, math.NaN())

	m, err := NewRegressor(30).Forecast(build(map[string][]float64{"X": x, "Y": y}), "Y", []string{"X"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 40, m.Observations)
	assert.InDelta(t, 1.0, m.RSquared, 1e-9)
	assert.InDelta(t, 0.0, m.MeanAbsError, 1e-9)
	assert.InDelta(t, 205.0, m.Prediction, 1e-6)
	assert.Equal(t, start.Add(40), m.PredictionDate)
	require.Len(t, m.Coefficients, 1)
	assert.InDelta(t, 1.0, m.Coefficients[0].Weight, 1e-9)
}

func TestForecastRanksCoefficients(t *testing.T) {
	n := 50
	a, b, y := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = math.Sin(float64(i) / 2)
		b[i] = math.Cos(float64(i) / 3)
		y[i] = 0.2*a[i] + 5*b[i] + 1
	}
	m, err := NewRegressor(30).Forecast(build(map[string][]float64{"A": a, "B": b, "Y": y}), "Y", []string{"A", "B"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "B", m.Coefficients[0].Feature)
	assert.Equal(t, "A", m.Coefficients[1].Feature)
	assert.InDelta(t, 1.0, m.RSquared, 1e-9)
}

func TestForecastInsufficientData(t *testing.T) {
	x := make([]float64, 29)
	for i := range x {
		x[i] = float64(i)
	}
	_, err := NewRegressor(30).Forecast(build(map[string][]float64{"X": x, "Y": x}), "Y", []string{"X"}, 0)
	var ide *InsufficientDataError
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, 30, ide.Required)
	assert.Equal(t, 29, ide.Got)
}

func TestForecastRejectsConstantFeature(t *testing.T) {
	x := make([]float64, 35)
	y := make([]float64, 35)
	for i := range x {
		x[i] = 7
		y[i] = float64(i)
	}
	_, err := NewRegressor(30).Forecast(build(map[string][]float64{"X": x, "Y": y}), "Y", []string{"X"}, 0)
	assert.ErrorIs(t, err, ErrDegenerateFeature)
}

func TestForecastArguments(t *testing.T) {
	ts := build(map[string][]float64{"X": wave(40, 0)})
	_, err := NewRegressor(30).Forecast(ts, "X", nil, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewRegressor(30).Forecast(ts, "X", []string{"X"}, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
