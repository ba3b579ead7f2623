package analytics

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"IndiPull/internal/domain/models"
	domsvc "IndiPull/internal/domain/service"
	"IndiPull/internal/series"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MinForecastRows is the fewest complete rows a model is fitted on.
const MinForecastRows = 30

// Regressor fits ordinary least squares on z-scored data.
type Regressor struct {
	minRows int
}

var _ domsvc.Forecaster = (*Regressor)(nil)

func NewRegressor(minRows int) *Regressor {
	if minRows < MinForecastRows {
		minRows = MinForecastRows
	}
	return &Regressor{minRows: minRows}
}

type moments struct{ mean, std float64 }

func (m moments) z(v float64) float64 { return (v - m.mean) / m.std }

// Forecast fits target against features over the trailing windowDays and
// predicts target from the latest row that has every feature. R² and mean
// absolute error describe the in-sample fit on the target's own scale.
func (r *Regressor) Forecast(ts series.TimeSeries, target string, features []string, windowDays int) (models.ForecastModel, error) {
	if len(features) == 0 {
		return models.ForecastModel{}, fmt.Errorf("%w: no features", ErrInvalidArgument)
	}
	if slices.Contains(features, target) {
		return models.ForecastModel{}, fmt.Errorf("%w: target %s is also a feature", ErrInvalidArgument, target)
	}

	train := ts.Window(windowDays).Complete(append([]string{target}, features...)...)
	n, k := train.Len(), len(features)
	if n < r.minRows || n <= k {
		return models.ForecastModel{}, &InsufficientDataError{Required: max(r.minRows, k+1), Got: n}
	}

	y := train.Column(target)
	ym, err := columnMoments(target, y)
	if err != nil {
		return models.ForecastModel{}, err
	}
	fm := make([]moments, k)
	x := mat.NewDense(n, k, nil)
	for j, f := range features {
		col := train.Column(f)
		if fm[j], err = columnMoments(f, col); err != nil {
			return models.ForecastModel{}, err
		}
		for i, v := range col {
			x.Set(i, j, fm[j].z(v))
		}
	}
	yz := mat.NewVecDense(n, nil)
	for i, v := range y {
		yz.SetVec(i, ym.z(v))
	}

	var beta mat.VecDense
	if err := beta.SolveVec(x, yz); err != nil {
		return models.ForecastModel{}, fmt.Errorf("%w: %v", ErrDegenerateFeature, err)
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	var ssRes, ssTot, absErr float64
	for i, v := range y {
		yhat := fitted.AtVec(i)*ym.std + ym.mean
		ssRes += (v - yhat) * (v - yhat)
		ssTot += (v - ym.mean) * (v - ym.mean)
		absErr += math.Abs(v - yhat)
	}

	out := models.ForecastModel{
		Target:       target,
		Features:     append([]string(nil), features...),
		RSquared:     1 - ssRes/ssTot,
		MeanAbsError: absErr / float64(n),
		Observations: n,
		Coefficients: make([]models.FeatureWeight, k),
	}
	for j, f := range features {
		out.Coefficients[j] = models.FeatureWeight{Feature: f, Weight: beta.AtVec(j)}
	}
	sort.SliceStable(out.Coefficients, func(a, b int) bool {
		return math.Abs(out.Coefficients[a].Weight) > math.Abs(out.Coefficients[b].Weight)
	})

	latest := ts.Complete(features...)
	if row, ok := latest.Last(); ok {
		pz := 0.0
		for j, f := range features {
			v, _ := row.Get(f)
			pz += beta.AtVec(j) * fm[j].z(v)
		}
		out.Prediction = pz*ym.std + ym.mean
		out.PredictionDate = row.Date
	}
	return out, nil
}

func columnMoments(code string, v []float64) (moments, error) {
	mean, std := stat.MeanStdDev(v, nil)
	if std == 0 || math.IsNaN(std) {
		return moments{}, fmt.Errorf("%w: %s is constant over the window", ErrDegenerateFeature, code)
	}
	return moments{mean: mean, std: std}, nil
}
