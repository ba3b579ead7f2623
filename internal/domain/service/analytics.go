package service

import (
	"IndiPull/internal/domain/models"
	"IndiPull/internal/series"
)

// AlertEvaluator derives change alerts from the two most recent rows.
type AlertEvaluator interface {
	Evaluate(ts series.TimeSeries) []models.Alert
}

// CorrelationAnalyzer computes correlation matrices and lead/lag profiles.
type CorrelationAnalyzer interface {
	Matrix(ts series.TimeSeries, codes []string, windowDays int) (models.CorrelationMatrix, error)
	Lag(ts series.TimeSeries, leading, lagging string, maxLag int) (models.LagAnalysis, error)
}

// Forecaster fits a linear model of target against features.
type Forecaster interface {
	Forecast(ts series.TimeSeries, target string, features []string, windowDays int) (models.ForecastModel, error)
}
