package models

import "IndiPull/pkg/date"

type LagResult struct {
	Lag         int     `json:"lag"`
	Coefficient float64 `json:"coefficient"`
	PValue      float64 `json:"p_value"`
	N           int     `json:"n"`
	Defined     bool    `json:"defined"`
	Significant bool    `json:"significant"`
}

type LagAnalysis struct {
	Leading  string      `json:"leading"`
	Lagging  string      `json:"lagging"`
	MaxLag   int         `json:"max_lag"`
	Results  []LagResult `json:"results"`
	Optimal  *LagResult  `json:"optimal,omitempty"`
	Strength string      `json:"strength,omitempty"` // strong | moderate | weak
	Sign     string      `json:"sign,omitempty"`     // positive | negative
}

// CorrelationMatrix holds pairwise Pearson coefficients; NaN marks a pair
// that could not be computed (a constant column).
type CorrelationMatrix struct {
	Codes        []string    `json:"codes"`
	WindowDays   int         `json:"window_days"`
	Observations int         `json:"observations"`
	From         date.Date   `json:"from"`
	To           date.Date   `json:"to"`
	Coefficients [][]float64 `json:"-"`
}

type FeatureWeight struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

type ForecastModel struct {
	Target         string          `json:"target"`
	Features       []string        `json:"features"`
	Coefficients   []FeatureWeight `json:"coefficients"` // standardized, by |weight| desc
	RSquared       float64         `json:"r_squared"`
	MeanAbsError   float64         `json:"mean_abs_error"`
	Observations   int             `json:"observations"`
	Prediction     float64         `json:"prediction"`
	PredictionDate date.Date       `json:"prediction_date"`
}
