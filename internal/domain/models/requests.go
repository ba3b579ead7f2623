package models

// Query parameters of the HTTP API. Codes are comma separated lists.

type SeriesRequest struct {
	Codes string `query:"codes" json:"codes"`
	Days  int    `query:"days" json:"days" default:"90" validate:"gte=1,lte=3650"`
}

type CorrelationRequest struct {
	Codes string `query:"codes" json:"codes" validate:"required"`
	// Absent uses the configured default window; 0 is the whole series.
	Window int `query:"window" json:"window" validate:"gte=0,lte=3650"`
}

type LagRequest struct {
	Leading string `query:"leading" json:"leading" validate:"required"`
	Lagging string `query:"lagging" json:"lagging" validate:"required,nefield=Leading"`
	// Absent uses the configured default; 0 profiles lag 0 only.
	MaxLag int `query:"max_lag" json:"max_lag" validate:"gte=0,lte=365"`
}

type ForecastRequest struct {
	Target   string `query:"target" json:"target" validate:"required"`
	Features string `query:"features" json:"features" validate:"required"`
	// 0 fits on the whole series.
	Window int `query:"window" json:"window" validate:"gte=0,lte=3650"`
}
