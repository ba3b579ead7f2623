package models

import (
	"time"

	"IndiPull/pkg/date"
)

// Trend is the direction marker some sources print next to a change value.
type Trend int

const (
	TrendUnknown Trend = iota
	TrendUp
	TrendDown
)

// Raw is an unparsed reading as a source adapter found it. Current is
// required; Previous or Delta (with optional Trend) describe the prior value.
type Raw struct {
	Current  string `json:"current"`
	Previous string `json:"previous,omitempty"`
	Delta    string `json:"delta,omitempty"`
	Trend    Trend  `json:"trend,omitempty"`
}

// SourceResult is what one adapter call produced. A nil Err with an empty
// Readings map is still a successful, if useless, call.
type SourceResult struct {
	Source    string         `json:"source"`
	Readings  map[string]Raw `json:"readings,omitempty"`
	Err       string         `json:"error,omitempty"`
	FetchedAt time.Time      `json:"fetched_at"`
	On        date.Date      `json:"on"`
}

// Available reports whether the call succeeded with at least one reading.
func (r SourceResult) Available() bool { return r.Err == "" && len(r.Readings) > 0 }

// Quote is a normalized reading. Previous is meaningful only when HasPrevious.
type Quote struct {
	Current     float64 `json:"current"`
	Previous    float64 `json:"previous,omitempty"`
	HasPrevious bool    `json:"has_previous"`
}

// Snapshot is one refresh cycle's normalized readings. Indicators that could
// not be read are absent.
type Snapshot struct {
	TakenAt time.Time        `json:"taken_at"`
	Quotes  map[string]Quote `json:"quotes"`
}

func (s Snapshot) IsEmpty() bool { return len(s.Quotes) == 0 }
