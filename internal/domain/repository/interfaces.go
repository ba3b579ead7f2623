package repository

import (
	"context"
	"errors"
	"time"

	"IndiPull/internal/domain/models"
	"IndiPull/internal/registry"
	"IndiPull/internal/series"
	"IndiPull/pkg/date"
)

// ErrSchemaMismatch is returned by a HistoryStore whose stored columns do not
// match the registry. Callers fall back to building from the snapshot alone.
var ErrSchemaMismatch = errors.New("history schema does not match registry")

// Source fetches the readings of one upstream. Fetch never returns an error:
// failures are reported through SourceResult.Err so they can be cached.
type Source interface {
	Name() string
	TTLClass() registry.TTLClass
	Fetch(ctx context.Context, on date.Date) models.SourceResult
}

// HistoryStore persists the wide daily series.
type HistoryStore interface {
	Load(ctx context.Context) (series.TimeSeries, error)
	// Save upserts rows by date.
	Save(ctx context.Context, rows []series.Row) error
}

type AlertPublisher interface {
	Publish(ctx context.Context, cycleID string, alerts []models.Alert) error
	Close() error
}

type Metrics interface {
	RecordFetch(source, outcome string)
	RecordFetchLatency(source string, d time.Duration)
	RecordLastValue(code string, value float64)
	RecordAlerts(category string, n int)
	RecordBuild(outcome string, d time.Duration)
}
