package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"IndiPull/internal/domain/models"
	drepo "IndiPull/internal/domain/repository"
	domsvc "IndiPull/internal/domain/service"
	"IndiPull/internal/registry"
	"IndiPull/internal/series"
	"IndiPull/internal/services/normalize"
	"IndiPull/pkg/date"
	"IndiPull/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// SourceStatus reports how one adapter fared in a build.
type SourceStatus struct {
	Name      string    `json:"name"`
	OK        bool      `json:"ok"`
	Readings  int       `json:"readings"`
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// View is one immutable dashboard build. Readers share it; nothing mutates it
// after it is published.
type View struct {
	CycleID string                  `json:"cycle_id"`
	BuiltAt time.Time               `json:"built_at"`
	Today   date.Date               `json:"today"`
	Series  series.TimeSeries       `json:"series"`
	Alerts  []models.Alert          `json:"alerts"`
	Quotes  map[string]models.Quote `json:"quotes"`
	Sources []SourceStatus          `json:"sources"`
	// HistoryFallback is set when persisted history could not be used.
	HistoryFallback bool `json:"history_fallback,omitempty"`
	NoData          bool `json:"no_data,omitempty"`
}

// Dashboard composes collection, reconciliation and analysis. Concurrent
// callers of the same operation share one build, builds never overlap, and
// each view is published atomically.
type Dashboard struct {
	reg        *registry.Registry
	collector  *Collector
	normalizer *normalize.Normalizer
	merger     *series.Merger
	history    drepo.HistoryStore
	evaluator  domsvc.AlertEvaluator
	analyzer   domsvc.CorrelationAnalyzer
	forecaster domsvc.Forecaster
	publisher  drepo.AlertPublisher
	metrics    drepo.Metrics
	l          *logger.Logger
	now        func() time.Time

	current atomic.Pointer[View]
	group   singleflight.Group
	// buildMu serializes builds so only one cycle fetches and publishes at a time.
	buildMu sync.Mutex

	subMu sync.RWMutex
	subs  []func(*View)
}

type DashboardDeps struct {
	Registry   *registry.Registry
	Collector  *Collector
	Normalizer *normalize.Normalizer
	Merger     *series.Merger
	History    drepo.HistoryStore
	Evaluator  domsvc.AlertEvaluator
	Analyzer   domsvc.CorrelationAnalyzer
	Forecaster domsvc.Forecaster
	Publisher  drepo.AlertPublisher
	Metrics    drepo.Metrics
	Logger     *logger.Logger
}

func NewDashboard(d DashboardDeps) *Dashboard {
	l := d.Logger
	if l == nil {
		l = logger.Nop()
	}
	return &Dashboard{
		reg:        d.Registry,
		collector:  d.Collector,
		normalizer: d.Normalizer,
		merger:     d.Merger,
		history:    d.History,
		evaluator:  d.Evaluator,
		analyzer:   d.Analyzer,
		forecaster: d.Forecaster,
		publisher:  d.Publisher,
		metrics:    d.Metrics,
		l:          l,
		now:        time.Now,
	}
}

// Registry returns the indicator catalogue the dashboard was built with.
func (d *Dashboard) Registry() *registry.Registry { return d.reg }

// Subscribe registers fn to receive every published view.
func (d *Dashboard) Subscribe(fn func(*View)) {
	d.subMu.Lock()
	d.subs = append(d.subs, fn)
	d.subMu.Unlock()
}

// Latest returns the published view without building; nil before the first build.
func (d *Dashboard) Latest() *View { return d.current.Load() }

// Current returns the latest view, building one if none exists yet.
func (d *Dashboard) Current(ctx context.Context) (*View, error) {
	if v := d.current.Load(); v != nil {
		return v, nil
	}
	return d.Rebuild(ctx)
}

// Refresh invalidates every cached source result and rebuilds. It waits for a
// build already in flight, so nothing older can be published or cached after it.
func (d *Dashboard) Refresh(ctx context.Context) (*View, error) {
	return d.do(ctx, "refresh", func(ctx context.Context) (*View, error) {
		d.buildMu.Lock()
		defer d.buildMu.Unlock()
		if err := d.collector.Invalidate(ctx); err != nil {
			d.l.Warn("dashboard: cache invalidation failed", logger.Error(err))
		}
		return d.build(ctx), nil
	})
}

// Rebuild recomputes the view; only expired sources are fetched again.
func (d *Dashboard) Rebuild(ctx context.Context) (*View, error) {
	return d.do(ctx, "rebuild", func(ctx context.Context) (*View, error) {
		d.buildMu.Lock()
		defer d.buildMu.Unlock()
		return d.build(ctx), nil
	})
}

func (d *Dashboard) do(ctx context.Context, key string, fn func(context.Context) (*View, error)) (*View, error) {
	ch := d.group.DoChan(key, func() (interface{}, error) {
		// detached so one caller giving up does not fail the others
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*View), nil
	}
}

func (d *Dashboard) build(ctx context.Context) *View {
	start := d.now()
	cycleID := uuid.NewString()
	today := date.Of(start)
	l := d.l.With(logger.String("cycle_id", cycleID))

	results := d.collector.Collect(ctx, cycleID, today)
	snap := d.normalizer.Snapshot(results, start)

	v := &View{
		CycleID: cycleID,
		BuiltAt: start,
		Today:   today,
		Quotes:  snap.Quotes,
		Sources: statuses(results),
	}

	hist, err := d.history.Load(ctx)
	if err != nil {
		v.HistoryFallback = true
		if errors.Is(err, drepo.ErrSchemaMismatch) {
			l.Warn("dashboard: history schema mismatch, using snapshot only", logger.Error(err))
		} else {
			l.Error("dashboard: history unavailable, using snapshot only", logger.Error(err))
		}
		hist = series.New(d.reg.Codes(), nil)
	}

	ts, err := d.merger.Merge(hist, snap, today)
	outcome := "ok"
	if err != nil {
		v.NoData = true
		v.Series = series.New(d.reg.Codes(), nil)
		outcome = "no_data"
		l.Warn("dashboard: nothing to show", logger.Error(err))
	} else {
		v.Series = ts
		v.Alerts = d.evaluator.Evaluate(ts)
	}
	if v.Alerts == nil {
		v.Alerts = []models.Alert{}
	}

	d.record(v)
	prev := d.current.Swap(v)
	d.publish(ctx, l, prev, v)
	d.notify(v)

	elapsed := d.now().Sub(start)
	d.metrics.RecordBuild(outcome, elapsed)
	l.Info("dashboard: built",
		logger.Int("rows", v.Series.Len()),
		logger.Int("quotes", len(snap.Quotes)),
		logger.Int("alerts", len(v.Alerts)),
		logger.Bool("history_fallback", v.HistoryFallback),
		logger.Duration("elapsed_ms", elapsed),
	)
	return v
}

func (d *Dashboard) record(v *View) {
	for code, q := range v.Quotes {
		d.metrics.RecordLastValue(code, q.Current)
	}
	counts := make(map[string]int)
	for _, a := range v.Alerts {
		counts[a.Category]++
	}
	for _, c := range d.reg.Categories() {
		d.metrics.RecordAlerts(c.ID, counts[c.ID])
	}
}

// publish sends the alerts that the previous view did not already carry.
func (d *Dashboard) publish(ctx context.Context, l *logger.Logger, prev, cur *View) {
	fresh := newAlerts(prev, cur)
	if len(fresh) == 0 {
		return
	}
	if err := d.publisher.Publish(ctx, cur.CycleID, fresh); err != nil {
		l.Warn("dashboard: alert notification failed", logger.Error(err))
	}
}

func newAlerts(prev, cur *View) []models.Alert {
	if prev == nil || prev.Today != cur.Today {
		return cur.Alerts
	}
	type key struct {
		code string
		dir  models.Direction
		cur  float64
	}
	seen := make(map[key]struct{}, len(prev.Alerts))
	for _, a := range prev.Alerts {
		seen[key{a.Indicator, a.Direction, a.Current}] = struct{}{}
	}
	var out []models.Alert
	for _, a := range cur.Alerts {
		if _, ok := seen[key{a.Indicator, a.Direction, a.Current}]; !ok {
			out = append(out, a)
		}
	}
	return out
}

func (d *Dashboard) notify(v *View) {
	d.subMu.RLock()
	defer d.subMu.RUnlock()
	for _, fn := range d.subs {
		fn(v)
	}
}

func statuses(results []models.SourceResult) []SourceStatus {
	out := make([]SourceStatus, len(results))
	for i, r := range results {
		out[i] = SourceStatus{
			Name:      r.Source,
			OK:        r.Available(),
			Readings:  len(r.Readings),
			Error:     r.Err,
			FetchedAt: r.FetchedAt,
		}
	}
	return out
}

// Archive persists the two most recent rows of the current series. It is
// scheduled separately and is never part of a refresh.
func (d *Dashboard) Archive(ctx context.Context) error {
	v, err := d.Current(ctx)
	if err != nil {
		return err
	}
	if v.NoData {
		return series.ErrNoData
	}
	rows := v.Series.Tail(2).Rows()
	if err := d.history.Save(ctx, rows); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	d.l.Info("dashboard: archived", logger.String("cycle_id", v.CycleID), logger.Int("rows", len(rows)))
	return nil
}

// populated is Current, failing with series.ErrNoData on an empty view.
func (d *Dashboard) populated(ctx context.Context) (*View, error) {
	v, err := d.Current(ctx)
	if err != nil {
		return nil, err
	}
	if v.NoData {
		return nil, series.ErrNoData
	}
	return v, nil
}

// Series returns the trailing days of the current series restricted to codes;
// no codes selects every column.
func (d *Dashboard) Series(ctx context.Context, codes []string, days int) (series.TimeSeries, error) {
	if err := d.reg.Has(codes...); err != nil {
		return series.TimeSeries{}, err
	}
	v, err := d.populated(ctx)
	if err != nil {
		return series.TimeSeries{}, err
	}
	ts := v.Series.Window(days)
	if len(codes) > 0 {
		ts = ts.Select(codes...)
	}
	return ts, nil
}

func (d *Dashboard) Correlation(ctx context.Context, codes []string, windowDays int) (models.CorrelationMatrix, error) {
	if err := d.reg.Has(codes...); err != nil {
		return models.CorrelationMatrix{}, err
	}
	v, err := d.populated(ctx)
	if err != nil {
		return models.CorrelationMatrix{}, err
	}
	return d.analyzer.Matrix(v.Series, codes, windowDays)
}

func (d *Dashboard) Lag(ctx context.Context, leading, lagging string, maxLag int) (models.LagAnalysis, error) {
	if err := d.reg.Has(leading, lagging); err != nil {
		return models.LagAnalysis{}, err
	}
	v, err := d.populated(ctx)
	if err != nil {
		return models.LagAnalysis{}, err
	}
	return d.analyzer.Lag(v.Series, leading, lagging, maxLag)
}

func (d *Dashboard) Forecast(ctx context.Context, target string, features []string, windowDays int) (models.ForecastModel, error) {
	if err := d.reg.Has(append([]string{target}, features...)...); err != nil {
		return models.ForecastModel{}, err
	}
	v, err := d.populated(ctx)
	if err != nil {
		return models.ForecastModel{}, err
	}
	return d.forecaster.Forecast(v.Series, target, features, windowDays)
}
