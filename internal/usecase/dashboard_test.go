package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"IndiPull/internal/domain/models"
	drepo "IndiPull/internal/domain/repository"
	"IndiPull/internal/registry"
	"IndiPull/internal/series"
	"IndiPull/internal/services/alerts"
	"IndiPull/internal/services/analytics"
	"IndiPull/internal/services/normalize"
	"IndiPull/pkg/date"
)

type memHistory struct {
	mu    sync.Mutex
	ts    series.TimeSeries
	err   error
	saved []series.Row
}

func (h *memHistory) Load(context.Context) (series.TimeSeries, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ts, h.err
}

func (h *memHistory) Save(_ context.Context, rows []series.Row) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saved = append(h.saved, rows...)
	return nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]models.Alert
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, a []models.Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, a)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

var buildTime = time.Date(2025, 3, 5, 9, 30, 0, 0, time.UTC)

func newTestDashboard(t *testing.T, hist drepo.HistoryStore, pub drepo.AlertPublisher, srcs ...*fakeSource) *Dashboard {
	t.Helper()
	reg := registry.Default()
	d := NewDashboard(DashboardDeps{
		Registry:   reg,
		Collector:  newTestCollector(t, &clock{t: buildTime}, time.Second, srcs...),
		Normalizer: normalize.New(reg, nil),
		Merger:     series.NewMerger(reg),
		History:    hist,
		Evaluator:  alerts.NewEvaluator(reg),
		Analyzer:   analytics.NewCorrelator(analytics.DefaultAlpha),
		Forecaster: analytics.NewRegressor(analytics.MinForecastRows),
		Publisher:  pub,
		Metrics:    metricsNop{},
	})
	d.now = func() time.Time { return buildTime }
	return d
}

type metricsNop struct{}

func (metricsNop) RecordFetch(string, string)               {}
func (metricsNop) RecordFetchLatency(string, time.Duration) {}
func (metricsNop) RecordLastValue(string, float64)          {}
func (metricsNop) RecordAlerts(string, int)                 {}
func (metricsNop) RecordBuild(string, time.Duration)        {}

func historyUntil(last date.Date, n int) series.TimeSeries {
	rows := make([]series.Row, 0, n)
	for i := n - 1; i >= 0; i-- {
		rows = append(rows, series.Row{
			Date:   last.Add(-i),
			Values: map[string]float64{"USD_RATE": 1430 + float64(n-i), "TREASURY_3Y": 2.8},
		})
	}
	return series.New(registry.Default().Codes(), rows)
}

func TestDashboardEndToEnd(t *testing.T) {
	today := date.Of(buildTime)
	hist := &memHistory{ts: historyUntil(today.Add(-2), 5)}
	pub := &recordingPublisher{}
	fx := okSource("fx", registry.Volatile, map[string]models.Raw{"USD_RATE": {Current: "1,450.0", Previous: "1442"}})
	d := newTestDashboard(t, hist, pub, fx)

	var pushed []*View
	d.Subscribe(func(v *View) { pushed = append(pushed, v) })

	v, err := d.Current(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v.Series.Len() != 7 {
		t.Fatalf("expected 5 history rows plus yesterday and today, got %d", v.Series.Len())
	}
	last, _ := v.Series.Last()
	if last.Date != today || last.Values["USD_RATE"] != 1450 {
		t.Fatalf("today row = %+v", last)
	}
	if y := v.Series.Row(v.Series.Len() - 2); y.Date != today.Add(-1) || y.Values["USD_RATE"] != 1442 {
		t.Fatalf("yesterday row = %+v", y)
	}
	if tr, _ := last.Get("TREASURY_3Y"); tr != 2.8 {
		t.Fatalf("untouched indicator should be carried: %v", tr)
	}

	if len(v.Alerts) != 1 {
		t.Fatalf("expected one alert, got %+v", v.Alerts)
	}
	a := v.Alerts[0]
	want := (1450.0 - 1442.0) / 1442.0 * 100
	if a.Indicator != "USD_RATE" || a.Direction != models.DirectionUp || math.Abs(a.Magnitude-want) > 1e-9 {
		t.Fatalf("alert = %+v, want magnitude %v", a, want)
	}
	if len(pub.batches) != 1 || len(pushed) != 1 || pushed[0] != v {
		t.Fatalf("expected one publish and one push, got %d/%d", len(pub.batches), len(pushed))
	}

	again, err := d.Current(context.Background())
	if err != nil || again != v {
		t.Fatalf("Current should return the published view")
	}

	if _, err := d.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fx.calls.Load() != 1 {
		t.Fatalf("rebuild should reuse cached source results")
	}
	if len(pub.batches) != 1 {
		t.Fatalf("unchanged alerts must not be published again")
	}

	if _, err := d.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fx.calls.Load() != 2 {
		t.Fatalf("refresh should refetch every source")
	}
}

func TestDashboardSchemaMismatchFallsBack(t *testing.T) {
	hist := &memHistory{err: drepo.ErrSchemaMismatch}
	fx := okSource("fx", registry.Volatile, map[string]models.Raw{"USD_RATE": {Current: "1450", Previous: "1442"}})
	d := newTestDashboard(t, hist, &recordingPublisher{}, fx)

	v, err := d.Rebuild(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !v.HistoryFallback || v.Series.Len() != 2 || v.NoData {
		t.Fatalf("expected snapshot-only series, got fallback=%v rows=%d", v.HistoryFallback, v.Series.Len())
	}
}

func TestDashboardNoData(t *testing.T) {
	broken := &fakeSource{name: "broken", class: registry.Slow, fetch: func(_ context.Context, on date.Date) models.SourceResult {
		return models.SourceResult{Source: "broken", On: on, Err: "timeout"}
	}}
	d := newTestDashboard(t, &memHistory{ts: series.New(registry.Default().Codes(), nil)}, &recordingPublisher{}, broken)

	v, err := d.Rebuild(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !v.NoData || !v.Series.IsEmpty() || len(v.Alerts) != 0 {
		t.Fatalf("expected empty view, got %+v", v)
	}
	if len(v.Sources) != 1 || v.Sources[0].OK || v.Sources[0].Error != "timeout" {
		t.Fatalf("source status = %+v", v.Sources)
	}
	if err := d.Archive(context.Background()); !errors.Is(err, series.ErrNoData) {
		t.Fatalf("archive of empty view: %v", err)
	}
	if _, err := d.Series(context.Background(), nil, 30); !errors.Is(err, series.ErrNoData) {
		t.Fatalf("series of empty view: %v", err)
	}
}

func TestDashboardArchiveSavesLastTwoRows(t *testing.T) {
	today := date.Of(buildTime)
	hist := &memHistory{ts: historyUntil(today.Add(-2), 3)}
	fx := okSource("fx", registry.Volatile, map[string]models.Raw{"USD_RATE": {Current: "1450", Previous: "1442"}})
	d := newTestDashboard(t, hist, &recordingPublisher{}, fx)

	if err := d.Archive(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(hist.saved) != 2 || hist.saved[0].Date != today.Add(-1) || hist.saved[1].Date != today {
		t.Fatalf("saved = %+v", hist.saved)
	}
}

func TestDashboardAnalyticsValidateCodes(t *testing.T) {
	fx := okSource("fx", registry.Volatile, map[string]models.Raw{"USD_RATE": {Current: "1450"}})
	d := newTestDashboard(t, &memHistory{ts: historyUntil(date.Of(buildTime).Add(-2), 40)}, &recordingPublisher{}, fx)
	ctx := context.Background()

	if _, err := d.Correlation(ctx, []string{"USD_RATE", "NOPE"}, 0); !errors.Is(err, registry.ErrUnknownIndicator) {
		t.Fatalf("expected unknown indicator, got %v", err)
	}
	if _, err := d.Lag(ctx, "USD_RATE", "NOPE", 5); !errors.Is(err, registry.ErrUnknownIndicator) {
		t.Fatalf("expected unknown indicator, got %v", err)
	}
	if _, err := d.Forecast(ctx, "NOPE", []string{"USD_RATE"}, 0); !errors.Is(err, registry.ErrUnknownIndicator) {
		t.Fatalf("expected unknown indicator, got %v", err)
	}

	ts, err := d.Series(ctx, []string{"USD_RATE"}, 7)
	if err != nil {
		t.Fatal(err)
	}
	if cols := ts.Columns(); len(cols) != 1 || cols[0] != "USD_RATE" {
		t.Fatalf("columns = %v", cols)
	}
	if ts.Len() != 7 {
		t.Fatalf("window of 7 days should hold 7 rows, got %d", ts.Len())
	}

	// a constant column has no defined correlation at any lag
	if _, err := d.Lag(ctx, "USD_RATE", "TREASURY_3Y", 3); !errors.Is(err, analytics.ErrInsufficientData) {
		t.Fatalf("lag: %v", err)
	}
}

func TestDashboardCollapsesConcurrentBuilds(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	slow := &fakeSource{name: "slow", class: registry.Slow, fetch: func(_ context.Context, on date.Date) models.SourceResult {
		once.Do(func() { close(started) })
		<-release
		return models.SourceResult{Source: "slow", On: on, Readings: map[string]models.Raw{"USD_RATE": {Current: "1450"}}}
	}}
	d := newTestDashboard(t, &memHistory{}, &recordingPublisher{}, slow)

	var wg sync.WaitGroup
	views := make([]*View, 4)
	for i := range views {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i > 0 {
				<-started
			}
			v, err := d.Rebuild(context.Background())
			if err != nil {
				t.Error(err)
			}
			views[i] = v
		}(i)
	}
	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if slow.calls.Load() != 1 {
		t.Fatalf("expected one build, source called %d times", slow.calls.Load())
	}
	for _, v := range views[1:] {
		if v != views[0] {
			t.Fatalf("callers should share one view")
		}
	}
}

func TestDashboardRefreshWaitsForInFlightRebuild(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var active, peak atomic.Int32
	src := &fakeSource{name: "fx", class: registry.Slow}
	src.fetch = func(_ context.Context, on date.Date) models.SourceResult {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		current := "1450"
		if src.calls.Load() == 1 {
			close(started)
			<-release
			current = "1400"
		}
		return models.SourceResult{Source: "fx", On: on, Readings: map[string]models.Raw{"USD_RATE": {Current: current}}}
	}
	d := newTestDashboard(t, &memHistory{}, &recordingPublisher{}, src)

	var wg sync.WaitGroup
	var rebuilt, refreshed *View
	wg.Add(2)
	go func() {
		defer wg.Done()
		v, err := d.Rebuild(context.Background())
		if err != nil {
			t.Error(err)
		}
		rebuilt = v
	}()
	<-started
	go func() {
		defer wg.Done()
		v, err := d.Refresh(context.Background())
		if err != nil {
			t.Error(err)
		}
		refreshed = v
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if peak.Load() != 1 {
		t.Fatalf("builds overlapped: %d concurrent fetches", peak.Load())
	}
	if got := rebuilt.Quotes["USD_RATE"].Current; got != 1400 {
		t.Fatalf("rebuild USD_RATE = %v, want 1400", got)
	}
	if got := refreshed.Quotes["USD_RATE"].Current; got != 1450 {
		t.Fatalf("refresh USD_RATE = %v, want 1450", got)
	}
	if d.Latest() != refreshed {
		t.Fatalf("latest view is not the refreshed one")
	}

	// the refreshed result is what the cache now serves
	v, err := d.Rebuild(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := v.Quotes["USD_RATE"].Current; got != 1450 || src.calls.Load() != 2 {
		t.Fatalf("cached USD_RATE = %v after %d fetches, want 1450 after 2", got, src.calls.Load())
	}
}
