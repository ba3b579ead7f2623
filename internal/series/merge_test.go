package series

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"IndiPull/internal/domain/models"
	"IndiPull/internal/registry"
	"IndiPull/pkg/date"
)

var testRegistry = registry.MustNew(
	[]registry.Category{
		{ID: "fx", Mode: registry.ModePercent, Threshold: 0.5, Key: "USD_RATE"},
		{ID: "rate", Mode: registry.ModePoints, Threshold: 0.1, Key: "CD_91"},
	},
	[]registry.Indicator{
		{Code: "USD_RATE", Category: "fx"},
		{Code: "EUR_RATE", Category: "fx"},
		{Code: "CD_91", Category: "rate"},
	},
)

func d(s string) date.Date { return date.MustParse(s) }

func row(day string, vals map[string]float64) Row {
	return Row{Date: d(day), Values: vals}
}

func history() TimeSeries {
	return New(testRegistry.Codes(), []Row{
		row("2025-03-01", map[string]float64{"USD_RATE": 1430, "CD_91": 3.1}),
		row("2025-03-02", map[string]float64{"USD_RATE": 1435, "EUR_RATE": 1550}),
		row("2025-03-03", map[string]float64{"USD_RATE": 1440}),
	})
}

func assertInvariants(t *testing.T, ts TimeSeries) {
	t.Helper()
	for i := 1; i < ts.Len(); i++ {
		if !ts.Row(i - 1).Date.Before(ts.Row(i).Date) {
			t.Fatalf("dates not strictly increasing at %d: %v then %v", i, ts.Row(i-1).Date, ts.Row(i).Date)
		}
	}
}

func TestMergeEndToEnd(t *testing.T) {
	m := NewMerger(testRegistry)
	snap := models.Snapshot{Quotes: map[string]models.Quote{
		"USD_RATE": {Current: 1450, Previous: 1442, HasPrevious: true},
	}}

	got, err := m.Merge(history(), snap, d("2025-03-05"))
	if err != nil {
		t.Fatal(err)
	}
	assertInvariants(t, got)
	if got.Len() != 5 {
		t.Fatalf("len = %d, want 5", got.Len())
	}
	y, tday := got.Row(3), got.Row(4)
	if y.Date != d("2025-03-04") || tday.Date != d("2025-03-05") {
		t.Fatalf("synthetic dates = %v, %v", y.Date, tday.Date)
	}
	if v, _ := y.Get("USD_RATE"); v != 1442 {
		t.Fatalf("yesterday USD = %v, want 1442", v)
	}
	if v, _ := tday.Get("USD_RATE"); v != 1450 {
		t.Fatalf("today USD = %v, want 1450", v)
	}
	// carried from the template row (itself forward-filled)
	if v, ok := tday.Get("EUR_RATE"); !ok || v != 1550 {
		t.Fatalf("today EUR = %v,%v want 1550", v, ok)
	}
	if v, ok := tday.Get("CD_91"); !ok || v != 3.1 {
		t.Fatalf("today CD = %v,%v want 3.1", v, ok)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	m := NewMerger(testRegistry)
	snap := models.Snapshot{Quotes: map[string]models.Quote{
		"USD_RATE": {Current: 1450, Previous: 1442, HasPrevious: true},
		"CD_91":    {Current: 3.2},
	}}
	today := d("2025-03-05")

	once, err := m.Merge(history(), snap, today)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := m.Merge(once, snap, today)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(once.Rows(), twice.Rows()) {
		t.Fatalf("merge not idempotent:\n once=%v\ntwice=%v", once.Rows(), twice.Rows())
	}
}

func TestMergeOverridesStaleHistoryRow(t *testing.T) {
	m := NewMerger(testRegistry)
	hist := New(testRegistry.Codes(), []Row{
		row("2025-03-01", map[string]float64{"USD_RATE": 1400}),
		row("2025-03-05", map[string]float64{"USD_RATE": 1300}),
	})
	snap := models.Snapshot{Quotes: map[string]models.Quote{"USD_RATE": {Current: 1450}}}

	got, err := m.Merge(hist, snap, d("2025-03-05"))
	if err != nil {
		t.Fatal(err)
	}
	last, _ := got.Last()
	if v, _ := last.Get("USD_RATE"); v != 1450 {
		t.Fatalf("today = %v, want snapshot value 1450", v)
	}
	// no previous in the snapshot: yesterday carries the template
	if v, _ := got.Row(got.Len() - 2).Get("USD_RATE"); v != 1400 {
		t.Fatalf("yesterday = %v, want template 1400", v)
	}
}

func TestMergeNoData(t *testing.T) {
	m := NewMerger(testRegistry)
	_, err := m.Merge(TimeSeries{}, models.Snapshot{}, d("2025-03-05"))
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestMergeSnapshotOnly(t *testing.T) {
	m := NewMerger(testRegistry)
	snap := models.Snapshot{Quotes: map[string]models.Quote{"CD_91": {Current: 3.11, Previous: 3.0, HasPrevious: true}}}
	got, err := m.Merge(TimeSeries{}, snap, d("2025-03-05"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 2 {
		t.Fatalf("len = %d, want 2", got.Len())
	}
}

func TestMergeEmptySnapshotKeepsHistory(t *testing.T) {
	m := NewMerger(testRegistry)
	got, err := m.Merge(history(), models.Snapshot{}, d("2025-03-05"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 3 {
		t.Fatalf("len = %d, want 3", got.Len())
	}
}

func TestMergeDropsRowsWithoutKeyIndicators(t *testing.T) {
	m := NewMerger(testRegistry)
	hist := New(testRegistry.Codes(), []Row{
		row("2025-03-01", map[string]float64{"EUR_RATE": 1500}),
		row("2025-03-02", map[string]float64{"USD_RATE": 1435}),
	})
	got, err := m.Merge(hist, models.Snapshot{}, d("2025-03-05"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 1 || got.Row(0).Date != d("2025-03-02") {
		t.Fatalf("rows = %v", got.Rows())
	}
	// forward-fill carries EUR from the dropped row
	if v, ok := got.Row(0).Get("EUR_RATE"); !ok || v != 1500 {
		t.Fatalf("EUR = %v,%v", v, ok)
	}
}

func TestNewDedupKeepsLast(t *testing.T) {
	ts := New([]string{"A"}, []Row{
		row("2025-01-02", map[string]float64{"A": 2}),
		row("2025-01-01", map[string]float64{"A": 1}),
		row("2025-01-02", map[string]float64{"A": 3}),
	})
	assertInvariants(t, ts)
	if ts.Len() != 2 {
		t.Fatalf("len = %d", ts.Len())
	}
	if v, _ := ts.Row(1).Get("A"); v != 3 {
		t.Fatalf("dedup kept %v, want 3", v)
	}
}

func TestForwardFillNeverInventsValues(t *testing.T) {
	cols := []string{"A", "B"}
	ts := New(cols, []Row{
		row("2025-01-01", map[string]float64{"A": 1}),
		row("2025-01-02", map[string]float64{}),
		row("2025-01-03", map[string]float64{"B": 5}),
		row("2025-01-04", map[string]float64{}),
	}).ForwardFill()

	for i := 0; i < ts.Len(); i++ {
		for _, c := range cols {
			_, filled := ts.Row(i).Get(c)
			seen := false
			for j := 0; j <= i; j++ {
				if _, ok := ts.Row(j).Get(c); ok {
					seen = true
				}
			}
			if filled && !seen {
				t.Fatalf("row %d col %s filled without a prior value", i, c)
			}
		}
	}
	if _, ok := ts.Row(1).Get("B"); ok {
		t.Fatalf("B filled before first observation")
	}
	if v, _ := ts.Row(3).Get("B"); v != 5 {
		t.Fatalf("B = %v, want 5", v)
	}
	if v, _ := ts.Row(3).Get("A"); v != 1 {
		t.Fatalf("A = %v, want 1", v)
	}
}

func TestWindowAndComplete(t *testing.T) {
	ts := New([]string{"A", "B"}, []Row{
		row("2025-01-01", map[string]float64{"A": 1, "B": 1}),
		row("2025-01-10", map[string]float64{"A": 2}),
		row("2025-01-20", map[string]float64{"A": 3, "B": math.Pi}),
	})
	if got := ts.Window(10).Len(); got != 1 {
		t.Fatalf("Window(10) len = %d, want 1", got)
	}
	if got := ts.Window(0).Len(); got != 3 {
		t.Fatalf("Window(0) len = %d, want 3", got)
	}
	if got := ts.Complete("A", "B").Len(); got != 2 {
		t.Fatalf("Complete len = %d, want 2", got)
	}
	if got := ts.Column("B"); len(got) != 2 {
		t.Fatalf("Column(B) = %v", got)
	}
}
