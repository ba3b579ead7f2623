package series

import (
	"errors"

	"IndiPull/internal/domain/models"
	"IndiPull/internal/registry"
	"IndiPull/pkg/date"
)

// ErrNoData is returned when neither history nor the snapshot has anything to show.
var ErrNoData = errors.New("no data")

// Merger reconciles persisted history with the latest snapshot.
type Merger struct {
	columns []string
	keys    []string
}

func NewMerger(reg *registry.Registry) *Merger {
	return &Merger{columns: reg.Codes(), keys: reg.KeyCodes()}
}

// Merge returns history extended with synthetic rows for today and the day
// before. The yesterday row carries each quote's previous value, the today
// row its current value; indicators missing from the snapshot are carried
// from the last history row dated strictly before yesterday. Synthetic rows
// replace history rows of the same date. Null cells are then forward-filled
// and rows where every key indicator is null are dropped.
func (m *Merger) Merge(history TimeSeries, snap models.Snapshot, today date.Date) (TimeSeries, error) {
	if history.IsEmpty() && snap.IsEmpty() {
		return TimeSeries{}, ErrNoData
	}

	rows := history.Rows()
	if !snap.IsEmpty() {
		yesterday := today.Add(-1)
		tmpl := template(history, yesterday)

		y := tmpl.clone()
		y.Date = yesterday
		t := tmpl.clone()
		t.Date = today
		for code, q := range snap.Quotes {
			t.Values[code] = q.Current
			if q.HasPrevious {
				y.Values[code] = q.Previous
			}
		}
		rows = append(rows, y, t)
	}

	out := New(m.columns, rows).ForwardFill().DropAllNull(m.keys)
	if out.IsEmpty() {
		return TimeSeries{}, ErrNoData
	}
	return out, nil
}

func template(history TimeSeries, before date.Date) Row {
	for i := history.Len() - 1; i >= 0; i-- {
		if r := history.Row(i); r.Date.Before(before) {
			return r
		}
	}
	return Row{Values: map[string]float64{}}
}
