// Package series implements the date-indexed indicator table and the merge
// of persisted history with a fresh snapshot.
package series

import (
	"encoding/json"
	"sort"

	"IndiPull/pkg/date"
)

// Row is one calendar day. A code missing from Values is a null cell.
type Row struct {
	Date   date.Date          `json:"date"`
	Values map[string]float64 `json:"values"`
}

// Get returns the value of code and whether it is present.
func (r Row) Get(code string) (float64, bool) {
	v, ok := r.Values[code]
	return v, ok
}

func (r Row) clone() Row {
	vals := make(map[string]float64, len(r.Values))
	for k, v := range r.Values {
		vals[k] = v
	}
	return Row{Date: r.Date, Values: vals}
}

// TimeSeries is an ascending, date-unique table of rows. Values are never
// modified after construction; every transformation returns a new series.
type TimeSeries struct {
	columns []string
	rows    []Row
}

// New builds a series over columns. Rows are stably sorted by date and rows
// sharing a date collapse to the one that came last in the input. Cells for
// codes outside columns are dropped.
func New(columns []string, rows []Row) TimeSeries {
	known := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		known[c] = struct{}{}
	}

	in := make([]Row, 0, len(rows))
	for _, r := range rows {
		c := Row{Date: r.Date, Values: make(map[string]float64, len(r.Values))}
		for k, v := range r.Values {
			if _, ok := known[k]; ok {
				c.Values[k] = v
			}
		}
		in = append(in, c)
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].Date.Before(in[j].Date) })

	out := make([]Row, 0, len(in))
	for _, r := range in {
		if n := len(out); n > 0 && out[n-1].Date == r.Date {
			out[n-1] = r
			continue
		}
		out = append(out, r)
	}
	return TimeSeries{columns: append([]string(nil), columns...), rows: out}
}

func (ts TimeSeries) Columns() []string { return append([]string(nil), ts.columns...) }
func (ts TimeSeries) Len() int          { return len(ts.rows) }
func (ts TimeSeries) IsEmpty() bool     { return len(ts.rows) == 0 }

// Row returns the i-th row. The Values map must be treated as read-only.
func (ts TimeSeries) Row(i int) Row { return ts.rows[i] }

// Rows returns a copy of the row slice; the Values maps are shared and read-only.
func (ts TimeSeries) Rows() []Row { return append([]Row(nil), ts.rows...) }

// Last returns the most recent row.
func (ts TimeSeries) Last() (Row, bool) {
	if len(ts.rows) == 0 {
		return Row{}, false
	}
	return ts.rows[len(ts.rows)-1], true
}

// Tail returns the last n rows as a series.
func (ts TimeSeries) Tail(n int) TimeSeries {
	if n <= 0 || n >= len(ts.rows) {
		return ts
	}
	return TimeSeries{columns: ts.columns, rows: ts.rows[len(ts.rows)-n:]}
}

// Window keeps rows dated within the trailing days ending at the last row.
// days <= 0 keeps the full series.
func (ts TimeSeries) Window(days int) TimeSeries {
	last, ok := ts.Last()
	if !ok || days <= 0 {
		return ts
	}
	from := last.Date.Add(-days)
	i := sort.Search(len(ts.rows), func(i int) bool { return ts.rows[i].Date.After(from) })
	return TimeSeries{columns: ts.columns, rows: ts.rows[i:]}
}

// Select restricts the series to the given columns.
func (ts TimeSeries) Select(codes ...string) TimeSeries {
	return New(codes, ts.rows)
}

// ForwardFill replaces each null cell with the nearest preceding non-null
// value of the same column. Columns that have never been set stay null.
func (ts TimeSeries) ForwardFill() TimeSeries {
	last := make(map[string]float64, len(ts.columns))
	out := make([]Row, len(ts.rows))
	for i, r := range ts.rows {
		c := r.clone()
		for _, col := range ts.columns {
			if v, ok := c.Values[col]; ok {
				last[col] = v
			} else if v, ok := last[col]; ok {
				c.Values[col] = v
			}
		}
		out[i] = c
	}
	return TimeSeries{columns: ts.columns, rows: out}
}

// DropAllNull removes rows where every one of codes is null. An empty codes
// list keeps every row.
func (ts TimeSeries) DropAllNull(codes []string) TimeSeries {
	if len(codes) == 0 {
		return ts
	}
	out := make([]Row, 0, len(ts.rows))
	for _, r := range ts.rows {
		for _, c := range codes {
			if _, ok := r.Values[c]; ok {
				out = append(out, r)
				break
			}
		}
	}
	return TimeSeries{columns: ts.columns, rows: out}
}

// Complete keeps rows where every one of codes is present.
func (ts TimeSeries) Complete(codes ...string) TimeSeries {
	out := make([]Row, 0, len(ts.rows))
	for _, r := range ts.rows {
		if hasAll(r, codes) {
			out = append(out, r)
		}
	}
	return TimeSeries{columns: ts.columns, rows: out}
}

// Column returns the values of code in row order for rows that have it.
func (ts TimeSeries) Column(code string) []float64 {
	out := make([]float64, 0, len(ts.rows))
	for _, r := range ts.rows {
		if v, ok := r.Values[code]; ok {
			out = append(out, v)
		}
	}
	return out
}

func hasAll(r Row, codes []string) bool {
	for _, c := range codes {
		if _, ok := r.Values[c]; !ok {
			return false
		}
	}
	return true
}

func (ts TimeSeries) MarshalJSON() ([]byte, error) {
	rows := ts.rows
	if rows == nil {
		rows = []Row{}
	}
	return json.Marshal(struct {
		Columns []string `json:"columns"`
		Rows    []Row    `json:"rows"`
	}{ts.columns, rows})
}
