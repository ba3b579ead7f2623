package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	domrepo "IndiPull/internal/domain/repository"
	"IndiPull/internal/registry"
	"IndiPull/internal/series"
	pkgch "IndiPull/pkg/clickhouse"
	"IndiPull/pkg/date"
	applogger "IndiPull/pkg/logger"
)

const versionColumn = "updated_at"

// CHHistory keeps the wide series in a ReplacingMergeTree keyed by date, so
// re-inserting a day replaces it once parts merge; reads use FINAL.
type CHHistory struct {
	db       *sql.DB
	database string
	table    string
	columns  []string
	l        *applogger.Logger
}

func NewCHHistory(ch *pkgch.Client, database, table string, reg *registry.Registry) *CHHistory {
	return &CHHistory{db: ch.DB(), database: database, table: table, columns: reg.Codes(), l: applogger.Nop()}
}

var _ domrepo.HistoryStore = (*CHHistory)(nil)

// SetLogger injects a structured logger.
func (s *CHHistory) SetLogger(l *applogger.Logger) { s.l = l }

// SchemaStatements returns the idempotent DDL for the history table.
func (s *CHHistory) SchemaStatements() []string {
	return historySchema(s.database, s.table, s.columns)
}

func historySchema(database, table string, columns []string) []string {
	defs := make([]string, 0, len(columns)+2)
	defs = append(defs, "`date` Date")
	for _, c := range columns {
		defs = append(defs, fmt.Sprintf("`%s` Nullable(Float64)", c))
	}
	defs = append(defs, fmt.Sprintf("`%s` DateTime DEFAULT now()", versionColumn))
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (\n  %s\n) ENGINE = ReplacingMergeTree(%s)\nORDER BY date",
			database, table, strings.Join(defs, ",\n  "), versionColumn),
	}
}

func (s *CHHistory) fqtn() string { return s.database + "." + s.table }

func (s *CHHistory) Load(ctx context.Context) (series.TimeSeries, error) {
	start := time.Now()
	stored, err := s.storedColumns(ctx)
	if err != nil {
		return series.TimeSeries{}, err
	}
	if len(stored) == 0 {
		return series.New(s.columns, nil), nil
	}
	if err := matchColumns(stored, s.columns); err != nil {
		return series.TimeSeries{}, err
	}

	q := fmt.Sprintf("SELECT date, %s FROM %s FINAL ORDER BY date ASC", quoteColumns(s.columns), s.fqtn())
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		s.l.Error("clickhouse history query error", applogger.String("table", s.fqtn()), applogger.Error(err))
		return series.TimeSeries{}, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var (
		out  []series.Row
		day  time.Time
		vals = make([]sql.NullFloat64, len(s.columns))
		dest = make([]any, len(s.columns)+1)
	)
	dest[0] = &day
	for i := range vals {
		dest[i+1] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return series.TimeSeries{}, fmt.Errorf("scan history row: %w", err)
		}
		row := series.Row{Date: date.Of(day.UTC()), Values: make(map[string]float64, len(s.columns))}
		for i, code := range s.columns {
			if vals[i].Valid {
				row.Values[code] = vals[i].Float64
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return series.TimeSeries{}, fmt.Errorf("rows: %w", err)
	}
	s.l.Info("clickhouse history loaded",
		applogger.String("table", s.fqtn()),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return series.New(s.columns, out), nil
}

func (s *CHHistory) storedColumns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM system.columns WHERE database = ? AND table = ? ORDER BY position",
		s.database, s.table)
	if err != nil {
		return nil, fmt.Errorf("describe history: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("describe history: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// matchColumns checks that stored is date, the registry codes in order and
// optionally the version column.
func matchColumns(stored, codes []string) error {
	if n := len(stored); n > 0 && stored[n-1] == versionColumn {
		stored = stored[:n-1]
	}
	if len(stored) != len(codes)+1 || stored[0] != "date" {
		return fmt.Errorf("%w: table has %d indicator columns, registry has %d", domrepo.ErrSchemaMismatch, len(stored)-1, len(codes))
	}
	for i, c := range codes {
		if stored[i+1] != c {
			return fmt.Errorf("%w: column %d is %q, want %q", domrepo.ErrSchemaMismatch, i+1, stored[i+1], c)
		}
	}
	return nil
}

// Save inserts rows in multi-row VALUES chunks.
func (s *CHHistory) Save(ctx context.Context, rows []series.Row) error {
	const chunkSize = 500
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		q, args := buildInsert(s.fqtn(), s.columns, rows[start:end])
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse history insert error", applogger.String("table", s.fqtn()), applogger.Error(err))
			return fmt.Errorf("save history: %w", err)
		}
	}
	return nil
}

func buildInsert(table string, columns []string, rows []series.Row) (string, []any) {
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)+1), ", ") + ")"
	values := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*(len(columns)+1))
	for _, r := range rows {
		if r.Date.IsZero() {
			continue
		}
		values = append(values, placeholder)
		args = append(args, r.Date.Time())
		for _, c := range columns {
			if v, ok := r.Get(c); ok {
				args = append(args, v)
			} else {
				args = append(args, nil)
			}
		}
	}
	if len(values) == 0 {
		return "", nil
	}
	q := fmt.Sprintf("INSERT INTO %s (date, %s) VALUES %s", table, quoteColumns(columns), strings.Join(values, ","))
	return q, args
}

func quoteColumns(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = "`" + c + "`"
	}
	return strings.Join(q, ", ")
}
