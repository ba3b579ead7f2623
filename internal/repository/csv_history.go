package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	domrepo "IndiPull/internal/domain/repository"
	"IndiPull/internal/registry"
	"IndiPull/internal/series"
	"IndiPull/pkg/date"
	applogger "IndiPull/pkg/logger"
)

// CSVHistory stores the series as a wide CSV file: a "date" column followed
// by one column per registered indicator, in registry order.
type CSVHistory struct {
	path    string
	columns []string
	mu      sync.Mutex
	l       *applogger.Logger
}

func NewCSVHistory(path string, reg *registry.Registry) *CSVHistory {
	return &CSVHistory{path: path, columns: reg.Codes(), l: applogger.Nop()}
}

var _ domrepo.HistoryStore = (*CSVHistory)(nil)

// SetLogger injects a structured logger.
func (h *CSVHistory) SetLogger(l *applogger.Logger) { h.l = l }

// Load reads the file. A missing file is an empty history; a header that
// differs from the registry is ErrSchemaMismatch. Rows with unparseable
// dates are dropped, and empty or unparseable cells are missing values.
func (h *CSVHistory) Load(ctx context.Context) (series.TimeSeries, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load(ctx)
}

func (h *CSVHistory) load(ctx context.Context) (series.TimeSeries, error) {
	f, err := os.Open(h.path)
	if errors.Is(err, os.ErrNotExist) {
		return series.New(h.columns, nil), nil
	}
	if err != nil {
		return series.TimeSeries{}, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return series.New(h.columns, nil), nil
	}
	if err != nil {
		return series.TimeSeries{}, fmt.Errorf("read history header: %w", err)
	}
	if err := h.checkHeader(header); err != nil {
		return series.TimeSeries{}, err
	}

	var (
		rows    []series.Row
		dropped int
	)
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return series.TimeSeries{}, err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return series.TimeSeries{}, fmt.Errorf("read history line %d: %w", line, err)
		}
		if len(rec) != len(header) {
			dropped++
			continue
		}
		d, err := date.Parse(rec[0])
		if err != nil {
			dropped++
			continue
		}
		row := series.Row{Date: d, Values: make(map[string]float64, len(h.columns))}
		for i, code := range h.columns {
			cell := strings.TrimSpace(rec[i+1])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				continue
			}
			row.Values[code] = v
		}
		rows = append(rows, row)
	}
	if dropped > 0 {
		h.l.Warn("csv history: rows dropped", applogger.String("path", h.path), applogger.Int("rows", dropped))
	}
	return series.New(h.columns, rows), nil
}

func (h *CSVHistory) checkHeader(header []string) error {
	if len(header) != len(h.columns)+1 || !strings.EqualFold(strings.TrimSpace(header[0]), "date") {
		return fmt.Errorf("%w: %d columns in %s", domrepo.ErrSchemaMismatch, len(header), h.path)
	}
	for i, code := range h.columns {
		if strings.TrimSpace(header[i+1]) != code {
			return fmt.Errorf("%w: column %d is %q, want %q", domrepo.ErrSchemaMismatch, i+1, header[i+1], code)
		}
	}
	return nil
}

// Save upserts rows by date and rewrites the file atomically.
func (h *CSVHistory) Save(ctx context.Context, rows []series.Row) error {
	if len(rows) == 0 {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	existing, err := h.load(ctx)
	if err != nil {
		return err
	}
	merged := series.New(h.columns, append(existing.Rows(), rows...))

	if dir := filepath.Dir(h.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(h.path), ".history-*.csv")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(append([]string{"date"}, h.columns...)); err != nil {
		tmp.Close()
		return fmt.Errorf("write history header: %w", err)
	}
	rec := make([]string, len(h.columns)+1)
	for _, row := range merged.Rows() {
		rec[0] = row.Date.String()
		for i, code := range h.columns {
			rec[i+1] = ""
			if v, ok := row.Get(code); ok {
				rec[i+1] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return fmt.Errorf("write history row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp history: %w", err)
	}
	if err := os.Rename(tmp.Name(), h.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	h.l.Info("csv history: saved", applogger.String("path", h.path), applogger.Int("rows", len(rows)), applogger.Int("total", merged.Len()))
	return nil
}

// NopHistory is the store used when persistence is disabled.
type NopHistory struct{ columns []string }

func NewNopHistory(reg *registry.Registry) *NopHistory { return &NopHistory{columns: reg.Codes()} }

var _ domrepo.HistoryStore = (*NopHistory)(nil)

func (n *NopHistory) Load(context.Context) (series.TimeSeries, error) {
	return series.New(n.columns, nil), nil
}

func (n *NopHistory) Save(context.Context, []series.Row) error { return nil }
