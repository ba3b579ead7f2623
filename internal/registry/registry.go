// Package registry holds the static indicator catalogue: categories, their
// alert thresholds and cache classes, and the fixed column order of the series.
package registry

import (
	"errors"
	"fmt"
)

var ErrUnknownIndicator = errors.New("unknown indicator")

// Mode selects how the alert magnitude of a category is measured.
type Mode string

const (
	ModePercent Mode = "percent" // percent of previous value
	ModePoints  Mode = "points"  // absolute difference in percentage points
)

// TTLClass groups sources by how often their values move.
type TTLClass string

const (
	Volatile TTLClass = "volatile"
	Slow     TTLClass = "slow"
)

type Category struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Icon      string   `json:"icon"`
	Mode      Mode     `json:"mode"`
	Threshold float64  `json:"threshold"`
	TTLClass  TTLClass `json:"ttl_class"`
	// Key is the representative indicator used to detect wholly failed rows.
	Key string `json:"key"`
}

type Indicator struct {
	Code     string `json:"code"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Unit     string `json:"unit"`
	Format   string `json:"format"`
}

// Registry is immutable once built; share it by pointer.
type Registry struct {
	categories []Category
	indicators []Indicator
	byCode     map[string]int
	byCategory map[string]int
}

// New validates and indexes a catalogue. Indicator order is the column order.
func New(categories []Category, indicators []Indicator) (*Registry, error) {
	r := &Registry{
		categories: append([]Category(nil), categories...),
		indicators: append([]Indicator(nil), indicators...),
		byCode:     make(map[string]int, len(indicators)),
		byCategory: make(map[string]int, len(categories)),
	}
	for i, c := range r.categories {
		if c.ID == "" {
			return nil, fmt.Errorf("category %d: empty id", i)
		}
		if _, dup := r.byCategory[c.ID]; dup {
			return nil, fmt.Errorf("category %s: duplicate id", c.ID)
		}
		if c.Mode != ModePercent && c.Mode != ModePoints {
			return nil, fmt.Errorf("category %s: invalid mode %q", c.ID, c.Mode)
		}
		if c.Threshold <= 0 {
			return nil, fmt.Errorf("category %s: threshold must be positive", c.ID)
		}
		r.byCategory[c.ID] = i
	}
	for i, ind := range r.indicators {
		if ind.Code == "" {
			return nil, fmt.Errorf("indicator %d: empty code", i)
		}
		if _, dup := r.byCode[ind.Code]; dup {
			return nil, fmt.Errorf("indicator %s: duplicate code", ind.Code)
		}
		if _, ok := r.byCategory[ind.Category]; !ok {
			return nil, fmt.Errorf("indicator %s: unknown category %q", ind.Code, ind.Category)
		}
		r.byCode[ind.Code] = i
	}
	for _, c := range r.categories {
		if c.Key == "" {
			continue
		}
		i, ok := r.byCode[c.Key]
		if !ok || r.indicators[i].Category != c.ID {
			return nil, fmt.Errorf("category %s: key %q is not one of its indicators", c.ID, c.Key)
		}
	}
	return r, nil
}

// MustNew is New for package-level literals.
func MustNew(categories []Category, indicators []Indicator) *Registry {
	r, err := New(categories, indicators)
	if err != nil {
		panic(err)
	}
	return r
}

// WithThresholds returns a copy with per-category thresholds replaced.
func (r *Registry) WithThresholds(overrides map[string]float64) (*Registry, error) {
	if len(overrides) == 0 {
		return r, nil
	}
	cats := append([]Category(nil), r.categories...)
	for id, v := range overrides {
		i, ok := r.byCategory[id]
		if !ok {
			return nil, fmt.Errorf("threshold override: unknown category %q", id)
		}
		cats[i].Threshold = v
	}
	return New(cats, r.indicators)
}

// Codes returns indicator codes in column order.
func (r *Registry) Codes() []string {
	out := make([]string, len(r.indicators))
	for i, ind := range r.indicators {
		out[i] = ind.Code
	}
	return out
}

// KeyCodes returns the representative indicator of every category that has one.
func (r *Registry) KeyCodes() []string {
	out := make([]string, 0, len(r.categories))
	for _, c := range r.categories {
		if c.Key != "" {
			out = append(out, c.Key)
		}
	}
	return out
}

func (r *Registry) Categories() []Category  { return append([]Category(nil), r.categories...) }
func (r *Registry) Indicators() []Indicator { return append([]Indicator(nil), r.indicators...) }

func (r *Registry) Indicator(code string) (Indicator, bool) {
	i, ok := r.byCode[code]
	if !ok {
		return Indicator{}, false
	}
	return r.indicators[i], true
}

func (r *Registry) Category(id string) (Category, bool) {
	i, ok := r.byCategory[id]
	if !ok {
		return Category{}, false
	}
	return r.categories[i], true
}

// CategoryOf returns the category an indicator belongs to.
func (r *Registry) CategoryOf(code string) (Category, bool) {
	ind, ok := r.Indicator(code)
	if !ok {
		return Category{}, false
	}
	return r.Category(ind.Category)
}

// Has reports whether every code is registered; the first unknown one is
// returned wrapped in ErrUnknownIndicator.
func (r *Registry) Has(codes ...string) error {
	for _, c := range codes {
		if _, ok := r.byCode[c]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownIndicator, c)
		}
	}
	return nil
}
