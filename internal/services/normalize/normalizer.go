// Package normalize turns raw adapter readings into a canonical snapshot.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"IndiPull/internal/domain/models"
	"IndiPull/internal/registry"
	applogger "IndiPull/pkg/logger"

	"github.com/shopspring/decimal"
)

// leading signed decimal number, after separators and blanks are removed
var numberRE = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)`)

// ParseNumber extracts the numeric part of a display string such as
// "1,450.50원", "$72.3/bbl" or "+0.25%". Thousands separators, currency
// signs and unit suffixes are ignored.
func ParseNumber(s string) (decimal.Decimal, bool) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '\t', '\n', '\u00a0':
			return -1
		}
		return r
	}, s)
	s = strings.TrimLeft(s, "$₩€¥£")
	s = strings.Replace(s, "▲", "+", 1)
	s = strings.Replace(s, "▼", "-", 1)

	m := numberRE.FindString(s)
	if m == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Quote normalizes a single raw reading. It reports false when the current
// value is unparseable or exactly zero, the failure sentinel.
func Quote(raw models.Raw) (models.Quote, bool) {
	cur, ok := ParseNumber(raw.Current)
	if !ok || cur.IsZero() {
		return models.Quote{}, false
	}
	q := models.Quote{Current: cur.InexactFloat64()}

	if raw.Previous != "" {
		if prev, ok := ParseNumber(raw.Previous); ok && !prev.IsZero() {
			q.Previous, q.HasPrevious = prev.InexactFloat64(), true
		}
		return q, true
	}

	if raw.Delta != "" {
		delta, ok := ParseNumber(raw.Delta)
		if !ok {
			return q, true
		}
		var prev decimal.Decimal
		switch raw.Trend {
		case models.TrendUp:
			prev = cur.Sub(delta.Abs())
		case models.TrendDown:
			prev = cur.Add(delta.Abs())
		default:
			prev = cur.Sub(delta)
		}
		if !prev.IsZero() {
			q.Previous, q.HasPrevious = prev.InexactFloat64(), true
		}
	}
	return q, true
}

// Normalizer builds snapshots restricted to registered indicators.
type Normalizer struct {
	reg *registry.Registry
	l   *applogger.Logger
}

func New(reg *registry.Registry, l *applogger.Logger) *Normalizer {
	if l == nil {
		l = applogger.Nop()
	}
	return &Normalizer{reg: reg, l: l}
}

// Snapshot merges the readings of every available result. When two sources
// report the same code, the later result wins.
func (n *Normalizer) Snapshot(results []models.SourceResult, takenAt time.Time) models.Snapshot {
	snap := models.Snapshot{TakenAt: takenAt, Quotes: make(map[string]models.Quote)}
	for _, res := range results {
		if !res.Available() {
			continue
		}
		for code, raw := range res.Readings {
			if _, ok := n.reg.Indicator(code); !ok {
				n.l.Debug("normalize: unregistered indicator dropped",
					applogger.String("source", res.Source),
					applogger.String("code", code),
				)
				continue
			}
			q, ok := Quote(raw)
			if !ok {
				n.l.Debug("normalize: reading unavailable",
					applogger.String("source", res.Source),
					applogger.String("code", code),
					applogger.String("raw", raw.Current),
				)
				continue
			}
			snap.Quotes[code] = q
		}
	}
	return snap
}
