package alerts

import (
	"math"

	"IndiPull/internal/domain/models"
	domsvc "IndiPull/internal/domain/service"
	"IndiPull/internal/registry"
	"IndiPull/internal/series"
)

// tolerance absorbs float noise such as 3.10-3.00 landing just under 0.10.
const tolerance = 1e-9

// Evaluator flags indicators whose last change reaches their category threshold.
type Evaluator struct {
	reg *registry.Registry
}

var _ domsvc.AlertEvaluator = (*Evaluator)(nil)

func NewEvaluator(reg *registry.Registry) *Evaluator {
	return &Evaluator{reg: reg}
}

// Evaluate compares the last two rows of ts. Points categories measure the
// absolute difference; percent categories measure change relative to the
// previous value. A zero current value is the failure sentinel and is never
// alerted on.
func (e *Evaluator) Evaluate(ts series.TimeSeries) []models.Alert {
	if ts.Len() < 2 {
		return nil
	}
	prevRow, curRow := ts.Row(ts.Len()-2), ts.Row(ts.Len()-1)

	var out []models.Alert
	for _, ind := range e.reg.Indicators() {
		cur, ok := curRow.Get(ind.Code)
		if !ok || cur == 0 {
			continue
		}
		prev, ok := prevRow.Get(ind.Code)
		if !ok {
			continue
		}
		cat, _ := e.reg.Category(ind.Category)

		var magnitude float64
		switch cat.Mode {
		case registry.ModePoints:
			magnitude = math.Abs(cur - prev)
		default:
			if prev == 0 {
				continue
			}
			magnitude = math.Abs(cur-prev) / math.Abs(prev) * 100
		}
		if magnitude+tolerance < cat.Threshold {
			continue
		}

		out = append(out, models.Alert{
			Indicator: ind.Code,
			Category:  cat.ID,
			Direction: direction(cur, prev),
			Magnitude: magnitude,
			Unit:      string(cat.Mode),
			Threshold: cat.Threshold,
			Current:   cur,
			Previous:  prev,
		})
	}
	return out
}

func direction(cur, prev float64) models.Direction {
	switch {
	case cur > prev:
		return models.DirectionUp
	case cur < prev:
		return models.DirectionDown
	default:
		return models.DirectionFlat
	}
}
