package sources

import (
	"context"
	"time"

	"IndiPull/internal/domain/models"
	drepo "IndiPull/internal/domain/repository"
	"IndiPull/internal/registry"
	"IndiPull/pkg/date"
)

// Static serves a fixed set of readings, for indicators whose publishers
// have no machine-readable feed.
type Static struct {
	base
	readings map[string]models.Raw
}

func NewStatic(name string, class registry.TTLClass, readings map[string]models.Raw) *Static {
	cp := make(map[string]models.Raw, len(readings))
	for k, v := range readings {
		cp[k] = v
	}
	return &Static{base: base{name: name, class: class, now: time.Now}, readings: cp}
}

var _ drepo.Source = (*Static)(nil)

func (s *Static) Fetch(ctx context.Context, on date.Date) models.SourceResult {
	if err := ctx.Err(); err != nil {
		return s.fail(on, err)
	}
	if len(s.readings) == 0 {
		return s.fail(on, errNoReadings)
	}
	res := s.result(on)
	res.Readings = make(map[string]models.Raw, len(s.readings))
	for k, v := range s.readings {
		res.Readings[k] = v
	}
	return res
}
