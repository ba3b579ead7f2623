package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"IndiPull/internal/domain/models"
	drepo "IndiPull/internal/domain/repository"
	"IndiPull/internal/registry"
	"IndiPull/pkg/date"
	apphttp "IndiPull/pkg/http"
)

// flexString accepts both JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type jsonReading struct {
	Current  flexString `json:"current"`
	Previous flexString `json:"previous"`
	Delta    flexString `json:"delta"`
	Trend    string     `json:"trend"`
}

type jsonPayload struct {
	Readings map[string]jsonReading `json:"readings"`
}

// HTTPJSON reads indicators from an endpoint that answers
// {"readings": {"CODE": {"current": .., "previous": .., "delta": .., "trend": "up"}}}.
type HTTPJSON struct {
	base
	client  *apphttp.Client
	url     string
	headers map[string]string
}

func NewHTTPJSON(client *apphttp.Client, name, url string, class registry.TTLClass, headers map[string]string) *HTTPJSON {
	return &HTTPJSON{
		base:    base{name: name, class: class, now: time.Now},
		client:  client,
		url:     url,
		headers: headers,
	}
}

var _ drepo.Source = (*HTTPJSON)(nil)

func (s *HTTPJSON) Fetch(ctx context.Context, on date.Date) models.SourceResult {
	var payload jsonPayload
	err := s.client.SendAndParse(ctx, &apphttp.RequestOptions{
		Method:  apphttp.MethodGet,
		URL:     s.url,
		Headers: s.headers,
	}, &payload)
	if err != nil {
		return s.fail(on, fmt.Errorf("%s: %w", s.name, err))
	}
	if len(payload.Readings) == 0 {
		return s.fail(on, errNoReadings)
	}

	readings := make(map[string]models.Raw, len(payload.Readings))
	for code, r := range payload.Readings {
		raw := models.Raw{
			Current:  string(r.Current),
			Previous: string(r.Previous),
			Delta:    string(r.Delta),
		}
		switch strings.ToLower(r.Trend) {
		case "up":
			raw.Trend = models.TrendUp
		case "down":
			raw.Trend = models.TrendDown
		}
		readings[strings.ToUpper(code)] = raw
	}
	res := s.result(on)
	res.Readings = readings
	return res
}
