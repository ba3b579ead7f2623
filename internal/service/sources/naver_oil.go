package sources

import (
	"context"
	"strings"
	"time"

	"IndiPull/internal/domain/models"
	drepo "IndiPull/internal/domain/repository"
	"IndiPull/internal/registry"
	"IndiPull/internal/services/normalize"
	"IndiPull/pkg/date"
	apphttp "IndiPull/pkg/http"

	"github.com/PuerkitoBio/goquery"
)

var oilNames = []struct {
	code    string
	markers []string
}{
	{"WTI", []string{"WTI"}},
	{"BRENT", []string{"브렌트", "Brent"}},
	{"DUBAI", []string{"두바이", "Dubai"}},
}

// NaverOil scrapes the world oil index table. The first cell of a row names
// the grade, the second holds the price and the third the signed change.
type NaverOil struct {
	base
	client *apphttp.Client
	url    string
}

func NewNaverOil(client *apphttp.Client, url string) *NaverOil {
	return &NaverOil{
		base:   base{name: "naver_oil", class: registry.Volatile, now: time.Now},
		client: client,
		url:    url,
	}
}

var _ drepo.Source = (*NaverOil)(nil)

func (s *NaverOil) Fetch(ctx context.Context, on date.Date) models.SourceResult {
	doc, err := fetchDocument(ctx, s.client, s.url)
	if err != nil {
		return s.fail(on, err)
	}

	readings := make(map[string]models.Raw)
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		code := matchOil(strings.TrimSpace(cells.Eq(0).Text()))
		if code == "" {
			return
		}
		if _, seen := readings[code]; seen {
			return
		}
		value := strings.TrimSpace(cells.Eq(1).Text())
		// header rows repeat the grade names
		if _, ok := normalize.ParseNumber(value); !ok {
			return
		}
		raw := models.Raw{Current: value}
		if cells.Length() >= 3 {
			raw.Delta = strings.TrimSpace(cells.Eq(2).Text())
		}
		readings[code] = raw
	})

	if len(readings) == 0 {
		return s.fail(on, errNoReadings)
	}
	res := s.result(on)
	res.Readings = readings
	return res
}

func matchOil(name string) string {
	for _, n := range oilNames {
		for _, m := range n.markers {
			if strings.Contains(name, m) {
				return n.code
			}
		}
	}
	return ""
}
