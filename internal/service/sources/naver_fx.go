package sources

import (
	"context"
	"errors"
	"strings"
	"time"

	"IndiPull/internal/domain/models"
	drepo "IndiPull/internal/domain/repository"
	"IndiPull/internal/registry"
	"IndiPull/pkg/date"
	apphttp "IndiPull/pkg/http"

	"github.com/PuerkitoBio/goquery"
)

var errNoReadings = errors.New("no readings found")

// fxNames maps markers in the list title to indicator codes, checked in order.
var fxNames = []struct {
	code    string
	markers []string
}{
	{"USD_RATE", []string{"달러", "USD"}},
	{"JPY_RATE", []string{"엔", "JPY"}},
	{"EUR_RATE", []string{"유로", "EUR"}},
	{"CNY_RATE", []string{"위안", "CNY"}},
}

// NaverFX scrapes the exchange list of the Naver market index page.
type NaverFX struct {
	base
	client *apphttp.Client
	url    string
}

func NewNaverFX(client *apphttp.Client, url string) *NaverFX {
	return &NaverFX{
		base:   base{name: "naver_fx", class: registry.Volatile, now: time.Now},
		client: client,
		url:    url,
	}
}

var _ drepo.Source = (*NaverFX)(nil)

func (s *NaverFX) Fetch(ctx context.Context, on date.Date) models.SourceResult {
	doc, err := fetchDocument(ctx, s.client, s.url)
	if err != nil {
		return s.fail(on, err)
	}

	readings := make(map[string]models.Raw)
	doc.Find("#exchangeList li").Each(func(_ int, item *goquery.Selection) {
		title := strings.TrimSpace(item.Find("h3.h_lst").First().Text())
		if title == "" {
			return
		}
		code := matchFX(title)
		if code == "" {
			return
		}
		if _, seen := readings[code]; seen {
			return
		}
		value := strings.TrimSpace(item.Find("span.value").First().Text())
		if value == "" {
			return
		}
		raw := models.Raw{
			Current: value,
			Delta:   strings.TrimSpace(item.Find("span.change").First().Text()),
		}
		blind := item.Find("span.blind").Text()
		switch {
		case strings.Contains(blind, "상승"):
			raw.Trend = models.TrendUp
		case strings.Contains(blind, "하락"):
			raw.Trend = models.TrendDown
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

func matchFX(title string) string {
	for _, n := range fxNames {
		for _, m := range n.markers {
			if strings.Contains(title, m) {
				return n.code
			}
		}
	}
	return ""
}
