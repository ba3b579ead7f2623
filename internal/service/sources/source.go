// Package sources implements the upstream adapters: Naver market index
// scrapers, a generic JSON endpoint and a static quote list from config.
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"IndiPull/internal/domain/models"
	"IndiPull/internal/registry"
	"IndiPull/pkg/date"
	apphttp "IndiPull/pkg/http"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// base carries what every adapter shares.
type base struct {
	name  string
	class registry.TTLClass
	now   func() time.Time
}

func (b base) Name() string                { return b.name }
func (b base) TTLClass() registry.TTLClass { return b.class }

func (b base) result(on date.Date) models.SourceResult {
	return models.SourceResult{Source: b.name, On: on, FetchedAt: b.now()}
}

func (b base) fail(on date.Date, err error) models.SourceResult {
	r := b.result(on)
	r.Err = err.Error()
	return r
}

// fetchDocument downloads and parses an HTML page. Korean portals still serve
// EUC-KR, so the body is transcoded according to the response charset.
func fetchDocument(ctx context.Context, client *apphttp.Client, url string) (*goquery.Document, error) {
	resp, err := client.SendRequest(ctx, &apphttp.RequestOptions{Method: apphttp.MethodGet, URL: url})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}
