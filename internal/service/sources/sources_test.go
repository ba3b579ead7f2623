package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"IndiPull/internal/domain/models"
	"IndiPull/internal/registry"
	"IndiPull/pkg/date"
	apphttp "IndiPull/pkg/http"

	"golang.org/x/text/encoding/korean"
)

const fxPage = `<html><body>
<div id="exchangeList">
<ul>
 <li><a><h3 class="h_lst"><span class="blind">미국 USD</span></h3>
  <div class="head_info"><span class="value">1,450.50</span><span class="txt_krw"><span class="blind">원</span></span>
  <span class="change">3.50</span><span class="blind">상승</span></div></a></li>
 <li><a><h3 class="h_lst"><span class="blind">일본 JPY(100엔)</span></h3>
  <div class="head_info"><span class="value">945.12</span><span class="change">2.10</span><span class="blind">하락</span></div></a></li>
 <li><a><h3 class="h_lst"><span class="blind">유럽연합 EUR</span></h3>
  <div class="head_info"><span class="value">1,580.00</span><span class="change">0.00</span></div></a></li>
 <li><a><h3 class="h_lst"><span class="blind">영국 GBP</span></h3>
  <div class="head_info"><span class="value">1,830.00</span><span class="change">1.00</span></div></a></li>
</ul>
</div></body></html>`

const oilPage = `<html><body><table>
<tr><th>구분</th><th>가격</th><th>전일대비</th></tr>
<tr><td>WTI</td><td>72.30</td><td>-1.20</td></tr>
<tr><td>브렌트유</td><td>76.10</td><td>0.40</td></tr>
<tr><td>두바이유</td><td>75.00</td></tr>
</table></body></html>`

func serve(t *testing.T, contentType string, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient() *apphttp.Client {
	return apphttp.NewClient(
		apphttp.WithTimeout(2*time.Second),
		apphttp.WithRateLimit(100, 10),
		apphttp.WithHeader("User-Agent", "test-agent"),
	)
}

var on = date.New(2025, time.March, 5)

func TestNaverFX(t *testing.T) {
	srv := serve(t, "text/html; charset=utf-8", []byte(fxPage))
	res := NewNaverFX(testClient(), srv.URL).Fetch(context.Background(), on)

	if !res.Available() {
		t.Fatalf("expected readings, got err %q", res.Err)
	}
	if res.Source != "naver_fx" || res.On != on {
		t.Fatalf("unexpected header %+v", res)
	}
	if len(res.Readings) != 3 {
		t.Fatalf("expected 3 readings, got %v", res.Readings)
	}
	usd := res.Readings["USD_RATE"]
	if usd.Current != "1,450.50" || usd.Delta != "3.50" || usd.Trend != models.TrendUp {
		t.Fatalf("USD = %+v", usd)
	}
	if jpy := res.Readings["JPY_RATE"]; jpy.Trend != models.TrendDown {
		t.Fatalf("JPY = %+v", jpy)
	}
	if eur := res.Readings["EUR_RATE"]; eur.Trend != models.TrendUnknown {
		t.Fatalf("EUR = %+v", eur)
	}
}

func TestNaverFXDecodesEUCKR(t *testing.T) {
	body, err := korean.EUCKR.NewEncoder().String(fxPage)
	if err != nil {
		t.Fatal(err)
	}
	srv := serve(t, "text/html; charset=EUC-KR", []byte(body))
	res := NewNaverFX(testClient(), srv.URL).Fetch(context.Background(), on)
	if res.Readings["JPY_RATE"].Trend != models.TrendDown {
		t.Fatalf("korean markers lost in transcoding: %+v", res)
	}
}

func TestNaverFXFailures(t *testing.T) {
	empty := serve(t, "text/html", []byte("<html><body>maintenance</body></html>"))
	if res := NewNaverFX(testClient(), empty.URL).Fetch(context.Background(), on); res.Err == "" {
		t.Fatalf("expected error for page without list")
	}

	blocked := NewNaverFX(apphttp.NewClient(apphttp.WithTimeout(time.Second)), empty.URL)
	if res := blocked.Fetch(context.Background(), on); res.Err == "" {
		t.Fatalf("expected error on 403")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if res := NewNaverFX(testClient(), empty.URL).Fetch(ctx, on); res.Err == "" {
		t.Fatalf("expected error on cancelled context")
	}
}

func TestNaverOil(t *testing.T) {
	srv := serve(t, "text/html; charset=utf-8", []byte(oilPage))
	src := NewNaverOil(testClient(), srv.URL)
	res := src.Fetch(context.Background(), on)

	if !res.Available() || len(res.Readings) != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	if w := res.Readings["WTI"]; w.Current != "72.30" || w.Delta != "-1.20" || w.Trend != models.TrendUnknown {
		t.Fatalf("WTI = %+v", w)
	}
	if d := res.Readings["DUBAI"]; d.Delta != "" {
		t.Fatalf("DUBAI = %+v", d)
	}
	if src.TTLClass() != registry.Volatile {
		t.Fatalf("oil should be volatile")
	}
}

func TestHTTPJSON(t *testing.T) {
	srv := serve(t, "application/json", []byte(`{"readings": {
		"land_smp": {"current": 110.52, "delta": "2.3", "trend": "up"},
		"TREASURY_3Y": {"current": "2.85", "previous": 2.82},
		"CD_91": {"current": null}
	}}`))
	res := NewHTTPJSON(testClient(), "kpx", srv.URL, registry.Slow, nil).Fetch(context.Background(), on)

	if !res.Available() || res.Source != "kpx" {
		t.Fatalf("unexpected result %+v", res)
	}
	smp := res.Readings["LAND_SMP"]
	if smp.Current != "110.52" || smp.Delta != "2.3" || smp.Trend != models.TrendUp {
		t.Fatalf("LAND_SMP = %+v", smp)
	}
	if tr := res.Readings["TREASURY_3Y"]; tr.Previous != "2.82" {
		t.Fatalf("TREASURY_3Y = %+v", tr)
	}
	if cd := res.Readings["CD_91"]; cd.Current != "" {
		t.Fatalf("CD_91 = %+v", cd)
	}
}

func TestHTTPJSONBadBody(t *testing.T) {
	srv := serve(t, "application/json", []byte(`<html>`))
	if res := NewHTTPJSON(testClient(), "kpx", srv.URL, registry.Slow, nil).Fetch(context.Background(), on); res.Err == "" {
		t.Fatalf("expected decode error")
	}
}

func TestStatic(t *testing.T) {
	in := map[string]models.Raw{"LNG_TANKER": {Current: "23.45"}}
	src := NewStatic("static", registry.Slow, in)
	in["LNG_TANKER"] = models.Raw{Current: "0"}

	res := src.Fetch(context.Background(), on)
	if res.Readings["LNG_TANKER"].Current != "23.45" {
		t.Fatalf("static readings must be copied: %+v", res.Readings)
	}
	if res := NewStatic("static", registry.Slow, nil).Fetch(context.Background(), on); res.Err == "" {
		t.Fatalf("empty static source should fail")
	}
}
