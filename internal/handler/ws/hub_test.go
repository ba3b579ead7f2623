package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"IndiPull/internal/domain/models"
	drepo "IndiPull/internal/domain/repository"
	"IndiPull/internal/registry"
	"IndiPull/internal/repository"
	"IndiPull/internal/series"
	"IndiPull/internal/service/sources"
	"IndiPull/internal/services/alerts"
	"IndiPull/internal/services/analytics"
	"IndiPull/internal/services/normalize"
	"IndiPull/internal/usecase"
	"IndiPull/pkg/cache"
	"IndiPull/pkg/metrics"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, *usecase.Dashboard, string) {
	t.Helper()
	reg := registry.Default()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	src := sources.NewStatic("static", registry.Slow, map[string]models.Raw{
		"WTI": {Current: "71.2", Previous: "70.9"},
	})
	collector := usecase.NewCollector([]drepo.Source{src}, mc, map[registry.TTLClass]time.Duration{
		registry.Volatile: time.Minute,
		registry.Slow:     time.Minute,
	}, time.Second, metrics.Nop{}, nil)
	dash := usecase.NewDashboard(usecase.DashboardDeps{
		Registry:   reg,
		Collector:  collector,
		Normalizer: normalize.New(reg, nil),
		Merger:     series.NewMerger(reg),
		History:    repository.NewNopHistory(reg),
		Evaluator:  alerts.NewEvaluator(reg),
		Analyzer:   analytics.NewCorrelator(analytics.DefaultAlpha),
		Forecaster: analytics.NewRegressor(analytics.MinForecastRows),
		Publisher:  repository.NopAlertPublisher{},
		Metrics:    metrics.Nop{},
	})

	hub := NewHub(nil, dash)
	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return hub, dash, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/dashboard"
}

func dial(t *testing.T, hub *Hub, url string, want int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return hub.Clients() == want }, time.Second, 5*time.Millisecond)
	return conn
}

func readView(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	var v map[string]any
	require.NoError(t, json.Unmarshal(b, &v))
	return v
}

func TestHubBroadcastsEveryBuild(t *testing.T) {
	hub, dash, url := newTestHub(t)
	a := dial(t, hub, url, 1)
	b := dial(t, hub, url, 2)

	v, err := dash.Rebuild(context.Background())
	require.NoError(t, err)

	for _, conn := range []*websocket.Conn{a, b} {
		got := readView(t, conn)
		assert.Equal(t, v.CycleID, got["cycle_id"])
	}
}

func TestHubSendsLatestOnConnect(t *testing.T) {
	hub, dash, url := newTestHub(t)
	v, err := dash.Rebuild(context.Background())
	require.NoError(t, err)

	conn := dial(t, hub, url, 1)
	got := readView(t, conn)
	assert.Equal(t, v.CycleID, got["cycle_id"])
	quotes, ok := got["quotes"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, quotes, "WTI")
}

func TestHubCloseDisconnects(t *testing.T) {
	hub, _, url := newTestHub(t)
	conn := dial(t, hub, url, 1)

	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Clients())
}

func TestViewPublishedWhileRegisteringIsDelivered(t *testing.T) {
	hub, dash, _ := newTestHub(t)
	first, err := dash.Rebuild(context.Background())
	require.NoError(t, err)

	cl := &client{send: make(chan []byte, sendBuffer)}
	hub.mu.Lock()
	added := make(chan bool)
	go func() { added <- hub.add(cl) }()
	built := make(chan *usecase.View)
	go func() {
		v, err := dash.Refresh(context.Background())
		assert.NoError(t, err)
		built <- v
	}()
	require.Eventually(t, func() bool { return dash.Latest() != first }, time.Second, time.Millisecond)
	hub.mu.Unlock()
	require.True(t, <-added)
	second := <-built

	var last map[string]any
	for len(cl.send) > 0 {
		require.NoError(t, json.Unmarshal(<-cl.send, &last))
	}
	require.NotNil(t, last)
	assert.Equal(t, second.CycleID, last["cycle_id"])
}
