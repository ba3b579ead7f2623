package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"IndiPull/internal/domain/models"
	"IndiPull/internal/domain/repository"
	"IndiPull/internal/handler/api"
	"IndiPull/internal/handler/ws"
	"IndiPull/internal/registry"
	internalrepo "IndiPull/internal/repository"
	"IndiPull/internal/series"
	"IndiPull/internal/service/ratelimit"
	"IndiPull/internal/service/sources"
	"IndiPull/internal/services/alerts"
	"IndiPull/internal/services/analytics"
	"IndiPull/internal/services/normalize"
	"IndiPull/internal/usecase"
	"IndiPull/pkg/cache"
	pkgch "IndiPull/pkg/clickhouse"
	"IndiPull/pkg/config"
	xhttp "IndiPull/pkg/http"
	pkgkafka "IndiPull/pkg/kafka"
	applogger "IndiPull/pkg/logger"
	"IndiPull/pkg/metrics"
	"IndiPull/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry returns the indicator catalogue with configured threshold
// overrides applied.
func ProvideRegistry(cfg *config.Config) (*registry.Registry, error) {
	reg, err := registry.Default().WithThresholds(cfg.Alerts.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	return reg, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideCache creates the source result cache.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if cfg.Cache.Backend == "memory" {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MaxEntries)), nil
	}
	remote, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		cache.WithRedisPool(cfg.Cache.Redis.PoolSize, 2, 30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	if cfg.Cache.Backend == "redis" {
		return remote, nil
	}
	return cache.NewLayeredCache(remote,
		cache.WithLayeredMemorySize(cfg.Cache.MaxEntries),
		cache.WithLayeredMemoryTTL(cfg.Cache.LocalTTL),
	), nil
}

// ProvideHTTPClient creates the shared, rate limited client for upstream sources.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithTimeout(cfg.Sources.Timeout),
		xhttp.WithRateLimit(cfg.Sources.RateLimit, 1),
		xhttp.WithHeader("User-Agent", cfg.Sources.UserAgent),
	)
}

// ProvideSources builds the enabled source adapters in configuration order.
func ProvideSources(cfg *config.Config, client *xhttp.Client, reg *registry.Registry) ([]repository.Source, error) {
	var out []repository.Source
	if cfg.Sources.Naver.Enabled {
		out = append(out,
			sources.NewNaverFX(client, cfg.Sources.Naver.ExchangeURL),
			sources.NewNaverOil(client, cfg.Sources.Naver.OilURL),
		)
	}
	for _, js := range cfg.Sources.JSON {
		out = append(out, sources.NewHTTPJSON(client, js.Name, js.URL, registry.TTLClass(js.TTLClass), js.Headers))
	}
	if cfg.Sources.Static.Enabled && len(cfg.Sources.Static.Quotes) > 0 {
		readings := make(map[string]models.Raw, len(cfg.Sources.Static.Quotes))
		for code, q := range cfg.Sources.Static.Quotes {
			code = strings.ToUpper(code)
			if err := reg.Has(code); err != nil {
				return nil, fmt.Errorf("sources.static: %w", err)
			}
			readings[code] = models.Raw{Current: q.Current, Previous: q.Previous, Delta: q.Delta}
		}
		out = append(out, sources.NewStatic("static", registry.TTLClass(cfg.Sources.Static.TTLClass), readings))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no sources enabled")
	}
	return out, nil
}

// ProvideClickHouseClient creates a ClickHouse client when the history store
// lives there; otherwise it returns nil.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.History.Backend != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(4, 2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitAsyncInsert),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideHistory creates the history store for the configured backend.
func ProvideHistory(cfg *config.Config, reg *registry.Registry, ch *pkgch.Client, l *applogger.Logger) (repository.HistoryStore, error) {
	switch cfg.History.Backend {
	case "csv":
		h := internalrepo.NewCSVHistory(cfg.History.CSVPath, reg)
		h.SetLogger(l)
		return h, nil
	case "clickhouse":
		h := internalrepo.NewCHHistory(ch, cfg.ClickHouse.Database, cfg.History.Table, reg)
		h.SetLogger(l)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ch.InitSchema(ctx, h.SchemaStatements()); err != nil {
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		return h, nil
	default:
		return internalrepo.NewNopHistory(reg), nil
	}
}

// ProvideAlertPublisher creates the Kafka alert publisher, or a no-op one when
// publishing is disabled.
func ProvideAlertPublisher(cfg *config.Config, l *applogger.Logger) (repository.AlertPublisher, error) {
	if !cfg.Alerts.Kafka.Enabled {
		return internalrepo.NopAlertPublisher{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	p := internalrepo.NewKafkaAlertPublisher(producer, cfg.Alerts.Kafka.Topic)
	p.SetLogger(l)
	return p, nil
}

// ProvideCollector creates the cached, isolated source collector.
func ProvideCollector(cfg *config.Config, srcs []repository.Source, c cache.Service, m repository.Metrics, l *applogger.Logger) *usecase.Collector {
	ttl := map[registry.TTLClass]time.Duration{
		registry.Volatile: cfg.TTL(string(registry.Volatile)),
		registry.Slow:     cfg.TTL(string(registry.Slow)),
	}
	col := usecase.NewCollector(srcs, c, ttl, cfg.Sources.Timeout, m, l)
	l.Info("sources configured", applogger.Strings("sources", col.Sources()))
	return col
}

// ProvideDashboard assembles the reconciliation and analytics pipeline.
func ProvideDashboard(
	cfg *config.Config,
	reg *registry.Registry,
	collector *usecase.Collector,
	history repository.HistoryStore,
	publisher repository.AlertPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Dashboard {
	return usecase.NewDashboard(usecase.DashboardDeps{
		Registry:   reg,
		Collector:  collector,
		Normalizer: normalize.New(reg, l),
		Merger:     series.NewMerger(reg),
		History:    history,
		Evaluator:  alerts.NewEvaluator(reg),
		Analyzer:   analytics.NewCorrelator(cfg.Analytics.Alpha),
		Forecaster: analytics.NewRegressor(cfg.Analytics.MinForecastRows),
		Publisher:  publisher,
		Metrics:    m,
		Logger:     l,
	})
}

// ProvideRateLimiter creates the per-client refresh limiter.
func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideDashboardHandler creates the REST handler.
func ProvideDashboardHandler(cfg *config.Config, l *applogger.Logger, dash *usecase.Dashboard, limiter *ratelimit.Limiter) *api.DashboardHandler {
	return api.NewDashboardHandler(l, dash, limiter, api.Options{
		RefreshBurst:     cfg.Server.RefreshBurst,
		RefreshPerMinute: cfg.Server.RefreshPerMinute,
		WindowDays:       cfg.Analytics.DefaultWindowDays,
		MaxLag:           cfg.Analytics.MaxLag,
	})
}

// ProvideHub creates the websocket push hub.
func ProvideHub(l *applogger.Logger, dash *usecase.Dashboard) *ws.Hub {
	return ws.NewHub(l, dash)
}

// ProvideHTTPServer creates the Echo server with every handler registered.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.DashboardHandler, hub *ws.Hub) *xhttp.Server {
	return xhttp.NewServer([]xhttp.Handler{h, hub},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetrics(cfg.Metrics.Enabled, cfg.Metrics.Path),
		xhttp.WithLogger(l),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	dash *usecase.Dashboard,
	srv *xhttp.Server,
	hub *ws.Hub,
	limiter *ratelimit.Limiter,
	publisher repository.AlertPublisher,
	c cache.Service,
	ch *pkgch.Client,
) *server.App {
	return server.New(cfg, l, dash, srv, hub, limiter, publisher, c, ch)
}
