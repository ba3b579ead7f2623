package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"IndiPull/pkg/logger"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// StaticQuote is a hand-maintained reading for sources without a feed.
type StaticQuote struct {
	Current  string `yaml:"current" validate:"required"`
	Previous string `yaml:"previous"`
	Delta    string `yaml:"delta"`
}

// JSONSource describes an HTTP endpoint returning readings as JSON.
type JSONSource struct {
	Name     string            `yaml:"name" validate:"required"`
	URL      string            `yaml:"url" validate:"required,url"`
	TTLClass string            `yaml:"ttl_class" default:"slow" validate:"oneof=volatile slow"`
	Headers  map[string]string `yaml:"headers"`
}

type Config struct {
	Environment string        `yaml:"environment" default:"development" validate:"required"`
	Log         logger.Config `yaml:"log"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
		// token bucket guarding POST /api/refresh per client
		RefreshBurst     float64 `yaml:"refresh_burst" default:"3" validate:"gte=1"`
		RefreshPerMinute float64 `yaml:"refresh_per_minute" default:"6" validate:"gt=0"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Sources struct {
		Timeout   time.Duration `yaml:"timeout" default:"10s" validate:"gt=0"`
		UserAgent string        `yaml:"user_agent" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"`
		// requests per second across all scraped hosts
		RateLimit float64 `yaml:"rate_limit" default:"2" validate:"gt=0"`
		TTL       struct {
			Volatile time.Duration `yaml:"volatile" default:"30m" validate:"gt=0"`
			Slow     time.Duration `yaml:"slow" default:"1h" validate:"gt=0"`
		} `yaml:"ttl"`
		Naver struct {
			Enabled     bool   `yaml:"enabled" default:"true"`
			ExchangeURL string `yaml:"exchange_url" default:"https://finance.naver.com/marketindex/" validate:"required_if=Enabled true,omitempty,url"`
			OilURL      string `yaml:"oil_url" default:"https://finance.naver.com/marketindex/worldOilIndex.naver" validate:"required_if=Enabled true,omitempty,url"`
		} `yaml:"naver"`
		JSON   []JSONSource `yaml:"json" validate:"dive"`
		Static struct {
			Enabled  bool                   `yaml:"enabled" default:"true"`
			TTLClass string                 `yaml:"ttl_class" default:"slow" validate:"oneof=volatile slow"`
			Quotes   map[string]StaticQuote `yaml:"quotes" validate:"dive"`
		} `yaml:"static"`
	} `yaml:"sources"`
	History struct {
		Backend string `yaml:"backend" default:"csv" validate:"oneof=none csv clickhouse"`
		CSVPath string `yaml:"csv_path" default:"data/history.csv"`
		Table   string `yaml:"table" default:"indicator_history"`
	} `yaml:"history"`
	Cache struct {
		Backend    string        `yaml:"backend" default:"memory" validate:"oneof=memory redis layered"`
		MaxEntries int           `yaml:"max_entries" default:"1000" validate:"gte=1"`
		LocalTTL   time.Duration `yaml:"local_ttl" default:"1m"`
		Redis      struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"indipull"`
			PoolSize int    `yaml:"pool_size" default:"10" validate:"gte=1"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Alerts struct {
		// per-category threshold overrides, keyed by category id
		Thresholds map[string]float64 `yaml:"thresholds" validate:"dive,gt=0"`
		Kafka      struct {
			Enabled bool   `yaml:"enabled"`
			Topic   string `yaml:"topic" default:"indipull.alerts"`
		} `yaml:"kafka"`
	} `yaml:"alerts"`
	Analytics struct {
		Alpha             float64 `yaml:"alpha" default:"0.05" validate:"gt=0,lt=1"`
		MinForecastRows   int     `yaml:"min_forecast_rows" default:"30" validate:"gte=30"`
		DefaultWindowDays int     `yaml:"default_window_days" default:"365" validate:"gte=0"`
		MaxLag            int     `yaml:"max_lag" default:"30" validate:"gte=0,lte=365"`
	} `yaml:"analytics"`
	Refresh struct {
		// rebuild without invalidation so expired sources are refetched; empty disables
		Schedule        string `yaml:"schedule" default:"@every 30m"`
		ArchiveSchedule string `yaml:"archive_schedule" default:"55 23 * * *"`
	} `yaml:"refresh"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"indipull"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitAsyncInsert  bool          `yaml:"wait_async_insert" default:"true"`
	} `yaml:"clickhouse"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("INDIPULL_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("INDIPULL_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("INDIPULL_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("INDIPULL_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("INDIPULL_HISTORY_BACKEND"); v != "" {
		c.History.Backend = v
	}
	if v := os.Getenv("INDIPULL_HISTORY_CSV"); v != "" {
		c.History.CSVPath = v
	}
	if v := os.Getenv("INDIPULL_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks struct tags and the rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.History.Backend == "csv" && c.History.CSVPath == "" {
		return fmt.Errorf("history.csv_path is required for the csv backend")
	}
	if c.History.Backend == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for the clickhouse history backend")
	}
	if c.Cache.Backend != "memory" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for the %s cache backend", c.Cache.Backend)
	}
	if c.Alerts.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when alerts.kafka is enabled")
		}
		if c.Alerts.Kafka.Topic == "" {
			return fmt.Errorf("alerts.kafka.topic is required")
		}
	}
	for _, q := range c.Sources.Static.Quotes {
		if q.Previous != "" && q.Delta != "" {
			return fmt.Errorf("sources.static: a quote takes previous or delta, not both")
		}
	}
	return nil
}

// TTL returns the cache lifetime of a source class.
func (c *Config) TTL(class string) time.Duration {
	if class == "volatile" {
		return c.Sources.TTL.Volatile
	}
	return c.Sources.TTL.Slow
}
