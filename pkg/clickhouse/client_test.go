package clickhouse

import (
	"strings"
	"testing"
	"time"
)

func TestBuildDSNAsyncInsert(t *testing.T) {
	var cfg ClientConfig
	for _, opt := range []ClientOption{
		WithHost("ch.local"),
		WithDatabase("indipull"),
		WithTimeouts(5*time.Second, 0, 0),
		WithAsyncInsert(true, true),
	} {
		opt(&cfg)
	}
	dsn := buildDSN(cfg)
	if !strings.Contains(dsn, "&async_insert=1&wait_for_async_insert=1") {
		t.Fatalf("async insert settings missing: %s", dsn)
	}

	cfg = ClientConfig{Host: "ch.local"}
	WithAsyncInsert(false, true)(&cfg)
	if strings.Contains(buildDSN(cfg), "async_insert") {
		t.Fatalf("disabled async insert leaked into dsn")
	}
}
