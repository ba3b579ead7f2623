package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud", Output: "stdout"}); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestJSONFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	if err != nil {
		t.Fatal(err)
	}
	l.With(String("cycle", "c1")).Info("refresh done", Int("quotes", 3), Error(errors.New("boom")))
	l.Debug("hidden")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(b)
	for _, want := range []string{`"message":"refresh done"`, `"quotes":3`, `"cycle":"c1"`, `"error":"boom"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output %q missing %s", out, want)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug event written at info level")
	}
}

func TestNopDiscards(t *testing.T) {
	Nop().Error("ignored", String("k", "v"))
}
