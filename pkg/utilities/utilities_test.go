package utilities

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap/zapcore"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_DEV", "1")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_MAX_AGE", "48h")
	t.Setenv("LOG_FILE", "bot.log")
	cfg := ConfigFromEnv()
	if !cfg.Dev || cfg.Level != "debug" || cfg.MaxAge != 48*time.Hour || cfg.File != "bot.log" {
		t.Fatalf("cfg = %+v", cfg)
	}

	t.Setenv("LOG_DEV", "")
	t.Setenv("LOG_MAX_AGE", "bogus")
	cfg = ConfigFromEnv()
	if cfg.Level != "info" || cfg.MaxAge != 7*24*time.Hour {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLevelFromString(t *testing.T) {
	for in, want := range map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"nope":  zapcore.InfoLevel,
	} {
		if got := levelFromString(in); got != want {
			t.Errorf("levelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dropee.log")
	lg, err := Init(Config{Level: "info", File: path, MaxAge: time.Hour})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	lg.Sugar().Infow("hello", "account", 1)
	_ = lg.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log through link: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"hello"`) || !strings.Contains(string(b), `"account":1`) {
		t.Fatalf("log = %s", b)
	}
}

func TestIDs(t *testing.T) {
	if _, err := ksuid.Parse(NewSessionID()); err != nil {
		t.Fatalf("session id: %v", err)
	}
	a, b := NewCycleIDWithNode(3), NewCycleIDWithNode(3)
	if a == "" || a == b {
		t.Fatalf("cycle ids %q %q", a, b)
	}
	// out-of-range node falls back to a KSUID
	if _, err := ksuid.Parse(NewCycleIDWithNode(5000)); err != nil {
		t.Fatalf("fallback id: %v", err)
	}
	t.Setenv("SNOWFLAKE_NODE", "x")
	if NewCycleID() == "" {
		t.Fatalf("empty cycle id")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	for _, body := range []string{`{"a":1}`, `{}`} {
		if err := WriteFileAtomic(path, []byte(body)); err != nil {
			t.Fatalf("WriteFileAtomic: %v", err)
		}
		b, err := os.ReadFile(path)
		if err != nil || string(b) != body {
			t.Fatalf("read = %q, %v; want %q", b, err, body)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("dir entries = %v", entries)
	}
	if err := WriteFileAtomic(filepath.Join(dir, "nope", "x.json"), nil); err == nil {
		t.Fatalf("write into missing dir succeeded")
	}
}
