package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LJTian/TickerPulse/internal/collector"
	"github.com/google/go-cmp/cmp"
)

func TestGetEnvWithDefault(t *testing.T) {
	const key = "TEST_APP_PORT"

	// 环境变量未设置时，应该返回默认值
	_ = os.Unsetenv(key)
	if got := getEnv(key, "9000"); got != "9000" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "9000")
	}

	// 环境变量设置后，应优先返回环境变量
	t.Setenv(key, "8080")
	if got := getEnv(key, "9000"); got != "8080" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "8080")
	}
}

func TestGetEnvIntAndDurationFallback(t *testing.T) {
	t.Setenv("TEST_WORKERS", "abc")
	if got := getEnvInt("TEST_WORKERS", 8); got != 8 {
		t.Fatalf("getEnvInt with invalid value = %d, want 8", got)
	}
	t.Setenv("TEST_WORKERS", "3")
	if got := getEnvInt("TEST_WORKERS", 8); got != 3 {
		t.Fatalf("getEnvInt = %d, want 3", got)
	}

	t.Setenv("TEST_TIMEOUT", "-1s")
	if got := getEnvDuration("TEST_TIMEOUT", time.Second); got != time.Second {
		t.Fatalf("getEnvDuration with negative value = %s, want 1s", got)
	}
	t.Setenv("TEST_TIMEOUT", "250ms")
	if got := getEnvDuration("TEST_TIMEOUT", time.Second); got != 250*time.Millisecond {
		t.Fatalf("getEnvDuration = %s, want 250ms", got)
	}
}

func TestLoadReadsAuthAndPorts(t *testing.T) {
	t.Setenv("APP_PORT", "1234")
	t.Setenv("APP_BASIC_USER", "user")
	t.Setenv("APP_BASIC_PASS", "pass")
	t.Setenv("WORKERS", "0")

	cfg := Load()
	if cfg.AppPort != "1234" {
		t.Fatalf("AppPort = %q, want %q", cfg.AppPort, "1234")
	}
	if cfg.BasicAuthUser != "user" || cfg.BasicAuthPass != "pass" {
		t.Fatalf("BasicAuthUser/Pass not loaded correctly: %+v", cfg)
	}
	if cfg.Workers != 1 {
		t.Fatalf("Workers = %d, want clamp to 1", cfg.Workers)
	}
}

func TestParseFeedsKeepsOrder(t *testing.T) {
	data := []byte(`
feeds:
  - name: B
    url: https://b.example.com/rss
  - name: A
    url: https://a.example.com/rss
`)
	got, err := ParseFeeds(data)
	if err != nil {
		t.Fatalf("ParseFeeds error: %v", err)
	}
	want := []collector.Source{
		{Name: "B", URL: "https://b.example.com/rss"},
		{Name: "A", URL: "https://a.example.com/rss"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseFeeds mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFeedsRejectsDuplicatesAndBlanks(t *testing.T) {
	dup := []byte("feeds:\n  - {name: A, url: u1}\n  - {name: A, url: u2}\n")
	if _, err := ParseFeeds(dup); err == nil {
		t.Fatalf("expected error for duplicate names")
	}
	blank := []byte("feeds:\n  - {name: A, url: ''}\n")
	if _, err := ParseFeeds(blank); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestSourcesDefaultIsCopy(t *testing.T) {
	cfg := &Config{}
	got, err := cfg.Sources()
	if err != nil {
		t.Fatalf("Sources error: %v", err)
	}
	if len(got) != len(defaultFeeds) {
		t.Fatalf("len(Sources) = %d, want %d", len(got), len(defaultFeeds))
	}
	got[0].Name = "changed"
	if defaultFeeds[0].Name == "changed" {
		t.Fatalf("Sources must not expose the built-in registry")
	}
}

func TestSetupLoggingWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	restore, err := SetupLogging(path)
	if err != nil {
		t.Fatalf("SetupLogging error: %v", err)
	}
	log.Printf("collect job done: collected=%d", 3)
	restore()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "collect job done: collected=3") {
		t.Fatalf("log file content = %q", data)
	}

	if _, err := SetupLogging(filepath.Join(t.TempDir(), "missing", "app.log")); err == nil {
		t.Fatalf("expected error for unwritable path")
	}
	noop, err := SetupLogging("")
	if err != nil {
		t.Fatalf("empty path should be a no-op: %v", err)
	}
	noop()
}

func TestLoadLogFile(t *testing.T) {
	t.Setenv("LOG_FILE", "/var/log/tp.log")
	if got := Load().LogFile; got != "/var/log/tp.log" {
		t.Fatalf("LogFile = %q", got)
	}
}
