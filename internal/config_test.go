package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/deckhand/pkg/config"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
}

func TestHTTPConfig_PortRange(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := NewDefaultConfig()
		cfg.App.HTTP.Port = port
		if err := cfg.Validate(); err == nil {
			t.Errorf("port %d should fail validation", port)
		}
	}
}

func TestRateLimitConfig(t *testing.T) {
	cfg := RateLimitConfig{Enabled: true, RPS: 0}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "rps") {
		t.Errorf("enabled with zero rps: err = %v", err)
	}
	cfg.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled limiter should pass: %v", err)
	}
}

func TestLibraryConfig(t *testing.T) {
	cfg := LibraryConfig{Root: "./x"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty manifest name should default: %v", err)
	}
	if cfg.ManifestName != "presentation.json" {
		t.Errorf("manifest name = %q", cfg.ManifestName)
	}

	for _, name := range []string{"deck.yaml", "sub/deck.json"} {
		cfg := LibraryConfig{Root: "./x", ManifestName: name}
		if err := cfg.Validate(); err == nil {
			t.Errorf("manifest name %q should fail", name)
		}
	}
	if err := (&LibraryConfig{}).Validate(); err == nil {
		t.Error("missing root should fail")
	}
}

func TestWatcherConfig_DebounceWindow(t *testing.T) {
	tests := []struct {
		debounce time.Duration
		ok       bool
	}{
		{0, true},
		{150 * time.Millisecond, true},
		{250 * time.Millisecond, true},
		{100 * time.Millisecond, false},
		{time.Second, false},
	}
	for _, tt := range tests {
		cfg := WatcherConfig{Debounce: tt.debounce}
		err := cfg.Validate()
		if (err == nil) != tt.ok {
			t.Errorf("debounce %v: err = %v, want ok=%v", tt.debounce, err, tt.ok)
		}
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("DECKHAND_TEST_ROOT", "/srv/decks")
	doc := `
app:
  log_level: debug
  http:
    port: 9090
    rate_limit:
      enabled: false
library:
  root: ${DECKHAND_TEST_ROOT}
watcher:
  debounce: 180ms
prefs:
  path: ./prefs.db
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Library.Root != "/srv/decks" {
		t.Errorf("root = %q", cfg.Library.Root)
	}
	if cfg.Watcher.Debounce != 180*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Watcher.Debounce)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.HTTP.RateLimit.Enabled {
		t.Errorf("http = %+v", cfg.App.HTTP)
	}
	if cfg.Library.ManifestName != "presentation.json" {
		t.Errorf("manifest name = %q", cfg.Library.ManifestName)
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := pkgconfig.LoadOptional(filepath.Join(t.TempDir(), "none.yaml"), cfg); err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.App.HTTP.Port != 8080 {
		t.Errorf("port = %d", cfg.App.HTTP.Port)
	}
}
