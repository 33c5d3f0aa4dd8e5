package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaultConfig_IsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}, wantErr: false},
		{name: "empty base url", mutate: func(c *Config) { c.API.BaseURL = "" }, wantErr: true},
		{name: "relative base url", mutate: func(c *Config) { c.API.BaseURL = "localhost:8000" }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.API.Timeout = 0 }, wantErr: true},
		{name: "empty stream endpoint", mutate: func(c *Config) { c.Stream.Endpoint = "" }, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: true},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "zero cache ttl", mutate: func(c *Config) { c.Cache.DefaultTTL = 0 }, wantErr: true},
		{name: "bad exporter", mutate: func(c *Config) { c.Observability.Tracing.ExporterType = "jaeger" }, wantErr: true},
		{name: "sample rate above one", mutate: func(c *Config) { c.Observability.Tracing.SampleRate = 1.5 }, wantErr: true},
		{
			name: "otlp without endpoint",
			mutate: func(c *Config) {
				c.Observability.Tracing.Enabled = true
				c.Observability.Tracing.ExporterType = "otlp"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoader_Load_MissingFileReturnsDefaults(t *testing.T) {
	loader, err := NewLoader(t.TempDir())
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	cfg, err := loader.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want default", cfg.API.BaseURL)
	}
}

func TestLoader_LoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
api:
  base_url: "http://tasks.example.com"
  timeout: 10s
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loader, err := NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	cfg, err := loader.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.API.BaseURL != "http://tasks.example.com" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.API.Timeout)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
	// Untouched sections keep defaults.
	if cfg.Stream.Endpoint != DefaultStreamEndpoint {
		t.Errorf("Endpoint = %q, want default", cfg.Stream.Endpoint)
	}
}

func TestLoader_SaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	loader, err := NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	cfg := NewDefaultConfig()
	cfg.API.BaseURL = "http://saved.example.com"

	if err := loader.Save(cfg, ""); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := loader.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.API.BaseURL != "http://saved.example.com" {
		t.Errorf("BaseURL = %q after round trip", loaded.API.BaseURL)
	}
}

func TestWatcher_EmitsDebouncedReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: info\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	w, err := NewWatcher(path, WatcherConfig{DebounceDuration: 50 * time.Millisecond, BufferSize: 4})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if err := w.Watch(); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	// Burst of writes should settle into a single reload.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0600); err != nil {
			t.Fatalf("rewrite config: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case ev := <-w.Events():
		if filepath.Clean(ev.Path) != path {
			t.Errorf("event path = %q, want %q", ev.Path, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload event received")
	}

	// The burst must not produce a second event.
	select {
	case <-w.Events():
		t.Error("burst produced more than one reload event")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	w, err := NewWatcher(path, WatcherConfig{DebounceDuration: 30 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if err := w.Watch(); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("unrelated"), 0600); err != nil {
		t.Fatalf("write other file: %v", err)
	}

	select {
	case ev := <-w.Events():
		t.Errorf("unexpected event for %q", ev.Path)
	case <-time.After(200 * time.Millisecond):
	}
}
