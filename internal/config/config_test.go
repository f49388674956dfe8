package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	chdirForTest(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.BootstrapDelay != 20*time.Second {
		t.Fatalf("unexpected bootstrap delay: %s", cfg.BootstrapDelay)
	}
	if cfg.FadeDuration != 300*time.Millisecond || cfg.SwapDelay != 800*time.Millisecond {
		t.Fatalf("unexpected fade timing: fade=%s swap=%s", cfg.FadeDuration, cfg.SwapDelay)
	}
	if cfg.ColorDuration != 500*time.Millisecond {
		t.Fatalf("unexpected color duration: %s", cfg.ColorDuration)
	}
	if cfg.EventBus != EventBusMemory {
		t.Fatalf("unexpected event bus: %q", cfg.EventBus)
	}
	if cfg.LogBufferSize != 1000 {
		t.Fatalf("unexpected log buffer size: %d", cfg.LogBufferSize)
	}
}

func TestLoadReadsOverlayTiming(t *testing.T) {
	chdirForTest(t, t.TempDir())
	t.Setenv("STARBOARD_BOOTSTRAP_DELAY_MS", "5000")
	t.Setenv("SB_MIN_HOLD_MS", "1500")
	t.Setenv("STARBOARD_PREVIEW", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.BootstrapDelay != 5*time.Second {
		t.Fatalf("unexpected bootstrap delay: %s", cfg.BootstrapDelay)
	}
	if cfg.MinHold != 1500*time.Millisecond {
		t.Fatalf("unexpected min hold: %s", cfg.MinHold)
	}
	if !cfg.Preview {
		t.Fatal("expected preview mode")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero min hold", "STARBOARD_MIN_HOLD_MS", "0"},
		{"zero bootstrap", "STARBOARD_BOOTSTRAP_DELAY_MS", "0"},
		{"swap shorter than fade", "STARBOARD_SWAP_DELAY_MS", "100"},
		{"unknown bus", "STARBOARD_EVENT_BUS", "kafka"},
		{"bad port", "STARBOARD_HTTP_PORT", "70000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirForTest(t, t.TempDir())
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%s to be rejected", tt.key, tt.val)
			}
		})
	}
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	chdirForTest(t, dir)
	t.Setenv("STARBOARD_EVENT_BUS", "")
	os.Unsetenv("STARBOARD_EVENT_BUS")

	path := filepath.Join(dir, "overlay.env")
	if err := os.WriteFile(path, []byte("STARBOARD_EVENT_BUS=redis\nSTARBOARD_REDIS_ADDR=cache:6379\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("STARBOARD_EVENT_BUS")
		os.Unsetenv("STARBOARD_REDIS_ADDR")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.EventBus != EventBusRedis || cfg.RedisAddr != "cache:6379" {
		t.Fatalf("env file not applied: bus=%q addr=%q", cfg.EventBus, cfg.RedisAddr)
	}
}

func TestLoadMissingExplicitEnvFileFails(t *testing.T) {
	chdirForTest(t, t.TempDir())
	if _, err := Load("does-not-exist.env"); err == nil {
		t.Fatal("expected missing env file to fail")
	}
}

func TestLoadReportsLegacyEnvWarnings(t *testing.T) {
	chdirForTest(t, t.TempDir())
	t.Setenv("BOOTSTRAP_DELAY", "20")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.LegacyEnvWarnings) == 0 {
		t.Fatal("expected legacy env warnings")
	}
}

// chdirForTest mirrors testing.T.Chdir (Go 1.24+) for older toolchains:
// it changes the working directory and restores it when the test ends.
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
