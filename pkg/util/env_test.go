package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEnvWithLocalBinFallbackUsesHomeFile(t *testing.T) {
	tmp := t.TempDir()
	fakeHome := filepath.Join(tmp, "home")
	if err := os.MkdirAll(filepath.Join(fakeHome, ".local", "bin"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	envPath := filepath.Join(fakeHome, ".local", "bin", ".env")
	if err := os.WriteFile(envPath, []byte("GUILDPANEL_TEST_TOKEN=fromfile"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}

	t.Chdir(tmp)
	t.Setenv("HOME", fakeHome)
	t.Setenv("GUILDPANEL_TEST_TOKEN", "")
	_ = os.Unsetenv("GUILDPANEL_TEST_TOKEN")

	got, err := LoadEnvWithLocalBinFallback("GUILDPANEL_TEST_TOKEN")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got != "fromfile" {
		t.Fatalf("expected value from file, got %q", got)
	}

	t.Setenv("GUILDPANEL_TEST_TOKEN", "envwins")
	got, err = LoadEnvWithLocalBinFallback("GUILDPANEL_TEST_TOKEN")
	if err != nil || got != "envwins" {
		t.Fatalf("expected existing env to win, got %q err=%v", got, err)
	}
}

func TestLoadEnvWithLocalBinFallbackMissing(t *testing.T) {
	tmp := t.TempDir()
	t.Chdir(tmp)
	t.Setenv("HOME", tmp)
	t.Setenv("GUILDPANEL_MISSING", "")
	_ = os.Unsetenv("GUILDPANEL_MISSING")

	if _, err := LoadEnvWithLocalBinFallback("GUILDPANEL_MISSING"); err == nil {
		t.Fatalf("expected error for unset variable")
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("BOOL_TRUE", "YeS")
	t.Setenv("BOOL_FALSE", "0")
	if !EnvBool("BOOL_TRUE") {
		t.Fatalf("expected truthy value")
	}
	if EnvBool("BOOL_FALSE") {
		t.Fatalf("expected falsy value")
	}

	t.Setenv("STR_EMPTY", "  ")
	if got := EnvString("STR_EMPTY", "default"); got != "default" {
		t.Fatalf("expected default, got %q", got)
	}

	t.Setenv("INT_OK", "42")
	t.Setenv("INT_BAD", "oops")
	if got := EnvInt64("INT_OK", 1); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if got := EnvInt64("INT_BAD", 7); got != 7 {
		t.Fatalf("expected fallback, got %d", got)
	}

	t.Setenv("DUR_GO", "90s")
	t.Setenv("DUR_SECS", "120")
	t.Setenv("DUR_BAD", "-5m")
	if got := EnvDuration("DUR_GO", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
	if got := EnvDuration("DUR_SECS", time.Minute); got != 2*time.Minute {
		t.Fatalf("expected 2m, got %s", got)
	}
	if got := EnvDuration("DUR_BAD", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
}
