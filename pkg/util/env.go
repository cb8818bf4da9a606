package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv populates missing environment variables from ./.env and then from
// $HOME/.local/bin/.env. Variables that are already set are never overwritten,
// so the process environment always wins over either file.
func LoadEnv() []string {
	var loaded []string
	candidates := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		candidates = append(candidates, filepath.Join(home, ".local", "bin", ".env"))
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			loaded = append(loaded, p)
		}
	}
	return loaded
}

// LoadEnvWithLocalBinFallback loads the .env fallbacks and returns the value of
// tokenEnvName, or an error naming the variable when it is still unset.
func LoadEnvWithLocalBinFallback(tokenEnvName string) (string, error) {
	loaded := LoadEnv()
	if v := strings.TrimSpace(os.Getenv(tokenEnvName)); v != "" {
		return v, nil
	}
	if len(loaded) == 0 {
		return "", fmt.Errorf("environment variable %q not set and no .env file found", tokenEnvName)
	}
	return "", fmt.Errorf("environment variable %q not set; loaded %s", tokenEnvName, strings.Join(loaded, ", "))
}

// EnvBool reports whether the variable holds a truthy value (1, true, yes, on).
func EnvBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// EnvString returns the trimmed value of key, or def when it is blank.
func EnvString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func EnvInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// EnvDuration accepts Go duration strings ("90s", "5m") or a bare number of seconds.
func EnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
