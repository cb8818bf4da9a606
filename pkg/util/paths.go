package util

import (
	"os"
	"path/filepath"
	"strings"
)

// AppName names the per-user directories the bot writes to.
const AppName = "guildpanel"

// Paths holds the base directories for configuration documents, databases and logs.
type Paths struct {
	ConfigDir string
	DataDir   string
	LogDir    string
}

// ResolvePaths returns the per-user layout for appName:
//   - Config: <UserConfigDir>/<app>   (guild documents)
//   - Data:   <UserCacheDir>/<app>    (sqlite database)
//   - Logs:   <UserCacheDir>/<app>/logs
//
// dataOverride, when set, replaces all three roots with subdirectories of it,
// which keeps containers and tests self-contained.
func ResolvePaths(appName, dataOverride string) Paths {
	app := sanitizeAppName(appName)
	if root := strings.TrimSpace(dataOverride); root != "" {
		return Paths{
			ConfigDir: filepath.Join(root, "config"),
			DataDir:   filepath.Join(root, "data"),
			LogDir:    filepath.Join(root, "logs"),
		}
	}

	cfg, err := os.UserConfigDir()
	if err != nil || cfg == "" {
		cfg = filepath.Join(".", "config")
	}
	cache, err := os.UserCacheDir()
	if err != nil || cache == "" {
		cache = filepath.Join(".", "cache")
	}
	return Paths{
		ConfigDir: filepath.Join(cfg, app),
		DataDir:   filepath.Join(cache, app),
		LogDir:    filepath.Join(cache, app, "logs"),
	}
}

// Ensure creates every directory in p.
func (p Paths) Ensure() error {
	for _, d := range []string{p.ConfigDir, p.DataDir, p.LogDir} {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func sanitizeAppName(name string) string {
	n := strings.TrimSpace(name)
	n = strings.NewReplacer("/", "-", "\\", "-", ":", "-", "\x00", "").Replace(n)
	n = strings.TrimSpace(n)
	if n == "" {
		return AppName
	}
	return n
}
