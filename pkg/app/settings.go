package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/small-frappuccino/guildpanel/pkg/panel"
	"github.com/small-frappuccino/guildpanel/pkg/util"
)

// Environment keys read by LoadSettings.
const (
	EnvBotToken       = "GUILDPANEL_BOT_TOKEN"
	EnvStore          = "GUILDPANEL_STORE"
	EnvDataDir        = "GUILDPANEL_DATA_DIR"
	EnvDatabaseURL    = "GUILDPANEL_DATABASE_URL"
	EnvNATSURL        = "GUILDPANEL_NATS_URL"
	EnvInstance       = "GUILDPANEL_INSTANCE"
	EnvControlAddr    = "GUILDPANEL_CONTROL_ADDR"
	EnvSessionTimeout = "GUILDPANEL_SESSION_TIMEOUT"
	EnvSweepInterval  = "GUILDPANEL_SWEEP_INTERVAL"
	EnvLogLevel       = "GUILDPANEL_LOG_LEVEL"
	EnvLogConsole     = "GUILDPANEL_LOG_CONSOLE"
	EnvTheme          = "GUILDPANEL_THEME"
)

// Store kinds accepted in GUILDPANEL_STORE.
const (
	StoreJSON     = "json"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Settings is the process configuration.
type Settings struct {
	Token       string
	Store       string
	DataDir     string
	DatabaseURL string
	NATSURL     string
	Instance    string
	ControlAddr string

	SessionTimeout time.Duration
	SweepInterval  time.Duration

	LogLevel   string
	LogConsole bool
	Theme      string

	// EnvFiles lists the .env files that were loaded, for the startup log.
	EnvFiles []string
}

// LoadSettings loads the .env fallbacks and reads every GUILDPANEL_ key.
// The bot token is not required here; RequireToken checks it for `run`.
func LoadSettings() (Settings, error) {
	loaded := util.LoadEnv()
	def := panel.DefaultSessionConfig()

	host, _ := os.Hostname()
	s := Settings{
		Token:          util.EnvString(EnvBotToken, ""),
		Store:          strings.ToLower(util.EnvString(EnvStore, StoreJSON)),
		DataDir:        util.EnvString(EnvDataDir, ""),
		DatabaseURL:    util.EnvString(EnvDatabaseURL, ""),
		NATSURL:        util.EnvString(EnvNATSURL, ""),
		Instance:       util.EnvString(EnvInstance, host),
		ControlAddr:    util.EnvString(EnvControlAddr, ""),
		SessionTimeout: util.EnvDuration(EnvSessionTimeout, def.Timeout),
		SweepInterval:  util.EnvDuration(EnvSweepInterval, def.SweepInterval),
		LogLevel:       util.EnvString(EnvLogLevel, "info"),
		LogConsole:     util.EnvBool(EnvLogConsole),
		Theme:          util.EnvString(EnvTheme, ""),
		EnvFiles:       loaded,
	}
	if s.Instance == "" {
		s.Instance = util.AppName
	}
	return s, s.Validate()
}

// Validate checks combinations LoadSettings cannot default away.
func (s Settings) Validate() error {
	switch s.Store {
	case StoreJSON, StoreSQLite, StoreMemory:
	case StorePostgres:
		if s.DatabaseURL == "" {
			return fmt.Errorf("%s=postgres requires %s", EnvStore, EnvDatabaseURL)
		}
	default:
		return fmt.Errorf("unknown %s %q (want json, sqlite, postgres or memory)", EnvStore, s.Store)
	}
	if s.SweepInterval > s.SessionTimeout {
		return fmt.Errorf("%s (%s) must not exceed %s (%s)", EnvSweepInterval, s.SweepInterval, EnvSessionTimeout, s.SessionTimeout)
	}
	return nil
}

// RequireToken fails when no bot token was configured.
func (s Settings) RequireToken() error {
	if s.Token == "" {
		return fmt.Errorf("%s not set in environment or .env file", EnvBotToken)
	}
	return nil
}

// Paths resolves the per-user directories, honoring GUILDPANEL_DATA_DIR.
func (s Settings) Paths() util.Paths {
	return util.ResolvePaths(util.AppName, s.DataDir)
}

// SQLitePath is the database file used by the sqlite store.
func (s Settings) SQLitePath() string {
	return filepath.Join(s.Paths().DataDir, "guildpanel.db")
}

// SessionConfig builds the session manager configuration.
func (s Settings) SessionConfig() panel.SessionConfig {
	cfg := panel.DefaultSessionConfig()
	cfg.Timeout = s.SessionTimeout
	cfg.SweepInterval = s.SweepInterval
	return cfg
}
