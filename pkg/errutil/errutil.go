package errutil

import (
	"fmt"

	"github.com/small-frappuccino/guildpanel/pkg/log"
)

// HandleDiscordError runs fn and logs a failure as a Discord API error.
// The error is returned unmodified so callers can still match on it.
func HandleDiscordError(operation string, fn func() error) error {
	if fn == nil {
		return fmt.Errorf("nil function provided")
	}

	err := fn()
	if err == nil {
		return nil
	}

	log.ErrorLoggerRaw().Error("Discord operation failed", "operation", operation, "err", err)
	return err
}

// HandleConfigError runs fn and wraps a failure with the operation and path.
func HandleConfigError(operation, path string, fn func() error) error {
	if fn == nil {
		return fmt.Errorf("nil function provided")
	}

	err := fn()
	if err == nil {
		return nil
	}

	log.ErrorLoggerRaw().Error("Config operation failed", "operation", operation, "path", path, "err", err)
	return fmt.Errorf("config %s %s: %w", operation, path, err)
}
