package perf

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/small-frappuccino/guildpanel/pkg/log"
	"github.com/small-frappuccino/guildpanel/pkg/util"
)

const (
	envSlowHandlerMs     = "GUILDPANEL_SLOW_HANDLER_MS"
	defaultSlowHandlerMs = int64(1500)
)

var (
	thresholdOnce sync.Once
	threshold     time.Duration
)

// Threshold is the duration above which a handler is reported as slow.
// GUILDPANEL_SLOW_HANDLER_MS=0 disables reporting.
func Threshold() time.Duration {
	thresholdOnce.Do(func() {
		ms := util.EnvInt64(envSlowHandlerMs, defaultSlowHandlerMs)
		if ms <= 0 {
			threshold = 0
			return
		}
		threshold = time.Duration(ms) * time.Millisecond
	})
	return threshold
}

// StartGatewayEvent tracks how long a gateway handler takes and logs only when slow.
func StartGatewayEvent(event string, attrs ...slog.Attr) func() {
	return startWithThreshold(Threshold(), event, attrs...)
}

func startWithThreshold(limit time.Duration, event string, attrs ...slog.Attr) func() {
	if limit <= 0 {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		if duration < limit {
			return
		}
		name := strings.TrimSpace(event)
		if name == "" {
			name = "unknown"
		}
		args := make([]any, 0, len(attrs)+3)
		args = append(args,
			slog.String("event", name),
			slog.Duration("duration", duration),
			slog.Int64("duration_ms", duration.Milliseconds()),
		)
		for _, attr := range attrs {
			args = append(args, attr)
		}
		log.DiscordLogger().Warn("slow gateway event handler", args...)
	}
}
