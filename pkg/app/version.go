package app

import "fmt"

// AppName is the name used in logs and the startup banner.
const AppName = "guildpanel"

// Version is overridden at build time with
// -ldflags "-X github.com/small-frappuccino/guildpanel/pkg/app.Version=v1.2.3".
var Version = "dev"

// FormatStartupMessage renders the first log line of a run.
func FormatStartupMessage(appName, version string) string {
	if version == "" || version == "dev" {
		return fmt.Sprintf("🚀 Starting %s (development build)...", appName)
	}
	return fmt.Sprintf("🚀 Starting %s %s...", appName, version)
}
