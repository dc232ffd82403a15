package coordinator

import (
	"log/slog"
	"time"
)

// getInterval parses a configured interval, falling back to def when empty or invalid
func getInterval(name, value string, def time.Duration) time.Duration {
	if value != "" {
		if interval, err := time.ParseDuration(value); err == nil && interval > 0 {
			return interval
		}
		slog.Warn("Invalid interval, using default",
			"setting", name,
			"interval", value,
			"default", def)
	}
	return def
}
