package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns a zerolog Logger tagged with the service name.
// APP_ENV=dev (or development) uses a human-friendly console writer at debug
// level; otherwise JSON at level (info when empty or unknown).
func NewLogger(env, level string) zerolog.Logger {
	var out io.Writer = os.Stdout
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if env == "dev" || env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		if level == "" {
			lvl = zerolog.DebugLevel
		}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "flex-reviews").Logger()
}
