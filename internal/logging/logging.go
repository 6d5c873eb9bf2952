// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logger fields
const (
	COMPONENT = "component"
	USER      = "user_id"
	EVENT     = "event"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// Setup sets the global level and output. pretty switches to the console writer.
func Setup(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// For returns a child of the global logger tagged with component=name.
func For(name string) zerolog.Logger {
	return log.With().Str(COMPONENT, name).Logger()
}
