// Package logging builds the module-wide zerolog logger from config.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing to stderr. levelName accepts the
// usual zerolog level strings (debug, info, warn, error); an unknown or
// empty value defaults to info. console selects the human-readable
// ConsoleWriter over compact JSON, matching how a developer's terminal
// vs. a container's log collector each want the stream shaped.
func New(levelName string, console bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var w io.Writer = os.Stderr
	if console {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
