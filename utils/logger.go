package utils

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger sets the global level and points the root logger at stderr.
func InitLogger(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = newConsoleLogger(os.Stderr)
}

// GetLogger returns a child logger tagged with the component name.
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// SetLogOutput redirects the root logger, so tests can silence it or
// capture it.
func SetLogOutput(w io.Writer) {
	log.Logger = newConsoleLogger(w)
}

func newConsoleLogger(w io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.DateTime,
	}
	return zerolog.New(output).With().Timestamp().Logger()
}
