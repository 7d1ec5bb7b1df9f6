package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. JSON to stdout by default.
var Logger zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Setup reconfigures the logger from LOG_LEVEL and LOG_FORMAT.
// LOG_FORMAT=console enables the human readable writer.
func Setup() {
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "console") {
		Logger = Logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	Logger = Logger.Level(level)
}
