package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/pkg/config"
)

// Setup configures the global zerolog logger from config and returns it
func Setup(cfg config.LoggingConfig) zerolog.Logger {
	return SetupWriter(cfg, os.Stdout)
}

// SetupWriter is Setup with an explicit destination
func SetupWriter(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if strings.ToLower(cfg.Format) == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}

	return log.Logger
}

// WithRun returns a logger tagged with a run ID
func WithRun(runID string) zerolog.Logger {
	return log.Logger.With().Str("run_id", runID).Logger()
}
