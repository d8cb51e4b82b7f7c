// Package logger provides the package-level structured logger used across
// quantdriver. Call sites use the free functions (Info, Infof, Warn, Error,
// Debug, ...) against a single process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	level := zerolog.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if parsed, err := zerolog.ParseLevel(v); err == nil {
			level = parsed
		}
	}
	var w io.Writer = os.Stdout
	if os.Getenv("LOG_PRETTY") == "true" {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	log = zerolog.New(w).With().Timestamp().Logger().Level(level)
}

// With returns a child logger carrying the given field, for tagging log
// lines with a strategy_id/order_id/symbol without threading a context.
func With(key, value string) zerolog.Logger {
	return log.With().Str(key, value).Logger()
}

func Debug(msg string)            { log.Debug().Msg(msg) }
func Debugf(format string, a ...interface{}) { log.Debug().Msgf(format, a...) }
func Info(msg string)             { log.Info().Msg(msg) }
func Infof(format string, a ...interface{})  { log.Info().Msgf(format, a...) }
func Warn(msg string)             { log.Warn().Msg(msg) }
func Warnf(format string, a ...interface{})  { log.Warn().Msgf(format, a...) }
func Error(msg string)            { log.Error().Msg(msg) }
func Errorf(format string, a ...interface{}) { log.Error().Msgf(format, a...) }

// ErrorErr logs msg with the error attached as a structured field, the
// pattern used at call sites that need both a message and an error value.
func ErrorErr(msg string, err error) {
	log.Error().Err(err).Msg(msg)
}
