package logging

import (
	"io"
	"os"
	"time"

	"github.com/dannyrandall/conferences/internal/otel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Setup configures the global logger. Unknown levels fall back to info.
func Setup(level, format string) zerolog.Level {
	return SetupWriter(os.Stderr, level, format)
}

func SetupWriter(w io.Writer, level, format string) zerolog.Level {
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return lvl
}

// ForSpan returns a logger that tags every line with the X-Ray trace id of
// span.
func ForSpan(span trace.Span) zerolog.Logger {
	return log.With().Str("trace_id", otel.XRayTraceID(span)).Logger()
}
