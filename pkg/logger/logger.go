package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type Options struct {
	Service string
	Env     string
	Level   string
	Pretty  bool
	Output  io.Writer
}

// New builds the process logger and installs it as the fallback for FromContext.
func New(opts Options) zerolog.Logger {
	var w io.Writer = os.Stdout
	if opts.Output != nil {
		w = opts.Output
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	zerolog.SetGlobalLevel(ParseLevel(opts.Level))

	l := zerolog.New(w).With().
		Timestamp().
		Str("service", opts.Service).
		Str("env", opts.Env).
		Logger()

	zerolog.DefaultContextLogger = &l
	return l
}

// SetLevel changes the global level at runtime, used by config hot reload.
func SetLevel(level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
}

func ParseLevel(lvl string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// FromContext returns the request logger stored in ctx, tagged with the active
// trace and span ids when a span is recording.
func FromContext(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	traced := l.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
	return &traced
}
