// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var root zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	root = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Init reconfigures the root logger with a service name and level.
// Call once from main before any logging happens.
func Init(service, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	root = zerolog.New(os.Stdout).Level(lvl).With().
		Timestamp().
		Str("service", service).
		Logger()
}

// Ctx returns a logger stamped with the trace/span ids found in ctx,
// so log lines can be correlated with Jaeger traces.
func Ctx(ctx context.Context) *zerolog.Logger {
	l := root
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		l = root.With().
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String()).
			Logger()
	}
	return &l
}

// L returns the root logger for code paths without a context.
func L() *zerolog.Logger {
	return &root
}
