package logger

import (
	"context"
	"io"
	"strings"
	"time"

	pkgctx "github.com/baechuer/real-time-ressys/client-core/internal/pkg/context"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Log is the core's logger. Until Setup runs it is zerolog's default.
var Log = zlog.Logger

// Setup replaces both the package and the global zerolog logger. An empty
// or unknown level means info; any format other than json is console.
func Setup(w io.Writer, level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if !strings.EqualFold(format, FormatJSON) {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	Log = zerolog.New(out).Level(lvl).With().
		Timestamp().
		Str("component", "client-core").
		Logger()
	zlog.Logger = Log
}

// Ctx returns a logger carrying the request id and active trace from ctx.
func Ctx(ctx context.Context) *zerolog.Logger {
	reqID := pkgctx.GetRequestID(ctx)
	sc := trace.SpanContextFromContext(ctx)
	if reqID == "" && !sc.IsValid() {
		return &Log
	}

	c := Log.With()
	if reqID != "" {
		c = c.Str("request_id", reqID)
	}
	if sc.IsValid() {
		c = c.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
	}
	l := c.Logger()
	return &l
}
