package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

const (
	red   = "\x1b[31m"
	reset = "\x1b[0m"
)

// New writes to stdout: JSON inside Kubernetes and in prod/dev, colored
// text everywhere else.
func New() *slog.Logger {
	return NewWithWriter(os.Stdout, structured(os.Getenv("ENV")))
}

func structured(env string) bool {
	if _, ok := os.LookupEnv("KUBERNETES_SERVICE_HOST"); ok {
		return true
	}
	switch env {
	case "prod", "production", "dev":
		return true
	}
	return false
}

func NewWithWriter(w io.Writer, useJSON bool) *slog.Logger {
	if useJSON {
		return slog.New(&contextHandler{
			next: slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo, AddSource: true}),
		})
	}
	return slog.New(&contextHandler{
		next:        slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}),
		colorErrors: true,
	})
}

func NewWithServiceContext(serviceName, version string) *slog.Logger {
	return New().With(
		slog.String("service", serviceName),
		slog.String("version", version),
		slog.String("environment", os.Getenv("ENV")),
	)
}

func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// contextHandler stamps records with the span from ctx and, for terminals,
// paints error messages red.
type contextHandler struct {
	next        slog.Handler
	colorErrors bool
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.colorErrors && r.Level >= slog.LevelError {
		painted := slog.NewRecord(r.Time, r.Level, red+r.Message+reset, r.PC)
		r.Attrs(func(a slog.Attr) bool {
			painted.AddAttrs(a)
			return true
		})
		r = painted
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs), colorErrors: h.colorErrors}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name), colorErrors: h.colorErrors}
}
