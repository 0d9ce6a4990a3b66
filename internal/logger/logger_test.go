package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/SeerNT/UniversityAPI/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextIsAttached(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, true)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	log.InfoContext(ctx, "student added", "student_id", 7)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "student added", entry["msg"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
	assert.EqualValues(t, 7, entry["student_id"])
}

func TestTextHandlerColorsErrors(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, false)

	log.Error("consistency violation")
	assert.Contains(t, buf.String(), "\x1b[31mconsistency violation\x1b[0m")

	buf.Reset()
	log.Info("plain")
	assert.NotContains(t, buf.String(), "\x1b[31m")
}

func TestDerivedLoggersKeepBehaviour(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, false).With("component", "counter").WithGroup("major")

	traceID, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	spanID, _ := trace.SpanIDFromHex("b7ad6b7169203331")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	log.ErrorContext(ctx, "decrement refused", "id", 3)

	out := buf.String()
	assert.Contains(t, out, "\x1b[31mdecrement refused\x1b[0m")
	assert.Contains(t, out, "component=counter")
	assert.Contains(t, out, "0af7651916cd43dd8448eb211c80319c")
	assert.Contains(t, out, "major.id=3")
}
