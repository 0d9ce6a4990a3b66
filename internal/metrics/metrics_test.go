package metrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SeerNT/UniversityAPI/internal/logger"
	"github.com/SeerNT/UniversityAPI/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()

	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := metrics.New(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordStudentAdded(ctx)
	m.RecordStudentAdded(ctx)
	m.RecordStudentDeleted(ctx)
	m.RecordAccessDenied(ctx, "expired")
	m.RecordAccessDenied(ctx, "missing")
	m.Database.RecordQuery(ctx, "insert", "students", 3*time.Millisecond, nil)
	m.Database.RecordQuery(ctx, "insert", "students", 3*time.Millisecond, errors.New("boom"))
	m.Messaging.RecordPublish(ctx, "nats", "created", time.Millisecond, nil)
	m.Messaging.RecordPublish(ctx, "nats", "deleted", time.Millisecond, errors.New("no responders"))

	data := collect(t, reader)

	assert.Equal(t, int64(2), sumOf(t, data["university.students.added"]))
	assert.Equal(t, int64(1), sumOf(t, data["university.students.deleted"]))
	assert.Equal(t, int64(2), sumOf(t, data["university.auth.access_denied"]))
	assert.Equal(t, int64(1), sumOf(t, data["db.query.errors"]))
	assert.Equal(t, int64(1), sumOf(t, data["messaging.messages.published"]))
	assert.Equal(t, int64(1), sumOf(t, data["messaging.publish.errors"]))

	hist, ok := data["db.query.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
}

func TestMockIgnoresCalls(t *testing.T) {
	m := metrics.NewMock()
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordStudentAdded(ctx)
		m.RecordConsistencyError(ctx, "majors")
		m.Database.RecordQuery(ctx, "select", "majors", time.Millisecond, nil)
		m.Database.RecordRollback(ctx, "student.create")
	})

	var nilMetrics *metrics.Metrics
	assert.NotPanics(t, func() { nilMetrics.RecordUserRegistered(ctx) })
}

func TestPrometheusHandler(t *testing.T) {
	tel, err := metrics.Init("university-test", "test", "test", logger.Discard())
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())

	tel.Metrics.RecordMajorAdded(context.Background())

	w := httptest.NewRecorder()
	tel.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "university_majors_added")
}
