package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	Database  *DatabaseMetrics
	Messaging *MessagingMetrics

	studentsAdded       metric.Int64Counter
	studentsDeleted     metric.Int64Counter
	studentsTransferred metric.Int64Counter
	majorsAdded         metric.Int64Counter
	majorsDeleted       metric.Int64Counter
	usersRegistered     metric.Int64Counter
	loginsFailed        metric.Int64Counter
	accessDenied        metric.Int64Counter
	consistencyErrors   metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.Database, err = NewDatabaseMetrics(meter)
	if err != nil {
		return nil, err
	}

	m.Messaging, err = NewMessagingMetrics(meter)
	if err != nil {
		return nil, err
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.studentsAdded, "university.students.added", "Total number of students added", "{student}"},
		{&m.studentsDeleted, "university.students.deleted", "Total number of students deleted", "{student}"},
		{&m.studentsTransferred, "university.students.transferred", "Total number of students moved to another major", "{student}"},
		{&m.majorsAdded, "university.majors.added", "Total number of majors added", "{major}"},
		{&m.majorsDeleted, "university.majors.deleted", "Total number of majors deleted", "{major}"},
		{&m.usersRegistered, "university.users.registered", "Total number of user accounts registered", "{user}"},
		{&m.loginsFailed, "university.auth.logins_failed", "Total number of rejected login attempts", "{attempt}"},
		{&m.accessDenied, "university.auth.access_denied", "Requests rejected by the access gate", "{request}"},
		{&m.consistencyErrors, "university.consistency.errors", "Detected student/major consistency violations", "{error}"},
	}

	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

func add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	if len(attrs) == 0 {
		c.Add(ctx, 1)
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordStudentAdded(ctx context.Context) {
	if m != nil {
		add(ctx, m.studentsAdded)
	}
}

func (m *Metrics) RecordStudentDeleted(ctx context.Context) {
	if m != nil {
		add(ctx, m.studentsDeleted)
	}
}

func (m *Metrics) RecordStudentTransferred(ctx context.Context) {
	if m != nil {
		add(ctx, m.studentsTransferred)
	}
}

func (m *Metrics) RecordMajorAdded(ctx context.Context) {
	if m != nil {
		add(ctx, m.majorsAdded)
	}
}

func (m *Metrics) RecordMajorDeleted(ctx context.Context) {
	if m != nil {
		add(ctx, m.majorsDeleted)
	}
}

func (m *Metrics) RecordUserRegistered(ctx context.Context) {
	if m != nil {
		add(ctx, m.usersRegistered)
	}
}

func (m *Metrics) RecordLoginFailed(ctx context.Context) {
	if m != nil {
		add(ctx, m.loginsFailed)
	}
}

// RecordAccessDenied counts gate rejections by reason (missing, invalid, expired, ...).
func (m *Metrics) RecordAccessDenied(ctx context.Context, reason string) {
	if m != nil {
		add(ctx, m.accessDenied, attribute.String("reason", reason))
	}
}

func (m *Metrics) RecordConsistencyError(ctx context.Context, table string) {
	if m != nil {
		add(ctx, m.consistencyErrors, attribute.String("table", table))
	}
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{Database: &DatabaseMetrics{}, Messaging: &MessagingMetrics{}}
}
