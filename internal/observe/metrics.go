// Package observe holds the OpenTelemetry instruments recorded by practice
// sessions.
//
// A package-level default ([DefaultMetrics]) reads the global meter provider,
// which is a no-op unless the binary installs one. Tests should build their
// own instance with [NewMetrics] and a manual reader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/verte-zerg/pitchcoach"

// Metrics holds the metric instruments for practice sessions.
type Metrics struct {
	// SessionsStarted counts sessions that entered Recording.
	SessionsStarted metric.Int64Counter

	// SessionsCompleted counts sessions that were stopped and scored. Use with
	// attribute.String("tier", ...).
	SessionsCompleted metric.Int64Counter

	// SessionsRefused counts refused starts. Use with
	// attribute.String("reason", ...).
	SessionsRefused metric.Int64Counter

	// KeywordHits counts first-time keyword matches. Use with
	// attribute.Bool("in_order", ...).
	KeywordHits metric.Int64Counter

	// AlertsRaised counts alert transitions to raised. Use with
	// attribute.String("alert", ...).
	AlertsRaised metric.Int64Counter

	// DegradedEvents counts transcript engine errors.
	DegradedEvents metric.Int64Counter

	// ActiveSessions tracks the number of sessions currently recording.
	ActiveSessions metric.Int64UpDownCounter

	// SessionDuration records practice length at Stop.
	SessionDuration metric.Float64Histogram
}

var durationBuckets = []float64{
	30, 60, 120, 300, 600, 900, 1800, 3600,
}

// NewMetrics creates the instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SessionsStarted, err = m.Int64Counter("pitchcoach.sessions.started",
		metric.WithDescription("Practice sessions that started recording."),
	); err != nil {
		return nil, err
	}
	if met.SessionsCompleted, err = m.Int64Counter("pitchcoach.sessions.completed",
		metric.WithDescription("Practice sessions stopped and scored, by tier."),
	); err != nil {
		return nil, err
	}
	if met.SessionsRefused, err = m.Int64Counter("pitchcoach.sessions.refused",
		metric.WithDescription("Refused practice starts, by reason."),
	); err != nil {
		return nil, err
	}
	if met.KeywordHits, err = m.Int64Counter("pitchcoach.keyword.hits",
		metric.WithDescription("Keywords spoken for the first time in a session."),
	); err != nil {
		return nil, err
	}
	if met.AlertsRaised, err = m.Int64Counter("pitchcoach.alerts.raised",
		metric.WithDescription("Speech alerts raised, by alert."),
	); err != nil {
		return nil, err
	}
	if met.DegradedEvents, err = m.Int64Counter("pitchcoach.transcript.degraded",
		metric.WithDescription("Transcript engine errors seen while recording."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("pitchcoach.active_sessions",
		metric.WithDescription("Sessions currently recording."),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("pitchcoach.session.duration",
		metric.WithDescription("Length of scored practice sessions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built on
// [otel.GetMeterProvider]. It panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordRefused counts a refused start.
func (m *Metrics) RecordRefused(ctx context.Context, reason string) {
	m.SessionsRefused.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordKeywordHit counts a first-time keyword match.
func (m *Metrics) RecordKeywordHit(ctx context.Context, inOrder bool) {
	m.KeywordHits.Add(ctx, 1, metric.WithAttributes(attribute.Bool("in_order", inOrder)))
}

// RecordAlert counts a raised alert.
func (m *Metrics) RecordAlert(ctx context.Context, alert string) {
	m.AlertsRaised.Add(ctx, 1, metric.WithAttributes(attribute.String("alert", alert)))
}

// RecordCompleted counts a scored session and its duration.
func (m *Metrics) RecordCompleted(ctx context.Context, tier string, seconds int) {
	m.SessionsCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
	m.SessionDuration.Record(ctx, float64(seconds))
}
