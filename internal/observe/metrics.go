// Package observe holds the OpenTelemetry instruments recorded by the
// client. Instruments are created from a [metric.MeterProvider]; the global
// provider is a no-op until the embedding application installs one.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "peer_client/native"

// Resolution outcomes used as the "status" attribute.
const (
	StatusOK              = "ok"
	StatusAuthFailure     = "auth_failure"
	StatusMalformed       = "malformed"
	StatusInvalidIdentity = "invalid_identity"
)

// Metrics holds the resolver instruments. Safe for concurrent use.
type Metrics struct {
	// ResolveRequests counts resolutions by attribute.String("status", ...).
	ResolveRequests metric.Int64Counter

	// ResolveDuration tracks the wall time of one resolution in seconds.
	ResolveDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates the instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ResolveRequests, err = m.Int64Counter("peerclient.resolve.requests",
		metric.WithDescription("Credential resolutions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ResolveDuration, err = m.Float64Histogram("peerclient.resolve.duration",
		metric.WithDescription("Latency of one credential resolution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RecordResolve records the outcome and latency of one resolution.
func (m *Metrics) RecordResolve(ctx context.Context, status string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.ResolveRequests.Add(ctx, 1, attrs)
	m.ResolveDuration.Record(ctx, elapsed.Seconds(), attrs)
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a package-level instance created from
// [otel.GetMeterProvider] on first use.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}
