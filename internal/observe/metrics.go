// Package observe provides the service's observability primitives:
// OpenTelemetry metrics, request-scoped correlation ids, and the HTTP
// middleware that ties them together. Metrics reach Prometheus through the
// exporter bridge installed by [Setup].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// turnLatencyBuckets are histogram boundaries (seconds) sized for the
// interview turn pipeline, whose latency is dominated by provider calls.
var turnLatencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// Metrics holds the service's metric instruments. All fields are safe for
// concurrent use.
type Metrics struct {
	// Latency histograms per pipeline stage.
	STTDuration    metric.Float64Histogram
	LLMDuration    metric.Float64Histogram
	TTSDuration    metric.Float64Histogram
	TurnDuration   metric.Float64Histogram
	SearchDuration metric.Float64Histogram

	// ProviderRequests counts provider API calls, attributed by provider,
	// kind, and status; ProviderErrors counts failures by provider and kind.
	ProviderRequests metric.Int64Counter
	ProviderErrors   metric.Int64Counter

	// InterviewTurns counts interviewer turns by response type.
	InterviewTurns metric.Int64Counter

	// Session lifecycle counters and the live-session gauge.
	SessionsCreated   metric.Int64Counter
	SessionsCompleted metric.Int64Counter
	ActiveSessions    metric.Int64UpDownCounter

	// RateGovernorActive tracks in-flight requests per governed provider.
	RateGovernorActive metric.Int64UpDownCounter

	// HTTPRequestDuration tracks request latency by method and path.
	HTTPRequestDuration metric.Float64Histogram
}

// instrumentSet accumulates the first instrument-creation error so the
// construction code reads as one flat literal instead of a check chain.
type instrumentSet struct {
	meter metric.Meter
	err   error
}

func (s *instrumentSet) latency(name, desc string) metric.Float64Histogram {
	h, err := s.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(turnLatencyBuckets...),
	)
	if s.err == nil {
		s.err = err
	}
	return h
}

func (s *instrumentSet) counter(name, desc string) metric.Int64Counter {
	c, err := s.meter.Int64Counter(name, metric.WithDescription(desc))
	if s.err == nil {
		s.err = err
	}
	return c
}

func (s *instrumentSet) gauge(name, desc string) metric.Int64UpDownCounter {
	g, err := s.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	if s.err == nil {
		s.err = err
	}
	return g
}

// NewMetrics creates the full instrument set on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	set := &instrumentSet{meter: mp.Meter(instrumentationName)}

	m := &Metrics{
		STTDuration:         set.latency("interviewsim.stt.duration", "Latency of speech-to-text transcription."),
		LLMDuration:         set.latency("interviewsim.llm.duration", "Latency of LLM inference."),
		TTSDuration:         set.latency("interviewsim.tts.duration", "Latency of text-to-speech synthesis."),
		TurnDuration:        set.latency("interviewsim.turn.duration", "End-to-end message turn latency."),
		SearchDuration:      set.latency("interviewsim.search.duration", "Latency of coach resource search."),
		ProviderRequests:    set.counter("interviewsim.provider.requests", "Total provider API requests by provider, kind, and status."),
		ProviderErrors:      set.counter("interviewsim.provider.errors", "Total provider errors by provider and kind."),
		InterviewTurns:      set.counter("interviewsim.interview.turns", "Total interviewer turns produced by response type."),
		SessionsCreated:     set.counter("interviewsim.sessions.created", "Total sessions created."),
		SessionsCompleted:   set.counter("interviewsim.sessions.completed", "Total sessions that reached the completed phase."),
		ActiveSessions:      set.gauge("interviewsim.active_sessions", "Number of live interview sessions."),
		RateGovernorActive:  set.gauge("interviewsim.rate_governor.active", "In-flight requests per rate-governed provider."),
		HTTPRequestDuration: set.latency("interviewsim.http.request.duration", "HTTP request latency by method and path."),
	}
	if set.err != nil {
		return nil, set.err
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level Metrics instance built on the
// global meter provider. Tests should use NewMetrics with their own
// provider to avoid cross-test pollution.
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

// RecordProviderRequest increments the provider-request counter with the
// standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordProviderError increments the provider-error counter.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}

// RecordInterviewTurn increments the interviewer-turn counter.
func (m *Metrics) RecordInterviewTurn(ctx context.Context, responseType string) {
	m.InterviewTurns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("response_type", responseType),
	))
}
