package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter    metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	TokensUsed        metric.Int64Counter
	IndexOperations   metric.Int64Counter
	PersistenceErrors metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("docqa-backend")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	indexOperations, err := meter.Int64Counter(
		"vector_index.operations.total",
		metric.WithDescription("Total vector index operations"),
	)
	if err != nil {
		return nil, err
	}

	// Persistence failures do not fail requests; this counter is how
	// operators find out a store file stopped being written.
	persistenceErrors, err := meter.Int64Counter(
		"persistence.errors.total",
		metric.WithDescription("Failed writes of the registry or conversation store files"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:    requestCounter,
		RequestDuration:   requestDuration,
		TokensUsed:        tokensUsed,
		IndexOperations:   indexOperations,
		PersistenceErrors: persistenceErrors,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	attrs := []attribute.KeyValue{
		attribute.String("gemini.model", model),
	}

	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attrs...))
}

// RecordIndexOperation records a vector index operation
func (m *Metrics) RecordIndexOperation(operation string, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("index.operation", operation),
		attribute.Bool("index.success", success),
	}

	m.IndexOperations.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordPersistenceError records a failed store file write
func (m *Metrics) RecordPersistenceError(store string) {
	attrs := []attribute.KeyValue{
		attribute.String("store", store),
	}

	m.PersistenceErrors.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
