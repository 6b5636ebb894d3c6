package observability

import (
	"context"
	"errors"
	"time"

	"leadgate/internal/models"
	"leadgate/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedStorage wraps a storage.Storage implementation with
// OpenTelemetry tracing and metrics instrumentation. Email addresses and
// fingerprints are never put on spans; only their presence is recorded.
type InstrumentedStorage struct {
	inner    storage.Storage
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

var _ storage.Storage = (*InstrumentedStorage)(nil)

// NewInstrumentedStorage creates a new storage wrapper that records trace spans,
// operation latency histograms, and error counters for every storage method call.
func NewInstrumentedStorage(inner storage.Storage, meter metric.Meter) (*InstrumentedStorage, error) {
	if meter == nil {
		meter = otel.Meter("leadgate/storage")
	}

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStorage{
		inner:    inner,
		tracer:   otel.Tracer("leadgate/storage"),
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStorage) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
}

func (s *InstrumentedStorage) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	// A missing report is an expected outcome, not a storage failure.
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func identityAttrs(ip, fingerprint string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool("identity.has_ip", ip != ""),
		attribute.Bool("identity.has_fingerprint", fingerprint != ""),
	}
}

func (s *InstrumentedStorage) CreateReport(ctx context.Context, report *models.Report) error {
	ctx, span := s.startSpan(ctx, "CreateReport", attribute.String("report_id", report.ID))
	start := time.Now()
	err := s.inner.CreateReport(ctx, report)
	s.record(ctx, span, "CreateReport", start, err)
	return err
}

func (s *InstrumentedStorage) GetReport(ctx context.Context, id string) (*models.Report, error) {
	ctx, span := s.startSpan(ctx, "GetReport", attribute.String("report_id", id))
	start := time.Now()
	result, err := s.inner.GetReport(ctx, id)
	s.record(ctx, span, "GetReport", start, err)
	return result, err
}

func (s *InstrumentedStorage) InsertLead(ctx context.Context, lead *models.Lead) error {
	ctx, span := s.startSpan(ctx, "InsertLead",
		append(identityAttrs(lead.IPAddress, lead.Fingerprint),
			attribute.String("report_id", lead.ReportID))...,
	)
	start := time.Now()
	err := s.inner.InsertLead(ctx, lead)
	s.record(ctx, span, "InsertLead", start, err)
	return err
}

func (s *InstrumentedStorage) CountByEmail(ctx context.Context, email string) (int, error) {
	ctx, span := s.startSpan(ctx, "CountByEmail", attribute.Bool("identity.has_email", email != ""))
	start := time.Now()
	count, err := s.inner.CountByEmail(ctx, email)
	span.SetAttributes(attribute.Int("ledger.count", count))
	s.record(ctx, span, "CountByEmail", start, err)
	return count, err
}

func (s *InstrumentedStorage) CountByIdentity(ctx context.Context, ip, fingerprint string) (int, error) {
	ctx, span := s.startSpan(ctx, "CountByIdentity", identityAttrs(ip, fingerprint)...)
	start := time.Now()
	count, err := s.inner.CountByIdentity(ctx, ip, fingerprint)
	span.SetAttributes(attribute.Int("ledger.count", count))
	s.record(ctx, span, "CountByIdentity", start, err)
	return count, err
}

func (s *InstrumentedStorage) DeleteByIdentity(ctx context.Context, id models.Identity) (int64, error) {
	ctx, span := s.startSpan(ctx, "DeleteByIdentity",
		append(identityAttrs(id.IPAddress, id.Fingerprint),
			attribute.Bool("identity.has_email", id.Email != ""))...,
	)
	start := time.Now()
	deleted, err := s.inner.DeleteByIdentity(ctx, id)
	span.SetAttributes(attribute.Int64("ledger.deleted", deleted))
	s.record(ctx, span, "DeleteByIdentity", start, err)
	return deleted, err
}

func (s *InstrumentedStorage) DeleteLead(ctx context.Context, id int64) error {
	ctx, span := s.startSpan(ctx, "DeleteLead", attribute.Int64("lead.id", id))
	start := time.Now()
	err := s.inner.DeleteLead(ctx, id)
	s.record(ctx, span, "DeleteLead", start, err)
	return err
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
