package service

import (
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/medistock/tenant-auth/internal/core/service"

type settings struct {
	now    func() time.Time
	newID  func() string
	tracer trace.Tracer
}

func defaultSettings() settings {
	return settings{
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.Must(uuid.NewV7()).String() },
		tracer: otel.Tracer(tracerName),
	}
}

// Option customises a service at construction time.
type Option func(*settings)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithIDGenerator replaces the UUIDv7 generator used for new records.
func WithIDGenerator(newID func() string) Option {
	return func(s *settings) { s.newID = newID }
}

// WithTracerProvider records spans on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *settings) { s.tracer = tp.Tracer(tracerName) }
}

func buildSettings(opts []Option) settings {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
