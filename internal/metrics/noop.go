package metrics

import (
	"context"
	"time"
)

// Recorder is what the server needs from a metrics backend.
type Recorder interface {
	RecordCall(ctx context.Context, operation string, failed bool, duration time.Duration)
	Close(ctx context.Context) error
}

// NoOpExporter is a metrics exporter that does nothing.
type NoOpExporter struct{}

// NewNoOpExporter creates a new no-op exporter for graceful degradation.
func NewNoOpExporter() *NoOpExporter {
	return &NoOpExporter{}
}

func (e *NoOpExporter) RecordCall(ctx context.Context, operation string, failed bool, duration time.Duration) {
}

func (e *NoOpExporter) Close(ctx context.Context) error {
	return nil
}

// New returns an OTLP exporter when cfg enables one, otherwise a no-op.
// The returned error explains why the exporter could not start; the
// recorder is usable either way.
func New(ctx context.Context, cfg Config) (Recorder, error) {
	if !cfg.Enabled {
		return NewNoOpExporter(), nil
	}
	exp, err := NewExporter(ctx, cfg)
	if err != nil {
		return NewNoOpExporter(), err
	}
	return exp, nil
}
