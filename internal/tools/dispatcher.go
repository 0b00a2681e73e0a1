// Package tools holds the callable operation registry and the dispatcher
// that turns every call into a CallResult envelope.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Recorder observes completed calls.
type Recorder interface {
	RecordCall(ctx context.Context, operation string, failed bool, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordCall(context.Context, string, bool, time.Duration) {}

// Dispatcher routes calls by operation name.
type Dispatcher struct {
	analytics Analytics
	recorder  Recorder
	logger    zerolog.Logger
	ops       map[string]*Operation
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithRecorder sets the call recorder
func WithRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// NewDispatcher creates a dispatcher over the registered operations.
func NewDispatcher(analytics Analytics, logger zerolog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		analytics: analytics,
		recorder:  nopRecorder{},
		logger:    logger.With().Str("component", "dispatcher").Logger(),
		ops:       make(map[string]*Operation, len(registry)),
	}
	for i := range registry {
		d.ops[registry[i].Name] = &registry[i]
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// List returns every advertised operation.
func (d *Dispatcher) List() []Descriptor {
	return Descriptors()
}

// Call runs the named operation. It never returns an error; failures are
// reported through CallResult.IsError.
func (d *Dispatcher) Call(ctx context.Context, name string, args json.RawMessage) (result CallResult) {
	op, ok := d.ops[name]
	if !ok {
		err := &UnknownOperationError{Name: name}
		d.logger.Warn().Str("operation", name).Msg("Unknown operation called")
		return ErrorResult("Error: " + err.Error())
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("operation", name).
				Interface("panic", r).
				Msg("Operation panicked")
			result = ErrorResult(fmt.Sprintf("%s: internal error: %v", op.failure, r))
		}
		d.recorder.RecordCall(ctx, name, result.IsError, time.Since(start))
	}()

	data, err := d.invoke(ctx, op, args)
	if err != nil {
		d.logger.Warn().
			Err(err).
			Str("operation", name).
			Dur("duration", time.Since(start)).
			Msg("Operation failed")
		return ErrorResult(fmt.Sprintf("%s: %s", op.failure, err.Error()))
	}

	text, err := marshalIndent(data)
	if err != nil {
		return ErrorResult(fmt.Sprintf("%s: encode result: %s", op.failure, err.Error()))
	}

	d.logger.Debug().
		Str("operation", name).
		Dur("duration", time.Since(start)).
		Int("bytes", len(text)).
		Msg("Operation completed")

	return TextResult(text)
}

func (d *Dispatcher) invoke(ctx context.Context, op *Operation, args json.RawMessage) (any, error) {
	if err := checkRequired(op.InputSchema, args); err != nil {
		return nil, err
	}
	return op.handle(ctx, d.analytics, args)
}

// marshalIndent renders v as two-space indented JSON without HTML escaping.
func marshalIndent(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
