// Package telemetry is the fire-and-forget entry point for app
// diagnostics. Report hands the options to a Sink and returns; whether
// the sink manages to record anything is the sink's problem, not the
// caller's. The only errors a caller ever sees are its own: passing a
// nil sink or nil options.
package telemetry

import (
	"context"
	"errors"
)

var (
	// ErrNilOptions is returned when Report is called without options.
	ErrNilOptions = errors.New("telemetry: nil options")
	// ErrNilSink is returned when Report is called without a sink.
	ErrNilSink = errors.New("telemetry: nil sink")
)

// Sink receives telemetry records. Implementations decide what a record
// becomes: a row in a spool, a line in a log, nothing at all.
type Sink interface {
	Record(ctx context.Context, opts *Options) error
}

// Report forwards opts to the sink exactly once. Argument errors are
// reported before the sink is touched; sink errors are swallowed so a
// diagnostics hiccup can never surface in app code paths.
func Report(ctx context.Context, sink Sink, opts *Options) error {
	if opts == nil {
		return ErrNilOptions
	}
	if sink == nil {
		return ErrNilSink
	}
	_ = sink.Record(ctx, opts)
	return nil
}
