package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/anstrom/lanscan/internal/discovery"
)

// Report is the final inventory of a completed session.
type Report struct {
	SessionID string
	Ranges    []string
	StartedAt time.Time
	EndedAt   time.Time
	Hosts     []discovery.HostRecord
}

// Sink persists completed sessions.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	Save(ctx context.Context, report Report) error
}

// MultiSink fans a report out to several sinks. Every sink is attempted.
type MultiSink []Sink

// Name implements Sink.
func (m MultiSink) Name() string {
	return "multi"
}

// Save implements Sink. Failures are joined.
func (m MultiSink) Save(ctx context.Context, report Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Save(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return stderrors.Join(errs...)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, report Report) error
}

// Name implements Sink.
func (f SinkFunc) Name() string {
	return f.SinkName
}

// Save implements Sink.
func (f SinkFunc) Save(ctx context.Context, report Report) error {
	return f.Fn(ctx, report)
}
