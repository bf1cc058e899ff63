// Package output holds the delivery variants that hand each admitted target
// to the robot controller, and the bounded queue that keeps a slow consumer
// from stalling the frame loop.
//
// Nothing here imports OpenCV; pkg/pipeline checks that every type in this
// package satisfies modules.Output.
package output

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/teslashibe/go-vision/pkg/tracking"
)

var (
	// ErrClosed is returned by Deliver after Close.
	ErrClosed = errors.New("output: closed")
	// ErrQueueFull is counted when the async queue drops its oldest record.
	ErrQueueFull = errors.New("output: queue full")
	// ErrStuck is returned by Async.Close when the inner output ignores
	// cancellation.
	ErrStuck = errors.New("output: delivery still in progress")
)

// Sink is the delivery contract shared by every variant.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, data tracking.OutputData) error
	io.Closer
}

// Log writes each delivery to the structured log.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a Log output. It reads no settings.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Name() string { return "log" }

func (l *Log) Deliver(_ context.Context, data tracking.OutputData) error {
	l.logger.Info("target",
		"raw_x", data.RawCenter[0],
		"raw_y", data.RawCenter[1],
		"nx", data.NormalCoord[0],
		"ny", data.NormalCoord[1],
		"angle", data.Angle,
	)
	return nil
}

func (l *Log) Close() error { return nil }
