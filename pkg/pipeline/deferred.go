package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-vision/pkg/modules"
	"gocv.io/x/gocv"
)

var _ modules.Input = (*deferredInput)(nil)

// deferredInput stands in for a fallback whose first open failed. Every Read
// retries construction until it succeeds and then delegates.
type deferredInput struct {
	name   string
	build  func(context.Context) (modules.Input, error)
	in     modules.Input
	logger *slog.Logger
}

func (d *deferredInput) Name() string { return d.name }

func (d *deferredInput) Read(ctx context.Context) (gocv.Mat, error) {
	if d.in == nil {
		in, err := d.build(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return gocv.Mat{}, ctx.Err()
			}
			return gocv.Mat{}, fmt.Errorf("%w: %v", modules.ErrNoFrame, err)
		}
		d.in = in
		d.logger.Info("fallback input opened")
	}
	return d.in.Read(ctx)
}

func (d *deferredInput) Close() error {
	if d.in == nil {
		return nil
	}
	err := d.in.Close()
	d.in = nil
	return err
}
