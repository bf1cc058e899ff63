// Package pipeline assembles the configured capability modules and drives
// the per-frame loop over them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/teslashibe/go-vision/pkg/modules"
	"github.com/teslashibe/go-vision/pkg/modules/filter"
	"github.com/teslashibe/go-vision/pkg/modules/input"
	"github.com/teslashibe/go-vision/pkg/modules/output"
	"github.com/teslashibe/go-vision/pkg/modules/threshold"
	"github.com/teslashibe/go-vision/pkg/settings"
)

var (
	_ modules.Filter = (*filter.ContourArea)(nil)
	_ modules.Filter = (*filter.PercentFilled)(nil)
	_ modules.Filter = (*filter.AspectRatio)(nil)

	_ modules.Threshold = (*threshold.Color)(nil)

	_ modules.Output = (*output.NetworkTable)(nil)
	_ modules.Output = (*output.Serial)(nil)
	_ modules.Output = (*output.SQLite)(nil)
	_ modules.Output = (*output.HTTP)(nil)
	_ modules.Output = (*output.Log)(nil)
	_ modules.Output = (*output.Async)(nil)
)

// Role names a capability slot in the pipeline.
type Role string

const (
	RoleInput     Role = "input"
	RoleThreshold Role = "threshold"
	RoleFilter    Role = "filter"
	RoleOutput    Role = "output"
)

// ErrUnknownVariant is wrapped by every UnknownVariantError.
var ErrUnknownVariant = errors.New("pipeline: unknown variant")

// UnknownVariantError names a variant that no constructor is registered for.
type UnknownVariantError struct {
	Role  Role
	Name  string
	Known []string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("pipeline: unknown %s variant %q (known: %s)", e.Role, e.Name, strings.Join(e.Known, ", "))
}

func (e *UnknownVariantError) Unwrap() error { return ErrUnknownVariant }

// Constructor signatures, one per role.
type (
	InputFactory     func(ctx context.Context, vc *settings.VisionConfig, logger *slog.Logger) (modules.Input, error)
	ThresholdFactory func(ctx context.Context, vc *settings.VisionConfig, logger *slog.Logger) (modules.Threshold, error)
	FilterFactory    func(ctx context.Context, vc *settings.VisionConfig, logger *slog.Logger) (modules.Filter, error)
	OutputFactory    func(ctx context.Context, vc *settings.VisionConfig, logger *slog.Logger) (modules.Output, error)
)

// Registry maps variant names to constructors for each role.
type Registry struct {
	Inputs     map[string]InputFactory
	Thresholds map[string]ThresholdFactory
	Filters    map[string]FilterFactory
	Outputs    map[string]OutputFactory
}

// Default is the registry used by Build. It is the only place variant
// names are bound to implementations.
var Default = &Registry{
	Inputs: map[string]InputFactory{
		"camera": asInput(input.NewCamera),
		"stream": asInput(input.NewStream),
		"images": asInput(input.NewImages),
		"webrtc": asInput(input.NewWebRTC),
	},
	Thresholds: map[string]ThresholdFactory{
		"simplecolor":  asThreshold(threshold.NewSimpleColor),
		"complexcolor": asThreshold(threshold.NewComplexColor),
		"hexcolor":     asThreshold(threshold.NewHexColor),
	},
	Filters: map[string]FilterFactory{
		"contourarea":   asFilter(filter.NewContourArea),
		"percentfilled": asFilter(filter.NewPercentFilled),
		"aspectratio":   asFilter(filter.NewAspectRatio),
	},
	Outputs: map[string]OutputFactory{
		"networktable": asOutput(output.NewNetworkTable),
		"serial":       asOutput(output.NewSerial),
		"sqlite":       asOutput(output.NewSQLite),
		"http":         asOutput(output.NewHTTP),
		"log": func(_ context.Context, _ *settings.VisionConfig, logger *slog.Logger) (modules.Output, error) {
			return output.NewLog(logger), nil
		},
	},
}

// The adapters below keep a typed nil from a failed constructor out of the
// interface value.

func asInput[T modules.Input](f func(context.Context, *settings.VisionConfig, *slog.Logger) (T, error)) InputFactory {
	return func(ctx context.Context, vc *settings.VisionConfig, logger *slog.Logger) (modules.Input, error) {
		v, err := f(ctx, vc, logger)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

func asThreshold[T modules.Threshold](f func(context.Context, *settings.VisionConfig, *slog.Logger) (T, error)) ThresholdFactory {
	return func(ctx context.Context, vc *settings.VisionConfig, logger *slog.Logger) (modules.Threshold, error) {
		v, err := f(ctx, vc, logger)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

func asFilter[T modules.Filter](f func(context.Context, *settings.VisionConfig, *slog.Logger) (T, error)) FilterFactory {
	return func(ctx context.Context, vc *settings.VisionConfig, logger *slog.Logger) (modules.Filter, error) {
		v, err := f(ctx, vc, logger)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

func asOutput[T modules.Output](f func(context.Context, *settings.VisionConfig, *slog.Logger) (T, error)) OutputFactory {
	return func(ctx context.Context, vc *settings.VisionConfig, logger *slog.Logger) (modules.Output, error) {
		v, err := f(ctx, vc, logger)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// Variants lists the registered names for role, sorted.
func (r *Registry) Variants(role Role) []string {
	var names []string
	switch role {
	case RoleInput:
		names = keys(r.Inputs)
	case RoleThreshold:
		names = keys(r.Thresholds)
	case RoleFilter:
		names = keys(r.Filters)
	case RoleOutput:
		names = keys(r.Outputs)
	}
	sort.Strings(names)
	return names
}

// Variants lists the default registry's names for role.
func Variants(role Role) []string {
	return Default.Variants(role)
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Pipeline is the constructed set of modules. The frame loop owns it
// exclusively.
type Pipeline struct {
	Input     modules.Input
	Fallback  modules.Input // nil when not configured
	Threshold modules.Threshold
	Filters   []modules.Filter
	Output    modules.Output

	// Async is the delivery queue wrapping Output, nil when output.queue is 0.
	Async *output.Async
}

// Close releases the output first so queued targets drain, then the inputs.
func (p *Pipeline) Close() error {
	var errs []error
	if p.Output != nil {
		if err := p.Output.Close(); err != nil {
			errs = append(errs, fmt.Errorf("output %s: %w", p.Output.Name(), err))
		}
	}
	for _, in := range []modules.Input{p.Input, p.Fallback} {
		if in == nil {
			continue
		}
		if err := in.Close(); err != nil {
			errs = append(errs, fmt.Errorf("input %s: %w", in.Name(), err))
		}
	}
	return errors.Join(errs...)
}

type plan struct {
	input     InputFactory
	fallback  InputFactory
	threshold ThresholdFactory
	filters   []FilterFactory
	output    OutputFactory
}

// resolve looks up every configured name before anything is constructed.
func (r *Registry) resolve(names settings.PipelineNames) (*plan, error) {
	unknown := func(role Role, name string) error {
		return &UnknownVariantError{Role: role, Name: name, Known: r.Variants(role)}
	}

	p := &plan{}
	var ok bool
	if p.input, ok = r.Inputs[names.Input]; !ok {
		return nil, unknown(RoleInput, names.Input)
	}
	if names.Fallback != "" {
		if p.fallback, ok = r.Inputs[names.Fallback]; !ok {
			return nil, unknown(RoleInput, names.Fallback)
		}
	}
	if p.threshold, ok = r.Thresholds[names.Threshold]; !ok {
		return nil, unknown(RoleThreshold, names.Threshold)
	}
	for _, name := range names.Filters {
		f, ok := r.Filters[name]
		if !ok {
			return nil, unknown(RoleFilter, name)
		}
		p.filters = append(p.filters, f)
	}
	if p.output, ok = r.Outputs[names.Output]; !ok {
		return nil, unknown(RoleOutput, names.Output)
	}
	return p, nil
}

// Check reports the first name in names with no registered constructor.
func (r *Registry) Check(names settings.PipelineNames) error {
	_, err := r.resolve(names)
	return err
}

// Build constructs the pipeline described by vc. Unknown names are reported
// before any module is constructed; if a constructor fails, everything
// built so far is closed.
func (r *Registry) Build(ctx context.Context, vc *settings.VisionConfig, logger *slog.Logger) (*Pipeline, error) {
	pl, err := r.resolve(vc.Pipeline)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{}
	fail := func(what string, err error) (*Pipeline, error) {
		if cerr := p.Close(); cerr != nil {
			logger.Warn("cleanup after failed build", "error", cerr)
		}
		return nil, fmt.Errorf("pipeline: %s: %w", what, err)
	}

	if p.Input, err = pl.input(ctx, vc, logger.With("input", vc.Pipeline.Input)); err != nil {
		return fail("input "+vc.Pipeline.Input, err)
	}
	if pl.fallback != nil {
		flog := logger.With("input", vc.Pipeline.Fallback)
		build := func(ctx context.Context) (modules.Input, error) { return pl.fallback(ctx, vc, flog) }
		if p.Fallback, err = build(ctx); err != nil {
			var ke *settings.KeyError
			if errors.As(err, &ke) {
				return fail("fallback input "+vc.Pipeline.Fallback, err)
			}
			flog.Warn("fallback input unavailable, retrying on first use", "error", err)
			p.Fallback = &deferredInput{name: vc.Pipeline.Fallback, build: build, logger: flog}
		}
	}
	if p.Threshold, err = pl.threshold(ctx, vc, logger.With("threshold", vc.Pipeline.Threshold)); err != nil {
		return fail("threshold "+vc.Pipeline.Threshold, err)
	}
	for i, build := range pl.filters {
		name := vc.Pipeline.Filters[i]
		f, err := build(ctx, vc, logger.With("filter", name))
		if err != nil {
			return fail("filter "+name, err)
		}
		p.Filters = append(p.Filters, f)
	}
	out, err := pl.output(ctx, vc, logger.With("output", vc.Pipeline.Output))
	if err != nil {
		return fail("output "+vc.Pipeline.Output, err)
	}
	p.Output = out
	if vc.Output.Queue > 0 {
		p.Async = output.NewAsync(out, vc.Output.Queue, vc.Output.Timeout, logger)
		p.Output = p.Async
	}

	logger.Info("pipeline built",
		"input", vc.Pipeline.Input,
		"fallback", vc.Pipeline.Fallback,
		"threshold", vc.Pipeline.Threshold,
		"filters", vc.Pipeline.Filters,
		"output", vc.Pipeline.Output,
		"queue", vc.Output.Queue,
	)
	return p, nil
}

// Build constructs a pipeline from the default registry.
func Build(ctx context.Context, vc *settings.VisionConfig, logger *slog.Logger) (*Pipeline, error) {
	return Default.Build(ctx, vc, logger)
}
