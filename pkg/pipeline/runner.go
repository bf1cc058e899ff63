package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/teslashibe/go-vision/pkg/modules"
	"github.com/teslashibe/go-vision/pkg/settings"
	"github.com/teslashibe/go-vision/pkg/tracking"
	"github.com/teslashibe/go-vision/pkg/vision"
	"gocv.io/x/gocv"
)

// Observer receives a copy of what the loop produces. Implementations must
// not block; the dashboard is the only one.
type Observer interface {
	ObserveFrame(jpeg []byte)
	ObserveTarget(data tracking.OutputData)
	ObserveStats(stats tracking.Stats)
}

// Phase is where a cycle is.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAcquiring
	PhaseDetecting
	PhaseFiltering
	PhaseSelecting
	PhaseNoTarget
	PhaseNormalizing
	PhaseEmitting
	PhaseStreaming
)

var phaseNames = [...]string{
	PhaseIdle:        "idle",
	PhaseAcquiring:   "acquiring",
	PhaseDetecting:   "detecting",
	PhaseFiltering:   "filtering",
	PhaseSelecting:   "selecting",
	PhaseNoTarget:    "no_target",
	PhaseNormalizing: "normalizing",
	PhaseEmitting:    "emitting",
	PhaseStreaming:   "streaming",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// LoopState is everything carried from one cycle to the next.
type LoopState struct {
	Phase Phase
	Gate  tracking.ChangeGate

	// Active is 0 for the primary input and 1 for the fallback.
	Active   int
	Failures int // consecutive acquisition failures

	Frames          uint64
	Emitted         uint64
	AcquireFailures uint64
	Candidates      int
	Selected        int
	FPS             float64
}

// Options are the optional collaborators of a Runner.
type Options struct {
	// Stream receives one JPEG block per frame; nil disables streaming.
	Stream io.Writer
	// Observer, when set, gets every frame, target and stats update.
	Observer Observer
}

// Runner drives the frame loop over a Pipeline.
type Runner struct {
	p        *Pipeline
	camera   tracking.Camera
	n        int
	timeout  time.Duration
	stream   io.Writer
	observer Observer
	encoder  vision.Encoder
	backoff  *Backoff
	fps      *FPSMeter
	switchAt int
	logger   *slog.Logger

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

// NewRunner prepares a loop over p using the geometry, tracking, retry and
// stream settings from vc.
func NewRunner(p *Pipeline, vc *settings.VisionConfig, opts Options, logger *slog.Logger) *Runner {
	r := &Runner{
		p: p,
		camera: tracking.Camera{
			Width:  vc.Input.Width,
			Height: vc.Input.Height,
			HFOV:   vc.Input.HFOV,
			VFOV:   vc.Input.VFOV,
		},
		n:        vc.Tracking.NumTracked,
		timeout:  vc.Output.Timeout,
		observer: opts.Observer,
		encoder:  vision.Encoder{Quality: vc.Stream.Quality, Scale: vc.Stream.Scale},
		backoff:  &Backoff{Initial: vc.Retry.Initial, Max: vc.Retry.Max},
		fps:      NewFPSMeter(),
		switchAt: vc.Retry.SwitchAfter,
		logger:   logger.With("component", "loop"),
		sleep:    sleepCtx,
		now:      time.Now,
	}
	if opts.Stream != nil {
		r.stream = NewStreamSink(opts.Stream)
	}
	return r
}

func (r *Runner) input(st *LoopState) modules.Input {
	if st.Active == 1 && r.p.Fallback != nil {
		return r.p.Fallback
	}
	return r.p.Input
}

// Run repeats Cycle until ctx is cancelled, which is not an error, or a
// cycle fails fatally.
func (r *Runner) Run(ctx context.Context) error {
	st := &LoopState{}
	r.logger.Info("frame loop started",
		"input", r.p.Input.Name(),
		"threshold", r.p.Threshold.Name(),
		"output", r.p.Output.Name(),
		"tracked", r.n,
	)
	for ctx.Err() == nil {
		if err := r.Cycle(ctx, st); err != nil {
			if ctx.Err() != nil {
				break
			}
			r.logger.Error("frame loop stopped", "error", err, "frames", st.Frames)
			return err
		}
	}
	r.logger.Info("frame loop finished", "frames", st.Frames, "emitted", st.Emitted, "acquire_failures", st.AcquireFailures)
	return nil
}

// Cycle runs one frame through the pipeline. Acquisition failures are
// absorbed (with backoff) and return nil; any other error is fatal.
func (r *Runner) Cycle(ctx context.Context, st *LoopState) error {
	start := r.now()
	defer func() { st.Phase = PhaseIdle }()

	st.Phase = PhaseAcquiring
	in := r.input(st)
	frame, err := in.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return r.acquireFailed(ctx, st, in, err)
	}
	defer frame.Close()
	st.Failures = 0
	r.backoff.Reset()
	st.Frames++

	st.Phase = PhaseDetecting
	objs, err := r.p.Threshold.Detect(frame)
	if err != nil {
		return fmt.Errorf("pipeline: threshold %s: %w", r.p.Threshold.Name(), err)
	}
	st.Candidates = len(objs)

	st.Phase = PhaseFiltering
	objs = modules.ApplyFilters(objs, r.p.Filters)

	st.Phase = PhaseSelecting
	center, selected := tracking.Track(objs, r.n)
	st.Selected = len(selected)

	if center.IsZero() {
		st.Phase = PhaseNoTarget
	} else {
		st.Phase = PhaseNormalizing
		if st.Gate.Admit(center) {
			st.Phase = PhaseEmitting
			r.emit(ctx, st, r.camera.Solve(center))
		}
	}

	st.FPS = r.fps.Observe(r.now().Sub(start))
	vision.Annotate(&frame, selected, st.FPS)

	st.Phase = PhaseStreaming
	if err := r.publish(frame); err != nil {
		return err
	}
	if r.observer != nil {
		r.observer.ObserveStats(r.Stats(st))
	}
	return nil
}

// emit hands data to the output. Delivery failures are logged, never
// fatal; with a queue configured they are handled by the worker instead.
func (r *Runner) emit(ctx context.Context, st *LoopState, data tracking.OutputData) {
	st.Emitted++
	if r.observer != nil {
		r.observer.ObserveTarget(data)
	}
	dctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.p.Output.Deliver(dctx, data); err != nil {
		r.logger.Warn("delivery failed", "output", r.p.Output.Name(), "error", err)
		return
	}
	r.logger.Debug("target emitted", "angle", data.Angle, "nx", data.NormalCoord[0], "ny", data.NormalCoord[1])
}

// publish encodes the annotated frame once for the stream and observer.
func (r *Runner) publish(frame gocv.Mat) error {
	if r.stream == nil && r.observer == nil {
		return nil
	}
	jpeg, err := r.encoder.Encode(frame)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if r.stream != nil {
		if _, err := r.stream.Write(jpeg); err != nil {
			return fmt.Errorf("pipeline: stream: %w", err)
		}
	}
	if r.observer != nil {
		r.observer.ObserveFrame(jpeg)
	}
	return nil
}

func (r *Runner) acquireFailed(ctx context.Context, st *LoopState, in modules.Input, err error) error {
	st.AcquireFailures++
	st.Failures++
	level := slog.LevelDebug
	if st.Failures == 1 || st.AcquireFailures%30 == 0 {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "acquisition failed", "input", in.Name(), "error", err, "consecutive", st.Failures)

	if r.p.Fallback != nil && st.Failures >= r.switchAt {
		st.Active = 1 - st.Active
		st.Failures = 0
		r.logger.Warn("switching input", "from", in.Name(), "to", r.input(st).Name())
	}
	return r.sleep(ctx, r.backoff.Next())
}

// Stats summarizes the loop for the dashboard.
func (r *Runner) Stats(st *LoopState) tracking.Stats {
	mean, jitter := r.fps.Stats()
	s := tracking.Stats{
		Input:      r.input(st).Name(),
		FPS:        st.FPS,
		MeanFPS:    mean,
		JitterMs:   jitter,
		Frames:     st.Frames,
		Emitted:    st.Emitted,
		Failures:   st.AcquireFailures,
		Candidates: st.Candidates,
		Selected:   st.Selected,
	}
	if r.p.Async != nil {
		s.OutputDrops = r.p.Async.Drops()
	}
	return s
}
