package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-vision/internal/log"
	"github.com/teslashibe/go-vision/pkg/modules"
	"github.com/teslashibe/go-vision/pkg/tracking"
)

type harness struct {
	runner    *Runner
	primary   *fakeInput
	fallback  *fakeInput
	threshold *scriptedThreshold
	out       *recorder
	stream    *blocks
	observer  *fakeObserver
	sleeps    []time.Duration
}

func newHarness(t *testing.T, script [][]tracking.Object, withFallback bool) *harness {
	t.Helper()
	h := &harness{
		primary:   &fakeInput{name: "primary"},
		threshold: &scriptedThreshold{script: script},
		out:       &recorder{},
		stream:    &blocks{},
		observer:  &fakeObserver{},
	}
	p := &Pipeline{Input: h.primary, Threshold: h.threshold, Output: h.out}
	if withFallback {
		h.fallback = &fakeInput{name: "fallback"}
		p.Fallback = h.fallback
	}
	h.runner = NewRunner(p, mustConfig(t, nil), Options{Stream: h.stream, Observer: h.observer}, log.Discard())
	h.runner.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	return h
}

func (h *harness) cycles(t *testing.T, st *LoopState, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, h.runner.Cycle(context.Background(), st))
		assert.Equal(t, PhaseIdle, st.Phase)
	}
}

func requireJPEGBlocks(t *testing.T, b *blocks, n int) {
	t.Helper()
	require.Len(t, b.got, n)
	for i, blk := range b.got {
		require.GreaterOrEqual(t, len(blk), 4, "block %d", i)
		assert.Equal(t, []byte{0xff, 0xd8}, blk[:2], "block %d is not a JPEG", i)
		assert.Equal(t, []byte{0xff, 0xd9}, blk[len(blk)-2:], "block %d is truncated", i)
	}
}

func TestRunnerSingleTargetEmittedOnce(t *testing.T) {
	target := []tracking.Object{square(10, 10)}
	h := newHarness(t, [][]tracking.Object{target, target, target}, false)

	st := &LoopState{}
	h.cycles(t, st, 3)

	got := h.out.delivered()
	require.Len(t, got, 1)
	assert.Equal(t, [2]float64{10, 10}, got[0].RawCenter)
	assert.Equal(t, uint64(3), st.Frames)
	assert.Equal(t, uint64(1), st.Emitted)
	assert.Equal(t, 1, st.Selected)
	requireJPEGBlocks(t, h.stream, 3)

	assert.Equal(t, 3, h.observer.frames)
	assert.Equal(t, got, h.observer.targets)
	require.Len(t, h.observer.stats, 3)
	last := h.observer.stats[2]
	assert.Equal(t, "primary", last.Input)
	assert.Equal(t, uint64(3), last.Frames)
	assert.Greater(t, last.FPS, 0.0)
}

func TestRunnerEmptyFramesStillStream(t *testing.T) {
	h := newHarness(t, nil, false)
	st := &LoopState{}
	h.cycles(t, st, 5)

	assert.Empty(t, h.out.delivered())
	assert.Equal(t, uint64(0), st.Emitted)
	requireJPEGBlocks(t, h.stream, 5)
}

func TestRunnerEmitsOnChange(t *testing.T) {
	a := []tracking.Object{square(10, 10)}
	b := []tracking.Object{square(30, 20)}
	h := newHarness(t, [][]tracking.Object{a, a, b, nil, b, a}, false)

	st := &LoopState{}
	h.cycles(t, st, 6)

	var xs []float64
	for _, d := range h.out.delivered() {
		xs = append(xs, d.RawCenter[0])
	}
	assert.Equal(t, []float64{10, 30, 10}, xs)
	assert.Equal(t, tracking.Point{X: 10, Y: 10}, st.Gate.Last())
}

func TestRunnerAcquireFailureBacksOffAndSwitches(t *testing.T) {
	h := newHarness(t, [][]tracking.Object{{square(10, 10)}}, true)
	h.primary.err = modules.ErrNoFrame

	st := &LoopState{}
	h.cycles(t, st, 2)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, h.sleeps)
	assert.Equal(t, 1, st.Active, "two failures should switch to the fallback")
	assert.Equal(t, uint64(2), st.AcquireFailures)
	assert.Equal(t, uint64(0), st.Frames)
	assert.Empty(t, h.stream.got, "failed acquisitions must not stream")

	h.cycles(t, st, 1)
	assert.Equal(t, 1, h.fallback.reads)
	assert.Equal(t, uint64(1), st.Frames)
	assert.Equal(t, 0, h.runner.backoff.Attempts(), "success resets the backoff")
	assert.Len(t, h.out.delivered(), 1)
	requireJPEGBlocks(t, h.stream, 1)

	// The fallback fails too: after two more failures the loop goes back.
	h.fallback.err = errBroken
	h.primary.err = nil
	h.cycles(t, st, 2)
	assert.Equal(t, 0, st.Active)
	h.cycles(t, st, 1)
	assert.Equal(t, uint64(2), st.Frames)
}

func TestRunnerBackoffCaps(t *testing.T) {
	h := newHarness(t, nil, false)
	h.primary.err = errBroken

	st := &LoopState{}
	h.cycles(t, st, 5)
	assert.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		40 * time.Millisecond,
		40 * time.Millisecond,
	}, h.sleeps)
	assert.Equal(t, 0, st.Active, "no fallback configured")
}

func TestRunnerThresholdErrorIsFatal(t *testing.T) {
	h := newHarness(t, nil, false)
	h.threshold.err = errBroken

	err := h.runner.Run(context.Background())
	require.ErrorIs(t, err, errBroken)
	assert.Contains(t, err.Error(), "threshold scripted")
	assert.Empty(t, h.stream.got)
}

func TestRunnerDeliveryFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, [][]tracking.Object{{square(10, 10)}, {square(20, 10)}}, false)
	h.out.err = errBroken

	st := &LoopState{}
	h.cycles(t, st, 2)
	assert.Equal(t, uint64(2), st.Emitted)
	requireJPEGBlocks(t, h.stream, 2)
}

func TestRunnerRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.primary.onRead = func(n int) {
		if n == 4 {
			cancel()
		}
	}

	// The frame read when the context is cancelled still completes its cycle.
	require.NoError(t, h.runner.Run(ctx))
	assert.Len(t, h.stream.got, 4)
	assert.Equal(t, 4, h.primary.reads)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "no_target", PhaseNoTarget.String())
	assert.Equal(t, "phase(99)", Phase(99).String())
}
