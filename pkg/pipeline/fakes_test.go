package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-vision/pkg/modules"
	"github.com/teslashibe/go-vision/pkg/settings"
	"github.com/teslashibe/go-vision/pkg/tracking"
	"gocv.io/x/gocv"
)

const testConfig = `
input:
  variant: primary
  width: 64
  height: 48
  fps: 30
threshold:
  variant: scripted
filter:
  chain: []
output:
  variant: recorder
  queue: 0
  timeout: 100ms
tracking:
  num_tracked_contours: 1
retry:
  initial: 10ms
  max: 40ms
  switch_after: 2
`

func mustConfig(t testing.TB, extra map[string]any) *settings.VisionConfig {
	t.Helper()
	doc, err := settings.ParseDocument([]byte(testConfig))
	require.NoError(t, err)
	for k, v := range extra {
		doc.Set(k, v)
	}
	vc, err := settings.FromDocument(doc)
	require.NoError(t, err)
	return vc
}

func blankFrame() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 48, 64, gocv.MatTypeCV8UC3)
}

// fakeInput yields blank frames, or err on every read when err is set.
type fakeInput struct {
	name   string
	err    error
	reads  int
	closed bool
	onRead func(n int)
}

func (f *fakeInput) Name() string { return f.name }

func (f *fakeInput) Read(context.Context) (gocv.Mat, error) {
	f.reads++
	if f.onRead != nil {
		f.onRead(f.reads)
	}
	if f.err != nil {
		return gocv.Mat{}, f.err
	}
	return blankFrame(), nil
}

func (f *fakeInput) Close() error {
	f.closed = true
	return nil
}

// scriptedThreshold returns script[i] on the i-th call and nothing after.
type scriptedThreshold struct {
	script [][]tracking.Object
	calls  int
	err    error
}

func (s *scriptedThreshold) Name() string { return "scripted" }

func (s *scriptedThreshold) Detect(gocv.Mat) ([]tracking.Object, error) {
	if s.err != nil {
		return nil, s.err
	}
	i := s.calls
	s.calls++
	if i < len(s.script) {
		return s.script[i], nil
	}
	return nil, nil
}

// square is a 10x10 target with its top-left corner at (x, y).
func square(x, y int) tracking.Object {
	pts := []image.Point{{x, y}, {x + 10, y}, {x + 10, y + 10}, {x, y + 10}}
	return tracking.Object{
		Contour:  pts,
		Hull:     pts,
		Rect:     tracking.RotatedRect{Center: image.Pt(x+5, y+5), Width: 10, Height: 10},
		Box:      image.Rect(x, y, x+10, y+10),
		Area:     100,
		HullArea: 100,
	}
}

type recorder struct {
	mu     sync.Mutex
	got    []tracking.OutputData
	err    error
	closed bool
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Deliver(_ context.Context, data tracking.OutputData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, data)
	return nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recorder) delivered() []tracking.OutputData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tracking.OutputData(nil), r.got...)
}

// blocks records each Write call as one block.
type blocks struct {
	got [][]byte
}

func (b *blocks) Write(p []byte) (int, error) {
	b.got = append(b.got, append([]byte(nil), p...))
	return len(p), nil
}

type fakeObserver struct {
	frames  int
	targets []tracking.OutputData
	stats   []tracking.Stats
}

func (o *fakeObserver) ObserveFrame([]byte) { o.frames++ }

func (o *fakeObserver) ObserveTarget(d tracking.OutputData) { o.targets = append(o.targets, d) }

func (o *fakeObserver) ObserveStats(s tracking.Stats) { o.stats = append(o.stats, s) }

var errBroken = errors.New("broken")

var (
	_ modules.Input     = (*fakeInput)(nil)
	_ modules.Threshold = (*scriptedThreshold)(nil)
	_ modules.Output    = (*recorder)(nil)
)
