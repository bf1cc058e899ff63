package input

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/teslashibe/go-vision/pkg/modules"
	"github.com/teslashibe/go-vision/pkg/settings"
	"gocv.io/x/gocv"
)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true}

// Images replays a directory of stills in name order, paced at a fixed
// interval. It is used for bench tuning against recorded field images.
type Images struct {
	paths    []string
	next     int
	loop     bool
	interval time.Duration
	width    int
	height   int
	last     time.Time
	logger   *slog.Logger
}

// NewImages lists input.images.dir. The interval defaults to one frame
// period at input.fps.
func NewImages(_ context.Context, vc *settings.VisionConfig, logger *slog.Logger) (*Images, error) {
	doc := vc.Doc
	dir, err := doc.String("input.images.dir")
	if err != nil {
		return nil, err
	}
	loop, err := doc.BoolOr("input.images.loop", true)
	if err != nil {
		return nil, err
	}
	interval, err := doc.DurationOr("input.images.interval", time.Second/time.Duration(vc.Input.FPS))
	if err != nil {
		return nil, err
	}

	paths, err := listImages(dir)
	if err != nil {
		return nil, err
	}
	logger.Info("replaying images", "dir", dir, "count", len(paths), "loop", loop)

	return &Images{
		paths:    paths,
		loop:     loop,
		interval: interval,
		width:    vc.Input.Width,
		height:   vc.Input.Height,
		logger:   logger,
	}, nil
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("input: read image dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("input: no images in %s", dir)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *Images) Name() string { return "images" }

// Read waits out the replay interval and returns the next image.
// After the last image, without looping, every Read is ErrNoFrame.
func (s *Images) Read(ctx context.Context) (gocv.Mat, error) {
	if s.next >= len(s.paths) {
		if !s.loop {
			return gocv.Mat{}, modules.ErrNoFrame
		}
		s.next = 0
	}

	if wait := s.interval - time.Since(s.last); wait > 0 && !s.last.IsZero() {
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return gocv.Mat{}, ctx.Err()
		case <-t.C:
		}
	}
	s.last = time.Now()

	path := s.paths[s.next]
	s.next++

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", modules.ErrNoFrame, err)
	}
	if b := img.Bounds(); b.Dx() != s.width || b.Dy() != s.height {
		img = imaging.Resize(img, s.width, s.height, imaging.Lanczos)
	}

	frame, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", modules.ErrNoFrame, err)
	}
	return frame, nil
}

func (s *Images) Close() error { return nil }
