package settings

import (
	"fmt"
	"os"
	"time"
)

// Pi camera v2 field of view, degrees.
const (
	DefaultHFOV = 62.2
	DefaultVFOV = 48.8
)

// VisionConfig is the immutable, typed view of the configuration document.
// Variant-specific parameter blocks stay in Doc and are read by each
// variant's constructor.
type VisionConfig struct {
	Input    InputConfig    `json:"input"`
	Pipeline PipelineNames  `json:"pipeline"`
	Tracking TrackingConfig `json:"tracking"`
	Output   OutputConfig   `json:"output"`
	Retry    RetryConfig    `json:"retry"`
	Stream   StreamConfig   `json:"stream"`
	Web      WebConfig      `json:"web"`
	LogLevel string         `json:"log_level"`

	Doc *Document `json:"-"`
}

// InputConfig holds frame geometry and capture settings.
type InputConfig struct {
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	FPS        int      `json:"fps"`
	Brightness *float64 `json:"brightness,omitempty"`
	Contrast   *float64 `json:"contrast,omitempty"`
	HFOV       float64  `json:"hfov"`
	VFOV       float64  `json:"vfov"`
}

// PipelineNames are the selected variant names for each capability role.
type PipelineNames struct {
	Input     string   `json:"input"`
	Fallback  string   `json:"fallback,omitempty"`
	Threshold string   `json:"threshold"`
	Filters   []string `json:"filters"`
	Output    string   `json:"output"`
}

// TrackingConfig controls target selection.
type TrackingConfig struct {
	NumTracked int `json:"num_tracked_contours"`
}

// OutputConfig controls delivery decoupling.
type OutputConfig struct {
	Queue   int           `json:"queue"`
	Timeout time.Duration `json:"timeout"`
}

// RetryConfig bounds the acquisition backoff.
type RetryConfig struct {
	Initial     time.Duration `json:"initial"`
	Max         time.Duration `json:"max"`
	SwitchAfter int           `json:"switch_after"`
}

// StreamConfig controls the encoded frame stream on stdout.
type StreamConfig struct {
	Enabled bool    `json:"enabled"`
	Quality int     `json:"quality"`
	Scale   float64 `json:"scale"`
}

// WebConfig controls the optional dashboard.
type WebConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// Load reads and validates the document at path.
func Load(path string) (*VisionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a document.
func Parse(data []byte) (*VisionConfig, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc)
}

// FromDocument builds the typed view. Every error is a *KeyError.
func FromDocument(doc *Document) (*VisionConfig, error) {
	r := &reader{doc: doc}
	c := &VisionConfig{Doc: doc}

	c.Pipeline.Input = r.str("input.variant")
	c.Pipeline.Fallback = r.strOr("input.fallback", "")
	c.Pipeline.Threshold = r.str("threshold.variant")
	c.Pipeline.Filters = r.strs("filter.chain")
	c.Pipeline.Output = r.str("output.variant")

	c.Input.Width = r.integer("input.width")
	c.Input.Height = r.integer("input.height")
	c.Input.FPS = r.integer("input.fps")
	c.Input.Brightness = r.optFloat("input.brightness")
	c.Input.Contrast = r.optFloat("input.contrast")
	c.Input.HFOV = r.floatOr("input.fov.horizontal", DefaultHFOV)
	c.Input.VFOV = r.floatOr("input.fov.vertical", DefaultVFOV)

	c.Tracking.NumTracked = r.integer("tracking.num_tracked_contours")

	c.Output.Queue = r.integerOr("output.queue", 8)
	c.Output.Timeout = r.durOr("output.timeout", 250*time.Millisecond)

	c.Retry.Initial = r.durOr("retry.initial", 10*time.Millisecond)
	c.Retry.Max = r.durOr("retry.max", time.Second)
	c.Retry.SwitchAfter = r.integerOr("retry.switch_after", 5)

	c.Stream.Enabled = r.boolOr("stream.enabled", true)
	c.Stream.Quality = r.integerOr("stream.quality", 75)
	c.Stream.Scale = r.floatOr("stream.scale", 1.0)

	c.Web.Enabled = r.boolOr("web.enabled", false)
	c.Web.Addr = r.strOr("web.addr", ":5800")

	c.LogLevel = r.strOr("log.level", "info")

	if r.err != nil {
		return nil, r.err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// reader keeps the first error so FromDocument reads top to bottom.
type reader struct {
	doc *Document
	err error
}

func (r *reader) keep(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) str(path string) string {
	if r.err != nil {
		return ""
	}
	v, err := r.doc.String(path)
	r.keep(err)
	return v
}

func (r *reader) strOr(path, def string) string {
	if r.err != nil {
		return def
	}
	v, err := r.doc.StringOr(path, def)
	r.keep(err)
	return v
}

func (r *reader) strs(path string) []string {
	if r.err != nil {
		return nil
	}
	v, err := r.doc.Strings(path)
	r.keep(err)
	return v
}

func (r *reader) integer(path string) int {
	if r.err != nil {
		return 0
	}
	v, err := r.doc.Int(path)
	r.keep(err)
	return v
}

func (r *reader) integerOr(path string, def int) int {
	if r.err != nil {
		return def
	}
	v, err := r.doc.IntOr(path, def)
	r.keep(err)
	return v
}

func (r *reader) floatOr(path string, def float64) float64 {
	if r.err != nil {
		return def
	}
	v, err := r.doc.FloatOr(path, def)
	r.keep(err)
	return v
}

func (r *reader) optFloat(path string) *float64 {
	if r.err != nil || !r.doc.Has(path) {
		return nil
	}
	v, err := r.doc.Float(path)
	r.keep(err)
	return &v
}

func (r *reader) boolOr(path string, def bool) bool {
	if r.err != nil {
		return def
	}
	v, err := r.doc.BoolOr(path, def)
	r.keep(err)
	return v
}

func (r *reader) durOr(path string, def time.Duration) time.Duration {
	if r.err != nil {
		return def
	}
	v, err := r.doc.DurationOr(path, def)
	r.keep(err)
	return v
}

// Validate checks value constraints that typing alone cannot.
func (c *VisionConfig) Validate() error {
	switch {
	case c.Input.Width <= 0:
		return invalid("input.width", "must be positive", c.Input.Width)
	case c.Input.Height <= 0:
		return invalid("input.height", "must be positive", c.Input.Height)
	case c.Input.FPS <= 0:
		return invalid("input.fps", "must be positive", c.Input.FPS)
	case c.Input.HFOV <= 0 || c.Input.HFOV >= 180:
		return invalid("input.fov.horizontal", "must be in (0, 180) degrees", c.Input.HFOV)
	case c.Input.VFOV <= 0 || c.Input.VFOV >= 180:
		return invalid("input.fov.vertical", "must be in (0, 180) degrees", c.Input.VFOV)
	case c.Tracking.NumTracked < 1:
		return invalid("tracking.num_tracked_contours", "must be at least 1", c.Tracking.NumTracked)
	case c.Output.Queue < 0:
		return invalid("output.queue", "must not be negative", c.Output.Queue)
	case c.Output.Timeout <= 0:
		return invalid("output.timeout", "must be positive", c.Output.Timeout)
	case c.Retry.Initial <= 0 || c.Retry.Max < c.Retry.Initial:
		return invalid("retry.max", "need 0 < initial <= max", c.Retry.Max)
	case c.Retry.SwitchAfter < 1:
		return invalid("retry.switch_after", "must be at least 1", c.Retry.SwitchAfter)
	case c.Stream.Quality < 1 || c.Stream.Quality > 100:
		return invalid("stream.quality", "must be in [1, 100]", c.Stream.Quality)
	case c.Stream.Scale <= 0 || c.Stream.Scale > 1:
		return invalid("stream.scale", "must be in (0, 1]", c.Stream.Scale)
	case c.Pipeline.Fallback != "" && c.Pipeline.Fallback == c.Pipeline.Input:
		return invalid("input.fallback", "must differ from input.variant", c.Pipeline.Fallback)
	}
	return nil
}

// Bounds reads a {min, max} pair from group. Both are required and min < max.
func (d *Document) Bounds(group string) (lo, hi float64, err error) {
	if lo, err = d.Float(group + ".min"); err != nil {
		return 0, 0, err
	}
	if hi, err = d.Float(group + ".max"); err != nil {
		return 0, 0, err
	}
	if lo >= hi {
		return 0, 0, invalid(group+".max", "must be greater than min", hi)
	}
	return lo, hi, nil
}
