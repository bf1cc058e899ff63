package camera

import (
	"strings"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) > 0 {
		t.Errorf("DefaultConfig() invalid: %v", errs)
	}
}

func TestPresetsValid(t *testing.T) {
	for _, name := range PresetNames() {
		t.Run(name, func(t *testing.T) {
			cfg := GetPreset(name)
			if cfg == nil {
				t.Fatalf("GetPreset(%q) = nil", name)
			}
			if errs := cfg.Validate(); len(errs) > 0 {
				t.Errorf("preset %q invalid: %v", name, errs)
			}
		})
	}
}

func TestGetPresetUnknown(t *testing.T) {
	if GetPreset("moonlight") != nil {
		t.Error("expected nil for unknown preset")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"tiny width", func(c *Config) { c.Width = 100 }, "width"},
		{"fast fps", func(c *Config) { c.FPS = 500 }, "fps"},
		{"brightness over 1", func(c *Config) { c.Brightness = 1.5 }, "brightness"},
		{"manual without exposure", func(c *Config) { c.AutoExposure = false }, "exposure"},
		{"no buffer", func(c *Config) { c.BufferSize = 0 }, "buffer_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(strings.Join(errs, ";"), tt.wantErr) {
				t.Errorf("errors %v do not mention %q", errs, tt.wantErr)
			}
		})
	}
}
