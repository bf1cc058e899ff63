package camera

import "sort"

// Preset names for common field conditions.
const (
	PresetDefault         = "default"
	PresetRetroreflective = "retroreflective"
	PresetDriver          = "driver"
	PresetBright          = "bright"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault:         DefaultConfig(),
		PresetRetroreflective: RetroreflectiveConfig(),
		PresetDriver:          DriverConfig(),
		PresetBright:          BrightConfig(),
	}
}

// PresetNames returns the sorted list of available preset names.
func PresetNames() []string {
	names := make([]string, 0, len(Presets()))
	for name := range Presets() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// RetroreflectiveConfig darkens the scene so only lit reflective tape
// survives the colour threshold.
func RetroreflectiveConfig() Config {
	cfg := DefaultConfig()
	cfg.AutoExposure = false
	cfg.Exposure = 0.02
	cfg.Brightness = 0.3
	cfg.Contrast = 0.6
	cfg.Saturation = 0.8
	return cfg
}

// DriverConfig is tuned for a human watching the annotated stream.
func DriverConfig() Config {
	cfg := DefaultConfig()
	cfg.Brightness = 0.55
	cfg.Contrast = 0.5
	return cfg
}

// BrightConfig keeps highlights from clipping under stage lighting.
func BrightConfig() Config {
	cfg := DefaultConfig()
	cfg.AutoExposure = false
	cfg.Exposure = 0.1
	cfg.Gain = 0
	return cfg
}
