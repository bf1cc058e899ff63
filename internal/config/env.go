// Package config provides environment helpers for go-vision commands.
package config

import (
	"fmt"
	"os"
)

// Defaults used when the environment does not say otherwise.
const (
	DefaultConfigPath = "vision.yaml"
	DefaultLogLevel   = "info"
)

// ConfigPath returns the configuration document path from VISION_CONFIG.
// Falls back to the provided default, then DefaultConfigPath.
func ConfigPath(defaultPath string) string {
	if p := os.Getenv("VISION_CONFIG"); p != "" {
		return p
	}
	if defaultPath != "" {
		return defaultPath
	}
	return DefaultConfigPath
}

// NTServer returns the NetworkTables server override from NT_SERVER.
// Empty means "use the configuration document".
func NTServer() string {
	return os.Getenv("NT_SERVER")
}

// LogLevel returns the level from LOG_LEVEL, or the provided default.
func LogLevel(defaultLevel string) string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	if defaultLevel != "" {
		return defaultLevel
	}
	return DefaultLogLevel
}

// ConfigPathRequired returns an existing configuration path or exits.
func ConfigPathRequired(path string) string {
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: configuration document %q not found\n", path)
		fmt.Fprintln(os.Stderr, "Usage: VISION_CONFIG=/etc/vision.yaml go run ./cmd/vision")
		os.Exit(1)
	}
	return path
}
