package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level is a slog level; the constants below are the ones configuration
// can select.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ParseLevel maps a configured level name to a Level. Unknown names get
// INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format selects the slog handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat maps a configured format name to a Format. "console" is
// accepted as text; anything else is JSON.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "console":
		return FormatText
	default:
		return FormatJSON
	}
}

// Config describes a Logger.
type Config struct {
	Level     Level
	Format    Format
	Output    io.Writer // nil means stderr
	AddSource bool

	// Service and Version are attached to every record.
	Service string
	Version string
}

// DefaultConfig logs INFO and above as JSON to stderr. Stdout is left to
// command output.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Format:  FormatJSON,
		Service: "orchestrator",
		Version: "dev",
	}
}

// ConfigFrom builds a Config from the level and format strings found in
// configuration files and flags.
func ConfigFrom(level, format, version string) Config {
	cfg := DefaultConfig()
	cfg.Level = ParseLevel(level)
	cfg.Format = ParseFormat(format)
	if version != "" {
		cfg.Version = version
	}
	return cfg
}

func (c Config) handler() slog.Handler {
	out := c.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: c.Level, AddSource: c.AddSource}
	if c.Format == FormatText {
		return slog.NewTextHandler(out, opts)
	}
	return slog.NewJSONHandler(out, opts)
}
