package log

import (
	"io"
	"os"
	"strings"
)

// Format represents the output format for logs
type Format int

const (
	FormatJSON Format = iota
	FormatText
)

func (f Format) String() string {
	if f == FormatText {
		return "text"
	}
	return "json"
}

// ParseFormat parses a format name. "console" is accepted as text.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "console":
		return FormatText
	default:
		return FormatJSON
	}
}

// Output represents where logs should be written
type Output struct {
	writer io.Writer
}

// Writer returns the underlying io.Writer
func (o Output) Writer() io.Writer {
	if o.writer == nil {
		return os.Stderr
	}
	return o.writer
}

// NewOutput creates an Output from an io.Writer
func NewOutput(w io.Writer) Output {
	return Output{writer: w}
}

// OutputStderr writes to stderr. Command output goes to stdout, so logs
// default here.
func OutputStderr() Output {
	return Output{writer: os.Stderr}
}

// Config holds configuration for the logger
type Config struct {
	Level          Level
	Format         Format
	Output         Output
	AddSource      bool
	ServiceName    string
	ServiceVersion string
}

// DefaultConfig logs at info in text format to stderr.
func DefaultConfig() Config {
	return Config{
		Level:          LevelInfo,
		Format:         FormatText,
		Output:         OutputStderr(),
		ServiceName:    "plancraft",
		ServiceVersion: "dev",
	}
}

// DevelopmentConfig logs at debug with source locations.
func DevelopmentConfig() Config {
	c := DefaultConfig()
	c.Level = LevelDebug
	c.AddSource = true
	return c
}

// ProductionConfig logs JSON at info, the shape used by `plancraft serve`.
func ProductionConfig() Config {
	c := DefaultConfig()
	c.Format = FormatJSON
	c.ServiceVersion = "unknown"
	return c
}

// ConfigFrom builds a Config from the string settings found in the
// configuration file.
func ConfigFrom(level, format string, w io.Writer) Config {
	c := DefaultConfig()
	c.Level = ParseLevel(level)
	if format != "" {
		c.Format = ParseFormat(format)
	}
	if w != nil {
		c.Output = NewOutput(w)
	}
	return c
}
