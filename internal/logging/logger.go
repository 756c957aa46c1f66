package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Config holds logger settings
type Config struct {
	Level  string
	Format string
	Writer io.Writer
}

// New creates a logger. Level defaults to info, format to text and the writer to stderr.
func New(config Config) (*log.Logger, error) {
	if config.Writer == nil {
		config.Writer = os.Stderr
	}

	level := log.InfoLevel
	if config.Level != "" {
		parsed, err := log.ParseLevel(strings.ToLower(config.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
		}
		level = parsed
	}

	var formatter log.Formatter
	switch strings.ToLower(config.Format) {
	case "", "text":
		formatter = log.TextFormatter
	case "json":
		formatter = log.JSONFormatter
	default:
		return nil, fmt.Errorf("invalid log format %q", config.Format)
	}

	return log.NewWithOptions(config.Writer, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
		Formatter:       formatter,
	}), nil
}

// Discard returns a logger that drops everything
func Discard() *log.Logger {
	return log.New(io.Discard)
}
