// Package logger provides a thin, structured wrapper around logrus shared by
// every component of the replication engine.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger so call sites depend on this package, not logrus
// directly, and can be swapped without touching callers.
type Logger struct {
	*logrus.Logger
	component string
}

// Config controls level, format and destination of a Logger.
type Config struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	Output    string `mapstructure:"output"`
	Directory string `mapstructure:"directory"`
}

// New builds a Logger from Config. Unknown levels fall back to Info; unknown
// formats fall back to text.
func New(component string, cfg Config) *Logger {
	base := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch strings.ToLower(cfg.Output) {
	case "file":
		dir := cfg.Directory
		if dir == "" {
			dir = "logs"
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			base.Errorf("create log directory %s: %v", dir, err)
			break
		}
		path := filepath.Join(dir, component+".log")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			base.Errorf("open log file %s: %v", path, err)
			break
		}
		base.SetOutput(io.MultiWriter(os.Stdout, file))
	default:
		base.SetOutput(os.Stdout)
	}

	return &Logger{Logger: base, component: component}
}

// NewDefault returns a reasonable stdout/text/info logger for callers that do
// not carry explicit configuration (tests, ad-hoc tools).
func NewDefault(component string) *Logger {
	return New(component, Config{Level: "info", Format: "text", Output: "stdout"})
}

// WithField returns a new entry scoped to this logger's component plus field.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField("component", l.component).WithField(key, value)
}

// WithFields returns a new entry scoped to this logger's component plus fields.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	fields["component"] = l.component
	return l.Logger.WithFields(fields)
}

// WithError returns a new entry carrying the error field.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithField("component", l.component).WithError(err)
}
