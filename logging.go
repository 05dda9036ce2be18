package gozk

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// logger is the minimal logging surface the transports and client use, so
// callers who already carry a compatible logger can pass it straight in.
type logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
}

// logrusLogger adapts a *logrus.Logger to the logger interface, with
// output optionally split to a rotating file via lumberjack.
type logrusLogger struct {
	l *logrus.Logger
}

func (g *logrusLogger) Info(v ...interface{})                 { g.l.Info(v...) }
func (g *logrusLogger) Infof(format string, v ...interface{})  { g.l.Infof(format, v...) }
func (g *logrusLogger) Debug(v ...interface{})                { g.l.Debug(v...) }
func (g *logrusLogger) Debugf(format string, v ...interface{}) { g.l.Debugf(format, v...) }
func (g *logrusLogger) Error(v ...interface{})                { g.l.Error(v...) }
func (g *logrusLogger) Errorf(format string, v ...interface{}) { g.l.Errorf(format, v...) }

// LoggerConfig configures NewLogger; zero value yields an Info-level
// text logger writing to stderr.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	FilePath   string `mapstructure:"filePath"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays"`
}

// NewLogger builds the default logrus-backed logger used by Client when
// none is injected.
func NewLogger(cfg LoggerConfig) logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.ToLower(cfg.Format) == "json" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	} else {
		l.SetFormatter(&logrus.TextFormatter{TimestampFormat: "2006-01-02 15:04:05", FullTimestamp: true})
	}

	if cfg.FilePath != "" {
		l.SetOutput(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    maxOr(cfg.MaxSizeMB, 50),
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
	} else {
		l.SetOutput(os.Stderr)
	}

	return &logrusLogger{l: l}
}

func maxOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// nopLogger discards everything; used in tests that don't want device
// chatter on stderr.
type nopLogger struct{}

func (nopLogger) Info(v ...interface{})                 {}
func (nopLogger) Infof(format string, v ...interface{})  {}
func (nopLogger) Debug(v ...interface{})                {}
func (nopLogger) Debugf(format string, v ...interface{}) {}
func (nopLogger) Error(v ...interface{})                {}
func (nopLogger) Errorf(format string, v ...interface{}) {}

func newNopLogger() logger { return nopLogger{} }
