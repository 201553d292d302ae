package logging

import (
	"log/slog"
	"os"
	"sync"

	"github.com/giygas/pn-calculator/config"
)

// LoggingService owns the process logger and the file it writes to
type LoggingService struct {
	Logger   *slog.Logger
	rotating *RotatingLogger
}

var (
	DefaultLoggingService *LoggingService
	mu                    sync.Mutex
)

// InitLogger initializes the global logger for the dev environment
func InitLogger(logDir string) {
	InitLoggerWithEnvironment(Options{
		LogDir:         logDir,
		Env:            config.EnvDevelopment,
		RetentionWeeks: 4,
		MaxFileSize:    DefaultMaxFileSize,
	})
}

// InitLoggerFromConfig initializes the global logger from the service configuration
func InitLoggerFromConfig(cfg *config.Config) {
	InitLoggerWithEnvironment(Options{
		LogDir:         cfg.LogDir,
		Env:            cfg.Env,
		LogLevel:       cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	})
}

// InitLoggerWithEnvironment replaces the global logger, closing the previous log file
func InitLoggerWithEnvironment(opts Options) {
	logger, rotating := SetupLogger(opts)

	mu.Lock()
	previous := DefaultLoggingService
	DefaultLoggingService = &LoggingService{Logger: logger, rotating: rotating}
	mu.Unlock()

	slog.SetDefault(logger)

	if previous != nil && previous.rotating != nil {
		_ = previous.rotating.Close()
	}
}

// Close flushes and closes the global log file
func Close() {
	mu.Lock()
	svc := DefaultLoggingService
	mu.Unlock()

	if svc != nil && svc.rotating != nil {
		_ = svc.rotating.Close()
	}
}

func current() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return nil
	}
	return DefaultLoggingService.Logger
}

func fallback(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	if l := current(); l != nil {
		l.Info(msg, args...)
		return
	}
	fallback(slog.LevelInfo).Info(msg, args...)
}

func Error(msg string, args ...any) {
	if l := current(); l != nil {
		l.Error(msg, args...)
		return
	}
	fallback(slog.LevelError).Error(msg, args...)
}

func Warn(msg string, args ...any) {
	if l := current(); l != nil {
		l.Warn(msg, args...)
		return
	}
	fallback(slog.LevelWarn).Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	if l := current(); l != nil {
		l.Debug(msg, args...)
		return
	}
	fallback(slog.LevelDebug).Debug(msg, args...)
}

// Logger returns the global logger, or a console fallback before InitLogger
func Logger() *slog.Logger {
	if l := current(); l != nil {
		return l
	}
	return fallback(slog.LevelInfo)
}
