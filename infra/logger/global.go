package logger

import (
	"sync"

	"github.com/mstgnz/mediapay/infra/config"
)

var (
	globalLogger *SystemLogger
	mu           sync.RWMutex
)

// InitGlobalLogger initializes the global system logger. sink may be nil.
func InitGlobalLogger(sink Sink) {
	environment := config.GetEnv("ENVIRONMENT", "development")
	conf := SystemLoggerConfig{
		EnableConsole: true,
		JSON:          environment != "development",
		MinLevel:      LogLevel(config.GetEnv("LOG_LEVEL", string(LevelInfo))),
		Service:       "mediapay",
		Version:       config.GetEnv("APP_VERSION", "1.0.0"),
		Environment:   environment,
	}

	// Adjust log level based on environment
	if environment == "development" && config.GetEnv("LOG_LEVEL", "") == "" {
		conf.MinLevel = LevelDebug
	}

	SetGlobalLogger(NewSystemLogger(sink, conf))
}

// SetGlobalLogger replaces the global logger
func SetGlobalLogger(l *SystemLogger) {
	mu.Lock()
	defer mu.Unlock()
	globalLogger = l
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *SystemLogger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		// Fallback to console-only logger if not initialized
		globalLogger = NewSystemLogger(nil, SystemLoggerConfig{
			EnableConsole: true,
			MinLevel:      LevelInfo,
			Service:       "mediapay",
			Version:       "1.0.0",
			Environment:   "development",
		})
	}
	return globalLogger
}

// Convenience functions for global logging

// Debug logs a debug message using the global logger
func Debug(message string, ctx ...LogContext) {
	GetGlobalLogger().log(LevelDebug, message, nil, ctx...)
}

// Info logs an info message using the global logger
func Info(message string, ctx ...LogContext) {
	GetGlobalLogger().log(LevelInfo, message, nil, ctx...)
}

// Warn logs a warning message using the global logger
func Warn(message string, ctx ...LogContext) {
	GetGlobalLogger().log(LevelWarn, message, nil, ctx...)
}

// Error logs an error message using the global logger
func Error(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().log(LevelError, message, err, ctx...)
}

// Fatal logs a fatal message using the global logger and exits
func Fatal(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Fatal(message, err, ctx...)
}

// WithContext creates a context logger from the global logger
func WithContext(ctx LogContext) *ContextLogger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithProvider creates a context logger with provider
func WithProvider(provider string) *ContextLogger {
	return WithContext(LogContext{Provider: provider})
}

// WithOrder creates a context logger with order ID and provider
func WithOrder(orderID, provider string) *ContextLogger {
	return WithContext(LogContext{
		OrderID:  orderID,
		Provider: provider,
	})
}
