package logger

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
	LevelFatal LogLevel = "fatal"
)

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// SystemLog is the document shipped to the remote sink
type SystemLog struct {
	Timestamp   time.Time      `json:"timestamp"`
	Level       LogLevel       `json:"level"`
	Message     string         `json:"message"`
	OrderID     string         `json:"order_id,omitempty"`
	Provider    string         `json:"provider,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	Error       string         `json:"error,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
	Environment string         `json:"environment"`
	Service     string         `json:"service"`
	Version     string         `json:"version"`
}

// Sink receives a copy of every log entry at or above the minimum level
type Sink interface {
	LogSystemEvent(ctx context.Context, entry any) error
}

// SystemLoggerConfig represents configuration for system logger
type SystemLoggerConfig struct {
	EnableConsole bool
	JSON          bool
	MinLevel      LogLevel
	Service       string
	Version       string
	Environment   string
}

// SystemLogger writes structured logs through zap and optionally mirrors them to a Sink
type SystemLogger struct {
	zap         *zap.Logger
	sink        Sink
	minLevel    LogLevel
	service     string
	version     string
	environment string
}

// NewSystemLogger creates a new system logger. sink may be nil.
func NewSystemLogger(sink Sink, config SystemLoggerConfig) *SystemLogger {
	var core zapcore.Core = zapcore.NewNopCore()
	if config.EnableConsole {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "ts"
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.999999Z07:00")
		encCfg.EncodeCaller = zapcore.ShortCallerEncoder

		var enc zapcore.Encoder
		if config.JSON {
			enc = zapcore.NewJSONEncoder(encCfg)
		} else {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
			enc = zapcore.NewConsoleEncoder(encCfg)
		}
		core = zapcore.NewCore(enc, zapcore.Lock(os.Stdout), config.MinLevel.zapLevel())
	}

	return NewSystemLoggerWithZap(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)), sink, config)
}

// NewSystemLoggerWithZap wraps an existing zap logger, mainly for tests using zaptest/observer
func NewSystemLoggerWithZap(z *zap.Logger, sink Sink, config SystemLoggerConfig) *SystemLogger {
	if config.MinLevel == "" {
		config.MinLevel = LevelInfo
	}
	return &SystemLogger{
		zap: z.With(
			zap.String("service", config.Service),
			zap.String("environment", config.Environment),
		),
		sink:        sink,
		minLevel:    config.MinLevel,
		service:     config.Service,
		version:     config.Version,
		environment: config.Environment,
	}
}

// LogContext holds contextual information for logging
type LogContext struct {
	OrderID   string
	Provider  string
	RequestID string
	Fields    map[string]any
}

func (c LogContext) zapFields(err error) []zap.Field {
	fields := make([]zap.Field, 0, len(c.Fields)+4)
	if c.OrderID != "" {
		fields = append(fields, zap.String("order_id", c.OrderID))
	}
	if c.Provider != "" {
		fields = append(fields, zap.String("provider", c.Provider))
	}
	if c.RequestID != "" {
		fields = append(fields, zap.String("request_id", c.RequestID))
	}
	for k, v := range c.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	return fields
}

// Debug logs a debug message
func (sl *SystemLogger) Debug(message string, ctx ...LogContext) {
	sl.log(LevelDebug, message, nil, ctx...)
}

// Info logs an info message
func (sl *SystemLogger) Info(message string, ctx ...LogContext) {
	sl.log(LevelInfo, message, nil, ctx...)
}

// Warn logs a warning message
func (sl *SystemLogger) Warn(message string, ctx ...LogContext) {
	sl.log(LevelWarn, message, nil, ctx...)
}

// Error logs an error message
func (sl *SystemLogger) Error(message string, err error, ctx ...LogContext) {
	sl.log(LevelError, message, err, ctx...)
}

// Fatal logs a fatal message and exits
func (sl *SystemLogger) Fatal(message string, err error, ctx ...LogContext) {
	sl.log(LevelFatal, message, err, ctx...)
	_ = sl.zap.Sync()
	os.Exit(1)
}

// Sync flushes buffered console output
func (sl *SystemLogger) Sync() error {
	return sl.zap.Sync()
}

func (sl *SystemLogger) log(level LogLevel, message string, err error, ctx ...LogContext) {
	if level.zapLevel() < sl.minLevel.zapLevel() {
		return
	}

	logCtx := LogContext{}
	if len(ctx) > 0 {
		logCtx = ctx[0]
	}
	fields := logCtx.zapFields(err)

	// Fatal goes through Error so that zap does not exit before the sink is fed
	switch level {
	case LevelDebug:
		sl.zap.Debug(message, fields...)
	case LevelInfo:
		sl.zap.Info(message, fields...)
	case LevelWarn:
		sl.zap.Warn(message, fields...)
	default:
		sl.zap.Error(message, fields...)
	}

	if sl.sink == nil {
		return
	}

	entry := SystemLog{
		Timestamp:   time.Now().UTC(),
		Level:       level,
		Message:     message,
		OrderID:     logCtx.OrderID,
		Provider:    logCtx.Provider,
		RequestID:   logCtx.RequestID,
		Fields:      copyFields(logCtx.Fields),
		Environment: sl.environment,
		Service:     sl.service,
		Version:     sl.version,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	if level == LevelFatal {
		sl.logToSink(entry)
		return
	}
	go sl.logToSink(entry)
}

func copyFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (sl *SystemLogger) logToSink(entry SystemLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sl.sink.LogSystemEvent(ctx, entry); err != nil {
		sl.zap.Warn("Failed to ship log entry", zap.Error(err))
	}
}

// WithContext creates a new logger with context
func (sl *SystemLogger) WithContext(ctx LogContext) *ContextLogger {
	return &ContextLogger{
		systemLogger: sl,
		context:      ctx,
	}
}

// ContextLogger wraps SystemLogger with context
type ContextLogger struct {
	systemLogger *SystemLogger
	context      LogContext
}

// Debug logs a debug message with context
func (cl *ContextLogger) Debug(message string) {
	cl.systemLogger.log(LevelDebug, message, nil, cl.context)
}

// Info logs an info message with context
func (cl *ContextLogger) Info(message string) {
	cl.systemLogger.log(LevelInfo, message, nil, cl.context)
}

// Warn logs a warning message with context
func (cl *ContextLogger) Warn(message string) {
	cl.systemLogger.log(LevelWarn, message, nil, cl.context)
}

// Error logs an error message with context
func (cl *ContextLogger) Error(message string, err error) {
	cl.systemLogger.log(LevelError, message, err, cl.context)
}

// AddField adds a field to the context
func (cl *ContextLogger) AddField(key string, value any) *ContextLogger {
	fields := make(map[string]any, len(cl.context.Fields)+1)
	for k, v := range cl.context.Fields {
		fields[k] = v
	}
	fields[key] = value
	cl.context.Fields = fields
	return cl
}

// SetOrderID sets the order ID in context
func (cl *ContextLogger) SetOrderID(orderID string) *ContextLogger {
	cl.context.OrderID = orderID
	return cl
}

// SetProvider sets the provider in context
func (cl *ContextLogger) SetProvider(provider string) *ContextLogger {
	cl.context.Provider = provider
	return cl
}

// SetRequestID sets the request ID in context
func (cl *ContextLogger) SetRequestID(requestID string) *ContextLogger {
	cl.context.RequestID = requestID
	return cl
}

// Context returns a copy of the accumulated log context
func (cl *ContextLogger) Context() LogContext {
	return cl.context
}
