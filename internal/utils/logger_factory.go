package utils

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logLevelDebugStringConstant          = "debug"
	logLevelInfoStringConstant           = "info"
	logLevelWarnStringConstant           = "warn"
	logLevelErrorStringConstant          = "error"
	logFormatStructuredStringConstant    = "structured"
	logFormatConsoleStringConstant       = "console"
	timestampFieldNameConstant           = "timestamp"
	unsupportedLogLevelTemplateConstant  = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant = "unsupported log format: %s"
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Exported log level constants for reuse across packages.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Exported log format constants for reuse across packages.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

var zapLevelsByLogLevel = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

// LoggerSettings selects the verbosity, encoding, and destination of a logger.
// Output defaults to stderr so that reports written to stdout stay clean.
type LoggerSettings struct {
	Level  LogLevel
	Format LogFormat
	Output zapcore.WriteSyncer
	Fields []zap.Field
}

// LoggerFactory builds zap.Logger instances with consistent configuration.
type LoggerFactory struct{}

// NewLoggerFactory constructs a new logger factory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// ParseLogLevel matches a level name case-insensitively.
func ParseLogLevel(value string) (LogLevel, error) {
	normalizedLevel := LogLevel(strings.ToLower(strings.TrimSpace(value)))
	if _, known := zapLevelsByLogLevel[normalizedLevel]; !known {
		return "", fmt.Errorf(unsupportedLogLevelTemplateConstant, value)
	}
	return normalizedLevel, nil
}

// ParseLogFormat matches a format name case-insensitively.
func ParseLogFormat(value string) (LogFormat, error) {
	normalizedFormat := LogFormat(strings.ToLower(strings.TrimSpace(value)))
	switch normalizedFormat {
	case LogFormatStructured, LogFormatConsole:
		return normalizedFormat, nil
	default:
		return "", fmt.Errorf(unsupportedLogFormatTemplateConstant, value)
	}
}

// Build assembles a logger from settings. Sampling stays off: per-file
// validation entries share one message and every entry must be kept.
func (factory *LoggerFactory) Build(settings LoggerSettings) (*zap.Logger, error) {
	logLevel, levelError := ParseLogLevel(string(settings.Level))
	if levelError != nil {
		return nil, levelError
	}
	logFormat, formatError := ParseLogFormat(string(settings.Format))
	if formatError != nil {
		return nil, formatError
	}

	output := settings.Output
	if output == nil {
		output = zapcore.Lock(os.Stderr)
	}

	encoderConfiguration := zap.NewProductionEncoderConfig()
	encoderConfiguration.TimeKey = timestampFieldNameConstant
	encoderConfiguration.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	loggerOptions := []zap.Option{zap.AddCaller()}
	switch logFormat {
	case LogFormatConsole:
		encoderConfiguration.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfiguration)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfiguration)
		loggerOptions = append(loggerOptions, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	core := zapcore.NewCore(encoder, output, zap.NewAtomicLevelAt(zapLevelsByLogLevel[logLevel]))
	logger := zap.New(core, loggerOptions...)
	if len(settings.Fields) > 0 {
		logger = logger.With(settings.Fields...)
	}
	return logger, nil
}
