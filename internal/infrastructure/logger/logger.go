package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap logger with the analyzer's contextual fields
type Logger struct {
	*zap.Logger
}

// NewLogger creates a JSON production logger; unknown levels fall back to info
func NewLogger(level string) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: zl}, nil
}

// NewNop returns a logger that discards everything, for tests and tools
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

func parseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// WithComponent adds a component field to the logger
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("component", component))}
}

// WithAccount adds an account_id field to the logger
func (l *Logger) WithAccount(accountID string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("account_id", accountID))}
}

// WithRequest adds the request and account of a queued analysis request
func (l *Logger) WithRequest(requestID, accountID string) *Logger {
	return &Logger{Logger: l.Logger.With(
		zap.String("request_id", requestID),
		zap.String("account_id", accountID),
	)}
}
