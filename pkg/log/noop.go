package log

// NoopLogger is a Logger that drops everything. It backs the nil-logger
// default throughout the client so callers never need a nil check.
type NoopLogger struct{}

// NewNoopLogger returns a logger that discards all output.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

func (NoopLogger) Debug(msg string, fields ...Field) {}
func (NoopLogger) Info(msg string, fields ...Field)  {}
func (NoopLogger) Warn(msg string, fields ...Field)  {}
func (NoopLogger) Error(msg string, fields ...Field) {}
