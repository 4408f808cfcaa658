// Package log provides the logging abstraction used by ledgerclient.
//
// The session and the in-process cluster log through the [Logger]
// interface so host applications can route client diagnostics into their
// own logging setup. A zerolog-backed adapter and a no-op logger are
// provided.
//
// Use the zerolog adapter:
//
//	logger := log.NewZerologAdapter()
//
// or silence the client entirely:
//
//	logger := log.NewNoopLogger()
//
// Implement Logger to integrate any other logging library:
//
//	type MyLogger struct{ ... }
//
//	func (l *MyLogger) Debug(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Info(msg string, fields ...log.Field)  { ... }
//	func (l *MyLogger) Warn(msg string, fields ...log.Field)  { ... }
//	func (l *MyLogger) Error(msg string, fields ...log.Field) { ... }
package log
