// Package log provides the structured logging abstraction used by every
// distsolve component.
//
// Components accept a [Logger] and never import a concrete logging library.
// Two implementations are provided: a zerolog adapter for processes and a
// no-op logger, which is the library default.
//
//	logger := log.NewZerologAdapter(os.Stderr, "debug")
//	ctl, err := master.New(prediffers, solvers, master.WithLogger(logger))
//
// # Custom Loggers
//
// Implement the Logger interface to route messages elsewhere:
//
//	func (l *MyLogger) Info(msg string, fields ...log.Field) { ... }
package log
