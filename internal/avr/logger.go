package avr

import "sync"

// Logger is the logging interface used across the package.
// It is satisfied by *logging.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// nopLogger discards everything; used when no logger is configured.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// syncLogger lets the logger be replaced after the components holding it
// were built.
type syncLogger struct {
	mu sync.RWMutex
	l  Logger
}

func newSyncLogger(l Logger) *syncLogger {
	if l == nil {
		l = nopLogger{}
	}
	return &syncLogger{l: l}
}

func (s *syncLogger) set(l Logger) {
	if l == nil {
		l = nopLogger{}
	}
	s.mu.Lock()
	s.l = l
	s.mu.Unlock()
}

func (s *syncLogger) get() Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.l
}

func (s *syncLogger) Debug(msg string, kv ...any) { s.get().Debug(msg, kv...) }
func (s *syncLogger) Info(msg string, kv ...any)  { s.get().Info(msg, kv...) }
func (s *syncLogger) Warn(msg string, kv ...any)  { s.get().Warn(msg, kv...) }
func (s *syncLogger) Error(msg string, kv ...any) { s.get().Error(msg, kv...) }
