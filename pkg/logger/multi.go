package logger

// MultiLogger fans each message out to several sinks in order. A headless
// run pairs stdout, which a service manager captures, with the msettings
// log file so both carry the same update and scheduler lines.
type MultiLogger struct {
	sinks []Logger
}

// NewMultiLogger returns a MultiLogger over sinks. Nil sinks are dropped.
func NewMultiLogger(sinks ...Logger) *MultiLogger {
	m := &MultiLogger{sinks: make([]Logger, 0, len(sinks))}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiLogger) Info(format string, args ...interface{}) {
	for _, s := range m.sinks {
		s.Info(format, args...)
	}
}

func (m *MultiLogger) Warning(format string, args ...interface{}) {
	for _, s := range m.sinks {
		s.Warning(format, args...)
	}
}

func (m *MultiLogger) Error(format string, args ...interface{}) {
	for _, s := range m.sinks {
		s.Error(format, args...)
	}
}

// Close closes every sink, so the log file is flushed even when stdout
// fails, and reports the first error.
func (m *MultiLogger) Close() error {
	var first error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ Logger = (*MultiLogger)(nil)
