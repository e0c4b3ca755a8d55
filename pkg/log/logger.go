package log

// Logger receives protocol events. Endpoints call Log from their processing
// passes, so implementations must return quickly and be safe for
// concurrent use.
type Logger interface {
	Log(event Event)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(Event)

// Log calls f(event).
func (f LoggerFunc) Log(event Event) { f(event) }

// NoopLogger discards every event.
type NoopLogger struct{}

// Log does nothing.
func (NoopLogger) Log(Event) {}

// OrNoop returns l, or NoopLogger when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return l
}

// Tee returns a Logger that hands each event to every non-nil, non-noop
// logger in order. Nested tees are flattened. With nothing left it returns
// NoopLogger, with a single logger that logger itself.
func Tee(loggers ...Logger) Logger {
	var out tee
	for _, l := range loggers {
		switch l := l.(type) {
		case nil, NoopLogger, *NoopLogger:
		case tee:
			out = append(out, l...)
		default:
			out = append(out, l)
		}
	}
	switch len(out) {
	case 0:
		return NoopLogger{}
	case 1:
		return out[0]
	}
	return out
}

type tee []Logger

func (t tee) Log(event Event) {
	for _, l := range t {
		l.Log(event)
	}
}
