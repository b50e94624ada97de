package logging

import (
	"github.com/go-logr/logr"
	"go.temporal.io/sdk/log"
)

// TemporalLogger lets the Temporal client and worker log through logr.
type TemporalLogger struct {
	log logr.Logger
}

var (
	_ log.Logger     = TemporalLogger{}
	_ log.WithLogger = TemporalLogger{}
)

func NewTemporalLogger(l logr.Logger) TemporalLogger {
	return TemporalLogger{log: l.WithName("temporal")}
}

func (t TemporalLogger) Debug(msg string, keyvals ...interface{}) {
	t.log.V(LevelDebug).Info(msg, keyvals...)
}

func (t TemporalLogger) Info(msg string, keyvals ...interface{}) {
	t.log.Info(msg, keyvals...)
}

// Warn has no logr equivalent; it logs at info with a marker.
func (t TemporalLogger) Warn(msg string, keyvals ...interface{}) {
	t.log.Info(msg, append([]interface{}{"warning", true}, keyvals...)...)
}

// Error pulls an "Error" or "error" value out of keyvals when the SDK
// supplies one.
func (t TemporalLogger) Error(msg string, keyvals ...interface{}) {
	var err error
	rest := make([]interface{}, 0, len(keyvals))
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 == len(keyvals) {
			rest = append(rest, keyvals[i])
			break
		}
		key, val := keyvals[i], keyvals[i+1]
		if e, ok := val.(error); ok && err == nil && (key == "Error" || key == "error") {
			err = e
			continue
		}
		rest = append(rest, key, val)
	}
	t.log.Error(err, msg, rest...)
}

func (t TemporalLogger) With(keyvals ...interface{}) log.Logger {
	return TemporalLogger{log: t.log.WithValues(keyvals...)}
}
