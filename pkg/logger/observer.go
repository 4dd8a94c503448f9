package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Logs is the read side of an observer logger. Context fields stored with
// ContextWithFields show up in each entry's ContextMap.
type Logs interface {
	Len() int
	All() []observer.LoggedEntry
	TakeAll() []observer.LoggedEntry
	FilterMessage(msg string) *observer.ObservedLogs
	FilterFieldKey(key string) *observer.ObservedLogs

	// Messages returns the message of every entry, oldest first.
	Messages() []string
	// Field returns key from the first entry logged with msg.
	Field(msg, key string) (any, bool)
}

type observedLogs struct {
	*observer.ObservedLogs
}

func (o observedLogs) Messages() []string {
	entries := o.All()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func (o observedLogs) Field(msg, key string) (any, bool) {
	entries := o.FilterMessage(msg).All()
	if len(entries) == 0 {
		return nil, false
	}
	v, ok := entries[0].ContextMap()[key]
	return v, ok
}

// NewObserverLogger returns a logger recording entries at level and above in memory. An
// unknown level records everything.
func NewObserverLogger(level string) (Logger, Logs) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.DebugLevel
	}

	core, logs := observer.New(lvl)
	return &ZapLogger{Logger: zap.New(core)}, observedLogs{logs}
}
