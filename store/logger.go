package store

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the store package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the store package's logger.
// This must be called before any store is created.
func SetLogger(l *zap.Logger) {
	logger = l
}

// LogObserver writes every lifecycle event to a zap logger at debug level,
// finalizations at info.
type LogObserver struct {
	l *zap.Logger
}

// NewLogObserver creates an observer logging to l.
func NewLogObserver(l *zap.Logger) *LogObserver {
	return &LogObserver{l: l}
}

// OnStoreEvent implements Observer.
func (o *LogObserver) OnStoreEvent(e Event) {
	fields := []zap.Field{
		zap.String("event", e.Type.String()),
		zap.Stringer("id", e.ID),
		zap.String("label", e.Label),
		zap.Int("strong", e.Strong),
		zap.Int("weak", e.Weak),
	}
	if e.Cascade {
		fields = append(fields, zap.Bool("cascade", true))
	}
	if e.Type == EventFinalized {
		o.l.Info("object finalized", fields...)
		return
	}
	o.l.Debug("store event", fields...)
}
