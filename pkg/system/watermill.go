package system

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// WatermillLogger routes watermill's internal logging through zap.
type WatermillLogger struct {
	log *zap.SugaredLogger
}

func NewWatermillLogger(log *zap.SugaredLogger) *WatermillLogger {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &WatermillLogger{log: log}
}

func (w *WatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.log.Errorw(msg, append(flatten(fields), "error", err)...)
}

func (w *WatermillLogger) Info(msg string, fields watermill.LogFields) {
	w.log.Infow(msg, flatten(fields)...)
}

func (w *WatermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.log.Debugw(msg, flatten(fields)...)
}

// Trace maps to debug; zap has no trace level.
func (w *WatermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.log.Debugw(msg, flatten(fields)...)
}

func (w *WatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillLogger{log: w.log.With(flatten(fields)...)}
}

func flatten(fields watermill.LogFields) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}
