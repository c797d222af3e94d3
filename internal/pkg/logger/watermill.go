package logger

import (
	"github.com/ThreeDotsLabs/watermill"
)

// WatermillAdapter routes watermill's internal logging through ILogger so the
// session bus shares the application log.
type WatermillAdapter struct {
	log    ILogger
	module string
	fields watermill.LogFields
}

var _ watermill.LoggerAdapter = (*WatermillAdapter)(nil)

func NewWatermillAdapter(log ILogger, module string) *WatermillAdapter {
	return &WatermillAdapter{log: log, module: module}
}

func (w *WatermillAdapter) details(fields watermill.LogFields) map[string]interface{} {
	out := make(map[string]interface{}, len(w.fields)+len(fields))
	for k, v := range w.fields {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (w *WatermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	d := w.details(fields)
	if err != nil {
		d["error"] = err.Error()
	}
	w.log.Error(w.module, msg, d)
}

func (w *WatermillAdapter) Info(msg string, fields watermill.LogFields) {
	w.log.Info(w.module, msg, w.details(fields))
}

func (w *WatermillAdapter) Debug(msg string, fields watermill.LogFields) {
	w.log.Debug(w.module, msg, w.details(fields))
}

// Trace is folded into Debug; zap has no lower level.
func (w *WatermillAdapter) Trace(msg string, fields watermill.LogFields) {
	w.log.Debug(w.module, msg, w.details(fields))
}

func (w *WatermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillAdapter{
		log:    w.log,
		module: w.module,
		fields: w.fields.Add(fields),
	}
}
