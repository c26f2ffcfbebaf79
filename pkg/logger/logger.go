package logger

import (
	"log"
	"log/slog"
)

// New returns a stdlib *log.Logger that forwards to the structured logger
// with a component attribute, for APIs such as http.Server.ErrorLog that
// only accept the stdlib type.
func New(base *slog.Logger, component string) *log.Logger {
	if base == nil {
		base = slog.Default()
	}
	return slog.NewLogLogger(base.With("component", component).Handler(), slog.LevelError)
}
