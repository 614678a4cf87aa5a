// Package logging centralizes logger construction so every component logs
// with the same format and a single verbosity knob.
//
// Verbosity levels (in increasing order): 0 errors, 1 info, 2 debug, 3 trace.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a configured logger. Verbosity is typically set once from the
// CLI flag or SERVER config at startup.
func New(verbosity int) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	log.SetLevel(level(verbosity))
	return log
}

func level(verbosity int) logrus.Level {
	switch {
	case verbosity <= 0:
		return logrus.ErrorLevel
	case verbosity == 1:
		return logrus.InfoLevel
	case verbosity == 2:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}
