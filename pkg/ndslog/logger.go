// Package ndslog provides the small logging seam used across the ndsrom
// codec and the ndstool CLI. It wraps the standard log package behind a
// narrow interface so callers can swap in their own sink without pulling
// a logging framework into the core codec.
package ndslog

import (
	"log"
	"os"
)

// Logger describes a logger usable throughout the ndsrom codec.
type Logger interface {
	// Warnf logs a warning message.
	Warnf(format string, args ...interface{})

	// Errorf logs an error message.
	Errorf(format string, args ...interface{})
}

// DefaultLogger is the logger used by default everywhere within ndsrom.
var DefaultLogger Logger

func init() {
	DefaultLogger = logWrapper{Logger: log.New(os.Stderr, "", log.LstdFlags)}
}

type logWrapper struct {
	Logger *log.Logger
}

func (l logWrapper) Warnf(format string, args ...interface{}) {
	l.Logger.Printf("[ndsrom][WARN] "+format, args...)
}

func (l logWrapper) Errorf(format string, args ...interface{}) {
	l.Logger.Printf("[ndsrom][ERROR] "+format, args...)
}

// Warnf logs a warning message through the default logger.
func Warnf(format string, args ...interface{}) {
	DefaultLogger.Warnf(format, args...)
}

// Errorf logs an error message through the default logger.
func Errorf(format string, args ...interface{}) {
	DefaultLogger.Errorf(format, args...)
}
