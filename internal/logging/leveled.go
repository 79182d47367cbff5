package logging

import (
	"fmt"
	"log"
)

// Logger is the leveled key/value interface components log through
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Leveled wraps a standard log.Logger to implement Logger
type Leveled struct {
	*log.Logger
}

// NewLeveled wraps logger, falling back to log.Default() when nil
func NewLeveled(logger *log.Logger) *Leveled {
	if logger == nil {
		logger = log.Default()
	}
	return &Leveled{Logger: logger}
}

func (l *Leveled) Info(msg string, args ...interface{}) {
	l.logWithLevel("INFO", msg, args...)
}

func (l *Leveled) Warn(msg string, args ...interface{}) {
	l.logWithLevel("WARN", msg, args...)
}

func (l *Leveled) Error(msg string, args ...interface{}) {
	l.logWithLevel("ERROR", msg, args...)
}

func (l *Leveled) logWithLevel(level, msg string, args ...interface{}) {
	parts := make([]interface{}, 0, len(args)+2)
	parts = append(parts, fmt.Sprintf("[%s]", level), msg)
	parts = append(parts, args...)
	l.Logger.Println(parts...)
}
