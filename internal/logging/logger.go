// Package logging provides the structured logging facade for rotafoto.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	global *logrus.Logger
	once   sync.Once
)

// Init initializes the global logger. Subsequent calls are no-ops.
func Init(out io.Writer, level logrus.Level) {
	once.Do(func() {
		l := logrus.New()
		l.SetOutput(out)
		l.SetLevel(level)
		l.SetFormatter(&logrus.JSONFormatter{})
		global = l
	})
}

// Get returns the global logger instance.
func Get() *logrus.Logger {
	if global == nil {
		Init(os.Stderr, logrus.InfoLevel)
	}
	return global
}

// merge flattens the optional context maps into logrus fields.
func merge(context ...map[string]interface{}) logrus.Fields {
	if len(context) == 0 {
		return nil
	}
	fields := logrus.Fields{}
	for _, c := range context {
		for k, v := range c {
			fields[k] = v
		}
	}
	return fields
}

// Debug logs a debug message.
func Debug(message string, context ...map[string]interface{}) {
	Get().WithFields(merge(context...)).Debug(message)
}

// Info logs an info message.
func Info(message string, context ...map[string]interface{}) {
	Get().WithFields(merge(context...)).Info(message)
}

// Warn logs a warning message.
func Warn(message string, context ...map[string]interface{}) {
	Get().WithFields(merge(context...)).Warn(message)
}

// Error logs an error message with its cause.
func Error(message string, err error, context ...map[string]interface{}) {
	entry := Get().WithFields(merge(context...))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)
}
