package observ

import (
	"os"

	"github.com/sirupsen/logrus"
)

var logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.JSONFormatter{})
	return l
}

// SetLevel adjusts the global log level from a config string ("debug",
// "info", "warn", "error"). Unknown values fall back to info.
func SetLevel(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
}

// Log emits a structured event at info level.
func Log(event string, kv map[string]any) {
	logger.WithFields(logrus.Fields(kv)).Info(event)
}

// Warn emits a structured event at warn level.
func Warn(event string, kv map[string]any) {
	logger.WithFields(logrus.Fields(kv)).Warn(event)
}

// Error emits a structured event at error level.
func Error(event string, kv map[string]any) {
	logger.WithFields(logrus.Fields(kv)).Error(event)
}

// Debug emits a structured event at debug level.
func Debug(event string, kv map[string]any) {
	logger.WithFields(logrus.Fields(kv)).Debug(event)
}
