package logutils

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. It is usable before InitLogger is called.
var Log = newLogger(logrus.InfoLevel)

type Logger struct {
	entry *logrus.Entry
}

func newLogger(level logrus.Level) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetLevel(level)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return &Logger{entry: logrus.NewEntry(base)}
}

func InitLogger(level string) {
	parsed, ok := parseLogLevel(level)
	Log = newLogger(parsed)
	if !ok {
		Log.Warnf("Invalid log level '%s', defaulting to 'info'", level)
	}
	Log.Debugf("Log level set to %v", parsed)
}

func parseLogLevel(level string) (logrus.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel, true
	case "info", "":
		return logrus.InfoLevel, true
	case "warn", "warning":
		return logrus.WarnLevel, true
	case "error":
		return logrus.ErrorLevel, true
	default:
		return logrus.InfoLevel, false
	}
}

func (l *Logger) Level() logrus.Level {
	return l.entry.Logger.GetLevel()
}

func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }

func (l *Logger) Debug(message string) { l.entry.Debug(message) }

func (l *Logger) Infof(format string, args ...any) { l.entry.Infof(format, args...) }

func (l *Logger) Info(message string) { l.entry.Info(message) }

func (l *Logger) Warnf(format string, args ...any) { l.entry.Warnf(format, args...) }

func (l *Logger) Warn(message string) { l.entry.Warn(message) }

func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

func (l *Logger) Error(message string) { l.entry.Error(message) }

func (l *Logger) Fatalf(format string, args ...any) { l.entry.Fatalf(format, args...) }

func (l *Logger) Fatal(message string) { l.entry.Fatal(message) }
