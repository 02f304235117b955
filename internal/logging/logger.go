// Package logging adapts logrus to the key-value Logger interface used by
// the bootloader package, and carries the level conventions of cydfu.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// EnvLevel names the environment variable that overrides the log level.
const EnvLevel = "CYDFU_LOG_LEVEL"

// DefaultLevel is used when no level is configured.
const DefaultLevel = logrus.WarnLevel

// Logger is a logrus logger with key-value methods.
type Logger struct {
	entry *logrus.Entry
}

// New returns a Logger writing text records at level to w.
func New(level logrus.Level, w io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return &Logger{entry: logrus.NewEntry(l)}
}

// ResolveLevel picks the level from flag, then EnvLevel, then cfg, then
// DefaultLevel. Empty strings are skipped.
func ResolveLevel(flag, cfg string) (logrus.Level, error) {
	for _, s := range []string{flag, os.Getenv(EnvLevel), cfg} {
		if s == "" {
			continue
		}
		level, err := logrus.ParseLevel(strings.TrimSpace(s))
		if err != nil {
			return DefaultLevel, fmt.Errorf("invalid log level %q: %w", s, err)
		}
		return level, nil
	}
	return DefaultLevel, nil
}

// Logrus exposes the underlying logger for components that take a
// logrus.FieldLogger, such as the transports.
func (l *Logger) Logrus() logrus.FieldLogger { return l.entry }

// With returns a Logger that adds the key-value pairs to every record.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(fields(keysAndValues))}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Info(msg)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Error(msg)
}

// fields pairs up keys and values. A trailing key without a value is
// kept under "!BADKEY"; an error value is stored as logrus.ErrorKey.
func fields(kv []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		if i+1 == len(kv) {
			f["!BADKEY"] = kv[i]
			break
		}
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		if err, isErr := kv[i+1].(error); isErr && key == "error" {
			f[logrus.ErrorKey] = err
			continue
		}
		f[key] = kv[i+1]
	}
	return f
}
