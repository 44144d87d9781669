// Package logger wires the FTL/LFS core to logrus with a compact,
// caller-annotated line format. The FTL, address mapper, GC and LFS log
// through this package rather than holding their own logrus instances;
// the device adapter and zone pool do not log.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// Logger carries debug and warn messages (stdout or InfoLogPath).
	Logger *logrus.Logger
	// InfoLogger carries info messages.
	InfoLogger *logrus.Logger
	// ErrorLogger carries error messages.
	ErrorLogger *logrus.Logger
)

// Config selects the log file destinations and minimum level.
type Config struct {
	ErrorLogPath string
	InfoLogPath  string
	LogLevel     string
}

// customFormatter renders "[time] [LEVEL] (file:func:line) message".
type customFormatter struct {
	TimestampFormat string
}

func (f *customFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format(f.TimestampFormat)
	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}
	msg := entry.Message
	if len(entry.Data) > 0 {
		msg = fmt.Sprintf("%s %s", msg, formatFields(entry.Data))
	}
	return []byte(fmt.Sprintf("[%s] [%s] (%s) %s\n", timestamp, level, caller(), msg)), nil
}

// formatFields renders structured log fields (zone id, LPA, GC cycle
// duration, ...) as "key=value" pairs in stable key order, e.g.
// "[block=3 zone=7]" for a GC merge line.
func formatFields(data logrus.Fields) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, data[k])
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// caller walks the stack past this package and logrus itself to find
// the first frame the caller will recognize.
func caller() string {
	for i := 2; i < 20; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "/logrus/") || strings.Contains(file, "/logger.go") || strings.Contains(file, "/entry.go") {
			continue
		}
		fn := runtime.FuncForPC(pc).Name()
		return fmt.Sprintf("%s:%s:%d", filepath.Base(file), fn, line)
	}
	return "unknown:unknown:0"
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// Init sets up Logger/InfoLogger/ErrorLogger. Safe to call more than
// once (e.g. after reloading config).
func Init(cfg Config) error {
	formatter := &customFormatter{TimestampFormat: "15:04:05 MST 2006/01/02"}

	Logger = logrus.New()
	Logger.SetFormatter(formatter)
	Logger.SetLevel(parseLevel(cfg.LogLevel))

	InfoLogger = logrus.New()
	InfoLogger.SetFormatter(formatter)
	InfoLogger.SetLevel(parseLevel(cfg.LogLevel))

	ErrorLogger = logrus.New()
	ErrorLogger.SetFormatter(formatter)
	ErrorLogger.SetLevel(parseLevel(cfg.LogLevel))

	if cfg.InfoLogPath != "" {
		f, err := openLogFile(cfg.InfoLogPath)
		if err != nil {
			InfoLogger.SetOutput(os.Stdout)
			InfoLogger.Warnf("failed to open info log %s, falling back to stdout: %v", cfg.InfoLogPath, err)
		} else {
			InfoLogger.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	} else {
		InfoLogger.SetOutput(os.Stdout)
	}

	if cfg.ErrorLogPath != "" {
		f, err := openLogFile(cfg.ErrorLogPath)
		if err != nil {
			ErrorLogger.SetOutput(os.Stderr)
			ErrorLogger.Warnf("failed to open error log %s, falling back to stderr: %v", cfg.ErrorLogPath, err)
		} else {
			ErrorLogger.SetOutput(io.MultiWriter(os.Stderr, f))
		}
	} else {
		ErrorLogger.SetOutput(os.Stderr)
	}

	Logger.SetOutput(InfoLogger.Out)
	return nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func ensureDefaults() {
	if Logger == nil {
		_ = Init(Config{LogLevel: "info"})
	}
}

func Info(args ...interface{})                 { ensureDefaults(); InfoLogger.Info(args...) }
func Infof(format string, args ...interface{})  { ensureDefaults(); InfoLogger.Infof(format, args...) }
func Debug(args ...interface{})                 { ensureDefaults(); Logger.Debug(args...) }
func Debugf(format string, args ...interface{}) { ensureDefaults(); Logger.Debugf(format, args...) }
func Warn(args ...interface{})                  { ensureDefaults(); Logger.Warn(args...) }
func Warnf(format string, args ...interface{})  { ensureDefaults(); Logger.Warnf(format, args...) }
func Error(args ...interface{})                 { ensureDefaults(); ErrorLogger.Error(args...) }
func Errorf(format string, args ...interface{}) { ensureDefaults(); ErrorLogger.Errorf(format, args...) }

// Fields is a structured key/value set attached to one log line, e.g.
// logger.WithFields(logger.Fields{"zone": id, "lpa": lpa}).Debug("remap")
type Fields = logrus.Fields

// WithFields returns a debug-level entry carrying fields, rendered by
// customFormatter as trailing "[key=value ...]" text.
func WithFields(fields Fields) *logrus.Entry {
	ensureDefaults()
	return Logger.WithFields(fields)
}

// InfoWithFields is WithFields at info level.
func InfoWithFields(fields Fields) *logrus.Entry {
	ensureDefaults()
	return InfoLogger.WithFields(fields)
}

// ErrorWithFields is WithFields at the error logger.
func ErrorWithFields(fields Fields) *logrus.Entry {
	ensureDefaults()
	return ErrorLogger.WithFields(fields)
}
