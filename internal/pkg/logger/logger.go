// Package logger provides process-wide structured logging with PII
// redaction. Fields are passed as alternating key/value pairs.
package logger

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var zapLevels = map[Level]zapcore.Level{
	DEBUG: zapcore.DebugLevel,
	INFO:  zapcore.InfoLevel,
	WARN:  zapcore.WarnLevel,
	ERROR: zapcore.ErrorLevel,
}

// Logger wraps a zap logger with email redaction on field values.
type Logger struct {
	mu        sync.RWMutex
	zl        *zap.Logger
	level     zap.AtomicLevel
	redactPII bool
}

var defaultLogger = newDefault()

func newDefault() *Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Sampling = nil
	zl, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		zl = zap.NewNop()
	}
	return &Logger{zl: zl, level: level, redactPII: true}
}

// ParseLevel maps "debug", "info", "warn" and "error" to a Level. Anything
// else is INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	}
	return INFO
}

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) { defaultLogger.level.SetLevel(zapLevels[l]) }

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) {
	defaultLogger.mu.Lock()
	defaultLogger.redactPII = r
	defaultLogger.mu.Unlock()
}

// SetCore replaces the underlying zap core. Tests use it with an observer.
func SetCore(core zapcore.Core) {
	defaultLogger.mu.Lock()
	defaultLogger.zl = zap.New(core, zap.AddCallerSkip(2))
	defaultLogger.mu.Unlock()
}

// Sync flushes buffered entries.
func Sync() error {
	defaultLogger.mu.RLock()
	defer defaultLogger.mu.RUnlock()
	return defaultLogger.zl.Sync()
}

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	l.mu.RLock()
	zl, redact := l.zl, l.redactPII
	l.mu.RUnlock()

	ce := zl.Check(zapLevels[level], msg)
	if ce == nil {
		return
	}

	zf := make([]zap.Field, 0, (len(fields)+1)/2)
	if len(fields)%2 == 1 {
		// Match zap's sugared logger: a dangling value is kept under !BADKEY.
		last := fields[len(fields)-1]
		fields = append(fields[:len(fields)-1:len(fields)-1], "!BADKEY", last)
	}
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		if err, ok := fields[i+1].(error); ok && !redact {
			zf = append(zf, zap.NamedError(key, err))
			continue
		}
		val := fmt.Sprintf("%v", fields[i+1])
		if redact {
			val = redactPIIValue(key, val)
		}
		zf = append(zf, zap.String(key, val))
	}
	ce.Write(zf...)
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") || strings.Contains(key, "subscriber") {
		if strings.Contains(val, "@") {
			return RedactEmail(val)
		}
		return val
	}
	// Redact any embedded emails in generic fields
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}

// RedactEmail masks the local part of an address: "john.doe@example.com"
// becomes "jo***@example.com". Local parts of two characters or fewer are
// fully masked.
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || strings.Count(email, "@") != 1 {
		return "***@***"
	}
	name, domain := email[:at], email[at+1:]
	if len(name) > 2 {
		return name[:2] + "***@" + domain
	}
	return "***@" + domain
}
