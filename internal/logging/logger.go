package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/abhijithsuren/dga-lab-v2/internal/config"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelVerdict
)

type Logger struct {
	mu     sync.Mutex
	sink   *lumberjack.Logger
	logger *log.Logger
	level  LogLevel
}

var defaultLogger *Logger

// Init sets up the process-wide logger. Log lines go to logs/<name>.log
// (rotated by lumberjack per the rotation config) and to stdout.
func Init(name, logDir string, rotation *config.LogRotationConfig, logLevel string, debug bool) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	sink := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, name+".log"),
		MaxSize:    rotation.MaxSizeMB,
		MaxBackups: rotation.MaxBackups,
		MaxAge:     rotation.MaxAgeDays,
		Compress:   rotation.Compress,
	}

	multiWriter := io.MultiWriter(sink, os.Stdout)

	defaultLogger = &Logger{
		sink:   sink,
		logger: log.New(multiWriter, "", log.LstdFlags|log.LUTC),
		level:  parseLogLevel(logLevel, debug),
	}

	// Redirect Go's standard log package to the same sinks.
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.LUTC)

	Info("logging initialized - dir: %s, max size: %d MB, level: %s",
		logDir, rotation.MaxSizeMB, logLevel)
	return nil
}

func parseLogLevel(level string, debug bool) LogLevel {
	if debug {
		return LogLevelDebug
	}

	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug
	case "warn":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func (l *Logger) writeLog(level LogLevel, levelStr, msg string) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Printf("[%s] %s", levelStr, msg)
}

func Debug(msg string, args ...interface{}) {
	logWith(LogLevelDebug, "DEBUG", msg, args...)
}

func Info(msg string, args ...interface{}) {
	logWith(LogLevelInfo, "INFO", msg, args...)
}

func Warn(msg string, args ...interface{}) {
	logWith(LogLevelWarn, "WARN", msg, args...)
}

func Error(msg string, args ...interface{}) {
	logWith(LogLevelError, "ERROR", msg, args...)
}

// Verdict records one verdict decision in a fixed, greppable shape.
func Verdict(domain, verdict string, confidence float64, source string) {
	logWith(LogLevelVerdict, "VERDICT",
		"%s => %s (conf=%.3f) src=%s", domain, verdict, confidence, source)
}

func logWith(level LogLevel, levelStr, msg string, args ...interface{}) {
	text := fmt.Sprintf(msg, args...)
	if defaultLogger != nil {
		defaultLogger.writeLog(level, levelStr, text)
	} else {
		fmt.Printf("[%s] %s\n", levelStr, text)
	}
}

func Close() {
	if defaultLogger != nil && defaultLogger.sink != nil {
		defaultLogger.mu.Lock()
		defer defaultLogger.mu.Unlock()
		defaultLogger.sink.Close()
	}
}
