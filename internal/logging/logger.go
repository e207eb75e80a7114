// Package logging provides the levelled logger and progress bars used by the commands.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

type Logger struct {
	logger *log.Logger
	config *LoggingConfig
	mutex  sync.RWMutex
	level  LogLevel
	json   bool
	closer io.Closer
}

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelMap = map[string]LogLevel{
	"debug": DEBUG,
	"info":  INFO,
	"warn":  WARN,
	"error": ERROR,
	"fatal": FATAL,
}

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

// ValidLevel reports whether name is a known level.
func ValidLevel(name string) bool {
	_, ok := levelMap[strings.ToLower(name)]
	return ok
}

// ValidFormat reports whether name is a known output format: "text" (timestamped),
// "plain" (no timestamp) or "json" (one object per line).
func ValidFormat(name string) bool {
	switch strings.ToLower(name) {
	case "", "text", "plain", "json":
		return true
	}
	return false
}

func NewLogger(config *LoggingConfig) (*Logger, error) {
	if config == nil {
		config = &LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		}
	}

	level, exists := levelMap[strings.ToLower(config.Level)]
	if !exists {
		level = INFO
	}

	var output io.Writer
	var closer io.Closer
	switch config.Output {
	case "", "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		closer = file
	}

	return New(output, level, config, closer), nil
}

// New creates a logger writing to w. Used directly by tests.
func New(w io.Writer, level LogLevel, config *LoggingConfig, closer io.Closer) *Logger {
	flags := log.LstdFlags
	format := ""
	if config != nil {
		format = strings.ToLower(config.Format)
	}
	if format == "plain" || format == "json" {
		flags = 0
	}
	return &Logger{
		logger: log.New(w, "", flags),
		config: config,
		level:  level,
		json:   format == "json",
		closer: closer,
	}
}

type jsonEntry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"msg"`
}

func (l *Logger) output(level LogLevel, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if !l.json {
		l.logger.Print("[" + levelNames[level] + "] " + msg)
		return
	}
	b, err := json.Marshal(jsonEntry{
		Time:    time.Now().UTC().Format(time.RFC3339),
		Level:   strings.ToLower(levelNames[level]),
		Message: msg,
	})
	if err != nil {
		l.logger.Print("[" + levelNames[level] + "] " + msg)
		return
	}
	l.logger.Print(string(b))
}

func (l *Logger) SetLevel(level LogLevel) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.level = level
}

func (l *Logger) enabled(level LogLevel) bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.level <= level
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.enabled(DEBUG) {
		l.output(DEBUG, format, args...)
	}
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.enabled(INFO) {
		l.output(INFO, format, args...)
	}
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if l.enabled(WARN) {
		l.output(WARN, format, args...)
	}
}

func (l *Logger) Error(format string, args ...interface{}) {
	if l.enabled(ERROR) {
		l.output(ERROR, format, args...)
	}
}

func (l *Logger) Fatal(format string, args ...interface{}) {
	l.output(FATAL, format, args...)
	os.Exit(1)
}

func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
