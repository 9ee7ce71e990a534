package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

type Options struct {
	// Service prefixes the daily log file name.
	Service string
	// Dir enables the JSON log file when non-empty.
	Dir   string
	Level LogLevel
	Color bool
	// Out receives the terminal format. Defaults to stdout.
	Out io.Writer
}

type Logger struct {
	mu           sync.Mutex
	out          io.Writer
	logFile      *os.File
	minLevel     LogLevel
	colorEnabled bool
}

func New(opts Options) (*Logger, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	l := &Logger{out: out, minLevel: opts.Level, colorEnabled: opts.Color}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		service := opts.Service
		if service == "" {
			service = "booking-service"
		}
		name := filepath.Join(opts.Dir, fmt.Sprintf("%s-%s.log", service, time.Now().Format("2006-01-02")))
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.logFile = f
		l.Info("LOGGER", fmt.Sprintf("Log file: %s", name))
	}
	return l, nil
}

// NewWithWriter logs plain (uncoloured) lines to w only.
func NewWithWriter(w io.Writer, level LogLevel) *Logger {
	return &Logger{out: w, minLevel: level}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWithWriter(io.Discard, FATAL+1)
}

// ParseLevel maps a LOG_LEVEL value, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

func (l *Logger) log(level LogLevel, category, message string) {
	if level < l.minLevel {
		return
	}
	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:     levelToString(level),
		Category:  strings.ToUpper(category),
		Message:   message,
		File:      file,
		Line:      line,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(l.out, l.formatTerminalOutput(entry))
	if l.logFile != nil {
		l.logFile.WriteString(formatJSONOutput(entry) + "\n")
	}
}

func (l *Logger) formatTerminalOutput(entry LogEntry) string {
	timestamp := entry.Timestamp[11:19]
	fileInfo := ""
	if entry.File != "" && entry.Line > 0 {
		fileInfo = fmt.Sprintf(" (%s:%d)", entry.File, entry.Line)
	}

	if !l.colorEnabled {
		return fmt.Sprintf("%s %-5s [%-10s] %s%s\n", timestamp, entry.Level, entry.Category, entry.Message, fileInfo)
	}

	var levelColor, categoryColor *color.Color
	switch entry.Level {
	case "DEBUG":
		levelColor = color.New(color.FgCyan)
		categoryColor = color.New(color.FgCyan, color.Bold)
	case "INFO":
		levelColor = color.New(color.FgGreen)
		categoryColor = color.New(color.FgGreen, color.Bold)
	case "WARN":
		levelColor = color.New(color.FgYellow)
		categoryColor = color.New(color.FgYellow, color.Bold)
	default:
		levelColor = color.New(color.FgRed)
		categoryColor = color.New(color.FgRed, color.Bold)
	}

	timeStr := color.New(color.FgBlue).Sprintf("%s", timestamp)
	levelStr := levelColor.Sprintf("%-5s", entry.Level)
	categoryStr := categoryColor.Sprintf("[%-10s]", entry.Category)
	if fileInfo != "" {
		fileInfo = color.New(color.FgMagenta).Sprint(fileInfo)
	}
	return fmt.Sprintf("%s %s %s %s%s\n", timeStr, levelStr, categoryStr, entry.Message, fileInfo)
}

func formatJSONOutput(entry LogEntry) string {
	jsonBytes, _ := json.Marshal(entry)
	return string(jsonBytes)
}

func levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "INFO"
	}
}

func (l *Logger) Debug(category, message string) {
	l.log(DEBUG, category, message)
}

func (l *Logger) Info(category, message string) {
	l.log(INFO, category, message)
}

func (l *Logger) Warn(category, message string) {
	l.log(WARN, category, message)
}

func (l *Logger) Error(category, message string) {
	l.log(ERROR, category, message)
}

func (l *Logger) Fatal(category, message string) {
	l.log(FATAL, category, message)
	os.Exit(1)
}

// Specialized logging methods for different components
func (l *Logger) LogBooking(action, reference, message string) {
	l.log(INFO, "BOOKING", fmt.Sprintf("[%s] %s - %s", action, reference, message))
}

func (l *Logger) LogApproval(action, key, message string) {
	l.log(INFO, "APPROVAL", fmt.Sprintf("[%s] %s - %s", action, key, message))
}

func (l *Logger) LogTx(name, txID, message string) {
	l.log(DEBUG, "TX", fmt.Sprintf("[%s] %s - %s", name, txID, message))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.log(INFO, "API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.log(INFO, "KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.log(INFO, "DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) Close() {
	if l.logFile != nil {
		l.Info("LOGGER", "Closing log file")
		l.logFile.Close()
	}
}
