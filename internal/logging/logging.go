// Package logging provides the ambient logging facility shared by every
// package in the runtime: a single destination (file or discard), a
// leveled filter for MCP subprocess chatter, and small structured helpers
// for request/response tracing.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/k0kubun/pp"
)

// Level is the verbosity of MCP subprocess logging, per spec.md §6.4.
type Level int

const (
	LevelNone Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a level name to a Level, defaulting to LevelInfo for
// anything unrecognized (matching the MCP_LOG_LEVEL default of "info").
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return LevelNone
	case "error":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "debug":
		return LevelDebug
	case "info", "":
		return LevelInfo
	default:
		return LevelInfo
	}
}

// LevelFromEnv resolves the configured level from MCP_LOG_LEVEL, with
// MCP_DEBUG or MCP_VERBOSE forcing debug regardless of MCP_LOG_LEVEL.
func LevelFromEnv() Level {
	if truthy(os.Getenv("MCP_DEBUG")) || truthy(os.Getenv("MCP_VERBOSE")) {
		return LevelDebug
	}
	return ParseLevel(os.Getenv("MCP_LOG_LEVEL"))
}

func truthy(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

var (
	mu      sync.Mutex
	logFile *os.File
	level   = LevelInfo
	console bool
)

// Init initializes the logging system, setting the output to a file if a
// path is provided, and adopts the level from the environment.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	level = LevelFromEnv()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	if logPath == "" {
		log.SetOutput(io.Discard)
		return nil
	}

	if dir := filepath.Dir(logPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	logFile = file
	log.SetOutput(logFile)
	return nil
}

// SetConsoleMirror toggles whether LogAtLevel also prints a colored copy of
// each message to stderr, for interactive CLI sessions.
func SetConsoleMirror(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	console = enabled
}

// Close closes the log file if it's open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	log.SetOutput(io.Discard)
	err := logFile.Close()
	logFile = nil
	return err
}

// SetLevel overrides the active MCP log level (tests and CLI flags use this
// instead of mutating the environment).
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// CurrentLevel returns the active MCP log level.
func CurrentLevel() Level {
	mu.Lock()
	defer mu.Unlock()
	return level
}

func levelColor(l Level) *color.Color {
	switch l {
	case LevelError:
		return color.New(color.FgRed, color.Bold)
	case LevelWarn:
		return color.New(color.FgYellow)
	case LevelDebug:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgGreen)
	}
}

// LogAtLevel logs a message tagged with l, dropping it if l is more verbose
// than the configured level (LevelNone disables everything).
func LogAtLevel(l Level, format string, args ...any) {
	mu.Lock()
	active := level
	showConsole := console
	mu.Unlock()

	if active == LevelNone || l > active {
		return
	}
	msg := fmt.Sprintf(format, args...)
	prefix := fmt.Sprintf("[%s]", strings.ToUpper(l.String()))
	log.Printf("%s %s", prefix, msg)
	if showConsole {
		levelColor(l).Fprintf(os.Stderr, "%s %s\n", prefix, msg)
	}
}

var stderrLinePattern = regexp.MustCompile(`^\[([^\]]+)\]\s*\[([a-zA-Z]+)\]\s*(.*)$`)

// ParseStderrLine parses a subprocess stderr line of the shape
// "[timestamp] [LEVEL] message" per spec.md §4.2. Lines that don't match
// are forwarded verbatim at debug level.
func ParseStderrLine(line string) (Level, string) {
	m := stderrLinePattern.FindStringSubmatch(line)
	if m == nil {
		return LevelDebug, line
	}
	return ParseLevel(m[2]), m[3]
}

// LogEvent logs a general, unfiltered event message — used for lifecycle
// events (server start/stop, registry construction) that should always be
// recorded regardless of the MCP verbosity knob.
func LogEvent(format string, args ...any) {
	log.Println(fmt.Sprintf(format, args...))
}

// LogRequest logs a structured request/response trace line.
func LogRequest(direction, source, detail string, payload any) {
	log.Println(buildRequestMessage(direction, source, detail, payload))
}

// LogJSON pretty-prints a JSON-capable payload at debug level, using
// k0kubun/pp for a readable multi-line dump instead of a single json.Marshal
// line — intended for interactive debugging sessions, not the log file.
func LogJSON(label string, v any) {
	if CurrentLevel() < LevelDebug {
		return
	}
	fmt.Fprintf(os.Stderr, "%s:\n", label)
	pp.Fprintln(os.Stderr, v)
}

func buildRequestMessage(direction, source, detail string, payload any) string {
	dir := strings.ToUpper(strings.TrimSpace(direction))
	src := strings.TrimSpace(source)
	if src == "" {
		src = "unknown"
	}
	parts := []string{fmt.Sprintf("[%s]", dir), fmt.Sprintf("source=%s", src)}
	if detail = strings.TrimSpace(detail); detail != "" {
		parts = append(parts, fmt.Sprintf("detail=%s", detail))
	}
	parts = append(parts, fmt.Sprintf("payload=%s", formatPayload(payload)))
	return strings.Join(parts, " ")
}

func formatPayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return "null"
	case string:
		if strings.TrimSpace(v) == "" {
			return `""`
		}
		return v
	case []byte:
		if len(v) == 0 {
			return "[]"
		}
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
