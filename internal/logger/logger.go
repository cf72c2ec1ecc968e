// Package logger provides the slog handler used by avatarcard.
//
// Log output format:
//
//	2006-01-02T15:04:05.000Z [LEVEL] message | key=value, key2="value with spaces"
//
// Custom levels beyond the standard slog set:
//   - LevelTrace (-8): per-pixel and per-event tracing
//   - LevelFail  (12): errors that end the process
package logger

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ///////////////////////////////////////////////
// Custom Levels
// ///////////////////////////////////////////////

const (
	LevelTrace slog.Level = -8
	LevelDebug slog.Level = slog.LevelDebug // -4
	LevelInfo  slog.Level = slog.LevelInfo  // 0
	LevelWarn  slog.Level = slog.LevelWarn  // 4
	LevelError slog.Level = slog.LevelError // 8
	LevelFail  slog.Level = 12
)

// levelName returns the display name for a log level.
func levelName(l slog.Level) string {
	switch {
	case l <= LevelTrace:
		return "TRACE"
	case l <= LevelDebug:
		return "DEBUG"
	case l <= LevelInfo:
		return "INFO"
	case l <= LevelWarn:
		return "WARN"
	case l <= LevelError:
		return "ERROR"
	default:
		return "FAIL"
	}
}

// ParseLevel converts a level string to slog.Level.
// Supports: trace, debug, info, warn, error, fail (case-insensitive).
// Returns LevelInfo for unrecognized strings.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	case "fail":
		return LevelFail
	default:
		return LevelInfo
	}
}

// ///////////////////////////////////////////////
// Handler
// ///////////////////////////////////////////////

// lineEnding is CRLF on Windows, LF elsewhere.
var lineEnding = "\n"

func init() {
	if runtime.GOOS == "windows" {
		lineEnding = "\r\n"
	}
}

// Handler is a slog.Handler that writes one line per record:
//
//	2006-01-02T15:04:05.000Z [LEVEL] message | key=value, ...
type Handler struct {
	w     io.Writer
	mu    *sync.Mutex // shared by every handler derived from the same root
	level slog.Level
	attrs []slog.Attr
	group string // dot-joined prefix from WithGroup
}

// NewHandler creates a Handler that writes to w, filtering records below level.
func NewHandler(w io.Writer, level slog.Level) *Handler {
	return &Handler{w: w, level: level, mu: &sync.Mutex{}}
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle formats and writes a log record.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	buf.WriteString(r.Time.UTC().Format("2006-01-02T15:04:05.000Z"))
	buf.WriteString(" [")
	buf.WriteString(levelName(r.Level))
	buf.WriteString("] ")
	buf.WriteString(r.Message)

	// Pre-applied attrs already carry their group; record attrs take the
	// current one.
	sep := " | "
	for _, a := range h.attrs {
		writeAttr(&buf, &sep, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&buf, &sep, h.group, a)
		return true
	})

	buf.WriteString(lineEnding)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, buf.String())
	return err
}

// writeAttr appends a as key=value, flattening group values into dotted keys.
// sep holds the separator for the next pair; it becomes ", " after the first.
func writeAttr(buf *strings.Builder, sep *string, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if v.Kind() == slog.KindGroup {
		if a.Key == "" {
			key = prefix
		}
		for _, ga := range v.Group() {
			writeAttr(buf, sep, key, ga)
		}
		return
	}
	buf.WriteString(*sep)
	*sep = ", "
	buf.WriteString(key)
	buf.WriteString("=")
	buf.WriteString(formatValue(v))
}

// formatValue quotes values that would be ambiguous in the flat line format.
func formatValue(v slog.Value) string {
	s := v.String()
	if s == "" || strings.ContainsAny(s, " ,|=\"\t\r\n") {
		return strconv.Quote(s)
	}
	return s
}

// WithAttrs returns a new Handler with the given attributes pre-applied.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if h.group != "" {
		attrs = []slog.Attr{{Key: h.group, Value: slog.GroupValue(attrs...)}}
	}
	merged := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(merged, h.attrs)
	merged = append(merged, attrs...)
	return &Handler{w: h.w, mu: h.mu, level: h.level, attrs: merged, group: h.group}
}

// WithGroup returns a new Handler whose record attributes are keyed
// "group.key".
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	g := name
	if h.group != "" {
		g = h.group + "." + name
	}
	return &Handler{w: h.w, mu: h.mu, level: h.level, attrs: h.attrs, group: g}
}

// ///////////////////////////////////////////////
// Logger Constructor
// ///////////////////////////////////////////////

// Options configures [NewLogger].
type Options struct {
	// Path is the log file. Its directory is created when missing.
	Path string
	// Level is the minimum level written.
	Level slog.Level
	// MaxSizeMB rotates the file once it grows past this size.
	MaxSizeMB int
	// Mirror, when set, receives a copy of every line (stderr under -v).
	Mirror io.Writer
}

// NewLogger creates a slog.Logger that writes to a rotating log file.
// The returned io.Closer must be closed to flush pending writes.
func NewLogger(opts Options) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	lj := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: 3,
		MaxAge:     28,
	}

	var w io.Writer = lj
	if opts.Mirror != nil {
		w = io.MultiWriter(lj, opts.Mirror)
	}
	return slog.New(NewHandler(w, opts.Level)), lj, nil
}

// ///////////////////////////////////////////////
// Helper Functions
// ///////////////////////////////////////////////

// Trace logs a message at LevelTrace.
func Trace(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelTrace, msg, args...)
}

// Fail logs a message at LevelFail.
func Fail(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelFail, msg, args...)
}

// ///////////////////////////////////////////////
// ReadTail
// ///////////////////////////////////////////////

// maxLineBytes bounds a single log line read by ReadTail.
const maxLineBytes = 1 << 20

// ReadTail returns the last n lines from the file at path.
// Returns an error if the file doesn't exist or can't be read.
func ReadTail(path string, n int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if n <= 0 {
		return "", nil
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	ring := make([]string, 0, n)
	total := 0
	for scanner.Scan() {
		if len(ring) < n {
			ring = append(ring, scanner.Text())
		} else {
			ring[total%n] = scanner.Text()
		}
		total++
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading log file: %w", err)
	}

	if len(ring) < n {
		return strings.Join(ring, "\n"), nil
	}
	start := total % n
	return strings.Join(append(ring[start:], ring[:start]...), "\n"), nil
}
