package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// logLine runs fn against a fresh handler at level and returns the single
// line it wrote, without the trailing newline.
func logLine(t *testing.T, level slog.Level, fn func(*slog.Logger)) string {
	t.Helper()
	var buf bytes.Buffer
	fn(slog.New(NewHandler(&buf, level)))
	return strings.TrimRight(buf.String(), "\r\n")
}

// ///////////////////////////////////////////////
// Handler Output
// ///////////////////////////////////////////////

func TestHandlerOutput(t *testing.T) {
	tests := []struct {
		name   string
		log    func(*slog.Logger)
		suffix string
	}{
		{
			name:   "message only",
			log:    func(l *slog.Logger) { l.Info("watching spool") },
			suffix: "[INFO] watching spool",
		},
		{
			name:   "attrs joined",
			log:    func(l *slog.Logger) { l.Warn("job failed", "job", "a.toml", "attempt", 2) },
			suffix: "[WARN] job failed | job=a.toml, attempt=2",
		},
		{
			name:   "ambiguous values quoted",
			log:    func(l *slog.Logger) { l.Info("image written", "path", "out/Hello world_phrase.png", "name", "", "lines", 1) },
			suffix: `| path="out/Hello world_phrase.png", name="", lines=1`,
		},
		{
			name:   "separator in value quoted",
			log:    func(l *slog.Logger) { l.Info("fetch", "hosts", "a=b|c") },
			suffix: `| hosts="a=b|c"`,
		},
		{
			name:   "group value flattened",
			log:    func(l *slog.Logger) { l.Info("avatar placed", slog.Group("anchor", "x", 50, "y", 30)) },
			suffix: "| anchor.x=50, anchor.y=30",
		},
		{
			name:   "custom levels",
			log:    func(l *slog.Logger) { Fail(l, "render aborted") },
			suffix: "[FAIL] render aborted",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := logLine(t, LevelTrace, tt.log)
			if !strings.HasSuffix(line, tt.suffix) {
				t.Errorf("got %q, want suffix %q", line, tt.suffix)
			}
			if ts := strings.Split(line, " [")[0]; !strings.HasSuffix(ts, "Z") {
				t.Errorf("timestamp %q is not UTC", ts)
			}
		})
	}
}

func TestHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, LevelWarn))

	Trace(logger, "glyph advance")
	logger.Info("quote rendered")
	logger.Warn("cache miss")

	out := buf.String()
	if strings.Contains(out, "glyph advance") || strings.Contains(out, "quote rendered") {
		t.Errorf("records below warn leaked: %q", out)
	}
	if !strings.Contains(out, "[WARN] cache miss") {
		t.Errorf("warn record missing: %q", out)
	}
}

// ///////////////////////////////////////////////
// Levels
// ///////////////////////////////////////////////

func TestLevelRoundTrip(t *testing.T) {
	tests := []struct {
		in    string
		level slog.Level
		name  string
	}{
		{"trace", LevelTrace, "TRACE"},
		{"DEBUG", LevelDebug, "DEBUG"},
		{"Info", LevelInfo, "INFO"},
		{"warn", LevelWarn, "WARN"},
		{"error", LevelError, "ERROR"},
		{"fail", LevelFail, "FAIL"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseLevel(tt.in)
			if got != tt.level {
				t.Fatalf("ParseLevel(%q) = %d, want %d", tt.in, got, tt.level)
			}
			if name := levelName(got); name != tt.name {
				t.Errorf("levelName(%d) = %q, want %q", got, name, tt.name)
			}
		})
	}
	if got := ParseLevel("verbose"); got != LevelInfo {
		t.Errorf("unknown level = %d, want info", got)
	}
}

// ///////////////////////////////////////////////
// Attrs and Groups
// ///////////////////////////////////////////////

func TestHandlerAttrsAndGroups(t *testing.T) {
	tests := []struct {
		name  string
		build func(h slog.Handler) slog.Handler
		args  []any
		want  string
	}{
		{
			name:  "pre-applied attrs",
			build: func(h slog.Handler) slog.Handler { return h.WithAttrs([]slog.Attr{slog.String("cmd", "watch")}) },
			args:  []any{"job", "a.toml"},
			want:  "| cmd=watch, job=a.toml",
		},
		{
			name:  "group prefixes record attrs",
			build: func(h slog.Handler) slog.Handler { return h.WithGroup("fetch") },
			args:  []any{"host", "cdn.example", "bytes", 512},
			want:  "| fetch.host=cdn.example, fetch.bytes=512",
		},
		{
			name:  "nested groups",
			build: func(h slog.Handler) slog.Handler { return h.WithGroup("spool").WithGroup("job") },
			args:  []any{"kind", "welcome"},
			want:  "| spool.job.kind=welcome",
		},
		{
			name: "attrs before and after group",
			build: func(h slog.Handler) slog.Handler {
				h = h.WithAttrs([]slog.Attr{slog.String("top", "1")})
				return h.WithGroup("job").WithAttrs([]slog.Attr{slog.String("kind", "quote")})
			},
			args: []any{"file", "a.toml"},
			want: "| top=1, job.kind=quote, job.file=a.toml",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			slog.New(tt.build(NewHandler(&buf, LevelInfo))).Info("msg", tt.args...)
			line := strings.TrimRight(buf.String(), "\r\n")
			if !strings.HasSuffix(line, tt.want) {
				t.Errorf("got %q, want suffix %q", line, tt.want)
			}
		})
	}
}

func TestHandlerEmptyGroupIsNoop(t *testing.T) {
	h := NewHandler(&bytes.Buffer{}, LevelInfo)
	if h.WithGroup("") != slog.Handler(h) {
		t.Error("WithGroup(\"\") should return the receiver")
	}
}

func TestHandlerDerivedShareWriter(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, LevelInfo)
	derived := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).(*Handler)
	if h.mu != derived.mu {
		t.Fatal("derived handler must share the parent's mutex")
	}

	a, b := slog.New(h), slog.New(derived)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() { defer wg.Done(); a.Info("quote") }()
		go func() { defer wg.Done(); b.Info("welcome") }()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\r\n"), "\n")
	if len(lines) != 100 {
		t.Errorf("got %d lines, want 100", len(lines))
	}
	for _, l := range lines {
		l = strings.TrimRight(l, "\r")
		if !strings.HasSuffix(l, "quote") && !strings.HasSuffix(l, "welcome | k=v") {
			t.Errorf("interleaved line %q", l)
		}
	}
}

// ///////////////////////////////////////////////
// NewLogger
// ///////////////////////////////////////////////

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "avatarcard.log")
	var mirror bytes.Buffer

	logger, closer, err := NewLogger(Options{Path: path, Level: LevelDebug, MaxSizeMB: 1, Mirror: &mirror})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Debug("mask built", "opaque", 7845)
	Trace(logger, "below level")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	for name, got := range map[string]string{"file": string(data), "mirror": mirror.String()} {
		if !strings.Contains(got, "[DEBUG] mask built | opaque=7845") {
			t.Errorf("%s missing record: %q", name, got)
		}
		if strings.Contains(got, "below level") {
			t.Errorf("%s has filtered record: %q", name, got)
		}
	}
}

func TestNewLoggerWithoutMirror(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avatarcard.log")
	logger, closer, err := NewLogger(Options{Path: path, Level: LevelInfo, MaxSizeMB: 10})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("started")
	closer.Close()

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "[INFO] started") {
		t.Errorf("log file = %q", data)
	}
}

// ///////////////////////////////////////////////
// ReadTail
// ///////////////////////////////////////////////

func TestReadTail(t *testing.T) {
	tests := []struct {
		name    string
		content string
		n       int
		want    string
	}{
		{name: "last lines", content: "l1\nl2\nl3\nl4\nl5\n", n: 3, want: "l3\nl4\nl5"},
		{name: "exactly n", content: "l1\nl2\n", n: 2, want: "l1\nl2"},
		{name: "fewer than n", content: "l1\nl2\n", n: 10, want: "l1\nl2"},
		{name: "no trailing newline", content: "l1\nl2", n: 1, want: "l2"},
		{name: "empty file", content: "", n: 10, want: ""},
		{name: "zero lines", content: "l1\n", n: 0, want: ""},
		{name: "negative", content: "l1\n", n: -3, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "avatarcard.log")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			got, err := ReadTail(path, tt.n)
			if err != nil {
				t.Fatalf("ReadTail: %v", err)
			}
			if got != tt.want {
				t.Errorf("ReadTail(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}

func TestReadTailMissingFile(t *testing.T) {
	if _, err := ReadTail(filepath.Join(t.TempDir(), "missing.log"), 10); !os.IsNotExist(err) {
		t.Errorf("err = %v, want not-exist", err)
	}
}
