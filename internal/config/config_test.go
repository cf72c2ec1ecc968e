// Tests for the config package covering [Load] behavior (defaults, overrides,
// missing files, malformed input, migration), validation ([Config.Validate]),
// conversions into card and fetch settings, serialization round-trips
// ([Config.Save]), and [ConfigDocs] completeness.

package config

import (
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/avatarcard/internal/avatar"
	"tools.zach/dev/avatarcard/internal/card"
)

// ///////////////////////////////////////////////
// Load
// ///////////////////////////////////////////////

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		noFile  bool // if true, skip writing a config file
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:   "defaults from minimal config",
			config: "version = 1\n",
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if !reflect.DeepEqual(cfg, DefaultConfig()) {
					t.Errorf("minimal config differs from defaults:\n%+v", cfg)
				}
			},
		},
		{
			name: "user overrides applied",
			config: `
version = 1

[quote]
width = 800
naming = "hash"

[fetch]
allow_hosts = ["cdn.discordapp.com"]
retry_max = 0
`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Quote.Width != 800 {
					t.Errorf("Quote.Width = %d, want 800", cfg.Quote.Width)
				}
				if cfg.Naming() != card.NamingHash {
					t.Errorf("Naming = %q, want hash", cfg.Naming())
				}
				if len(cfg.Fetch.AllowHosts) != 1 || cfg.Fetch.AllowHosts[0] != "cdn.discordapp.com" {
					t.Errorf("AllowHosts = %v", cfg.Fetch.AllowHosts)
				}
				if cfg.Fetch.RetryMax != 0 {
					t.Errorf("RetryMax = %d, want 0", cfg.Fetch.RetryMax)
				}
			},
		},
		{
			name: "partial override preserves other defaults",
			config: `
version = 1

[welcome]
anchor_shift = 0
`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				def := DefaultConfig()
				if cfg.Welcome.AnchorShift != 0 {
					t.Errorf("AnchorShift = %d, want 0", cfg.Welcome.AnchorShift)
				}
				if cfg.Welcome.AlphaThreshold != def.Welcome.AlphaThreshold {
					t.Errorf("AlphaThreshold = %d, want default %d", cfg.Welcome.AlphaThreshold, def.Welcome.AlphaThreshold)
				}
				if cfg.Quote != def.Quote {
					t.Errorf("Quote = %+v, want defaults", cfg.Quote)
				}
			},
		},
		{
			name:   "missing file returns defaults",
			noFile: true,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Version != DefaultConfig().Version {
					t.Errorf("Version = %d, want %d", cfg.Version, DefaultConfig().Version)
				}
			},
		},
		{
			name:    "malformed TOML returns error",
			config:  "this is not valid toml [[[",
			wantErr: true,
		},
		{
			name:    "invalid value fails validation",
			config:  "version = 1\n[quote]\nnaming = \"uuid\"\n",
			wantErr: true,
		},
		{
			name:    "newer schema version is rejected",
			config:  "version = 99\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if !tt.noFile {
				writeConfig(t, dir, tt.config)
			}

			cfg, err := Load(dir)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Migration integration
// ///////////////////////////////////////////////

func TestLoad_MissingVersionIsCurrent(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[log]\nlevel = \"debug\"\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.toml.bak")); !os.IsNotExist(err) {
		t.Error("no backup expected when the file is already current")
	}
}

// ///////////////////////////////////////////////
// ExampleConfig
// ///////////////////////////////////////////////

func TestExampleConfig(t *testing.T) {
	cfg := ExampleConfig()
	if cfg == nil {
		t.Fatal("ExampleConfig returned nil")
	}
	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("ExampleConfig does not validate: %v", err)
	}
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		t.Fatalf("failed to marshal ExampleConfig: %v", err)
	}
}

// ///////////////////////////////////////////////
// ConfigDocs completeness
// ///////////////////////////////////////////////

func TestConfigDocsComplete(t *testing.T) {
	fields := collectTOMLFields(reflect.TypeOf(Config{}), "")
	for _, field := range fields {
		if _, ok := ConfigDocs[field]; !ok {
			t.Errorf("ConfigDocs missing entry for field %q", field)
		}
	}
}

func TestConfigDocsNoStaleEntries(t *testing.T) {
	known := map[string]bool{}
	for _, f := range collectTOMLFields(reflect.TypeOf(Config{}), "") {
		known[f] = true
		if i := strings.Index(f, "."); i > 0 {
			known[f[:i]] = true
		}
	}
	for key := range ConfigDocs {
		if !known[key] {
			t.Errorf("ConfigDocs has entry %q with no matching field", key)
		}
	}
}

// collectTOMLFields recursively walks a struct type and returns the
// dot-separated TOML key path for every tagged field.
func collectTOMLFields(typ reflect.Type, prefix string) []string {
	var fields []string
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("toml")
		if tag == "" || tag == "-" {
			continue
		}
		if idx := strings.Index(tag, ","); idx != -1 {
			tag = tag[:idx]
		}
		path := tag
		if prefix != "" {
			path = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct {
			fields = append(fields, collectTOMLFields(f.Type, path)...)
		} else {
			fields = append(fields, path)
		}
	}
	return fields
}

// ///////////////////////////////////////////////
// Marshal field order
// ///////////////////////////////////////////////

func TestConfigMarshalFieldOrder(t *testing.T) {
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(DefaultConfig()); err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := buf.String()

	order := []string{"version", "[log]", "[features]", "[fetch]", "[fonts]", "[quote]", "[welcome]", "[watch]"}
	for i := 1; i < len(order); i++ {
		b, a := strings.Index(out, order[i-1]), strings.Index(out, order[i])
		if b < 0 || a < 0 || b > a {
			t.Errorf("expected %q before %q in marshaled output", order[i-1], order[i])
		}
	}
}

// ///////////////////////////////////////////////
// Save
// ///////////////////////////////////////////////

func TestConfig_Save_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	orig := DefaultConfig()
	orig.Quote.Background = "#102030"
	orig.Quote.FontSize = 24.5
	orig.Watch.Patterns = []string{"*.toml", "*.job"}

	if err := orig.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	loaded := DefaultConfig()
	if err := toml.Unmarshal(data, loaded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(loaded, orig) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, orig)
	}
}

// ///////////////////////////////////////////////
// Validate
// ///////////////////////////////////////////////

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(cfg *Config)
		wantErr bool
	}{
		{name: "default config passes", setup: func(cfg *Config) {}},
		{name: "invalid log.level", setup: func(cfg *Config) { cfg.Log.Level = "verbose" }, wantErr: true},
		{name: "uppercase log.level", setup: func(cfg *Config) { cfg.Log.Level = "DEBUG" }},
		{name: "log.max_size_mb = 0", setup: func(cfg *Config) { cfg.Log.MaxSizeMB = 0 }, wantErr: true},
		{name: "fetch.timeout_seconds = 0", setup: func(cfg *Config) { cfg.Fetch.TimeoutSeconds = 0 }, wantErr: true},
		{name: "negative fetch.retry_max", setup: func(cfg *Config) { cfg.Fetch.RetryMax = -1 }, wantErr: true},
		{name: "fetch.max_bytes = 0", setup: func(cfg *Config) { cfg.Fetch.MaxBytes = 0 }, wantErr: true},
		{name: "bad allow_hosts glob", setup: func(cfg *Config) { cfg.Fetch.AllowHosts = []string{"[cdn"} }, wantErr: true},
		{name: "good allow_hosts glob", setup: func(cfg *Config) { cfg.Fetch.AllowHosts = []string{"*.example.com"} }},
		{name: "bad regular fallback", setup: func(cfg *Config) { cfg.Fonts.RegularFallback = "comic-sans" }, wantErr: true},
		{name: "unknown builtin italic", setup: func(cfg *Config) { cfg.Fonts.ItalicFallback = "builtin:mono" }, wantErr: true},
		{name: "google fallback", setup: func(cfg *Config) { cfg.Fonts.ItalicFallback = "google:Inter:400italic" }},
		{name: "empty fallback", setup: func(cfg *Config) { cfg.Fonts.RegularFallback = "" }},
		{name: "quote.width = 0", setup: func(cfg *Config) { cfg.Quote.Width = 0 }, wantErr: true},
		{name: "negative quote.height", setup: func(cfg *Config) { cfg.Quote.Height = -1 }, wantErr: true},
		{name: "quote.avatar_size = 0", setup: func(cfg *Config) { cfg.Quote.AvatarSize = 0 }, wantErr: true},
		{name: "quote.line_height = 0", setup: func(cfg *Config) { cfg.Quote.LineHeight = 0 }, wantErr: true},
		{name: "negative offset", setup: func(cfg *Config) { cfg.Quote.TextRightOffset = -5 }, wantErr: true},
		{name: "font_size below 1", setup: func(cfg *Config) { cfg.Quote.FontSize = 0.5 }, wantErr: true},
		{name: "max_text_width = 0", setup: func(cfg *Config) { cfg.Quote.MaxTextWidth = 0 }, wantErr: true},
		{name: "bad background", setup: func(cfg *Config) { cfg.Quote.Background = "black" }, wantErr: true},
		{name: "bad text_color", setup: func(cfg *Config) { cfg.Quote.TextColor = "#fff" }, wantErr: true},
		{name: "rgba text_color", setup: func(cfg *Config) { cfg.Quote.TextColor = "#ffffff80" }},
		{name: "bad avatar_filter", setup: func(cfg *Config) { cfg.Quote.AvatarFilter = "bicubic" }, wantErr: true},
		{name: "bad naming", setup: func(cfg *Config) { cfg.Quote.Naming = "uuid" }, wantErr: true},
		{name: "welcome.avatar_size = 0", setup: func(cfg *Config) { cfg.Welcome.AvatarSize = 0 }, wantErr: true},
		{name: "negative anchor_shift", setup: func(cfg *Config) { cfg.Welcome.AnchorShift = -1 }, wantErr: true},
		{name: "alpha_threshold 256", setup: func(cfg *Config) { cfg.Welcome.AlphaThreshold = 256 }, wantErr: true},
		{name: "alpha_threshold 0", setup: func(cfg *Config) { cfg.Welcome.AlphaThreshold = 0 }},
		{name: "bad welcome.filter", setup: func(cfg *Config) { cfg.Welcome.Filter = "box" }, wantErr: true},
		{name: "watch.poll_interval_seconds = 0", setup: func(cfg *Config) { cfg.Watch.PollIntervalSeconds = 0 }, wantErr: true},
		{name: "empty watch.patterns", setup: func(cfg *Config) { cfg.Watch.Patterns = nil }, wantErr: true},
		{name: "bad watch pattern", setup: func(cfg *Config) { cfg.Watch.Patterns = []string{"{a,b"} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.setup(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_EnumPositive(t *testing.T) {
	for _, f := range []string{"nearest", "linear", "catmullrom", "lanczos"} {
		cfg := DefaultConfig()
		cfg.Quote.AvatarFilter = f
		cfg.Welcome.Filter = f
		if err := cfg.Validate(); err != nil {
			t.Errorf("filter %q rejected: %v", f, err)
		}
	}
	for _, n := range []string{"content", "hash", "id"} {
		cfg := DefaultConfig()
		cfg.Quote.Naming = n
		if err := cfg.Validate(); err != nil {
			t.Errorf("naming %q rejected: %v", n, err)
		}
	}
	for _, l := range []string{"trace", "debug", "info", "warn", "error"} {
		cfg := DefaultConfig()
		cfg.Log.Level = l
		if err := cfg.Validate(); err != nil {
			t.Errorf("log level %q rejected: %v", l, err)
		}
	}
}

// ///////////////////////////////////////////////
// Conversions
// ///////////////////////////////////////////////

func TestQuoteLayoutMatchesCardDefaults(t *testing.T) {
	got, err := DefaultConfig().QuoteLayout()
	if err != nil {
		t.Fatalf("QuoteLayout: %v", err)
	}
	if want := card.DefaultQuoteLayout(); got != want {
		t.Errorf("QuoteLayout() = %+v\nwant %+v", got, want)
	}
}

func TestQuoteLayoutOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quote.Background = "#11223380"
	cfg.Quote.AvatarFilter = "LANCZOS"
	cfg.Quote.FlushBeforeSplit = true

	l, err := cfg.QuoteLayout()
	if err != nil {
		t.Fatalf("QuoteLayout: %v", err)
	}
	if l.Background != (color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x80}) {
		t.Errorf("Background = %v", l.Background)
	}
	if l.AvatarFilter != avatar.FilterLanczos || !l.FlushBeforeSplit {
		t.Errorf("layout = %+v", l)
	}

	cfg.Quote.TextColor = "nope"
	if _, err := cfg.QuoteLayout(); err == nil {
		t.Error("expected error for bad text color")
	}
}

func TestWelcomeLayoutMatchesCardDefaults(t *testing.T) {
	got, err := DefaultConfig().WelcomeLayout()
	if err != nil {
		t.Fatalf("WelcomeLayout: %v", err)
	}
	if want := card.DefaultWelcomeLayout(); got != want {
		t.Errorf("WelcomeLayout() = %+v, want %+v", got, want)
	}
}

func TestFetchOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fetch.AllowHosts = []string{"cdn.discordapp.com"}

	opts := cfg.FetchOptions("/data/cache/avatars")
	if opts.Timeout != 10*time.Second || opts.RetryMax != 2 || opts.MaxBytes != 8<<20 {
		t.Errorf("opts = %+v", opts)
	}
	if opts.CacheDir != "/data/cache/avatars" || opts.UserAgent != DefaultUserAgent {
		t.Errorf("opts = %+v", opts)
	}
	if len(opts.AllowHosts) != 1 {
		t.Errorf("AllowHosts = %v", opts.AllowHosts)
	}

	cfg.Fetch.Cache = false
	if dir := cfg.FetchOptions("/data/cache/avatars").CacheDir; dir != "" {
		t.Errorf("CacheDir = %q with cache disabled, want empty", dir)
	}
}

func TestPollInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.PollIntervalSeconds = 7
	if got := cfg.PollInterval(); got != 7*time.Second {
		t.Errorf("PollInterval = %v, want 7s", got)
	}
}

func TestNamingFallsBackToContent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quote.Naming = "bogus"
	if got := cfg.Naming(); got != card.NamingContent {
		t.Errorf("Naming = %q, want content", got)
	}
}

// ///////////////////////////////////////////////
// MatchesJob
// ///////////////////////////////////////////////

func TestConfig_MatchesJob(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		file     string
		want     bool
	}{
		{name: "default toml", patterns: []string{"*.toml"}, file: "card-1.toml", want: true},
		{name: "default rejects json", patterns: []string{"*.toml"}, file: "card-1.json", want: false},
		{name: "temp file ignored", patterns: []string{"*.toml"}, file: "card-1.toml.tmp.123", want: false},
		{name: "second pattern", patterns: []string{"*.toml", "*.job"}, file: "x.job", want: true},
		{name: "prefix pattern", patterns: []string{"quote-*.toml"}, file: "welcome-1.toml", want: false},
		{name: "invalid pattern skipped", patterns: []string{"[bad", "*.toml"}, file: "a.toml", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Watch.Patterns = tt.patterns
			if got := cfg.MatchesJob(tt.file); got != tt.want {
				t.Errorf("MatchesJob(%q) = %v, want %v", tt.file, got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Helpers
// ///////////////////////////////////////////////

// writeConfig writes a TOML config string to config.toml in dir for use
// by [Load] in test cases.
func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
}
