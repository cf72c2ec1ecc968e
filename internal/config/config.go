// Package config provides configuration loading and defaults for avatarcard.
//
// Configuration is loaded from a TOML file in the user's data directory. It
// carries the quote card geometry, the welcome compositor tuning, fonts, the
// avatar fetch policy, and the spool watcher settings. Every default matches
// the classic card layout.
package config

//go:generate go run ../../cmd/genconfig

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/avatarcard/internal/atomicfile"
	"tools.zach/dev/avatarcard/internal/avatar"
	"tools.zach/dev/avatarcard/internal/card"
	"tools.zach/dev/avatarcard/internal/fetch"
	"tools.zach/dev/avatarcard/internal/migrate"
	"tools.zach/dev/avatarcard/internal/paths"
	"tools.zach/dev/avatarcard/internal/typeface"
)

// DefaultUserAgent is sent with avatar and font downloads.
const DefaultUserAgent = "avatarcard"

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version used for migrations.
	Version int `toml:"version"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
	// Features switches the two pipelines on and off.
	Features FeaturesConfig `toml:"features"`
	// Fetch holds the avatar download policy.
	Fetch FetchConfig `toml:"fetch"`
	// Fonts holds the regular and italic font sources.
	Fonts FontsConfig `toml:"fonts"`
	// Quote holds the quote card geometry.
	Quote QuoteConfig `toml:"quote"`
	// Welcome holds the welcome banner compositor settings.
	Welcome WelcomeConfig `toml:"welcome"`
	// Watch holds spool directory settings.
	Watch WatchConfig `toml:"watch"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// FeaturesConfig enables the pipelines. A disabled pipeline rejects requests.
type FeaturesConfig struct {
	Quote   bool `toml:"quote"`
	Welcome bool `toml:"welcome"`
}

// FetchConfig controls how avatar and background URLs are downloaded.
type FetchConfig struct {
	// TimeoutSeconds bounds each HTTP attempt.
	TimeoutSeconds int `toml:"timeout_seconds"`
	// RetryMax is the number of retries after a transport error or 5xx.
	RetryMax int `toml:"retry_max"`
	// MaxBytes caps a single download.
	MaxBytes int64 `toml:"max_bytes"`
	// AllowHosts lists glob patterns matched against the URL host. Empty allows any host.
	AllowHosts []string `toml:"allow_hosts"`
	// Cache keeps a copy of every download and serves it when the network fails.
	Cache bool `toml:"cache"`
	// UserAgent is sent with every request.
	UserAgent string `toml:"user_agent"`
}

// FontsConfig names the two faces. Paths are tried first, then the fallback.
type FontsConfig struct {
	// Regular draws the author name.
	Regular string `toml:"regular"`
	// Italic draws the quote text.
	Italic string `toml:"italic"`
	// RegularFallback is "builtin:<name>" or "google:Family:Weight".
	RegularFallback string `toml:"regular_fallback"`
	// ItalicFallback is "builtin:<name>" or "google:Family:Weight".
	ItalicFallback string `toml:"italic_fallback"`
}

// QuoteConfig holds the quote card geometry. Right and bottom offsets are
// measured from that canvas edge.
type QuoteConfig struct {
	Width            int     `toml:"width"`
	Height           int     `toml:"height"`
	Background       string  `toml:"background"`
	TextColor        string  `toml:"text_color"`
	AvatarSize       int     `toml:"avatar_size"`
	AvatarX          int     `toml:"avatar_x"`
	AvatarFilter     string  `toml:"avatar_filter"`
	TextRightOffset  int     `toml:"text_right_offset"`
	TextTopOffset    int     `toml:"text_top_offset"`
	MaxTextWidth     float64 `toml:"max_text_width"`
	FontSize         float64 `toml:"font_size"`
	LineHeight       int     `toml:"line_height"`
	NameRightOffset  int     `toml:"name_right_offset"`
	NameBottomOffset int     `toml:"name_bottom_offset"`
	// Naming selects the output file name: "content", "hash", or "id".
	Naming string `toml:"naming"`
	// FlushBeforeSplit keeps the pending line when an oversized word is split.
	FlushBeforeSplit bool `toml:"flush_before_split"`
}

// WelcomeConfig tunes the welcome banner compositor.
type WelcomeConfig struct {
	// AvatarSize is the disc diameter used when a request gives none.
	AvatarSize int `toml:"avatar_size"`
	// AnchorShift moves the requested anchor up and left.
	AnchorShift int `toml:"anchor_shift"`
	// AlphaThreshold is the background alpha below which avatar pixels are painted first.
	AlphaThreshold int `toml:"alpha_threshold"`
	// Filter resamples the avatar.
	Filter string `toml:"filter"`
}

// WatchConfig holds spool directory settings.
type WatchConfig struct {
	// PollIntervalSeconds is the rescan interval when fsnotify is unavailable.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	// Patterns are glob patterns matched against job file names.
	Patterns []string `toml:"patterns"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with the classic card layout and
// fonts that work offline.
func DefaultConfig() *Config {
	q := card.DefaultQuoteLayout()
	w := card.DefaultWelcomeLayout()
	return &Config{
		Version: migrate.Config.CurrentVersion,
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
		Features: FeaturesConfig{
			Quote:   true,
			Welcome: true,
		},
		Fetch: FetchConfig{
			TimeoutSeconds: 10,
			RetryMax:       2,
			MaxBytes:       8 << 20,
			AllowHosts:     []string{},
			Cache:          true,
			UserAgent:      DefaultUserAgent,
		},
		Fonts: FontsConfig{
			RegularFallback: "builtin:regular",
			ItalicFallback:  "builtin:italic",
		},
		Quote: QuoteConfig{
			Width:            q.Width,
			Height:           q.Height,
			Background:       "#000000",
			TextColor:        "#ffffff",
			AvatarSize:       q.AvatarSize,
			AvatarX:          q.AvatarX,
			AvatarFilter:     string(q.AvatarFilter),
			TextRightOffset:  q.TextRightOffset,
			TextTopOffset:    q.TextTopOffset,
			MaxTextWidth:     q.MaxTextWidth,
			FontSize:         q.FontSize,
			LineHeight:       q.LineHeight,
			NameRightOffset:  q.NameRightOffset,
			NameBottomOffset: q.NameBottomOffset,
			Naming:           string(card.NamingContent),
		},
		Welcome: WelcomeConfig{
			AvatarSize:     w.AvatarSize,
			AnchorShift:    w.Options.AnchorShift,
			AlphaThreshold: int(w.Options.AlphaThreshold),
			Filter:         string(w.Options.Filter),
		},
		Watch: WatchConfig{
			PollIntervalSeconds: 2,
			Patterns:            []string{"*.toml"},
		},
	}
}

// ///////////////////////////////////////////////
// Example Configuration
// ///////////////////////////////////////////////

// ExampleConfig returns a Config suitable for generating config.default.toml.
// For this project all defaults are good examples.
func ExampleConfig() *Config {
	return DefaultConfig()
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses the configuration file from dataDir/config.toml.
// If the file doesn't exist, returns DefaultConfig.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if migrate.PeekVersion(data) != migrate.Config.CurrentVersion {
		if backupErr := os.WriteFile(path+".bak", data, 0o644); backupErr != nil {
			slog.Warn("failed to write config backup", "error", backupErr)
		}
	}
	data, changed, err := migrate.Config.Upgrade(data)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Version = migrate.Config.CurrentVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if changed {
		if err := cfg.Save(path); err != nil {
			slog.Warn("failed to save migrated config", "error", err)
		}
	}

	return cfg, nil
}

// Save writes the config to disk as TOML using atomic file write.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0, got %d", c.Fetch.TimeoutSeconds)
	}
	if c.Fetch.RetryMax < 0 {
		return fmt.Errorf("fetch.retry_max must be >= 0, got %d", c.Fetch.RetryMax)
	}
	if c.Fetch.MaxBytes <= 0 {
		return fmt.Errorf("fetch.max_bytes must be > 0, got %d", c.Fetch.MaxBytes)
	}
	if err := validatePatterns("fetch.allow_hosts", c.Fetch.AllowHosts); err != nil {
		return err
	}

	if !typeface.ValidFallback(c.Fonts.RegularFallback) {
		return fmt.Errorf("invalid fonts.regular_fallback %q: must be builtin:<name> or google:Family:Weight", c.Fonts.RegularFallback)
	}
	if !typeface.ValidFallback(c.Fonts.ItalicFallback) {
		return fmt.Errorf("invalid fonts.italic_fallback %q: must be builtin:<name> or google:Family:Weight", c.Fonts.ItalicFallback)
	}

	if err := c.validateQuote(); err != nil {
		return err
	}

	w := c.Welcome
	if w.AvatarSize <= 0 {
		return fmt.Errorf("welcome.avatar_size must be > 0, got %d", w.AvatarSize)
	}
	if w.AnchorShift < 0 {
		return fmt.Errorf("welcome.anchor_shift must be >= 0, got %d", w.AnchorShift)
	}
	if w.AlphaThreshold < 0 || w.AlphaThreshold > 255 {
		return fmt.Errorf("welcome.alpha_threshold must be between 0 and 255, got %d", w.AlphaThreshold)
	}
	if _, err := avatar.ParseFilter(w.Filter); err != nil {
		return fmt.Errorf("welcome.filter: %w", err)
	}

	if c.Watch.PollIntervalSeconds <= 0 {
		return fmt.Errorf("watch.poll_interval_seconds must be > 0, got %d", c.Watch.PollIntervalSeconds)
	}
	if len(c.Watch.Patterns) == 0 {
		return fmt.Errorf("watch.patterns must not be empty")
	}
	return validatePatterns("watch.patterns", c.Watch.Patterns)
}

func (c *Config) validateQuote() error {
	q := c.Quote
	positive := []struct {
		key string
		val int
	}{
		{"quote.width", q.Width},
		{"quote.height", q.Height},
		{"quote.avatar_size", q.AvatarSize},
		{"quote.line_height", q.LineHeight},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return fmt.Errorf("%s must be > 0, got %d", p.key, p.val)
		}
	}
	offsets := []struct {
		key string
		val int
	}{
		{"quote.avatar_x", q.AvatarX},
		{"quote.text_right_offset", q.TextRightOffset},
		{"quote.text_top_offset", q.TextTopOffset},
		{"quote.name_right_offset", q.NameRightOffset},
		{"quote.name_bottom_offset", q.NameBottomOffset},
	}
	for _, o := range offsets {
		if o.val < 0 {
			return fmt.Errorf("%s must be >= 0, got %d", o.key, o.val)
		}
	}
	if q.FontSize < 1 {
		return fmt.Errorf("quote.font_size must be >= 1, got %g", q.FontSize)
	}
	if q.MaxTextWidth <= 0 {
		return fmt.Errorf("quote.max_text_width must be > 0, got %g", q.MaxTextWidth)
	}
	if _, err := card.ParseHexColor(q.Background); err != nil {
		return fmt.Errorf("quote.background: %w", err)
	}
	if _, err := card.ParseHexColor(q.TextColor); err != nil {
		return fmt.Errorf("quote.text_color: %w", err)
	}
	if _, err := avatar.ParseFilter(q.AvatarFilter); err != nil {
		return fmt.Errorf("quote.avatar_filter: %w", err)
	}
	if _, err := card.ParseNaming(q.Naming); err != nil {
		return fmt.Errorf("quote.naming: %w", err)
	}
	return nil
}

func validatePatterns(key string, patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid %s pattern %q", key, p)
		}
	}
	return nil
}

// ///////////////////////////////////////////////
// Conversions
// ///////////////////////////////////////////////

// QuoteLayout converts the [quote] section into a card layout.
func (c *Config) QuoteLayout() (card.QuoteLayout, error) {
	q := c.Quote
	bg, err := card.ParseHexColor(q.Background)
	if err != nil {
		return card.QuoteLayout{}, err
	}
	fg, err := card.ParseHexColor(q.TextColor)
	if err != nil {
		return card.QuoteLayout{}, err
	}
	filter, err := avatar.ParseFilter(q.AvatarFilter)
	if err != nil {
		return card.QuoteLayout{}, err
	}
	return card.QuoteLayout{
		Width:            q.Width,
		Height:           q.Height,
		Background:       bg,
		TextColor:        fg,
		AvatarSize:       q.AvatarSize,
		AvatarX:          q.AvatarX,
		AvatarFilter:     filter,
		TextRightOffset:  q.TextRightOffset,
		TextTopOffset:    q.TextTopOffset,
		MaxTextWidth:     q.MaxTextWidth,
		FontSize:         q.FontSize,
		LineHeight:       q.LineHeight,
		NameRightOffset:  q.NameRightOffset,
		NameBottomOffset: q.NameBottomOffset,
		FlushBeforeSplit: q.FlushBeforeSplit,
	}, nil
}

// WelcomeLayout converts the [welcome] section.
func (c *Config) WelcomeLayout() (card.WelcomeLayout, error) {
	filter, err := avatar.ParseFilter(c.Welcome.Filter)
	if err != nil {
		return card.WelcomeLayout{}, err
	}
	return card.WelcomeLayout{
		AvatarSize: c.Welcome.AvatarSize,
		Options: avatar.Options{
			AnchorShift:    c.Welcome.AnchorShift,
			AlphaThreshold: uint8(min(max(c.Welcome.AlphaThreshold, 0), 255)),
			Filter:         filter,
		},
	}, nil
}

// Naming returns the quote naming mode, defaulting to content naming.
func (c *Config) Naming() card.Naming {
	n, err := card.ParseNaming(c.Quote.Naming)
	if err != nil {
		return card.NamingContent
	}
	return n
}

// FetchOptions converts the [fetch] section. cacheDir is used only when the
// cache is enabled.
func (c *Config) FetchOptions(cacheDir string) fetch.Options {
	opts := fetch.Options{
		Timeout:    time.Duration(c.Fetch.TimeoutSeconds) * time.Second,
		RetryMax:   c.Fetch.RetryMax,
		MaxBytes:   c.Fetch.MaxBytes,
		AllowHosts: c.Fetch.AllowHosts,
		UserAgent:  c.Fetch.UserAgent,
	}
	if c.Fetch.Cache {
		opts.CacheDir = cacheDir
	}
	return opts
}

// PollInterval returns the spool rescan interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Watch.PollIntervalSeconds) * time.Second
}

// ///////////////////////////////////////////////
// Spool Helpers
// ///////////////////////////////////////////////

// MatchesJob reports whether a spool file name matches any watch pattern.
func (c *Config) MatchesJob(name string) bool {
	for _, pattern := range c.Watch.Patterns {
		matched, err := doublestar.Match(pattern, name)
		if err != nil {
			slog.Warn("invalid glob pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
