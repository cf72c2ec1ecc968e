// Package main implements the avatarcard command, which renders quote cards
// and welcome banners from the command line or from a spool directory.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"

	rootpkg "tools.zach/dev/avatarcard"
	"tools.zach/dev/avatarcard/internal/card"
	"tools.zach/dev/avatarcard/internal/config"
	"tools.zach/dev/avatarcard/internal/fetch"
	"tools.zach/dev/avatarcard/internal/logger"
	"tools.zach/dev/avatarcard/internal/paths"
	"tools.zach/dev/avatarcard/internal/spool"
	"tools.zach/dev/avatarcard/internal/typeface"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//   - goreleaser: -X main.version={{.Version}}  -> "0.1.0"
//   - make build: -X main.version=$(VERSION)    -> "0.0.0-dev+05ffee5"
//
// Bare go builds fall back to the VCS info embedded by the toolchain.
var version = "dev"

// resolveVersion returns the ldflags version, or "dev+<hash>" built from the
// embedded VCS revision.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// PID Management
// ///////////////////////////////////////////////

// pidToken generates a random token proving ownership of the PID file, so
// [removePID] only deletes a file this instance wrote.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID opens the PID file, takes the advisory lock, and writes
// "PID:TOKEN". The handle must stay open while the watcher runs.
func writePID(dp DataPaths, token string) (*os.File, error) {
	f, err := os.OpenFile(dp.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d:%s", os.Getpid(), token); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return f, nil
}

// removePID releases the lock and removes the PID file if it still holds
// token.
func removePID(dp DataPaths, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	data, err := os.ReadFile(dp.PID())
	if err != nil {
		return
	}
	parts := strings.SplitN(string(data), ":", 2)
	if len(parts) == 2 && parts[1] == token {
		os.Remove(dp.PID())
	}
}

// checkStalePID reports whether another watcher holds the PID lock. A file
// left by a dead instance is removed.
func checkStalePID(dp DataPaths) (alive bool, pid int) {
	f, err := os.OpenFile(dp.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockFile(f); lockErr != nil {
		data, _ := os.ReadFile(dp.PID())
		f.Close()
		parts := strings.SplitN(string(data), ":", 2)
		if p, convErr := strconv.Atoi(parts[0]); convErr == nil {
			return true, p
		}
		return true, 0
	}

	_ = unlockFile(f)
	f.Close()
	os.Remove(dp.PID())
	return false, 0
}

// ///////////////////////////////////////////////
// Default Data Directory
// ///////////////////////////////////////////////

// defaultDataDir returns ~/.avatarcard, or ./.avatarcard when the home
// directory is unknown.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

// ///////////////////////////////////////////////
// Setup
// ///////////////////////////////////////////////

// app holds the state shared by the rendering subcommands.
type app struct {
	paths    DataPaths
	cfg      *config.Config
	renderer *card.Renderer
	closer   io.Closer
}

func (a *app) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// setup prepares the data directory, loads config, and installs the logger.
// Fonts are loaded only when the quote pipeline is enabled.
func setup(ctx context.Context, dp DataPaths, verbose bool, stderr io.Writer) (*app, error) {
	if err := os.MkdirAll(dp.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if _, err := os.Stat(dp.Config()); os.IsNotExist(err) {
		if writeErr := os.WriteFile(dp.Config(), rootpkg.DefaultConfigTOML, 0o644); writeErr != nil {
			fmt.Fprintf(stderr, "warning: failed to write default config: %v\n", writeErr)
		}
	}

	cfg, err := config.Load(dp.Root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	opts := logger.Options{
		Path:      dp.Log(),
		Level:     logger.ParseLevel(cfg.Log.Level),
		MaxSizeMB: cfg.Log.MaxSizeMB,
	}
	if verbose {
		opts.Mirror = stderr
	}
	log, closer, err := logger.NewLogger(opts)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	a := &app{paths: dp, cfg: cfg, closer: closer}
	a.renderer, err = buildRenderer(ctx, cfg, dp)
	if err != nil {
		logger.Fail(log, "failed to build renderer", "error", err)
		a.Close()
		return nil, err
	}
	return a, nil
}

// buildRenderer wires the fetcher, fonts, and layouts from cfg.
func buildRenderer(ctx context.Context, cfg *config.Config, dp DataPaths) (*card.Renderer, error) {
	quoteLayout, err := cfg.QuoteLayout()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	welcomeLayout, err := cfg.WelcomeLayout()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	f := fetch.New(cfg.FetchOptions(dp.AvatarCache()))
	r := &card.Renderer{
		Fetcher:        f,
		Quote:          quoteLayout,
		Welcome:        welcomeLayout,
		OutputDir:      dp.Output(),
		Naming:         cfg.Naming(),
		QuoteEnabled:   cfg.Features.Quote,
		WelcomeEnabled: cfg.Features.Welcome,
	}
	if !cfg.Features.Quote {
		return r, nil
	}

	res := &typeface.Resolver{
		Client:    f.Client(),
		CacheDir:  dp.FontCache(),
		UserAgent: cfg.Fetch.UserAgent,
	}
	regular, err := res.Resolve(ctx, "regular", cfg.Fonts.Regular, cfg.Fonts.RegularFallback)
	if err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}
	italic, err := res.Resolve(ctx, "italic", cfg.Fonts.Italic, cfg.Fonts.ItalicFallback)
	if err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}
	r.Regular, r.Italic = regular, italic
	return r, nil
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

const usage = `usage: avatarcard [-data-dir DIR] [-v] <command> [flags]

commands:
  quote    -avatar SRC -content TEXT [-name NAME] [-id ID]
  welcome  -bg SRC -avatar SRC [-x N] [-y N] [-size N] [-o FILE]
  watch    render job files dropped into <data>/jobs
  logs     [-n LINES]
  version
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(paths.BinaryName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	dataDir := fs.String("data-dir", defaultDataDir(), "Data directory for config, output, cache, and logs")
	verbose := fs.Bool("v", false, "Mirror log output to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	dp := DataPaths{Root: *dataDir}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "%s %s\n", paths.BinaryName, resolveVersion())
		return 0
	case "logs":
		return runLogs(dp, rest, stdout, stderr)
	case "quote", "welcome", "watch":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}

	ctx := context.Background()
	a, err := setup(ctx, dp, *verbose, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return 1
	}
	defer a.Close()
	slog.Info("avatarcard starting", "version", resolveVersion(), "command", cmd, "data_dir", dp.Root)

	switch cmd {
	case "quote":
		return runQuote(ctx, a, rest, stdout, stderr)
	case "welcome":
		return runWelcome(ctx, a, rest, stdout, stderr)
	default:
		return runWatch(a, rest, stderr)
	}
}

// ///////////////////////////////////////////////
// Commands
// ///////////////////////////////////////////////

func runQuote(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	fs.SetOutput(stderr)
	avatarSrc := fs.String("avatar", "", "Avatar URL or path")
	content := fs.String("content", "", "Quote text")
	name := fs.String("name", "", "Author name")
	id := fs.String("id", "", "Output name when quote.naming is \"id\"")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *avatarSrc == "" {
		fmt.Fprintln(stderr, "quote: -avatar is required")
		return 2
	}

	cwd, _ := os.Getwd()
	res, err := a.renderer.WriteQuote(ctx, card.Quote{
		Avatar:  fetch.ParseSource(*avatarSrc, cwd),
		Content: *content,
		Name:    *name,
		ID:      *id,
	})
	if err != nil {
		slog.Error("quote failed", "error", err)
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	slog.Info("quote rendered", "output", res.Path, "lines", len(res.Lines))
	fmt.Fprintln(stdout, res.Path)
	return 0
}

func runWelcome(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("welcome", flag.ContinueOnError)
	fs.SetOutput(stderr)
	bg := fs.String("bg", "", "Background URL or path")
	avatarSrc := fs.String("avatar", "", "Avatar URL or path")
	x := fs.Int("x", 0, "Avatar position x (before the anchor shift)")
	y := fs.Int("y", 0, "Avatar position y (before the anchor shift)")
	size := fs.Int("size", 0, "Avatar diameter; 0 uses welcome.avatar_size")
	out := fs.String("o", "", "Output file name inside the output directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *bg == "" || *avatarSrc == "" {
		fmt.Fprintln(stderr, "welcome: -bg and -avatar are required")
		return 2
	}
	if *size < 0 {
		fmt.Fprintf(stderr, "welcome: -size must be >= 0, got %d\n", *size)
		return 2
	}

	cwd, _ := os.Getwd()
	res, err := a.renderer.WriteWelcome(ctx, card.Welcome{
		Background: fetch.ParseSource(*bg, cwd),
		Avatar:     fetch.ParseSource(*avatarSrc, cwd),
		X:          *x,
		Y:          *y,
		Size:       *size,
		Output:     *out,
	})
	if err != nil {
		slog.Error("welcome failed", "error", err)
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	slog.Info("welcome rendered", "output", res.Path, "anchor", res.Placement.Anchor, "rescaled", res.Placement.Rescaled)
	fmt.Fprintln(stdout, res.Path)
	return 0
}

func runWatch(a *app, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if alive, pid := checkStalePID(a.paths); alive {
		fmt.Fprintf(stderr, "watcher already running (pid %d)\n", pid)
		return 1
	}
	token := pidToken()
	pidFile, err := writePID(a.paths, token)
	if err != nil {
		logger.Fail(slog.Default(), "failed to write PID file", "error", err)
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return 1
	}
	defer removePID(a.paths, token, pidFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := signalChannel()
	go func() {
		select {
		case <-sigCh:
			slog.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	s := spool.New(a.renderer, spool.Options{
		Dir:          a.paths.Jobs(),
		DoneDir:      a.paths.JobsDone(),
		FailedDir:    a.paths.JobsFailed(),
		Match:        a.cfg.MatchesJob,
		PollInterval: a.cfg.PollInterval(),
	})
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fail(slog.Default(), "spool stopped", "error", err)
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	slog.Info("watcher stopped")
	return 0
}

func runLogs(dp DataPaths, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	n := fs.Int("n", 50, "Number of lines to show")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	tail, err := logger.ReadTail(dp.Log(), *n)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(stderr, "no log file yet")
			return 1
		}
		fmt.Fprintf(stderr, "error: read log: %v\n", err)
		return 1
	}
	if tail != "" {
		fmt.Fprintln(stdout, tail)
	}
	return 0
}
