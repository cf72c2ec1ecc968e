// Package spool renders cards from job files dropped into a directory.
//
// Writers should create jobs atomically (write a temp name, then rename) so
// a half-written file never matches the watch patterns. Each job is moved to
// the done directory after a successful render, or to the failed directory
// next to a ".err" note holding the error.
package spool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"tools.zach/dev/avatarcard/internal/atomicfile"
	"tools.zach/dev/avatarcard/internal/card"
	"tools.zach/dev/avatarcard/internal/logger"
	"tools.zach/dev/avatarcard/internal/paths"
)

// Renderer runs the two pipelines. *card.Renderer implements it.
type Renderer interface {
	WriteQuote(ctx context.Context, q card.Quote) (*card.QuoteResult, error)
	WriteWelcome(ctx context.Context, w card.Welcome) (*card.WelcomeResult, error)
}

// Options configures a [Spool].
type Options struct {
	// Dir is scanned for jobs. DoneDir and FailedDir receive processed files.
	Dir       string
	DoneDir   string
	FailedDir string
	// Match filters job file names. Required.
	Match func(name string) bool
	// PollInterval is used when fsnotify is unavailable.
	PollInterval time.Duration
}

// Spool processes job files one at a time.
type Spool struct {
	r    Renderer
	opts Options
}

// New returns a Spool that renders with r.
func New(r Renderer, opts Options) *Spool {
	return &Spool{r: r, opts: opts}
}

// Stats counts the outcome of one scan.
type Stats struct {
	Done   int
	Failed int
}

// Run processes jobs already waiting, then every job that arrives, until ctx
// is cancelled.
func (s *Spool) Run(ctx context.Context) error {
	for _, dir := range []string{s.opts.Dir, s.opts.DoneDir, s.opts.FailedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create spool dir: %w", err)
		}
	}

	w, err := NewWatcher(s.opts.Dir, s.opts.Match, s.opts.PollInterval)
	if err != nil {
		return err
	}
	defer w.Close()
	slog.Info("watching spool", "dir", s.opts.Dir, "polling", w.Polling())

	s.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Events():
			s.scan(ctx)
		}
	}
}

func (s *Spool) scan(ctx context.Context) {
	st, err := s.ProcessPending(ctx)
	if err != nil {
		slog.Warn("spool scan failed", "error", err)
		return
	}
	if st.Done+st.Failed > 0 {
		slog.Info("spool scan complete", "done", st.Done, "failed", st.Failed)
	}
}

// ProcessPending handles every matching file currently in the directory in
// name order.
func (s *Spool) ProcessPending(ctx context.Context) (Stats, error) {
	var st Stats
	if s.opts.Match == nil {
		return st, fmt.Errorf("spool: nil match func")
	}
	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		return st, fmt.Errorf("read spool dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && s.opts.Match(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if ctx.Err() != nil {
			return st, ctx.Err()
		}
		path := filepath.Join(s.opts.Dir, name)
		jobErr := s.process(ctx, path)
		if errors.Is(jobErr, context.Canceled) {
			// Leave the job in place for the next run.
			return st, jobErr
		}
		if jobErr != nil {
			st.Failed++
			slog.Warn("job failed", "job", name, "error", jobErr)
			if err := s.fail(path, jobErr); err != nil {
				return st, err
			}
			continue
		}
		st.Done++
		if err := moveInto(path, s.opts.DoneDir); err != nil {
			return st, err
		}
	}
	return st, nil
}

func (s *Spool) process(ctx context.Context, path string) error {
	job, err := LoadJob(path)
	if err != nil {
		return err
	}
	logger.Trace(slog.Default(), "job loaded", "job", filepath.Base(path), "kind", job.Kind)

	switch job.Kind {
	case KindQuote:
		res, err := s.r.WriteQuote(ctx, job.Quote())
		if err != nil {
			return err
		}
		slog.Info("quote job rendered", "job", filepath.Base(path), "output", res.Path, "lines", len(res.Lines))
	case KindWelcome:
		res, err := s.r.WriteWelcome(ctx, job.Welcome())
		if err != nil {
			return err
		}
		slog.Info("welcome job rendered", "job", filepath.Base(path), "output", res.Path, "rescaled", res.Placement.Rescaled)
	}
	return nil
}

func (s *Spool) fail(path string, jobErr error) error {
	if err := moveInto(path, s.opts.FailedDir); err != nil {
		return err
	}
	note := filepath.Join(s.opts.FailedDir, filepath.Base(path)+paths.ErrNoteExt)
	if err := atomicfile.Write(note, []byte(jobErr.Error()+"\n"), 0o644); err != nil {
		return fmt.Errorf("write error note: %w", err)
	}
	return nil
}

// moveInto renames path into dir, replacing a file of the same name.
func moveInto(path, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := os.Rename(path, filepath.Join(dir, filepath.Base(path))); err != nil {
		return fmt.Errorf("move job: %w", err)
	}
	return nil
}
