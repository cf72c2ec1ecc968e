package spool

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/avatarcard/internal/card"
	"tools.zach/dev/avatarcard/internal/fetch"
	"tools.zach/dev/avatarcard/internal/migrate"
)

// Kind selects the pipeline a job runs.
type Kind string

const (
	KindQuote   Kind = "quote"
	KindWelcome Kind = "welcome"
)

// Job is one spool file. Quote jobs use Avatar, Content, Name, and ID.
// Welcome jobs use Background, Avatar, X, Y, Size, and Output. Avatar and
// Background are URLs or paths; relative paths resolve against the job's
// directory.
//
//	version = 1
//	kind = "quote"
//	avatar = "https://cdn.discordapp.com/avatars/1/a.png"
//	content = "Hello world"
//	name = "Ada"
type Job struct {
	Version int    `toml:"version"`
	Kind    Kind   `toml:"kind"`
	ID      string `toml:"id"`

	Avatar  string `toml:"avatar"`
	Content string `toml:"content"`
	Name    string `toml:"name"`

	Background string `toml:"background"`
	X          int    `toml:"x"`
	Y          int    `toml:"y"`
	Size       int    `toml:"size"`
	Output     string `toml:"output"`

	// dir is the directory the job was read from.
	dir string
}

// LoadJob reads, upgrades, and validates a job file. Unknown keys are
// rejected so typos fail loudly instead of rendering defaults.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}
	data, _, err = migrate.Job.Upgrade(data)
	if err != nil {
		return nil, err
	}

	var j Job
	md, err := toml.Decode(string(data), &j)
	if err != nil {
		return nil, fmt.Errorf("parse job: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parse job: unknown keys %s", strings.Join(keys, ", "))
	}
	j.dir = filepath.Dir(path)
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}

// Validate checks the fields the job's kind needs.
func (j *Job) Validate() error {
	if strings.TrimSpace(j.Avatar) == "" {
		return fmt.Errorf("job: avatar is required")
	}
	switch j.Kind {
	case KindQuote:
	case KindWelcome:
		if strings.TrimSpace(j.Background) == "" {
			return fmt.Errorf("job: welcome requires background")
		}
		if j.Size < 0 {
			return fmt.Errorf("job: size must be >= 0, got %d", j.Size)
		}
	default:
		return fmt.Errorf("invalid job kind %q: must be quote or welcome", j.Kind)
	}
	return nil
}

// Quote converts a quote job into a card request.
func (j *Job) Quote() card.Quote {
	return card.Quote{
		Avatar:  fetch.ParseSource(j.Avatar, j.dir),
		Content: j.Content,
		Name:    j.Name,
		ID:      j.ID,
	}
}

// Welcome converts a welcome job into a card request.
func (j *Job) Welcome() card.Welcome {
	return card.Welcome{
		Background: fetch.ParseSource(j.Background, j.dir),
		Avatar:     fetch.ParseSource(j.Avatar, j.dir),
		X:          j.X,
		Y:          j.Y,
		Size:       j.Size,
		Output:     j.Output,
	}
}
