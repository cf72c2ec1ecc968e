// Package paths centralizes file and directory names used across the project.
// All data directory file names are defined here as the single source of truth.
package paths

import "path/filepath"

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	PIDFile    = "watch.pid"
	ConfigFile = "config.toml"
	LogFile    = "avatarcard.log"
	OutputDir  = "out"
	CacheDir   = "cache"
	AvatarsDir = "avatars"
	FontsDir   = "fonts"
	JobsDir    = "jobs"
	DoneDir    = "done"
	FailedDir  = "failed"
)

// Binary and data directory naming.
const (
	BinaryName = "avatarcard"
	DataDirRel = ".avatarcard" // relative to $HOME
	ErrNoteExt = ".err"
)

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// PID returns the full path to the spool watcher's lock file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// Output returns the directory rendered images are written to.
func (d DataDir) Output() string { return filepath.Join(d.Root, OutputDir) }

// AvatarCache returns the directory fetched avatars are cached in.
func (d DataDir) AvatarCache() string { return filepath.Join(d.Root, CacheDir, AvatarsDir) }

// FontCache returns the directory downloaded fonts are cached in.
func (d DataDir) FontCache() string { return filepath.Join(d.Root, CacheDir, FontsDir) }

// Jobs returns the spool directory watched for job files.
func (d DataDir) Jobs() string { return filepath.Join(d.Root, JobsDir) }

// JobsDone returns the directory finished jobs are moved to.
func (d DataDir) JobsDone() string { return filepath.Join(d.Root, JobsDir, DoneDir) }

// JobsFailed returns the directory failed jobs are moved to.
func (d DataDir) JobsFailed() string { return filepath.Join(d.Root, JobsDir, FailedDir) }
