// Package migrate upgrades versioned TOML documents (the config file and
// spool job files) one schema version at a time.
package migrate

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/BurntSushi/toml"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Migration upgrades a document to Version from the version before it.
type Migration struct {
	// Version is the schema version this migration produces.
	Version int
	// Description is a short label for log output.
	Description string
	// Upgrade rewrites the raw document.
	Upgrade func(data []byte) ([]byte, error)
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// PeekVersion reads the top-level version key of a TOML document. Missing,
// zero, or unparsable versions count as 1.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if _, err := toml.Decode(string(data), &v); err != nil || v.Version <= 0 {
		return 1
	}
	return v.Version
}

// Run applies every migration newer than fromVersion in version order and
// returns the data together with the version reached.
func Run(data []byte, fromVersion int, migrations []Migration) ([]byte, int, error) {
	sorted := slices.Clone(migrations)
	slices.SortFunc(sorted, func(a, b Migration) int { return a.Version - b.Version })

	version := fromVersion
	for _, m := range sorted {
		if m.Version <= version {
			continue
		}
		slog.Info("applying migration", "version", m.Version, "description", m.Description)
		out, err := m.Upgrade(data)
		if err != nil {
			return nil, version, fmt.Errorf("migration to v%d failed: %w", m.Version, err)
		}
		data, version = out, m.Version
	}
	return data, version, nil
}
