package migrate

import "fmt"

// Registry holds the schema version and migrations of one document kind.
// Config files and job files each get their own so their version numbers
// move independently.
type Registry struct {
	// Name labels the document kind in errors.
	Name string
	// CurrentVersion is the version documents are upgraded to.
	CurrentVersion int
	// Migrations is exported so tests can swap the list.
	Migrations []Migration
	// Dev holds local-only transforms applied without a version bump.
	Dev []Migration
}

// Register adds m. Registering the same version twice panics.
func (r *Registry) Register(m Migration) {
	for _, existing := range r.Migrations {
		if existing.Version == m.Version {
			panic(fmt.Sprintf("migrate: %s: duplicate migration version %d (description: %q)", r.Name, m.Version, m.Description))
		}
	}
	r.Migrations = append(r.Migrations, m)
}

// RegisterDev adds a dev transform. Descriptions must be unique.
func (r *Registry) RegisterDev(m Migration) {
	for _, existing := range r.Dev {
		if existing.Description == m.Description {
			panic(fmt.Sprintf("migrate: %s: duplicate dev transform %q", r.Name, m.Description))
		}
	}
	r.Dev = append(r.Dev, m)
}

// Run applies the registered migrations newer than fromVersion.
func (r *Registry) Run(data []byte, fromVersion int) ([]byte, int, error) {
	return Run(data, fromVersion, r.Migrations)
}

// RunDev applies every dev transform in registration order.
func (r *Registry) RunDev(data []byte) ([]byte, error) {
	for _, m := range r.Dev {
		var err error
		data, err = m.Upgrade(data)
		if err != nil {
			return nil, fmt.Errorf("dev transform %q: %w", m.Description, err)
		}
	}
	return data, nil
}

// HasDev reports whether any dev transforms are registered.
func (r *Registry) HasDev() bool {
	return len(r.Dev) > 0
}

// Upgrade brings data from its on-disk version to CurrentVersion and then
// applies the dev transforms. changed reports whether the caller should
// persist the result.
func (r *Registry) Upgrade(data []byte) (out []byte, changed bool, err error) {
	from := PeekVersion(data)
	if from > r.CurrentVersion {
		return nil, false, fmt.Errorf("%s version %d is newer than supported version %d", r.Name, from, r.CurrentVersion)
	}
	if from != r.CurrentVersion {
		data, _, err = r.Run(data, from)
		if err != nil {
			return nil, false, fmt.Errorf("migrate %s: %w", r.Name, err)
		}
		changed = true
	}
	if r.HasDev() {
		data, err = r.RunDev(data)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", r.Name, err)
		}
		changed = true
	}
	return data, changed, nil
}

// Config is the registry for config.toml.
var Config = &Registry{Name: "config", CurrentVersion: 1}

// Job is the registry for spool job files.
var Job = &Registry{Name: "job", CurrentVersion: 1}
