// Package avatarcard embeds the default configuration file.
//
// The root package exists solely to embed [config.default.toml] via
// [DefaultConfigTOML]. The CLI writes it to the data directory on first run.
package avatarcard

import _ "embed"

// DefaultConfigTOML holds the raw bytes of config.default.toml, generated by
// cmd/genconfig.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
