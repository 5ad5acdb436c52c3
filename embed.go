package dirmon

import "embed"

// EmbeddedConfigFS provides the built-in default configuration.
//
//go:embed config
var EmbeddedConfigFS embed.FS

// DefaultConfigPath is the location of the defaults inside EmbeddedConfigFS.
const DefaultConfigPath = "config/dirmon.toml"
