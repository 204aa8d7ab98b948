package config

import "reflect"

// ConfigDiff describes what changed between two configs. Log level, tool
// keys, and the admin token can be applied to a running server; provider and
// memory changes require a restart and are only flagged.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ToolsChanged is set when any tool API key or timeout changed.
	ToolsChanged bool

	// AdminTokenChanged is set when the plugin admin token changed.
	AdminTokenChanged bool

	// RestartRequired is set when providers or memory settings changed.
	// These are wired at startup and cannot be hot-swapped.
	RestartRequired bool
}

// Changed reports whether the diff carries any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.ToolsChanged || d.AdminTokenChanged || d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Server.AdminToken != new.Server.AdminToken {
		d.AdminTokenChanged = true
	}
	if old.Tools != new.Tools {
		d.ToolsChanged = true
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) || old.Memory != new.Memory || old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = true
	}

	return d
}
