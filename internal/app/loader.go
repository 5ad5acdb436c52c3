package app

import (
	"dirmon/internal/config"
	"dirmon/internal/logging"
	"dirmon/internal/watcher"
)

// LoadWatchDirs resolves the configured directories and converts them to
// bridge actions. Unusable entries are logged and left out.
func LoadWatchDirs(logger *logging.Logger, dirs map[string]config.DirActions) map[string]watcher.Actions {
	resolved, skipped := config.ResolveWatchDirs(dirs)
	for _, entry := range skipped {
		logger.Warn("skipping directory", map[string]string{
			"path":  entry.Path,
			"error": entry.Reason.Error(),
		})
	}
	actions := make(map[string]watcher.Actions, len(resolved))
	for path, configured := range resolved {
		actions[path] = watcher.Actions{
			Create: configured.Create,
			Remove: configured.Remove,
		}
	}
	return actions
}
