package config

import (
	"sort"

	"dirmon/internal/fsutil"
)

// SkippedDir records a configured directory that cannot be watched.
type SkippedDir struct {
	Path   string
	Reason error
}

// ResolveWatchDirs normalizes every configured path and keeps the ones that
// exist and are directories. Paths that normalize to the same directory are
// merged; the first in sorted order wins.
func ResolveWatchDirs(dirs map[string]DirActions) (map[string]DirActions, []SkippedDir) {
	paths := make([]string, 0, len(dirs))
	for path := range dirs {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	valid := make(map[string]DirActions, len(dirs))
	var skipped []SkippedDir
	for _, path := range paths {
		normalized, err := fsutil.NormalizePath(path)
		if err != nil {
			skipped = append(skipped, SkippedDir{Path: path, Reason: err})
			continue
		}
		if err := fsutil.CheckDir(normalized); err != nil {
			skipped = append(skipped, SkippedDir{Path: path, Reason: err})
			continue
		}
		if _, exists := valid[normalized]; exists {
			continue
		}
		valid[normalized] = dirs[path]
	}
	return valid, skipped
}
