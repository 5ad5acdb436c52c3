package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"dirmon/internal/fsutil"
)

func TestResolveWatchDirs(t *testing.T) {
	root := t.TempDir()
	valid := filepath.Join(root, "in")
	if err := os.Mkdir(valid, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	plain := filepath.Join(root, "plain.txt")
	if err := os.WriteFile(plain, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	missing := filepath.Join(root, "missing")

	resolved, skipped := ResolveWatchDirs(map[string]DirActions{
		valid:             {Create: "notify"},
		valid + "/../in/": {Remove: "ignored"},
		plain:             {},
		missing:           {},
	})

	if len(resolved) != 1 {
		t.Fatalf("expected 1 valid dir, got %v", resolved)
	}
	if got := resolved[valid]; got.Create != "notify" {
		t.Fatalf("expected first entry to win, got %+v", got)
	}

	if len(skipped) != 2 {
		t.Fatalf("expected 2 skipped dirs, got %v", skipped)
	}
	reasons := map[string]error{}
	for _, entry := range skipped {
		reasons[entry.Path] = entry.Reason
	}
	if !errors.Is(reasons[plain], fsutil.ErrNotDirectory) {
		t.Fatalf("expected not-a-directory for %s, got %v", plain, reasons[plain])
	}
	if !errors.Is(reasons[missing], fs.ErrNotExist) {
		t.Fatalf("expected not-exist for %s, got %v", missing, reasons[missing])
	}
}
