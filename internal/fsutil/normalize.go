package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrNotDirectory = errors.New("not a directory")

// NormalizePath expands a leading "~", makes the path absolute and cleans it.
func NormalizePath(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", errors.New("path is empty")
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~"+string(os.PathSeparator)) || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %q: %w", pathValue, err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed[1:], "/"))
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", pathValue, err)
	}
	return filepath.Clean(abs), nil
}

// CheckDir reports an error unless pathValue exists and is a directory.
func CheckDir(pathValue string) error {
	info, err := os.Stat(pathValue)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", pathValue, ErrNotDirectory)
	}
	return nil
}
