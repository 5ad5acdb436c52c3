package endpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	socketSuffix          = ".sock"
	stalenessProbeTimeout = 100 * time.Millisecond
)

// ResolvePath maps a channel identifier to a socket path. A bare name lives
// in $XDG_RUNTIME_DIR (or the temp dir) as <name>.sock; anything containing a
// path separator is used as given.
func ResolvePath(channel string) (string, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return "", errors.New("channel name is required")
	}
	if strings.ContainsAny(channel, `/\`) {
		return filepath.Clean(channel), nil
	}
	if channel == "." || channel == ".." {
		return "", fmt.Errorf("invalid channel name %q", channel)
	}
	return filepath.Join(runtimeDir(), channel+socketSuffix), nil
}

func runtimeDir() string {
	if dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR")); dir != "" {
		return dir
	}
	return os.TempDir()
}

func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("inspect %s: %w", path, err)
	}
	if info.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	if conn, err := net.DialTimeout("unix", path, stalenessProbeTimeout); err == nil {
		_ = conn.Close()
		return fmt.Errorf("channel %s is in use", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	return nil
}

// Dial connects to the channel as a client.
func Dial(channel string, timeout time.Duration) (net.Conn, error) {
	path, err := ResolvePath(channel)
	if err != nil {
		return nil, err
	}
	dialer := net.Dialer{Timeout: timeout}
	return dialer.Dial("unix", path)
}
