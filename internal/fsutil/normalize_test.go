package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	cases := []struct {
		name      string
		input     string
		want      string
		expectErr bool
	}{
		{name: "absolute", input: "/var/spool/../spool/in/", want: "/var/spool/in"},
		{name: "relative", input: "incoming", want: filepath.Join(cwd, "incoming")},
		{name: "home", input: "~/drop", want: filepath.Join(home, "drop")},
		{name: "bare home", input: "~", want: home},
		{name: "padded", input: "  /tmp  ", want: "/tmp"},
		{name: "empty", input: " ", expectErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizePath(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestCheckDir(t *testing.T) {
	root := t.TempDir()
	if err := CheckDir(root); err != nil {
		t.Fatalf("expected directory to pass: %v", err)
	}

	file := filepath.Join(root, "file.txt")
	if err := os.WriteFile(file, []byte("ok"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := CheckDir(file); !errors.Is(err, ErrNotDirectory) {
		t.Fatalf("expected ErrNotDirectory, got %v", err)
	}

	if err := CheckDir(filepath.Join(root, "missing")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
