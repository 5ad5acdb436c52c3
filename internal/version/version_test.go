package version

import "testing"

func TestGetVersionInfo(t *testing.T) {
	previousVersion := Version
	previousBuilt := Built
	previousCommit := GitCommit

	Version = " 1.2.3 "
	Built = "2026-01-11T12:34:56Z"
	GitCommit = "abc123"

	t.Cleanup(func() {
		Version = previousVersion
		Built = previousBuilt
		GitCommit = previousCommit
	})

	info := GetVersionInfo()
	if info.Version != "1.2.3" {
		t.Fatalf("expected trimmed version, got %q", info.Version)
	}
	if info.Built != "2026-01-11T12:34:56Z" || info.GitCommit != "abc123" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		name string
		info VersionInfo
		want string
	}{
		{name: "dev", info: VersionInfo{Version: "dev"}, want: "dirmon dev"},
		{name: "empty", info: VersionInfo{}, want: "dirmon dev"},
		{name: "plain", info: VersionInfo{Version: "0.4.0"}, want: "dirmon version 0.4.0"},
		{
			name: "details",
			info: VersionInfo{Version: "0.4.0", GitCommit: "abc123", Built: "2026-01-11"},
			want: "dirmon version 0.4.0 (commit abc123, built 2026-01-11)",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.info.Format("dirmon"); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
