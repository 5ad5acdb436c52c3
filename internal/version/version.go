package version

import (
	"fmt"
	"strings"
)

// Version values are set at build time using -ldflags.
var Version = "dev"
var Built = ""
var GitCommit = ""

type VersionInfo struct {
	Version   string `json:"version"`
	Built     string `json:"built,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
}

func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   strings.TrimSpace(Version),
		Built:     strings.TrimSpace(Built),
		GitCommit: strings.TrimSpace(GitCommit),
	}
}

// Format renders a one-line version banner for name.
func (info VersionInfo) Format(name string) string {
	if info.Version == "" || info.Version == "dev" {
		return name + " dev"
	}
	line := fmt.Sprintf("%s version %s", name, info.Version)
	var details []string
	if info.GitCommit != "" {
		details = append(details, "commit "+info.GitCommit)
	}
	if info.Built != "" {
		details = append(details, "built "+info.Built)
	}
	if len(details) > 0 {
		line += " (" + strings.Join(details, ", ") + ")"
	}
	return line
}
