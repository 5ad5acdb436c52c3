package tomlkeys

import (
	"slices"
	"testing"
)

func TestKeySpellingsAreEquivalent(t *testing.T) {
	store, err := Decode([]byte("LOG_LEVEL = \"debug\"\nRearm_Accept = false\n"))
	if err != nil {
		t.Fatalf("decode toml: %v", err)
	}
	if value, ok := store.Lookup("log-level"); !ok || value != "debug" {
		t.Fatalf("expected log-level debug, got %v", value)
	}
	if value, ok := store.Lookup("REARM_ACCEPT"); !ok || value != false {
		t.Fatalf("expected rearm-accept false, got %v", value)
	}
}

func TestLeafTypesArePreserved(t *testing.T) {
	store, err := Decode([]byte("echo = true\nidle-sleep = 7\nchannel = \"DirMon\"\ndirs = [\"/srv/in\", \"/srv/out\"]\n"))
	if err != nil {
		t.Fatalf("decode toml: %v", err)
	}
	flat := store.Flat()
	if flat["echo"] != true {
		t.Fatalf("expected bool echo, got %T", flat["echo"])
	}
	if flat["idle-sleep"] != int64(7) {
		t.Fatalf("expected int64 idle-sleep, got %T", flat["idle-sleep"])
	}
	items, ok := flat["dirs"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("expected two dirs, got %v", flat["dirs"])
	}

	flat["channel"] = "changed"
	if value, _ := store.Lookup("channel"); value != "DirMon" {
		t.Fatal("expected Flat to return a copy")
	}
}

func TestTableKeepsDottedKeys(t *testing.T) {
	input := `[dirs."/srv/in.d"]
create = "notify"

[dirs."/srv/out"]
remove = "archive"
`
	store, err := Decode([]byte(input))
	if err != nil {
		t.Fatalf("decode toml: %v", err)
	}
	table, ok := store.Table("DIRS")
	if !ok {
		t.Fatal("expected dirs table")
	}
	entry, ok := table["/srv/in.d"].(map[string]any)
	if !ok || entry["create"] != "notify" {
		t.Fatalf("expected /srv/in.d entry, got %v", table)
	}
	if _, ok := table["/srv/out"]; !ok {
		t.Fatalf("expected /srv/out entry, got %v", table)
	}
	if _, ok := store.Table("channel"); ok {
		t.Fatal("expected missing table")
	}
}

func TestFromRawTopLevelKeys(t *testing.T) {
	store := FromRaw(map[string]any{
		"Channel":   "x",
		"log_level": "info",
		"dirs":      map[string]any{},
	})
	if keys := store.TopLevelKeys(); !slices.Equal(keys, []string{"channel", "dirs", "log-level"}) {
		t.Fatalf("unexpected keys %v", keys)
	}
	if value, ok := store.Value("LOG-LEVEL"); !ok || value != "info" {
		t.Fatalf("expected log-level value, got %v", value)
	}
	if len(FromRaw(nil).TopLevelKeys()) != 0 {
		t.Fatal("expected empty store from nil")
	}
}

func TestCollidingSpellingsFirstSortedWins(t *testing.T) {
	store := FromRaw(map[string]any{
		"log-level": "debug",
		"log_level": "error",
	})
	if value, _ := store.Lookup("log-level"); value != "debug" {
		t.Fatalf("expected first sorted spelling to win, got %v", value)
	}
}
