package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dirmon/internal/config/tomlkeys"
	"dirmon/internal/logging"

	"gopkg.in/yaml.v3"
)

const (
	KeyChannel     = "channel"
	KeyLogFile     = "log-file"
	KeyLogLevel    = "log-level"
	KeyGreeting    = "greeting"
	KeyEcho        = "echo"
	KeyRearmAccept = "rearm-accept"
	KeyIdleSleep   = "idle-sleep"
	KeyPollWindow  = "poll-window"
	KeyMetricsAddr = "metrics-addr"
	KeyDirs        = "dirs"
)

var knownKeys = map[string]struct{}{
	KeyChannel:     {},
	KeyLogFile:     {},
	KeyLogLevel:    {},
	KeyGreeting:    {},
	KeyEcho:        {},
	KeyRearmAccept: {},
	KeyIdleSleep:   {},
	KeyPollWindow:  {},
	KeyMetricsAddr: {},
	KeyDirs:        {},
}

var ErrUnsupportedFormat = errors.New("unsupported config format")

// DirActions holds the action strings configured for one watched directory.
type DirActions struct {
	Create string
	Remove string
}

type Settings struct {
	Channel     string
	LogFile     string
	LogLevel    logging.Level
	Greeting    string
	Echo        bool
	RearmAccept bool
	IdleSleep   time.Duration
	PollWindow  time.Duration
	MetricsAddr string
	Dirs        map[string]DirActions
}

// Load layers the TOML defaults, the file at path and overrides, in that
// order. An empty path skips the file. The file format follows its
// extension: .yaml and .yml are YAML, anything else is TOML.
//
// Overrides use config keys. The "dirs" override takes a []string whose
// entries are added with no actions.
func Load(path string, defaultsPayload []byte, overrides map[string]any) (Settings, error) {
	defaultsStore, err := tomlkeys.Decode(defaultsPayload)
	if err != nil {
		return Settings{}, fmt.Errorf("decode defaults: %w", err)
	}
	defaults := defaultsStore.Flat()
	values := defaultsStore.Flat()
	dirs, err := dirsFromStore(defaultsStore)
	if err != nil {
		return Settings{}, fmt.Errorf("defaults: %w", err)
	}

	if strings.TrimSpace(path) != "" {
		store, err := decodeFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("load %s: %w", path, err)
		}
		if err := checkKnownKeys(store); err != nil {
			return Settings{}, fmt.Errorf("load %s: %w", path, err)
		}
		for key, value := range store.Flat() {
			values[key] = value
		}
		if _, ok := store.Value(KeyDirs); ok {
			dirs, err = dirsFromStore(store)
			if err != nil {
				return Settings{}, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	for key, value := range overrides {
		normalized := tomlkeys.NormalizeKey(key)
		if normalized == "" {
			continue
		}
		if normalized == KeyDirs {
			extra, ok := value.([]string)
			if !ok {
				return Settings{}, fmt.Errorf("dirs override must be a list of paths, got %T", value)
			}
			for _, dir := range extra {
				if _, exists := dirs[dir]; !exists {
					dirs[dir] = DirActions{}
				}
			}
			continue
		}
		values[normalized] = value
	}

	settings := Settings{Dirs: dirs}
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	rearmDefault, _ := boolSetting(defaults, KeyRearmAccept, true)
	settings.Channel, err = stringSetting(values, KeyChannel, "")
	collect(err)
	settings.LogFile, err = stringSetting(values, KeyLogFile, "")
	collect(err)
	settings.Greeting, err = stringSetting(values, KeyGreeting, "")
	collect(err)
	settings.MetricsAddr, err = stringSetting(values, KeyMetricsAddr, "")
	collect(err)
	settings.Echo, err = boolSetting(values, KeyEcho, false)
	collect(err)
	settings.RearmAccept, err = boolSetting(values, KeyRearmAccept, rearmDefault)
	collect(err)

	levelText, err := stringSetting(values, KeyLogLevel, "")
	if err != nil {
		errs = append(errs, err)
	} else {
		if levelText == "" {
			levelText = string(logging.LevelInfo)
		}
		level, ok := logging.ParseLevel(levelText)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: invalid level %q", KeyLogLevel, levelText))
		}
		settings.LogLevel = level
	}
	settings.IdleSleep, err = durationSetting(values, KeyIdleSleep, 0)
	collect(err)
	settings.PollWindow, err = durationSetting(values, KeyPollWindow, 0)
	collect(err)
	if err := errors.Join(errs...); err != nil {
		return Settings{}, err
	}

	return normalizeSettings(settings, defaults), nil
}

func normalizeSettings(settings Settings, defaults map[string]any) Settings {
	if settings.Channel == "" {
		settings.Channel, _ = stringSetting(defaults, KeyChannel, "DirMon")
	}
	if settings.IdleSleep <= 0 {
		settings.IdleSleep, _ = durationSetting(defaults, KeyIdleSleep, 10*time.Millisecond)
	}
	if settings.PollWindow <= 0 {
		settings.PollWindow, _ = durationSetting(defaults, KeyPollWindow, time.Millisecond)
	}
	if settings.Dirs == nil {
		settings.Dirs = map[string]DirActions{}
	}
	return settings
}

func decodeFile(path string) (tomlkeys.Store, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return tomlkeys.Store{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err := decodeYAML(payload)
		if err != nil {
			return tomlkeys.Store{}, err
		}
		return tomlkeys.FromRaw(raw), nil
	case ".toml", "":
		return tomlkeys.Decode(payload)
	default:
		return tomlkeys.Store{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func decodeYAML(payload []byte) (map[string]any, error) {
	raw := map[string]any{}
	decoder := yaml.NewDecoder(bytes.NewReader(payload))
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	return raw, nil
}

func checkKnownKeys(store tomlkeys.Store) error {
	var unknown []string
	for _, key := range store.TopLevelKeys() {
		if _, ok := knownKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return fmt.Errorf("unknown keys: %s", strings.Join(unknown, ", "))
}

// dirsFromStore accepts either a table of path -> actions or a list of paths.
func dirsFromStore(store tomlkeys.Store) (map[string]DirActions, error) {
	dirs := map[string]DirActions{}
	value, ok := store.Value(KeyDirs)
	if !ok || value == nil {
		return dirs, nil
	}

	switch typed := value.(type) {
	case map[string]any:
		paths := make([]string, 0, len(typed))
		for path := range typed {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			actions, err := parseActions(typed[path])
			if err != nil {
				return nil, fmt.Errorf("dirs %q: %w", path, err)
			}
			dirs[path] = actions
		}
	case []any:
		for index, item := range typed {
			path, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("dirs[%d]: expected a path string, got %T", index, item)
			}
			dirs[path] = DirActions{}
		}
	default:
		return nil, fmt.Errorf("dirs: expected a table or a list, got %T", value)
	}
	return dirs, nil
}

func parseActions(value any) (DirActions, error) {
	if value == nil {
		return DirActions{}, nil
	}
	table, ok := value.(map[string]any)
	if !ok {
		return DirActions{}, fmt.Errorf("expected a table of actions, got %T", value)
	}
	actions := DirActions{}
	for key, raw := range table {
		text, ok := raw.(string)
		if !ok {
			return DirActions{}, fmt.Errorf("action %q must be a string, got %T", key, raw)
		}
		switch tomlkeys.NormalizeKey(key) {
		case "create":
			actions.Create = strings.TrimSpace(text)
		case "remove":
			actions.Remove = strings.TrimSpace(text)
		default:
			return DirActions{}, fmt.Errorf("unknown action %q", key)
		}
	}
	return actions, nil
}

func stringSetting(values map[string]any, key string, fallback string) (string, error) {
	value, ok := values[tomlkeys.NormalizeKey(key)]
	if !ok || value == nil {
		return fallback, nil
	}
	parsed, ok := value.(string)
	if !ok {
		return fallback, fmt.Errorf("%s: expected a string, got %T", key, value)
	}
	return strings.TrimSpace(parsed), nil
}

func boolSetting(values map[string]any, key string, fallback bool) (bool, error) {
	value, ok := values[tomlkeys.NormalizeKey(key)]
	if !ok || value == nil {
		return fallback, nil
	}
	parsed, ok := value.(bool)
	if !ok {
		return fallback, fmt.Errorf("%s: expected true or false, got %T", key, value)
	}
	return parsed, nil
}

// durationSetting reads a Go duration string, a time.Duration, or an integer
// number of milliseconds.
func durationSetting(values map[string]any, key string, fallback time.Duration) (time.Duration, error) {
	value, ok := values[tomlkeys.NormalizeKey(key)]
	if !ok || value == nil {
		return fallback, nil
	}
	switch typed := value.(type) {
	case time.Duration:
		return checkDuration(key, typed)
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return fallback, nil
		}
		parsed, err := time.ParseDuration(trimmed)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return checkDuration(key, parsed)
	}
	if millis, ok := asInt64(value); ok {
		return checkDuration(key, time.Duration(millis)*time.Millisecond)
	}
	return 0, fmt.Errorf("%s: expected a duration, got %T", key, value)
}

func checkDuration(key string, value time.Duration) (time.Duration, error) {
	if value < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return value, nil
}

func asInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int64:
		return typed, true
	case int:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case uint64:
		return int64(typed), true
	case uint32:
		return int64(typed), true
	case float64:
		if typed == float64(int64(typed)) {
			return int64(typed), true
		}
	}
	return 0, false
}
