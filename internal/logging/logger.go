package logging

import (
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const DefaultBufferSize = 1000

// timestampLayout prefixes every line written to the output stream.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// levelRanks orders the known levels. Anything missing ranks as info.
var levelRanks = map[Level]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// levelNames maps accepted spellings to levels.
var levelNames = map[string]Level{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarning,
	"warning": LevelWarning,
	"error":   LevelError,
}

// sinks are shared by a logger and every logger derived from it.
type sinks struct {
	buffer *LogBuffer
	hub    *LogHub
	mutex  sync.Mutex
	out    io.Writer
	line   []byte
}

func (s *sinks) emit(entry LogEntry) {
	if s.buffer != nil {
		s.buffer.Add(entry)
	}
	s.hub.Broadcast(entry)
	if s.out == nil || s.out == io.Discard {
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.line = entry.Timestamp.AppendFormat(s.line[:0], timestampLayout)
	s.line = append(s.line, ' ')
	s.line = appendEntry(s.line, entry)
	s.line = append(s.line, '\n')
	_, _ = s.out.Write(s.line)
}

// Logger records leveled entries with string fields into a ring buffer, live
// subscribers and an output stream.
type Logger struct {
	sinks  *sinks
	level  Level
	fields map[string]string
}

// NewLoggerWithOutput builds a logger over buffer, or a fresh buffer of
// DefaultBufferSize when buffer is nil. A nil output discards lines.
func NewLoggerWithOutput(buffer *LogBuffer, minLevel Level, output io.Writer) *Logger {
	if buffer == nil {
		buffer = NewLogBuffer(DefaultBufferSize)
	}
	return &Logger{
		sinks: &sinks{buffer: buffer, hub: NewLogHub(), out: output},
		level: normalizeLevel(minLevel),
	}
}

// NewFileLogger writes every entry to stdout and, when path is set, appends
// it to the file at path. The returned closer releases the file.
func NewFileLogger(path string, minLevel Level, stdout io.Writer) (*Logger, io.Closer, error) {
	if stdout == nil {
		stdout = os.Stdout
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return NewLoggerWithOutput(nil, minLevel, stdout), io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return NewLoggerWithOutput(nil, minLevel, io.MultiWriter(stdout, file)), file, nil
}

func (l *Logger) Buffer() *LogBuffer {
	if l == nil {
		return nil
	}
	return l.sinks.buffer
}

// Subscribe streams entries logged from now on through l or any logger
// derived from it with With.
func (l *Logger) Subscribe(minLevel Level) (<-chan LogEntry, func()) {
	var hub *LogHub
	if l != nil {
		hub = l.sinks.hub
	}
	return hub.Subscribe(minLevel, 0)
}

// With returns a logger that adds fields to every entry. Later fields win.
func (l *Logger) With(fields map[string]string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{sinks: l.sinks, level: l.level, fields: mergeFields(l.fields, fields)}
}

func (l *Logger) Debug(message string, fields map[string]string) { l.log(LevelDebug, message, fields) }
func (l *Logger) Info(message string, fields map[string]string)  { l.log(LevelInfo, message, fields) }
func (l *Logger) Warn(message string, fields map[string]string)  { l.log(LevelWarning, message, fields) }
func (l *Logger) Error(message string, fields map[string]string) { l.log(LevelError, message, fields) }

// Enabled reports whether entries at level pass the logger's threshold.
func (l *Logger) Enabled(level Level) bool {
	return l != nil && LevelAtLeast(level, l.level)
}

func (l *Logger) log(level Level, message string, fields map[string]string) {
	if !l.Enabled(level) {
		return
	}
	l.sinks.emit(LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Context:   mergeFields(l.fields, fields),
	})
}

func normalizeLevel(level Level) Level {
	if _, known := levelRanks[level]; known {
		return level
	}
	return LevelInfo
}

func levelRank(level Level) int {
	return levelRanks[normalizeLevel(level)]
}

// LevelAtLeast reports whether level is as severe as minLevel.
func LevelAtLeast(level, minLevel Level) bool {
	return levelRank(level) >= levelRank(minLevel)
}

// ParseLevel accepts a level name in any case, plus "warn".
func ParseLevel(value string) (Level, bool) {
	level, ok := levelNames[strings.ToLower(strings.TrimSpace(value))]
	return level, ok
}

func mergeFields(base, extra map[string]string) map[string]string {
	if len(base)+len(extra) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(extra))
	maps.Copy(merged, base)
	maps.Copy(merged, extra)
	return merged
}

// appendEntry renders `level=... msg="..."` and then the context fields in
// key order.
func appendEntry(dst []byte, entry LogEntry) []byte {
	dst = append(dst, "level="...)
	dst = append(dst, entry.Level...)
	dst = append(dst, " msg="...)
	dst = strconv.AppendQuote(dst, entry.Message)
	for _, key := range slices.Sorted(maps.Keys(entry.Context)) {
		dst = append(dst, ' ')
		dst = append(dst, key...)
		dst = append(dst, '=')
		dst = strconv.AppendQuote(dst, entry.Context[key])
	}
	return dst
}
