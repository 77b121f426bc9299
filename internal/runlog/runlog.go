// Package runlog provides the append-only execution log that brackets every
// pipeline run. Lines have the form "[2006-01-02 15:04:05] message" followed
// by a separator line after each run. The file is only ever opened in append
// mode - repeated invocations strictly grow it.
package runlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// TimeLayout is the timestamp format used for every log line.
const TimeLayout = "2006-01-02 15:04:05"

// separatorWidth matches the width of the rule written between runs.
const separatorWidth = 60

// ErrClosed is returned when writing to a log that has been closed.
var ErrClosed = errors.New("runlog: log is closed")

// Log is an append-only, timestamp-prefixed text log. A single Log owns the
// file handle; writes are serialized by an internal mutex.
type Log struct {
	mu   sync.Mutex
	file *os.File
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the log file at path in append-only mode.
// The parent directory is created when missing. The file is never truncated.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("runlog: create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("runlog: open log file: %w", err)
	}

	return &Log{file: file, path: path, now: time.Now}, nil
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Append writes one timestamped line. Embedded newlines are flattened so a
// message can never span lines.
func (l *Log) Append(msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return ErrClosed
	}

	msg = flatten(msg)
	line := fmt.Sprintf("[%s] %s\n", l.now().Format(TimeLayout), msg)
	if _, err := l.file.WriteString(line); err != nil {
		return fmt.Errorf("runlog: append: %w", err)
	}
	return nil
}

// Appendf is Append with fmt.Sprintf formatting.
func (l *Log) Appendf(format string, args ...any) error {
	return l.Append(fmt.Sprintf(format, args...))
}

// Separator writes the rule line that closes a run's log block.
func (l *Log) Separator() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return ErrClosed
	}

	if _, err := l.file.WriteString(strings.Repeat("=", separatorWidth) + "\n"); err != nil {
		return fmt.Errorf("runlog: separator: %w", err)
	}
	return nil
}

// Close closes the underlying file. Further writes return ErrClosed.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("runlog: close: %w", err)
	}
	return nil
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.TrimSpace(s)
}
