// Package history keeps an append-only JSON Lines log of clean and show
// actions. Writers in separate processes are serialised with a lock file.
package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// Entry is one logged action.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
	Action    string    `json:"action"`
	File      string    `json:"file"`
	Result    string    `json:"result"`
	Details   string    `json:"details,omitempty"`
}

// Log is a history file.
type Log struct {
	path string
	lock *flock.Flock
}

// Open prepares the log at path. Nothing is created on disk until the first
// append.
func Open(path string) (*Log, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history path is empty")
	}
	return &Log{path: path, lock: flock.New(path + ".lock")}, nil
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }

// Append writes e as a single line. A zero timestamp is set to now.
func (l *Log) Append(e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	line = append(line, '\n')

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}
	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("lock history: %w", err)
	}
	defer func() { _ = l.lock.Unlock() }()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("write history: %w", err)
	}
	return f.Close()
}

// Tail returns the last n entries in file order, or all of them when n <= 0.
// Lines that do not parse are skipped.
func (l *Log) Tail(n int) ([]Entry, error) {
	if _, err := os.Stat(l.path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err := l.lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock history: %w", err)
	}
	defer func() { _ = l.lock.Unlock() }()

	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		var e Entry
		if json.Unmarshal(sc.Bytes(), &e) != nil {
			continue
		}
		entries = append(entries, e)
		if n > 0 && len(entries) > 2*n {
			entries = append(entries[:0], entries[len(entries)-n:]...)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}
