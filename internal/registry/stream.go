package registry

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const streamSuffix = ".log"

// Streams provides access to per-instance append-only output logs. Each
// log has a single writer (its instance), so appends need no locking.
type Streams struct {
	dir string
}

// NewStreams creates a Streams accessor rooted at dir.
func NewStreams(dir string) *Streams {
	return &Streams{dir: dir}
}

// Path returns the log file path for an instance.
func (s *Streams) Path(instanceID string) string {
	return filepath.Join(s.dir, instanceID+streamSuffix)
}

// Create ensures an empty log file exists for the instance.
func (s *Streams) Create(instanceID string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create stream directory: %w", err)
	}
	f, err := os.OpenFile(s.Path(instanceID), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create stream log: %w", err)
	}
	return f.Close()
}

// Append writes one timestamped line to the instance's log:
//
//	[HH:MM:SS] message
func (s *Streams) Append(instanceID, message string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create stream directory: %w", err)
	}
	f, err := os.OpenFile(s.Path(instanceID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open stream log: %w", err)
	}

	line := fmt.Sprintf("[%s] %s\n", time.Now().UTC().Format("15:04:05"), message)
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append to stream log: %w", err)
	}
	return f.Close()
}

// Tail returns the last n lines of the instance's log. A missing log
// yields an empty result, not an error.
func (s *Streams) Tail(instanceID string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(s.Path(instanceID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open stream log: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Stream logs are short-lived and bounded by a session; a full scan
	// keeps this simple.
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan stream log: %w", err)
	}

	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// Delete removes the instance's log. Idempotent.
func (s *Streams) Delete(instanceID string) error {
	if err := os.Remove(s.Path(instanceID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete stream log: %w", err)
	}
	return nil
}

// Clear removes every stream log. The directory itself is kept.
func (s *Streams) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read stream directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), streamSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete stream log: %w", err)
		}
	}
	return nil
}

// Exists reports whether the instance has a log file.
func (s *Streams) Exists(instanceID string) bool {
	_, err := os.Stat(s.Path(instanceID))
	return err == nil
}
