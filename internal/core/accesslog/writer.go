// Package accesslog appends one JSON line per request to a date-partitioned file.
package accesslog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	filePrefix = "connections-"
	fileSuffix = ".json"
	dateLayout = "2006-01-02"
)

// FileName returns the log file name used for records written at t.
func FileName(t time.Time) string {
	return filePrefix + t.Format(dateLayout) + fileSuffix
}

// Writer owns the shared log sink. A single mutex covers encoding and the write
// so that each record reaches the file in one Write call, never interleaved
// with another connection's record.
type Writer struct {
	dir string
	now func() time.Time

	mu      sync.Mutex
	file    *os.File
	day     string
	encoder *json.Encoder
	buf     bytes.Buffer
}

// NewWriter creates a writer appending under dir. The directory is created if
// needed; files are opened lazily on the first Write.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create access log dir %s: %w", dir, err)
	}
	w := &Writer{
		dir: dir,
		now: time.Now,
	}
	w.encoder = json.NewEncoder(&w.buf)
	w.encoder.SetEscapeHTML(false)
	return w, nil
}

// Dir returns the directory the log files live in.
func (w *Writer) Dir() string {
	return w.dir
}

// Write builds a LogEntry stamped with the current time and appends it.
// The returned entry is never modified afterwards.
func (w *Writer) Write(peerAddr string, headers map[string]string, body string) (*LogEntry, error) {
	if headers == nil {
		headers = map[string]string{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	entry := &LogEntry{
		Timestamp: now.Format(time.RFC3339Nano),
		PeerAddr:  peerAddr,
		Headers:   headers,
		Body:      body,
	}

	if err := w.rotate(now); err != nil {
		return nil, err
	}

	w.buf.Reset()
	// Encode terminates the line with '\n'.
	if err := w.encoder.Encode(entry); err != nil {
		return nil, fmt.Errorf("failed to encode log entry: %w", err)
	}
	if _, err := w.file.Write(w.buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to append to %s: %w", w.file.Name(), err)
	}
	return entry, nil
}

// rotate makes sure the open file matches the day of now. Must hold w.mu.
func (w *Writer) rotate(now time.Time) error {
	day := now.Format(dateLayout)
	if w.file != nil && w.day == day {
		return nil
	}

	path := filepath.Join(w.dir, FileName(now))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open access log %s: %w", path, err)
	}
	if w.file != nil {
		w.file.Close()
	}
	w.file = file
	w.day = day
	return nil
}

// Close closes the currently open file, if any. A later Write reopens it.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.day = ""
	return err
}
