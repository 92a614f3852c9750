// Package calibration records dispatch outcomes and derives bounded
// confidence adjustments from them. The engine is long-lived and
// cross-session; the append log is the source of truth and the
// adjustment table is always recomputed from it.
package calibration

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/usherhq/usher/pkg/models"
)

// maxRecordSize bounds a single JSONL line when reading the log back.
const maxRecordSize = 1 << 20

// GlobalLogPath returns the path to the cross-session calibration log.
func GlobalLogPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "usher", "calibration.jsonl")
}

// Log is the append-only JSONL record store. Appends are single writes
// in O_APPEND mode so concurrent short-lived processes never interleave
// or lose a record.
type Log struct {
	path string
	mu   sync.Mutex
}

// NewLog returns a log backed by the given file path. The file and its
// parent directory are created on first append.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Path returns the backing file path.
func (l *Log) Path() string {
	return l.path
}

// Append writes one record as a single JSON line.
func (l *Log) Append(rec models.CalibrationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// Records reads every parseable record from the log. A missing file is
// an empty log. Corrupt or torn lines are skipped, not propagated; a
// crashed writer must never poison the whole history.
func (l *Log) Records() ([]models.CalibrationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	var records []models.CalibrationRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec models.CalibrationRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.Agent == "" {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("scan log: %w", err)
	}
	return records, nil
}
