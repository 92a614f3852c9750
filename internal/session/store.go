// Package session persists the per-session orchestration aggregate and
// provides the mutation operations every hook stage goes through.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/usherhq/usher/internal/logging"
	"github.com/usherhq/usher/pkg/models"
)

// Store reads and writes session aggregates as JSON files, one per
// session, under a state directory.
type Store struct {
	dir    string
	logger *logging.DebugLogger
}

// GlobalStateDir returns the default session-state directory, honoring
// XDG_STATE_HOME.
func GlobalStateDir() (string, error) {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home directory: %w", err)
		}
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, "usher", "sessions"), nil
}

// NewStore creates a store rooted at dir. logger may be nil.
func NewStore(dir string, logger *logging.DebugLogger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Path returns the state file path for a session.
func (s *Store) Path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Load reads the aggregate for a session. A missing or corrupted file
// degrades to an empty aggregate; load never fails past this boundary.
func (s *Store) Load(sessionID string) *models.OrchestrationState {
	data, err := os.ReadFile(s.Path(sessionID))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Log("STATE read %s failed: %v, starting empty", sessionID, err)
		}
		return models.NewOrchestrationState(sessionID)
	}

	var st models.OrchestrationState
	if err := json.Unmarshal(data, &st); err != nil {
		// A torn write from a crashed invocation leaves invalid JSON
		// behind. Treat it as absent.
		s.logger.Log("STATE file for %s is corrupt: %v, starting empty", sessionID, err)
		return models.NewOrchestrationState(sessionID)
	}
	st.SessionID = sessionID
	return &st
}

// Save persists the whole aggregate, replacing any previous contents.
// The write goes through a temp file and rename so readers never see a
// half-written aggregate.
func (s *Store) Save(st *models.OrchestrationState) error {
	if st == nil || st.SessionID == "" {
		return fmt.Errorf("save state: missing session id")
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	st.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	path := s.Path(st.SessionID)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

// Delete removes a session's state file. Missing files are not errors.
func (s *Store) Delete(sessionID string) error {
	err := os.Remove(s.Path(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete state file: %w", err)
	}
	return nil
}

// Sessions lists the IDs of every persisted session, sorted.
func (s *Store) Sessions() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}
