package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang-stock-alerts/internal/alerting/corridor"
	"golang-stock-alerts/pkg/logger"
)

// FileStore keeps the alert state as a pretty-printed JSON object of
// ticker to "up"|"down"|"none" on disk.
type FileStore struct {
	path string
	log  *logger.Logger
}

// NewFileStore creates a file-backed state store at path.
func NewFileStore(path string, log *logger.Logger) *FileStore {
	return &FileStore{path: path, log: log}
}

// Load reads the state file. A missing or unreadable file yields an empty
// mapping, never an error that would abort the run.
func (s *FileStore) Load(_ context.Context) (map[string]corridor.Direction, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("Could not read state file, assuming empty state",
				logger.StringField("path", s.path), logger.ErrorField(err))
		}
		return map[string]corridor.Direction{}, nil
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		s.log.Warn("Corrupt state file, assuming empty state",
			logger.StringField("path", s.path), logger.ErrorField(err))
		return map[string]corridor.Direction{}, nil
	}

	st := make(map[string]corridor.Direction, len(raw))
	for ticker, dir := range raw {
		st[ticker] = corridor.ParseDirection(dir)
	}
	return st, nil
}

// Save writes the full mapping back to disk as UTF-8 JSON.
func (s *FileStore) Save(_ context.Context, st map[string]corridor.Direction) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file %s: %w", s.path, err)
	}
	s.log.Debug("Saved alert state", logger.StringField("path", s.path), logger.IntField("tickers", len(st)))
	return nil
}
