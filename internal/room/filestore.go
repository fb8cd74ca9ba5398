package room

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists the room map as a single JSON document. Save writes to
// a temp file in the same directory and renames it over the target so a
// crash mid-write never leaves a truncated file behind.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (map[string]Room, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]Room), nil
		}
		return nil, fmt.Errorf("filestore: read %s: %w", s.path, err)
	}

	rooms := make(map[string]Room)
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, fmt.Errorf("filestore: parse %s: %w", s.path, err)
	}
	return rooms, nil
}

func (s *FileStore) Save(rooms map[string]Room) error {
	data, err := json.MarshalIndent(rooms, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: marshal rooms: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".rooms-*.json")
	if err != nil {
		return fmt.Errorf("filestore: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("filestore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: rename %s: %w", s.path, err)
	}
	return nil
}
