package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// FileStore keeps bindings in a YAML file. It is meant for a single local
// process such as the terminal client.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type fileDocument struct {
	Sessions map[string]Record `yaml:"sessions"`
}

// NewFileStore stores bindings at path, creating parent directories on save.
func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("session: file path required")
	}
	return &FileStore{path: path}, nil
}

// DefaultFilePath is ~/.clinic-widget/sessions.yaml.
func DefaultFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".clinic-widget", "sessions.yaml")
	}
	return filepath.Join(home, ".clinic-widget", "sessions.yaml")
}

func (s *FileStore) Load(_ context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errKeyRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return "", err
	}
	return doc.Sessions[key].SessionID, nil
}

func (s *FileStore) Save(_ context.Context, key, sessionID string) error {
	if err := validate(key, sessionID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Sessions[key] = Record{SessionID: sessionID, UpdatedAt: time.Now().UTC()}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("session: marshal file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("session: create dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session: write file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("session: replace file: %w", err)
	}
	return nil
}

func (s *FileStore) read() (fileDocument, error) {
	doc := fileDocument{Sessions: map[string]Record{}}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("session: read file: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("session: parse file: %w", err)
	}
	if doc.Sessions == nil {
		doc.Sessions = map[string]Record{}
	}
	return doc, nil
}
