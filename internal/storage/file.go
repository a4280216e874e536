package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gorilla/securecookie"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"
)

const (
	defaultFileName = "state"
	codecName       = "velora_state"
)

// FileConfig controls where the state file lives and how it is protected.
type FileConfig struct {
	Dir string
	// HashKey signs the file contents; BlockKey additionally encrypts them (16, 24 or 32 bytes).
	// With no HashKey the file is written as plain JSON.
	HashKey  []byte
	BlockKey []byte
	Logger   *zap.Logger
}

// FileStore persists all keys in a single file, replaced atomically on every write.
type FileStore struct {
	path   string
	codec  *securecookie.SecureCookie
	logger *zap.Logger

	mu     sync.Mutex
	values map[string]string
}

// OpenFileStore loads existing state. A file that cannot be decoded or fails signature
// verification is discarded with a warning so bootstrap always proceeds.
func OpenFileStore(cfg FileConfig) (*FileStore, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("storage: state dir is required")
	}
	if len(cfg.BlockKey) > 0 && len(cfg.HashKey) == 0 {
		return nil, errors.New("storage: block key requires a hash key")
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("storage: create state dir: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &FileStore{
		path:   filepath.Join(cfg.Dir, defaultFileName),
		logger: logger,
		values: make(map[string]string),
	}
	if len(cfg.HashKey) > 0 {
		codec := securecookie.New(cfg.HashKey, cfg.BlockKey)
		codec.SetSerializer(securecookie.JSONEncoder{})
		// Snapshots carry cart arrays and live until sign-out.
		codec.MaxLength(0)
		codec.MaxAge(0)
		s.codec = codec
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Get implements KV.
func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set implements KV.
func (s *FileStore) Set(key, value string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.values[key]
	s.values[key] = value
	if err := s.flushLocked(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// Delete implements KV.
func (s *FileStore) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, k := range keys {
		if _, ok := s.values[k]; ok {
			delete(s.values, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.flushLocked()
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: read state: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	values := make(map[string]string)
	if s.codec != nil {
		err = s.codec.Decode(codecName, string(data), &values)
	} else {
		err = json.Unmarshal(data, &values)
	}
	if err != nil {
		s.logger.Warn("storage: discarding unreadable state file", zap.String("path", s.path), zap.Error(err))
		return nil
	}
	s.values = values
	return nil
}

func (s *FileStore) flushLocked() error {
	var payload []byte
	if s.codec != nil {
		encoded, err := s.codec.Encode(codecName, s.values)
		if err != nil {
			return fmt.Errorf("storage: encode state: %w", err)
		}
		payload = []byte(encoded)
	} else {
		encoded, err := json.Marshal(s.values)
		if err != nil {
			return fmt.Errorf("storage: encode state: %w", err)
		}
		payload = encoded
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("storage: write state: %w", err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		s.logger.Debug("storage: chmod state file", zap.Error(err))
	}
	return nil
}
