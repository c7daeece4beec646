package smartedit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultConfigFile = "config.json"

// ConfigStore owns the persisted Config. All writes go through Update, so
// there is a single writer no matter how many requests are in flight.
type ConfigStore struct {
	path      string
	logger    *zap.Logger
	mu        sync.Mutex
	cfg       *Config
	lastSaved string
}

// OpenConfigStore loads path, falling back to defaults when the file is
// missing or unreadable. It never fails. An empty path keeps the config in
// memory only.
func OpenConfigStore(path string, logger *zap.Logger) *ConfigStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ConfigStore{path: path, logger: logger}
	if path == "" {
		s.cfg = DefaultConfig()
		return s
	}
	cfg, err := loadConfig(path)
	if err != nil {
		logger.Warn("Config file not found or invalid, using defaults", zap.String("path", path), zap.Error(err))
		cfg = DefaultConfig()
	}
	s.cfg = cfg
	return s
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.LastCommands == nil {
		cfg.LastCommands = []HistoryEntry{}
	}
	return cfg, nil
}

func (s *ConfigStore) Path() string { return s.path }

// Snapshot returns a copy safe to read without holding the store.
func (s *ConfigStore) Snapshot() *Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.clone()
}

// Update applies fn to the in-memory config and persists the result. The
// in-memory change stands even when persisting fails; the error is then a
// *ConfigPersistError.
func (s *ConfigStore) Update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.cfg)
	return s.save()
}

func (s *ConfigStore) save() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.cfg, "", "  ")
	if err != nil {
		return &ConfigPersistError{Path: s.path, Err: err}
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := CreateDirs(dir); err != nil {
			return &ConfigPersistError{Path: s.path, Err: err}
		}
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return &ConfigPersistError{Path: s.path, Err: err}
	}
	sum := sha256.Sum256(data)
	s.lastSaved = hex.EncodeToString(sum[:])
	return nil
}

// Reload replaces the in-memory config with the file contents. A file that
// does not parse leaves the current config untouched.
func (s *ConfigStore) Reload() error {
	cfg, err := loadConfig(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

// Watch reloads the config whenever another process rewrites the file. It
// blocks until ctx is done.
func (s *ConfigStore) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("Config watcher error", zap.Error(err))
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			s.reloadIfChanged()
		}
	}
}

func (s *ConfigStore) reloadIfChanged() {
	sum, err := GetFileSHA256(s.path)
	if err != nil {
		return
	}
	s.mu.Lock()
	own := sum == s.lastSaved
	s.mu.Unlock()
	if own {
		return
	}
	if err := s.Reload(); err != nil {
		s.logger.Warn("Ignoring unreadable config edit", zap.String("path", s.path), zap.Error(err))
		return
	}
	s.logger.Info("Reloaded config after external edit", zap.String("path", s.path))
}
