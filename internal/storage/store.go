package storage

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/observastack/aiops-engine/internal/utils"
)

// BundleVersion tags the on-disk format. Bumping it invalidates old bundles.
const BundleVersion = 1

// Extension is the suffix of persisted model bundles.
const Extension = ".model"

// ErrNotFound signals a missing bundle.
var ErrNotFound = errors.New("model bundle not found")

// ErrCorrupt signals an unreadable or version-mismatched bundle.
var ErrCorrupt = errors.New("model bundle corrupt")

type envelope struct {
	Version int
	Name    string
	SavedAt time.Time
}

// Store persists gob-encoded model bundles under one directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore constructs a store rooted at dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Save writes a bundle atomically: encode to a temp file, then rename.
func (s *Store) Save(name string, payload any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return utils.NewAppError("storage.Save", "create model directory", err)
	}

	final := filepath.Join(s.dir, name+Extension)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return utils.NewAppError("storage.Save", "create temp file", err)
	}
	defer os.Remove(tmp.Name())

	enc := gob.NewEncoder(tmp)
	if err := enc.Encode(envelope{Version: BundleVersion, Name: name, SavedAt: time.Now().UTC()}); err != nil {
		tmp.Close()
		return utils.NewAppError("storage.Save", "encode envelope", err)
	}
	if err := enc.Encode(payload); err != nil {
		tmp.Close()
		return utils.NewAppError("storage.Save", "encode payload", err)
	}
	if err := tmp.Close(); err != nil {
		return utils.NewAppError("storage.Save", "close temp file", err)
	}

	if err := os.Rename(tmp.Name(), final); err != nil {
		return utils.NewAppError("storage.Save", "replace bundle", err)
	}
	s.logger.Debug("model bundle saved", slog.String("name", name), slog.String("path", final))
	return nil
}

// Load reads a bundle into payload, which must be a pointer to the type that
// was saved.
func (s *Store) Load(name string, payload any) error {
	f, err := os.Open(filepath.Join(s.dir, name+Extension))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return utils.NewAppError("storage.Load", "open bundle", err)
	}
	defer f.Close()

	dec := gob.NewDecoder(f)
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	if env.Version != BundleVersion {
		return fmt.Errorf("%w: %s: version %d, want %d", ErrCorrupt, name, env.Version, BundleVersion)
	}
	if err := dec.Decode(payload); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return nil
}

// List returns the sorted names of stored bundles.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, utils.NewAppError("storage.List", "read model directory", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), Extension))
	}
	sort.Strings(names)
	return names, nil
}
