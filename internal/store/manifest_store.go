package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"mutse/internal/domain"
	"mutse/internal/tree"
)

const manifestFile = "manifest.json"

// ErrManifestVersion is returned for manifests written by a newer mutse.
var ErrManifestVersion = errors.New("unsupported manifest version")

// ManifestFileStore persists the manifest of one output tree.
type ManifestFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewManifestFileStore returns a ManifestFileStore for the output tree at outputRoot.
func NewManifestFileStore(outputRoot string) *ManifestFileStore {
	return &ManifestFileStore{dir: filepath.Join(outputRoot, tree.MetaDir)}
}

// Path returns the manifest file location.
func (s *ManifestFileStore) Path() string {
	return filepath.Join(s.dir, manifestFile)
}

// LoadManifest reads the manifest. A missing file yields an empty manifest.
func (s *ManifestFileStore) LoadManifest() (domain.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := domain.NewManifest()
	found, err := readJSON(s.Path(), &m)
	if err != nil {
		return domain.Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	if !found {
		return m, nil
	}
	if m.Version > domain.ManifestVersion {
		return domain.Manifest{}, fmt.Errorf("%w %d", ErrManifestVersion, m.Version)
	}
	if m.Entries == nil {
		m.Entries = make(map[string]domain.ManifestEntry)
	}
	return m, nil
}

// SaveManifest writes m, replacing any previous manifest.
func (s *ManifestFileStore) SaveManifest(m domain.Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Version == 0 {
		m.Version = domain.ManifestVersion
	}
	if err := writeJSON(s.Path(), m, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Compile-time assertion that ManifestFileStore implements domain.ManifestStore.
var _ domain.ManifestStore = (*ManifestFileStore)(nil)
