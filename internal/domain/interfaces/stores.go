package interfaces

import domaintypes "mutse/internal/domain/types"

// ManifestStore persists the manifest of an output tree.
type ManifestStore interface {
	LoadManifest() (domaintypes.Manifest, error)
	SaveManifest(m domaintypes.Manifest) error
}
