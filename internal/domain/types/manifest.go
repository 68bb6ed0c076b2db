package types

// ManifestVersion is the current on-disk manifest format.
const ManifestVersion = 1

// ManifestEntry remembers how one input file was last transformed.
type ManifestEntry struct {
	InputDigest  string `json:"input_digest"`
	Output       string `json:"output"`
	OutputDigest string `json:"output_digest"`
	At           int64  `json:"at"`
	RunID        string `json:"run_id"`
}

// Manifest maps relative input paths to their last transformation.
//
// OutputExtension and Pretty record the options the outputs were written
// with; entries are only reusable under the same options.
type Manifest struct {
	Version         int                      `json:"version"`
	RunID           string                   `json:"run_id,omitempty"`
	OutputExtension string                   `json:"output_extension,omitempty"`
	Pretty          bool                     `json:"pretty"`
	Entries         map[string]ManifestEntry `json:"entries"`
}

// NewManifest returns an empty manifest at the current version.
func NewManifest() Manifest {
	return Manifest{Version: ManifestVersion, Entries: make(map[string]ManifestEntry)}
}
