// Package store provides file-based persistence for mutse run metadata.
//
// It contains concrete implementations of the domain storage interfaces,
// serialising data as JSON on disk. All methods are concurrency-safe via
// internal locking. Stored files live under the output tree's .mutse
// directory so a tree carries its own history.
//
// The package includes stores for:
//   - Run manifests (ManifestFileStore)
package store
