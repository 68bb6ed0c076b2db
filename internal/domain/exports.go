package domain

import (
	interfaces "mutse/internal/domain/interfaces"
	types "mutse/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Entry         = types.Entry
	Plan          = types.Plan
	Status        = types.Status
	RunKind       = types.RunKind
	FileResult    = types.FileResult
	Report        = types.Report
	Manifest      = types.Manifest
	ManifestEntry = types.ManifestEntry
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	TreeService   = interfaces.TreeService
	ExdfService   = interfaces.ExdfService
	ManifestStore = interfaces.ManifestStore
	Decompiler    = interfaces.Decompiler
)

const (
	StatusDecrypted  = types.StatusDecrypted
	StatusDecompiled = types.StatusDecompiled
	StatusCopied     = types.StatusCopied
	StatusSkipped    = types.StatusSkipped
	StatusFailed     = types.StatusFailed

	RunDecrypt   = types.RunDecrypt
	RunDecompile = types.RunDecompile

	ManifestVersion = types.ManifestVersion
)

// NewManifest returns an empty manifest at the current version.
func NewManifest() Manifest { return types.NewManifest() }
