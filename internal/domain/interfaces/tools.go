package interfaces

import "context"

// Decompiler turns a single .NET assembly into source code under outDir.
type Decompiler interface {
	Decompile(ctx context.Context, assembly, outDir string) error
}
