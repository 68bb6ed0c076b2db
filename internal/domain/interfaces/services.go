package interfaces

import (
	"context"

	domaintypes "mutse/internal/domain/types"
)

// TreeService scans an input tree and transforms it into an output tree.
type TreeService interface {
	Scan(input, output string) (domaintypes.Plan, error)
	Run(ctx context.Context, plan domaintypes.Plan) (domaintypes.Report, error)
}

// ExdfService decrypts exdf trees and converts single files in both directions.
type ExdfService interface {
	TreeService
	DecryptFile(input, output string) (domaintypes.FileResult, error)
	EncryptFile(input, output string) error
}
