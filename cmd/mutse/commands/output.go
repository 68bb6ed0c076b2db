package commands

import (
	"fmt"
	"io"
	"path"

	"mutse/internal/domain"
)

const rule = "--------------------------------------------------"

// printResult writes one progress line for a finished file.
func printResult(w io.Writer, r domain.FileResult, shortErrors bool) {
	switch r.Status {
	case domain.StatusFailed:
		name := r.Path
		if shortErrors {
			name = path.Base(r.Path)
		}
		fmt.Fprintf(w, "  ✗ %s: %s\n", name, r.Err)
	case domain.StatusSkipped:
		fmt.Fprintf(w, "  - %s (unchanged)\n", r.Path)
	default:
		fmt.Fprintf(w, "  ✓ %s\n", r.Path)
	}
}

// mirrorCounts tallies the copy phase of a report.
func mirrorCounts(rep domain.Report) (copied, skipped, failed int) {
	for _, r := range rep.Results {
		if !r.Mirror {
			continue
		}
		switch r.Status {
		case domain.StatusCopied:
			copied++
		case domain.StatusSkipped:
			skipped++
		case domain.StatusFailed:
			failed++
		}
	}
	return copied, skipped, failed
}

// targetFailures counts failed transforms, ignoring the copy phase.
func targetFailures(rep domain.Report) int {
	n := 0
	for _, r := range rep.Results {
		if !r.Mirror && r.Failed() {
			n++
		}
	}
	return n
}
