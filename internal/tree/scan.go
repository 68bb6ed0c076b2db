package tree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"mutse/internal/domain"
)

var (
	ErrInputNotFound = errors.New("input folder not found")
	ErrSameTree      = errors.New("input and output folders must differ")
)

// MetaDir is the per-output-tree directory holding run metadata.
const MetaDir = ".mutse"

// ScanOptions controls which files Scan reports and how they are split.
type ScanOptions struct {
	// Match selects targets by slash-separated relative path. Nil selects none.
	Match func(rel string) bool
	// Exclude lists doublestar patterns matched against relative paths.
	Exclude []string
	// SkipDir is an absolute directory to leave out, typically the output root.
	SkipDir string
}

// ValidatePatterns reports the first malformed exclude pattern.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	return nil
}

// Scan walks root in lexical order and returns its targets and other files.
func Scan(root string, opts ScanOptions) (targets, others []domain.Entry, err error) {
	if err := ValidatePatterns(opts.Exclude); err != nil {
		return nil, nil, err
	}
	skip := ""
	if opts.SkipDir != "" {
		skip = filepath.Clean(opts.SkipDir)
	}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if d.Name() == MetaDir || (skip != "" && filepath.Clean(p) == skip) || Excluded(opts.Exclude, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if Excluded(opts.Exclude, rel) {
			return nil
		}

		info, err := os.Stat(p) // follows symlinks
		if err != nil {
			if d.Type()&fs.ModeSymlink != 0 {
				return nil // dangling link
			}
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		e := domain.Entry{Rel: rel, Size: info.Size(), Mode: info.Mode().Perm(), ModTime: info.ModTime()}
		if opts.Match != nil && opts.Match(rel) {
			targets = append(targets, e)
		} else {
			others = append(others, e)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return targets, others, nil
}

// Excluded reports whether rel matches any of the doublestar patterns.
func Excluded(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// HasExt returns a Match predicate selecting files whose extension
// case-insensitively equals one of exts (each with its leading dot).
func HasExt(exts ...string) func(rel string) bool {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[strings.ToLower(e)] = struct{}{}
	}
	return func(rel string) bool {
		_, ok := set[strings.ToLower(path.Ext(rel))]
		return ok
	}
}

// OutputPath replaces the last extension of rel with ext.
//
//	OutputPath("a/b.c.exdf", ".xml") == "a/b.c.xml"
func OutputPath(rel, ext string) string {
	return strings.TrimSuffix(rel, path.Ext(rel)) + ext
}

// Stem returns the base name of rel without its last extension.
func Stem(rel string) string {
	base := path.Base(rel)
	return strings.TrimSuffix(base, path.Ext(base))
}

// Within reports whether child is root itself or lies below it.
func Within(root, child string) bool {
	rel, err := filepath.Rel(root, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ResolveRoots makes both roots absolute and checks that input is an
// existing directory distinct from output.
func ResolveRoots(input, output string) (in, out string, err error) {
	if in, err = filepath.Abs(input); err != nil {
		return "", "", err
	}
	if out, err = filepath.Abs(output); err != nil {
		return "", "", err
	}
	info, err := os.Stat(in)
	if errors.Is(err, os.ErrNotExist) {
		return "", "", fmt.Errorf("%w: %s", ErrInputNotFound, in)
	}
	if err != nil {
		return "", "", err
	}
	if !info.IsDir() {
		return "", "", fmt.Errorf("input is not a directory: %s", in)
	}
	if in == out {
		return "", "", fmt.Errorf("%w: %s", ErrSameTree, in)
	}
	return in, out, nil
}
