// Package tree walks input trees and mirrors files into output trees.
//
// Scan splits the regular files below a root into targets (selected by a
// predicate) and others, skipping doublestar exclude patterns, a nested
// output directory and .mutse metadata directories. OutputPath maps a
// relative input path to its transformed name. CopyFile and WriteFile create
// parent directories as needed; CopyFile keeps permission bits and the
// modification time, WriteFile replaces its target atomically.
package tree
