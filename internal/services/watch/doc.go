// Package watch keeps an output tree in step with an exdf input tree.
//
// After an initial full run the input tree is watched recursively with
// fsnotify. Events are debounced per path; when a path settles it is
// re-evaluated against the filesystem: targets are decrypted, other files
// mirrored, and paths that no longer exist have their outputs removed.
// Directories created later are added to the watch set and their contents
// synced.
package watch
