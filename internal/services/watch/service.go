package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"mutse/internal/crypto"
	"mutse/internal/domain"
	"mutse/internal/tree"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 250 * time.Millisecond

// Syncer is the part of the exdf service the watcher drives.
type Syncer interface {
	domain.TreeService
	IsTarget(rel string) bool
	OutputRel(rel string) string
	DecryptFile(input, output string) (domain.FileResult, error)
	NewManifest() domain.Manifest
	OpenManifest(root string) domain.ManifestStore
}

// Options tunes a Service.
type Options struct {
	Debounce time.Duration
	Exclude  []string
}

// Service watches an input tree and applies changes to an output tree.
type Service struct {
	syncer Syncer
	opts   Options
	logger *slog.Logger

	// OnReady, if set, is called once the initial run is done and the
	// watches are in place.
	OnReady func(domain.Report)
	// OnResult, if set, is called for every file handled after OnReady.
	OnResult func(domain.FileResult)
}

// New constructs a Service. A nil logger selects slog.Default().
func New(syncer Syncer, opts Options, logger *slog.Logger) *Service {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{syncer: syncer, opts: opts, logger: logger}
}

// session is the state of one Watch call. It is only touched from the
// event loop goroutine.
type session struct {
	in, out string
	nested  bool // out lies inside in
	runID   string
	fsw     *fsnotify.Watcher
	deb     *debouncer

	ms       domain.ManifestStore
	manifest domain.Manifest
}

// Watch syncs output with input, then keeps it in sync until ctx is done.
func (s *Service) Watch(ctx context.Context, input, output string) error {
	plan, err := s.syncer.Scan(input, output)
	if err != nil {
		return err
	}
	report, err := s.syncer.Run(ctx, plan)
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	sess := &session{
		in:     plan.Input,
		out:    plan.Output,
		nested: tree.Within(plan.Input, plan.Output),
		runID:  report.RunID,
		fsw:    fsw,
		deb:    newDebouncer(ctx, s.opts.Debounce),
		ms:     s.syncer.OpenManifest(plan.Output),
	}
	defer sess.deb.Stop()

	sess.manifest, err = sess.ms.LoadManifest()
	if err != nil {
		s.logger.Warn("manifest unreadable, starting a new one", "error", err)
		sess.manifest = s.syncer.NewManifest()
	}

	if err := s.addRecursive(sess, sess.in); err != nil {
		return err
	}
	s.logger.Info("watching for changes", "input", sess.in, "output", sess.out, "debounce", s.opts.Debounce)
	if s.OnReady != nil {
		s.OnReady(report)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			s.handleEvent(sess, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", "error", err)
		case rel := <-sess.deb.C:
			s.apply(sess, rel)
		}
	}
}

// relPath returns the slash-separated path of abs below the input root, or
// false when the path must be ignored.
func (s *Service) relPath(sess *session, abs string) (string, bool) {
	if sess.nested && tree.Within(sess.out, abs) {
		return "", false
	}
	if !tree.Within(sess.in, abs) {
		return "", false
	}
	rel, err := filepath.Rel(sess.in, abs)
	if err != nil || rel == "." {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if part == tree.MetaDir {
			return "", false
		}
	}
	if tree.Excluded(s.opts.Exclude, rel) {
		return "", false
	}
	return rel, true
}

func (s *Service) addRecursive(sess *session, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != sess.in {
			if _, ok := s.relPath(sess, p); !ok {
				return filepath.SkipDir
			}
		}
		if err := sess.fsw.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

func (s *Service) handleEvent(sess *session, ev fsnotify.Event) {
	rel, ok := s.relPath(sess, ev.Name)
	if !ok {
		return
	}
	s.logger.Debug("fs event", "path", rel, "op", ev.Op.String())

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := s.addRecursive(sess, ev.Name); err != nil {
				s.logger.Warn("watch new directory", "path", rel, "error", err)
			}
			// Files may have landed before the watch was added.
			s.triggerTree(sess, ev.Name)
			return
		}
	}
	sess.deb.Trigger(rel)
}

func (s *Service) triggerTree(sess *session, dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, ok := s.relPath(sess, p)
		if !ok {
			if d.IsDir() && p != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			sess.deb.Trigger(rel)
		}
		return nil
	})
}

// apply brings the output for rel in line with the current input.
func (s *Service) apply(sess *session, rel string) {
	src := filepath.Join(sess.in, filepath.FromSlash(rel))
	target := s.syncer.IsTarget(rel)
	outRel := rel
	if target {
		outRel = s.syncer.OutputRel(rel)
	}
	dst := filepath.Join(sess.out, filepath.FromSlash(outRel))

	info, err := os.Stat(src)
	if errors.Is(err, os.ErrNotExist) {
		s.vanished(sess, rel, outRel, target)
		return
	}
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	res := domain.FileResult{Path: rel, Output: outRel}
	switch {
	case target:
		res = s.decrypt(sess, rel, src, dst)
	case s.shadowed(sess, rel):
		s.logger.Warn("plain file shadowed by decrypted output", "path", rel)
		res.Mirror, res.Status = true, domain.StatusSkipped
	default:
		res.Mirror = true
		n, err := tree.CopyFile(src, dst)
		if err != nil {
			res.Status, res.Err = domain.StatusFailed, err.Error()
		} else {
			res.Status, res.Bytes = domain.StatusCopied, n
		}
	}
	s.emit(res)
}

func (s *Service) emit(res domain.FileResult) {
	if res.Failed() {
		s.logger.Warn("file failed", "path", res.Path, "error", res.Err)
	}
	if s.OnResult != nil {
		s.OnResult(res)
	}
}

// decrypt writes the output of one target and records it in the manifest.
func (s *Service) decrypt(sess *session, rel, src, dst string) domain.FileResult {
	res := domain.FileResult{Path: rel, Output: s.syncer.OutputRel(rel)}

	inDigest, err := crypto.DigestFile(src)
	var r domain.FileResult
	if err == nil {
		r, err = s.syncer.DecryptFile(src, dst)
	}
	if err != nil {
		res.Status, res.Err = domain.StatusFailed, err.Error()
		return res
	}
	res.Status, res.Digest, res.Bytes = r.Status, r.Digest, r.Bytes

	sess.manifest.Entries[rel] = domain.ManifestEntry{
		InputDigest:  inDigest,
		Output:       res.Output,
		OutputDigest: res.Digest,
		At:           time.Now().Unix(),
		RunID:        sess.runID,
	}
	s.saveManifest(sess)
	return res
}

// vanished handles an input path that no longer exists: a file or a whole
// directory that was removed or renamed away.
func (s *Service) vanished(sess *session, rel, outRel string, target bool) {
	dir := filepath.Join(sess.out, filepath.FromSlash(rel))
	if info, err := os.Lstat(dir); err == nil && info.IsDir() {
		s.removeTree(sess, rel, dir)
		return
	}

	if !target {
		if s.shadowed(sess, rel) {
			return
		}
		if err := tree.Remove(filepath.Join(sess.out, filepath.FromSlash(rel))); err != nil {
			s.logger.Warn("remove output", "path", rel, "error", err)
			return
		}
		s.logger.Info("removed output", "path", rel)
		return
	}

	if err := tree.Remove(filepath.Join(sess.out, filepath.FromSlash(outRel))); err != nil {
		s.logger.Warn("remove output", "path", outRel, "error", err)
		return
	}
	s.logger.Info("removed output", "path", outRel)
	if _, ok := sess.manifest.Entries[rel]; ok {
		delete(sess.manifest.Entries, rel)
		s.saveManifest(sess)
	}

	// A plain file hidden by the decrypted output takes its place again.
	if s.syncer.IsTarget(outRel) {
		return
	}
	if _, ok := s.relPath(sess, filepath.Join(sess.in, filepath.FromSlash(outRel))); ok && !s.shadowed(sess, outRel) {
		s.apply(sess, outRel)
	}
}

// removeTree deletes the output subtree mirroring the input directory rel.
func (s *Service) removeTree(sess *session, rel, dir string) {
	if dir == sess.out || !tree.Within(sess.out, dir) {
		return
	}
	_ = sess.fsw.Remove(filepath.Join(sess.in, filepath.FromSlash(rel)))
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn("remove output folder", "path", rel, "error", err)
		return
	}
	s.logger.Info("removed output folder", "path", rel)

	changed := false
	for k := range sess.manifest.Entries {
		if strings.HasPrefix(k, rel+"/") {
			delete(sess.manifest.Entries, k)
			changed = true
		}
	}
	if changed {
		s.saveManifest(sess)
	}
}

// shadowed reports whether the plain file rel shares its output path with
// an existing target, whose decrypted output takes precedence.
func (s *Service) shadowed(sess *session, rel string) bool {
	dir := path.Dir(rel)
	entries, err := os.ReadDir(filepath.Join(sess.in, filepath.FromSlash(dir)))
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		sib := path.Join(dir, e.Name())
		if sib == rel || !s.syncer.IsTarget(sib) || s.syncer.OutputRel(sib) != rel {
			continue
		}
		if _, ok := s.relPath(sess, filepath.Join(sess.in, filepath.FromSlash(sib))); ok {
			return true
		}
	}
	return false
}

func (s *Service) saveManifest(sess *session) {
	if err := sess.ms.SaveManifest(sess.manifest); err != nil {
		s.logger.Warn("save manifest", "error", err)
	}
}
