package exdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mutse/internal/crypto"
	"mutse/internal/document"
	"mutse/internal/domain"
	"mutse/internal/tree"
)

const (
	DefaultExtension       = ".exdf"
	DefaultOutputExtension = ".xml"
)

// Options tunes a Service.
type Options struct {
	Extension       string   // input extension selecting targets, case-insensitive
	OutputExtension string   // replaces Extension on decrypted outputs
	Pretty          bool     // re-indent well-formed XML
	Workers         int      // concurrent files; <= 0 means runtime.NumCPU()
	Exclude         []string // doublestar patterns relative to the input root
	Incremental     bool     // skip inputs unchanged since the last manifest
}

// ManifestOpener returns the manifest store of the output tree at root.
type ManifestOpener func(root string) domain.ManifestStore

// Service decrypts exdf files and trees.
type Service struct {
	opts      Options
	manifests ManifestOpener
	logger    *slog.Logger

	// Progress, if set, is called once per finished file. Calls are serialised.
	Progress func(domain.FileResult)
}

// New constructs a Service. A nil logger selects slog.Default().
func New(opts Options, manifests ManifestOpener, logger *slog.Logger) *Service {
	if opts.Extension == "" {
		opts.Extension = DefaultExtension
	}
	if opts.OutputExtension == "" {
		opts.OutputExtension = DefaultOutputExtension
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{opts: opts, manifests: manifests, logger: logger}
}

// IsTarget reports whether the relative path rel is decrypted rather than mirrored.
func (s *Service) IsTarget(rel string) bool {
	return tree.HasExt(s.opts.Extension)(rel)
}

// OutputRel maps a relative target path to its relative output path.
func (s *Service) OutputRel(rel string) string {
	return tree.OutputPath(rel, s.opts.OutputExtension)
}

// Options returns the effective options.
func (s *Service) Options() Options { return s.opts }

// Scan resolves both roots and lists the input tree.
func (s *Service) Scan(input, output string) (domain.Plan, error) {
	in, out, err := tree.ResolveRoots(input, output)
	if err != nil {
		return domain.Plan{}, err
	}
	targets, others, err := tree.Scan(in, tree.ScanOptions{
		Match:   s.IsTarget,
		Exclude: s.opts.Exclude,
		SkipDir: out,
	})
	if err != nil {
		return domain.Plan{}, fmt.Errorf("scan %s: %w", in, err)
	}
	return domain.Plan{Input: in, Output: out, Targets: targets, Others: others}, nil
}

// run carries the mutable state of one Run.
type run struct {
	plan domain.Plan
	prev map[string]domain.ManifestEntry

	mu       sync.Mutex
	results  []domain.FileResult
	next     domain.Manifest
	produced map[string]bool // relative outputs written or kept by the decrypt phase
}

// Run decrypts every target in plan, then mirrors the remaining files.
func (s *Service) Run(ctx context.Context, plan domain.Plan) (domain.Report, error) {
	report := domain.Report{
		RunID:   uuid.NewString(),
		Kind:    domain.RunDecrypt,
		Input:   plan.Input,
		Output:  plan.Output,
		Started: time.Now(),
	}
	if err := os.MkdirAll(plan.Output, 0o755); err != nil {
		return report, fmt.Errorf("create output folder: %w", err)
	}

	ms := s.manifests(plan.Output)
	r := &run{
		plan:     plan,
		prev:     s.previous(ms),
		next:     s.NewManifest(),
		produced: make(map[string]bool, len(plan.Targets)),
	}

	if err := s.each(ctx, plan.Targets, func(e domain.Entry) { s.decryptEntry(r, e, report.RunID) }); err != nil {
		return report, err
	}
	if err := s.each(ctx, plan.Others, func(e domain.Entry) { s.mirrorEntry(r, e) }); err != nil {
		return report, err
	}

	sort.Slice(r.results, func(i, j int) bool {
		if r.results[i].Path != r.results[j].Path {
			return r.results[i].Path < r.results[j].Path
		}
		return !r.results[i].Mirror && r.results[j].Mirror
	})
	report.Results = r.results
	report.Tally()
	report.Finished = time.Now()

	r.next.RunID = report.RunID
	if err := ms.SaveManifest(r.next); err != nil {
		return report, err
	}

	s.logger.Info("decrypt run finished",
		"run_id", report.RunID,
		"decrypted", report.Succeeded,
		"failed", report.Failed,
		"copied", report.Copied,
		"skipped", report.Skipped,
		"elapsed", report.Finished.Sub(report.Started))
	return report, nil
}

// NewManifest returns an empty manifest stamped with the output options.
func (s *Service) NewManifest() domain.Manifest {
	m := domain.NewManifest()
	m.OutputExtension = s.opts.OutputExtension
	m.Pretty = s.opts.Pretty
	return m
}

// OpenManifest returns the manifest store of the output tree at root.
func (s *Service) OpenManifest(root string) domain.ManifestStore {
	return s.manifests(root)
}

// previous returns the entries an incremental run may reuse. An unreadable
// manifest, or one written with other output options, yields none.
func (s *Service) previous(ms domain.ManifestStore) map[string]domain.ManifestEntry {
	if !s.opts.Incremental {
		return nil
	}
	m, err := ms.LoadManifest()
	if err != nil {
		s.logger.Warn("manifest unusable, rebuilding all outputs", "error", err)
		return nil
	}
	if len(m.Entries) == 0 {
		return nil
	}
	if m.OutputExtension != s.opts.OutputExtension || m.Pretty != s.opts.Pretty {
		s.logger.Info("output options changed, rebuilding all outputs",
			"output_extension", s.opts.OutputExtension, "pretty", s.opts.Pretty)
		return nil
	}
	return m.Entries
}

// each applies fn to entries on a bounded pool, stopping on cancellation.
func (s *Service) each(ctx context.Context, entries []domain.Entry, fn func(domain.Entry)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, e := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(e)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Service) record(r *run, res domain.FileResult, entry *domain.ManifestEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.results = append(r.results, res)
	if entry != nil {
		r.next.Entries[res.Path] = *entry
	}
	if !res.Mirror && !res.Failed() {
		r.produced[res.Output] = true
	}
	if res.Failed() {
		s.logger.Warn("file failed", "path", res.Path, "error", res.Err)
	}
	if s.Progress != nil {
		s.Progress(res)
	}
}

func (s *Service) decryptEntry(r *run, e domain.Entry, runID string) {
	outRel := s.OutputRel(e.Rel)
	src := filepath.Join(r.plan.Input, filepath.FromSlash(e.Rel))
	dst := filepath.Join(r.plan.Output, filepath.FromSlash(outRel))
	res := domain.FileResult{Path: e.Rel, Output: outRel}

	raw, err := os.ReadFile(src)
	if err != nil {
		res.Status, res.Err = domain.StatusFailed, err.Error()
		s.record(r, res, nil)
		return
	}
	inDigest := crypto.DigestBytes(raw)

	if p, ok := r.prev[e.Rel]; ok &&
		p.InputDigest == inDigest && p.Output == outRel && tree.Exists(dst) {
		res.Status, res.Digest = domain.StatusSkipped, p.OutputDigest
		s.record(r, res, &p)
		return
	}

	out, err := s.decode(e.Rel, raw)
	if err == nil {
		err = tree.WriteFile(dst, out, 0o644)
	}
	if err != nil {
		res.Status, res.Err = domain.StatusFailed, err.Error()
		s.record(r, res, nil)
		return
	}

	res.Status = domain.StatusDecrypted
	res.Digest = crypto.DigestBytes(out)
	res.Bytes = int64(len(out))
	s.record(r, res, &domain.ManifestEntry{
		InputDigest:  inDigest,
		Output:       outRel,
		OutputDigest: res.Digest,
		At:           time.Now().Unix(),
		RunID:        runID,
	})
}

func (s *Service) mirrorEntry(r *run, e domain.Entry) {
	src := filepath.Join(r.plan.Input, filepath.FromSlash(e.Rel))
	dst := filepath.Join(r.plan.Output, filepath.FromSlash(e.Rel))
	res := domain.FileResult{Path: e.Rel, Output: e.Rel, Mirror: true}

	r.mu.Lock()
	collides := r.produced[e.Rel]
	r.mu.Unlock()

	switch {
	case collides:
		s.logger.Warn("plain file shadowed by decrypted output", "path", e.Rel)
		res.Status = domain.StatusSkipped
	case s.opts.Incremental && tree.Unchanged(e, dst):
		res.Status = domain.StatusSkipped
	default:
		n, err := tree.CopyFile(src, dst)
		if err != nil {
			res.Status, res.Err = domain.StatusFailed, err.Error()
		} else {
			res.Status, res.Bytes = domain.StatusCopied, n
		}
	}
	s.record(r, res, nil)
}

// decode turns an exdf payload into the bytes written to disk.
func (s *Service) decode(name string, raw []byte) ([]byte, error) {
	text, err := document.DecodeText(crypto.Decrypt(raw))
	if err != nil {
		return nil, err
	}
	if s.opts.Pretty {
		formatted, ok := document.Indent(text)
		if ok {
			text = formatted
		} else {
			s.logger.Debug("not well-formed XML, writing unformatted", "path", name)
		}
	}
	return []byte(text), nil
}

// DecryptFile decrypts a single exdf file at input into output.
func (s *Service) DecryptFile(input, output string) (domain.FileResult, error) {
	res := domain.FileResult{Path: input, Output: output}
	raw, err := os.ReadFile(input)
	if err != nil {
		return res, err
	}
	out, err := s.decode(filepath.Base(input), raw)
	if err != nil {
		return res, fmt.Errorf("%s: %w", filepath.Base(input), err)
	}
	if err := tree.WriteFile(output, out, 0o644); err != nil {
		return res, err
	}
	res.Status = domain.StatusDecrypted
	res.Digest = crypto.DigestBytes(out)
	res.Bytes = int64(len(out))
	return res, nil
}

// EncryptFile obfuscates the file at input into exdf form at output.
func (s *Service) EncryptFile(input, output string) error {
	raw, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	return tree.WriteFile(output, crypto.Encrypt(raw), 0o644)
}

// Compile-time assertion that Service implements domain.ExdfService.
var _ domain.ExdfService = (*Service)(nil)
