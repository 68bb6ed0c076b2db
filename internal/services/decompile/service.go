package decompile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mutse/internal/domain"
	"mutse/internal/ilspy"
	"mutse/internal/tree"
)

// DefaultExtensions select .NET assemblies.
var DefaultExtensions = []string{".dll", ".exe"}

// Options tunes a Service.
type Options struct {
	Extensions []string // case-insensitive, with leading dot
	Workers    int      // <= 0 means runtime.NumCPU()
	Exclude    []string
}

// Service decompiles assembly trees with a domain.Decompiler.
type Service struct {
	opts       Options
	decompiler domain.Decompiler
	logger     *slog.Logger

	// Progress, if set, is called once per finished file. Calls are serialised.
	Progress func(domain.FileResult)
}

// New constructs a Service. A nil logger selects slog.Default().
func New(opts Options, decompiler domain.Decompiler, logger *slog.Logger) *Service {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{opts: opts, decompiler: decompiler, logger: logger}
}

// Options returns the effective options.
func (s *Service) Options() Options { return s.opts }

// OutputDir maps a relative assembly path to its relative output directory.
func OutputDir(rel string) string {
	return path.Join(path.Dir(rel), tree.Stem(rel))
}

// Scan resolves both roots and lists assemblies and other files.
func (s *Service) Scan(input, output string) (domain.Plan, error) {
	in, out, err := tree.ResolveRoots(input, output)
	if err != nil {
		return domain.Plan{}, err
	}
	targets, others, err := tree.Scan(in, tree.ScanOptions{
		Match:   tree.HasExt(s.opts.Extensions...),
		Exclude: s.opts.Exclude,
		SkipDir: out,
	})
	if err != nil {
		return domain.Plan{}, fmt.Errorf("scan %s: %w", in, err)
	}
	return domain.Plan{Input: in, Output: out, Targets: targets, Others: others}, nil
}

// Run decompiles every target in plan, then mirrors the rest.
func (s *Service) Run(ctx context.Context, plan domain.Plan) (domain.Report, error) {
	report := domain.Report{
		RunID:   uuid.NewString(),
		Kind:    domain.RunDecompile,
		Input:   plan.Input,
		Output:  plan.Output,
		Started: time.Now(),
	}
	if err := os.MkdirAll(plan.Output, 0o755); err != nil {
		return report, fmt.Errorf("create output folder: %w", err)
	}

	var (
		mu      sync.Mutex
		results []domain.FileResult
		mirror  []domain.Entry
	)
	record := func(res domain.FileResult) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, res)
		if res.Failed() {
			s.logger.Warn("file failed", "path", res.Path, "error", res.Err)
		}
		if s.Progress != nil {
			s.Progress(res)
		}
	}

	decompileOne := func(gctx context.Context, e domain.Entry) error {
		outRel := OutputDir(e.Rel)
		src := filepath.Join(plan.Input, filepath.FromSlash(e.Rel))
		dst := filepath.Join(plan.Output, filepath.FromSlash(outRel))

		err := s.decompiler.Decompile(gctx, src, dst)
		if errors.Is(err, ilspy.ErrToolNotFound) {
			return err
		}
		if err != nil && gctx.Err() != nil {
			return gctx.Err()
		}

		res := domain.FileResult{Path: e.Rel, Output: outRel, Status: domain.StatusDecompiled}
		if err != nil {
			res.Status, res.Err = domain.StatusFailed, err.Error()
			mu.Lock()
			mirror = append(mirror, e)
			mu.Unlock()
		}
		record(res)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, group := range s.groupByOutput(plan.Targets) {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			for _, e := range group {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := decompileOne(gctx, e); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	mirror = append(mirror, plan.Others...)
	sort.Slice(mirror, func(i, j int) bool { return mirror[i].Rel < mirror[j].Rel })

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, e := range mirror {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			src := filepath.Join(plan.Input, filepath.FromSlash(e.Rel))
			dst := filepath.Join(plan.Output, filepath.FromSlash(e.Rel))
			res := domain.FileResult{Path: e.Rel, Output: e.Rel, Mirror: true, Status: domain.StatusCopied}
			n, err := tree.CopyFile(src, dst)
			if err != nil {
				res.Status, res.Err = domain.StatusFailed, err.Error()
			}
			res.Bytes = n
			record(res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Path != results[j].Path {
			return results[i].Path < results[j].Path
		}
		return !results[i].Mirror && results[j].Mirror
	})
	report.Results = results
	report.Tally()
	report.Finished = time.Now()

	s.logger.Info("decompile run finished",
		"run_id", report.RunID,
		"decompiled", report.Succeeded,
		"failed", report.Failed,
		"copied", report.Copied,
		"elapsed", report.Finished.Sub(report.Started))
	return report, nil
}

// groupByOutput batches targets that decompile into the same folder, such as
// Core.dll and Core.exe, so that each batch runs sequentially.
func (s *Service) groupByOutput(targets []domain.Entry) [][]domain.Entry {
	var groups [][]domain.Entry
	index := make(map[string]int, len(targets))
	for _, e := range targets {
		key := strings.ToLower(OutputDir(e.Rel))
		i, ok := index[key]
		if !ok {
			index[key] = len(groups)
			groups = append(groups, []domain.Entry{e})
			continue
		}
		groups[i] = append(groups[i], e)
		s.logger.Warn("assemblies share an output folder, decompiling in turn",
			"output", OutputDir(e.Rel), "first", groups[i][0].Rel, "path", e.Rel)
	}
	return groups
}

// Compile-time assertion that Service implements domain.TreeService.
var _ domain.TreeService = (*Service)(nil)
