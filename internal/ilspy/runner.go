package ilspy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"mutse/internal/domain"
)

const (
	// DefaultBinary is looked up on PATH when Runner.Binary is empty.
	DefaultBinary = "ilspycmd"
	// DefaultTimeout bounds a single decompilation.
	DefaultTimeout = 300 * time.Second

	// waitDelay bounds how long Decompile waits for output pipes after the
	// process was killed; descendants of a wrapper script may hold them open.
	waitDelay = 2 * time.Second
)

var (
	ErrToolNotFound = errors.New("ilspycmd not found (install with: dotnet tool install -g ilspycmd)")
	ErrTimeout      = errors.New("decompilation timed out")
)

// Runner invokes ilspycmd as a child process.
type Runner struct {
	Binary  string
	Timeout time.Duration
}

// New returns a Runner; empty or zero arguments select the defaults.
func New(binary string, timeout time.Duration) *Runner {
	if binary == "" {
		binary = DefaultBinary
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{Binary: binary, Timeout: timeout}
}

// Args returns the ilspycmd arguments for decompiling assembly into outDir.
func Args(assembly, outDir string) []string {
	return []string{"-r", filepath.Dir(assembly), "-o", outDir, assembly}
}

// Decompile runs ilspycmd for a single assembly, creating outDir first.
func (r *Runner) Decompile(ctx context.Context, assembly, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Binary, Args(assembly, outDir)...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrToolNotFound, r.Binary)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	case ctx.Err() != nil:
		return ctx.Err()
	}

	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		return fmt.Errorf("ilspycmd: %w", err)
	}
	return fmt.Errorf("ilspycmd: %s", msg)
}

// Compile-time assertion that Runner implements domain.Decompiler.
var _ domain.Decompiler = (*Runner)(nil)
