package watch_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutse/internal/crypto"
	"mutse/internal/domain"
	"mutse/internal/services/exdf"
	"mutse/internal/services/watch"
	"mutse/internal/store"
)

const (
	waitFor = 5 * time.Second
	tick    = 20 * time.Millisecond
)

// watcher is a running watch over one input and output pair.
type watcher struct {
	initial domain.Report

	mu      sync.Mutex
	results []domain.FileResult
}

func (w *watcher) handled(rel string, status domain.Status) func() bool {
	return func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		for _, r := range w.results {
			if r.Path == rel && r.Status == status {
				return true
			}
		}
		return false
	}
}

// startWatch runs a watch until the test ends and returns once it is ready.
func startWatch(t *testing.T, in, out string) *watcher {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	syncer := exdf.New(exdf.Options{Pretty: true}, func(root string) domain.ManifestStore {
		return store.NewManifestFileStore(root)
	}, logger)

	w := &watcher{}
	svc := watch.New(syncer, watch.Options{Debounce: 20 * time.Millisecond}, logger)
	ready := make(chan domain.Report, 1)
	svc.OnReady = func(r domain.Report) { ready <- r }
	svc.OnResult = func(r domain.FileResult) {
		w.mu.Lock()
		w.results = append(w.results, r)
		w.mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Watch(ctx, in, out) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(waitFor):
			t.Error("watch did not stop after cancel")
		}
	})

	select {
	case w.initial = <-ready:
	case err := <-done:
		t.Fatalf("watch exited early: %v", err)
	case <-time.After(waitFor):
		t.Fatal("watcher never became ready")
	}
	return w
}

func write(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func fileContains(path, want string) func() bool {
	return func() bool {
		b, err := os.ReadFile(path)
		return err == nil && string(b) == want
	}
}

func gone(path string) func() bool {
	return func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}
}

func TestWatch_AppliesChanges(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	write(t, filepath.Join(in, "start.exdf"), crypto.Encrypt([]byte("<s/>")))

	w := startWatch(t, in, out)
	assert.Equal(t, 1, w.initial.Succeeded)
	assert.FileExists(t, filepath.Join(out, "start.xml"))

	// New target, new plain file inside a new directory, then a delete.
	write(t, filepath.Join(in, "live.exdf"), crypto.Encrypt([]byte("<live><x/></live>")))
	write(t, filepath.Join(in, "sub", "note.txt"), []byte("hi"))

	assert.Eventually(t, fileContains(filepath.Join(out, "live.xml"), "<live>\n  <x />\n</live>\n"), waitFor, tick)
	assert.Eventually(t, fileContains(filepath.Join(out, "sub", "note.txt"), "hi"), waitFor, tick)

	require.NoError(t, os.Remove(filepath.Join(in, "start.exdf")))
	assert.Eventually(t, gone(filepath.Join(out, "start.xml")), waitFor, tick)
	assert.Eventually(t, w.handled("live.exdf", domain.StatusDecrypted), waitFor, tick)
}

func TestWatch_InputInsideOutput(t *testing.T) {
	out := t.TempDir()
	in := filepath.Join(out, "src")
	write(t, filepath.Join(in, "a.exdf"), crypto.Encrypt([]byte("<a/>")))

	startWatch(t, in, out)
	assert.FileExists(t, filepath.Join(out, "a.xml"))

	write(t, filepath.Join(in, "live.exdf"), crypto.Encrypt([]byte("<live/>")))
	write(t, filepath.Join(in, "deep", "b.exdf"), crypto.Encrypt([]byte("<b/>")))

	assert.Eventually(t, fileContains(filepath.Join(out, "live.xml"), "<live />\n"), waitFor, tick)
	assert.Eventually(t, fileContains(filepath.Join(out, "deep", "b.xml"), "<b />\n"), waitFor, tick)
}

func TestWatch_KeepsManifestCurrent(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	write(t, filepath.Join(in, "a.exdf"), crypto.Encrypt([]byte("<a/>")))
	write(t, filepath.Join(in, "b.exdf"), crypto.Encrypt([]byte("<b/>")))

	startWatch(t, in, out)
	ms := store.NewManifestFileStore(out)

	write(t, filepath.Join(in, "a.exdf"), crypto.Encrypt([]byte("<a changed=\"1\"/>")))
	assert.Eventually(t, fileContains(filepath.Join(out, "a.xml"), "<a changed=\"1\" />\n"), waitFor, tick)
	assert.Eventually(t, func() bool {
		m, err := ms.LoadManifest()
		if err != nil {
			return false
		}
		want, err := crypto.DigestFile(filepath.Join(out, "a.xml"))
		return err == nil && m.Entries["a.exdf"].OutputDigest == want
	}, waitFor, tick)

	require.NoError(t, os.Remove(filepath.Join(in, "b.exdf")))
	assert.Eventually(t, func() bool {
		m, err := ms.LoadManifest()
		if err != nil {
			return false
		}
		_, ok := m.Entries["b.exdf"]
		return !ok
	}, waitFor, tick)

	m, err := ms.LoadManifest()
	require.NoError(t, err)
	inDigest, err := crypto.DigestFile(filepath.Join(in, "a.exdf"))
	require.NoError(t, err)
	assert.Equal(t, inDigest, m.Entries["a.exdf"].InputDigest)
}

func TestWatch_DecryptedOutputWinsOverPlainFile(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	write(t, filepath.Join(in, "cfg.exdf"), crypto.Encrypt([]byte("<decrypted/>")))
	write(t, filepath.Join(in, "cfg.xml"), []byte("<plain/>"))

	w := startWatch(t, in, out)
	decrypted := filepath.Join(out, "cfg.xml")
	require.True(t, fileContains(decrypted, "<decrypted />\n")())

	write(t, filepath.Join(in, "cfg.xml"), []byte("<plain2/>"))
	assert.Eventually(t, w.handled("cfg.xml", domain.StatusSkipped), waitFor, tick)
	assert.True(t, fileContains(decrypted, "<decrypted />\n")())

	// Removing the plain file leaves the decrypted output alone. The marker
	// is handled after it, so its arrival means the removal was processed.
	require.NoError(t, os.Remove(filepath.Join(in, "cfg.xml")))
	time.Sleep(5 * tick)
	write(t, filepath.Join(in, "marker.txt"), []byte("m"))
	assert.Eventually(t, fileContains(filepath.Join(out, "marker.txt"), "m"), waitFor, tick)
	assert.True(t, fileContains(decrypted, "<decrypted />\n")())

	// Once the target is gone, the plain file takes its place again.
	write(t, filepath.Join(in, "cfg.xml"), []byte("<plain3/>"))
	time.Sleep(5 * tick)
	require.NoError(t, os.Remove(filepath.Join(in, "cfg.exdf")))
	assert.Eventually(t, fileContains(decrypted, "<plain3/>"), waitFor, tick)
}

func TestWatch_RenamedDirectoryRemovesOutputs(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	write(t, filepath.Join(in, "sub", "a.exdf"), crypto.Encrypt([]byte("<a/>")))
	write(t, filepath.Join(in, "sub", "deeper", "note.txt"), []byte("n"))
	write(t, filepath.Join(in, "keep.exdf"), crypto.Encrypt([]byte("<k/>")))

	startWatch(t, in, out)
	require.FileExists(t, filepath.Join(out, "sub", "a.xml"))
	require.FileExists(t, filepath.Join(out, "sub", "deeper", "note.txt"))

	require.NoError(t, os.Rename(filepath.Join(in, "sub"), filepath.Join(t.TempDir(), "sub")))

	assert.Eventually(t, gone(filepath.Join(out, "sub")), waitFor, tick)
	assert.FileExists(t, filepath.Join(out, "keep.xml"))

	assert.Eventually(t, func() bool {
		m, err := store.NewManifestFileStore(out).LoadManifest()
		if err != nil {
			return false
		}
		_, ok := m.Entries["sub/a.exdf"]
		return !ok
	}, waitFor, tick)
}

func TestWatch_MissingInput(t *testing.T) {
	syncer := exdf.New(exdf.Options{}, func(root string) domain.ManifestStore {
		return store.NewManifestFileStore(root)
	}, nil)
	err := watch.New(syncer, watch.Options{}, nil).Watch(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir())
	assert.Error(t, err)
}
