package exdf_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutse/internal/crypto"
	"mutse/internal/domain"
	"mutse/internal/services/exdf"
	"mutse/internal/store"
	"mutse/internal/tree"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(opts exdf.Options) *exdf.Service {
	return exdf.New(opts, func(root string) domain.ManifestStore {
		return store.NewManifestFileStore(root)
	}, quietLogger())
}

func put(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
}

func read(t *testing.T, root, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(b)
}

func byPath(rep domain.Report) map[string]domain.FileResult {
	m := make(map[string]domain.FileResult, len(rep.Results))
	for _, r := range rep.Results {
		key := r.Path
		if r.Mirror {
			key = "mirror:" + key
		}
		m[key] = r
	}
	return m
}

func TestRun_DecryptsAndMirrors(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "out")
	put(t, in, "Data/Ecu/engine.exdf", crypto.Encrypt([]byte(`<Ecu><Item id="1">RPM</Item></Ecu>`)))
	put(t, in, "Data/Ecu/abs.v2.exdf", crypto.Encrypt([]byte(`<Abs/>`)))
	put(t, in, "Data/readme.txt", []byte("hello"))
	put(t, in, "bin/tool.dll", []byte{0x4D, 0x5A})

	svc := newService(exdf.Options{Pretty: true, Workers: 2})
	plan, err := svc.Scan(in, out)
	require.NoError(t, err)
	assert.Len(t, plan.Targets, 2)
	assert.Len(t, plan.Others, 2)

	rep, err := svc.Run(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Succeeded)
	assert.Equal(t, 2, rep.Copied)
	assert.Zero(t, rep.Failed)
	assert.NotEmpty(t, rep.RunID)

	assert.Equal(t, "<Ecu>\n  <Item id=\"1\">RPM</Item>\n</Ecu>\n", read(t, out, "Data/Ecu/engine.xml"))
	assert.Equal(t, "<Abs />\n", read(t, out, "Data/Ecu/abs.v2.xml"))
	assert.Equal(t, "hello", read(t, out, "Data/readme.txt"))
	assert.Equal(t, "MZ", read(t, out, "bin/tool.dll"))
	assert.NoFileExists(t, filepath.Join(out, "Data", "Ecu", "engine.exdf"))
}

func TestRun_CorruptFileFailsWithoutStoppingRun(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	put(t, in, "bad.exdf", crypto.Encrypt([]byte{'<', 'a', '>', 0xC3, 0x28}))
	put(t, in, "good.exdf", crypto.Encrypt([]byte("<a/>")))

	var seen []domain.FileResult
	svc := newService(exdf.Options{Pretty: true, Workers: 1})
	svc.Progress = func(r domain.FileResult) { seen = append(seen, r) }

	plan, err := svc.Scan(in, out)
	require.NoError(t, err)
	rep, err := svc.Run(context.Background(), plan)
	require.NoError(t, err)

	res := byPath(rep)
	assert.Equal(t, domain.StatusFailed, res["bad.exdf"].Status)
	assert.Contains(t, res["bad.exdf"].Err, "invalid UTF-8")
	assert.Equal(t, domain.StatusDecrypted, res["good.exdf"].Status)
	assert.Equal(t, 1, rep.Failed)
	assert.Len(t, seen, 2)
	assert.NoFileExists(t, filepath.Join(out, "bad.xml"))
}

func TestRun_MalformedXMLWrittenVerbatim(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	put(t, in, "odd.exdf", crypto.Encrypt([]byte("<a><b></a>")))

	svc := newService(exdf.Options{Pretty: true})
	plan, err := svc.Scan(in, out)
	require.NoError(t, err)
	rep, err := svc.Run(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, "<a><b></a>", read(t, out, "odd.xml"))
}

func TestRun_NoPrettyKeepsText(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	put(t, in, "x.exdf", crypto.Encrypt([]byte("<a><b/></a>")))

	svc := newService(exdf.Options{Pretty: false})
	plan, err := svc.Scan(in, out)
	require.NoError(t, err)
	_, err = svc.Run(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, "<a><b/></a>", read(t, out, "x.xml"))
}

func TestRun_DecryptedOutputWinsOverPlainFile(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	put(t, in, "cfg.exdf", crypto.Encrypt([]byte("<decrypted/>")))
	put(t, in, "cfg.xml", []byte("<plain/>"))

	svc := newService(exdf.Options{Pretty: true})
	plan, err := svc.Scan(in, out)
	require.NoError(t, err)
	rep, err := svc.Run(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, "<decrypted />\n", read(t, out, "cfg.xml"))
	assert.Equal(t, domain.StatusSkipped, byPath(rep)["mirror:cfg.xml"].Status)
}

func TestRun_IncrementalSkipsUnchanged(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	put(t, in, "a.exdf", crypto.Encrypt([]byte("<a/>")))
	put(t, in, "b.exdf", crypto.Encrypt([]byte("<b/>")))
	put(t, in, "note.txt", []byte("n"))

	svc := newService(exdf.Options{Pretty: true, Incremental: true})
	plan, err := svc.Scan(in, out)
	require.NoError(t, err)
	first, err := svc.Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Succeeded)
	assert.Equal(t, 1, first.Copied)

	put(t, in, "b.exdf", crypto.Encrypt([]byte("<b changed=\"yes\"/>")))
	plan, err = svc.Scan(in, out)
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), plan)
	require.NoError(t, err)

	res := byPath(second)
	assert.Equal(t, domain.StatusSkipped, res["a.exdf"].Status)
	assert.Equal(t, domain.StatusDecrypted, res["b.exdf"].Status)
	assert.Equal(t, domain.StatusSkipped, res["mirror:note.txt"].Status)
	assert.Equal(t, "<b changed=\"yes\" />\n", read(t, out, "b.xml"))

	m, err := store.NewManifestFileStore(out).LoadManifest()
	require.NoError(t, err)
	assert.Len(t, m.Entries, 2)
	assert.Equal(t, second.RunID, m.RunID)
	assert.Equal(t, first.RunID, m.Entries["a.exdf"].RunID)
	assert.Equal(t, second.RunID, m.Entries["b.exdf"].RunID)
}

func TestRun_CorruptManifestDoesNotBlockRun(t *testing.T) {
	for _, incremental := range []bool{false, true} {
		in, out := t.TempDir(), t.TempDir()
		put(t, in, "a.exdf", crypto.Encrypt([]byte("<a/>")))
		put(t, out, ".mutse/manifest.json", []byte("{garbage"))

		svc := newService(exdf.Options{Pretty: true, Incremental: incremental})
		plan, err := svc.Scan(in, out)
		require.NoError(t, err)
		rep, err := svc.Run(context.Background(), plan)
		require.NoError(t, err, "incremental=%v", incremental)

		assert.Equal(t, 1, rep.Succeeded)
		assert.Equal(t, "<a />\n", read(t, out, "a.xml"))

		m, err := store.NewManifestFileStore(out).LoadManifest()
		require.NoError(t, err)
		assert.Equal(t, rep.RunID, m.RunID)
	}
}

func TestRun_IncrementalRebuildsWhenOptionsChange(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	put(t, in, "a.exdf", crypto.Encrypt([]byte("<a><b/></a>")))

	pretty := newService(exdf.Options{Pretty: true, Incremental: true})
	plan, err := pretty.Scan(in, out)
	require.NoError(t, err)
	_, err = pretty.Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, "<a>\n  <b />\n</a>\n", read(t, out, "a.xml"))

	raw := newService(exdf.Options{Pretty: false, Incremental: true})
	rep, err := raw.Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDecrypted, byPath(rep)["a.exdf"].Status)
	assert.Equal(t, "<a><b/></a>", read(t, out, "a.xml"))

	m, err := store.NewManifestFileStore(out).LoadManifest()
	require.NoError(t, err)
	assert.False(t, m.Pretty)
	assert.Equal(t, ".xml", m.OutputExtension)

	again, err := raw.Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSkipped, byPath(again)["a.exdf"].Status)
}

func TestRun_OutputNestedInInputIsNotRescanned(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(in, "decrypted")
	put(t, in, "a.exdf", crypto.Encrypt([]byte("<a/>")))

	svc := newService(exdf.Options{})
	for i := 0; i < 2; i++ {
		plan, err := svc.Scan(in, out)
		require.NoError(t, err)
		assert.Len(t, plan.Targets, 1)
		assert.Empty(t, plan.Others)
		_, err = svc.Run(context.Background(), plan)
		require.NoError(t, err)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	put(t, in, "a.exdf", crypto.Encrypt([]byte("<a/>")))

	svc := newService(exdf.Options{})
	plan, err := svc.Scan(in, out)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Run(ctx, plan)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScan_Errors(t *testing.T) {
	svc := newService(exdf.Options{})
	dir := t.TempDir()

	_, err := svc.Scan(filepath.Join(dir, "missing"), t.TempDir())
	assert.ErrorIs(t, err, tree.ErrInputNotFound)

	_, err = svc.Scan(dir, dir)
	assert.ErrorIs(t, err, tree.ErrSameTree)

	file := filepath.Join(dir, "f.exdf")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = svc.Scan(file, t.TempDir())
	assert.Error(t, err)
}

func TestEncryptThenDecryptFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "def.xml")
	require.NoError(t, os.WriteFile(src, []byte(`<Def><Name>Test</Name></Def>`), 0o644))

	svc := newService(exdf.Options{Pretty: true})
	enc := filepath.Join(dir, "def.exdf")
	require.NoError(t, svc.EncryptFile(src, enc))

	raw, err := os.ReadFile(enc)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "<Def>")

	dec := filepath.Join(dir, "round", "def.xml")
	res, err := svc.DecryptFile(enc, dec)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDecrypted, res.Status)
	assert.Equal(t, "<Def>\n  <Name>Test</Name>\n</Def>\n", read(t, dir, "round/def.xml"))
}

func TestIsTargetAndOutputRel(t *testing.T) {
	svc := newService(exdf.Options{})
	assert.True(t, svc.IsTarget("a/B.EXDF"))
	assert.False(t, svc.IsTarget("a/b.xml"))
	assert.Equal(t, "a/b.c.xml", svc.OutputRel("a/b.c.exdf"))
}
