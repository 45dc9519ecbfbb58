package cmd

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentic-research/fingerpack/internal/fingerprint"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func writeSite(t *testing.T) (src, out string) {
	t.Helper()
	dir := t.TempDir()
	src = filepath.Join(dir, "src")
	out = filepath.Join(dir, "dist")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "index.html"), []byte(`<link href="css/site.css">`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "css", "site.css"), []byte("body { color: red }"), 0o644))
	return src, out
}

// resetFlags restores every flag to its default; cobra keeps parsed
// values between Execute calls.
func resetFlags(t *testing.T) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue))
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	rootCmd.Flags().VisitAll(reset)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(reset)
	}
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	resetFlags(t)
	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), stderr.String())
	return stderr.String()
}

func TestBuildCommand(t *testing.T) {
	src, out := writeSite(t)

	// A stale file from a previous build must not survive.
	require.NoError(t, os.MkdirAll(out, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "stale.txt"), []byte("old"), 0o644))

	run(t, "build", "-s", src, "-o", out)

	hash := fingerprint.SHA256.Sum([]byte("body { color: red }"))[:fingerprint.HashLength]
	css := filepath.Join(out, "css", "site."+hash+".css")
	assert.FileExists(t, css)
	assert.NoFileExists(t, filepath.Join(out, "stale.txt"))

	page, err := os.ReadFile(filepath.Join(out, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, `<link href="/css/site.`+hash+`.css">`, string(page))
}

func TestBuildCommand_ReportsFailures(t *testing.T) {
	src, out := writeSite(t)
	cfgPath := filepath.Join(t.TempDir(), "fingerpack.hcl")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
transformer ".css" {
  command = ["false"]
}
`), 0o644))

	stderr := run(t, "build", "-c", cfgPath, "-s", src, "-o", out)
	assert.Contains(t, stderr, "site.css: transform error")
	assert.FileExists(t, filepath.Join(out, "index.html"))
}

func TestBuildCommand_MissingConfig(t *testing.T) {
	src, out := writeSite(t)
	resetFlags(t)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"build", "-c", filepath.Join(t.TempDir(), "missing.hcl"), "-s", src, "-o", out})
	assert.Error(t, rootCmd.Execute())
}

func TestGraphCommand(t *testing.T) {
	src, out := writeSite(t)
	db := filepath.Join(t.TempDir(), "graph.db")

	run(t, "graph", "-s", src, "-o", out, db)

	conn, err := sql.Open("sqlite", db)
	require.NoError(t, err)
	defer conn.Close()

	var parent, child string
	require.NoError(t, conn.QueryRow(`SELECT parent, child FROM refs WHERE phase = 'after'`).Scan(&parent, &child))
	assert.Equal(t, filepath.Join(src, "index.html"), parent)
	assert.Equal(t, filepath.Join(src, "css", "site.css"), child)

	var files int
	require.NoError(t, conn.QueryRow(`SELECT count(*) FROM files`).Scan(&files))
	assert.Equal(t, 2, files)
}

func TestBuildCommand_OverlappingDirsKeepSources(t *testing.T) {
	for name, layout := range map[string]struct{ src, out string }{
		"same":           {src: "site", out: "site"},
		"src inside out": {src: "site/src", out: "site"},
		"out inside src": {src: "site", out: "site/dist"},
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, filepath.FromSlash(layout.src))
			out := filepath.Join(dir, filepath.FromSlash(layout.out))
			page := filepath.Join(src, "index.html")
			require.NoError(t, os.MkdirAll(src, 0o755))
			require.NoError(t, os.WriteFile(page, []byte("<p>keep me</p>"), 0o644))

			resetFlags(t)
			rootCmd.SetErr(&bytes.Buffer{})
			rootCmd.SetArgs([]string{"build", "-s", src, "-o", out})
			require.Error(t, rootCmd.Execute())

			data, err := os.ReadFile(page)
			require.NoError(t, err)
			assert.Equal(t, "<p>keep me</p>", string(data))
		})
	}
}
