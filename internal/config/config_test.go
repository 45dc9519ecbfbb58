package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/agentic-research/fingerpack/internal/refparse"
	"github.com/agentic-research/fingerpack/internal/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
src_dir  = "site"
out_dir  = "public"
base_url = "https://cdn.example.com"
hash     = "xxh3"
scope    = "attributes"
ignore   = ["\\.swp$", "/drafts/"]
manifest = "manifest.json"
port     = 8080
markdown = true

transformer ".less" {
  command = ["lessc", "-"]
  output  = ".css"
}

transformer ".pug" {
  command = ["pug", "--path", "{path}"]
  output  = ".html"
}
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultFile), false)
	require.NoError(t, err)

	assert.Equal(t, DefaultSrcDir, cfg.SrcDir)
	assert.Equal(t, DefaultOutDir, cfg.OutDir)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultNoHash, cfg.NoHash)
	assert.Equal(t, runtime.NumCPU(), cfg.Concurrency)
	assert.Empty(t, cfg.Transformers)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.hcl"), true)
	assert.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample), true)
	require.NoError(t, err)

	assert.Equal(t, "site", cfg.SrcDir)
	assert.Equal(t, "public", cfg.OutDir)
	assert.Equal(t, "https://cdn.example.com", cfg.BaseURL)
	assert.Equal(t, "xxh3", cfg.Hash)
	assert.Equal(t, "attributes", cfg.Scope)
	assert.Equal(t, []string{`\.swp$`, "/drafts/"}, cfg.Ignore)
	assert.Equal(t, "manifest.json", cfg.Manifest)
	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.Markdown)
	assert.Equal(t, DefaultNoHash, cfg.NoHash)

	require.Len(t, cfg.Transformers, 2)
	assert.Equal(t, ".less", cfg.Transformers[0].Ext)
	assert.Equal(t, []string{"lessc", "-"}, cfg.Transformers[0].Command)
	assert.Equal(t, ".css", cfg.Transformers[0].Output)
	assert.Equal(t, ".pug", cfg.Transformers[1].Ext)
}

func TestLoad_InvalidFile(t *testing.T) {
	_, err := Load(writeConfig(t, `src_dir = `), true)
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `unknown_key = "x"`), true)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FINGERPACK_OUT_DIR", "/tmp/elsewhere")
	t.Setenv("FINGERPACK_PORT", "9000")
	t.Setenv("FINGERPACK_HASH", "md5")

	cfg, err := Load(writeConfig(t, sample), true)
	require.NoError(t, err)
	assert.Equal(t, "site", cfg.SrcDir)
	assert.Equal(t, "/tmp/elsewhere", cfg.OutDir)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "md5", cfg.Hash)

	t.Setenv("FINGERPACK_PORT", "http")
	_, err = Load(writeConfig(t, sample), true)
	assert.Error(t, err)
}

func TestOptions(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample), true)
	require.NoError(t, err)

	opts, err := Options(cfg, vfs.NewMemory())
	require.NoError(t, err)
	assert.Equal(t, "site", opts.SrcDir)
	assert.Equal(t, refparse.ScopeAttributes, opts.Scope)
	assert.Len(t, opts.Ignore, 2)
	assert.True(t, opts.Ignore[1].MatchString("/site/drafts/post.md"))
	assert.True(t, opts.Transformers.Has(".less"))
	assert.True(t, opts.Transformers.Has(".pug"))
	assert.True(t, opts.Transformers.Has(".md"))
	assert.False(t, opts.Transformers.Has(".css"))
}

func TestOptions_Invalid(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultFile), false)
	require.NoError(t, err)

	bad := *cfg
	bad.Ignore = []string{"("}
	_, err = Options(&bad, vfs.NewMemory())
	assert.Error(t, err)

	bad = *cfg
	bad.Hash = "crc32"
	_, err = Options(&bad, vfs.NewMemory())
	assert.Error(t, err)

	bad = *cfg
	bad.Scope = "ast"
	_, err = Options(&bad, vfs.NewMemory())
	assert.Error(t, err)
}
