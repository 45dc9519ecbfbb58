// Package config loads the project configuration from fingerpack.hcl,
// .env and FINGERPACK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/agentic-research/fingerpack/api"
	"github.com/agentic-research/fingerpack/internal/fingerprint"
	"github.com/agentic-research/fingerpack/internal/pipeline"
	"github.com/agentic-research/fingerpack/internal/refparse"
	"github.com/agentic-research/fingerpack/internal/transform"
	"github.com/agentic-research/fingerpack/internal/vfs"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/joho/godotenv"
)

// DefaultFile is read from the working directory when no file is named.
const DefaultFile = "fingerpack.hcl"

const (
	DefaultSrcDir = "src"
	DefaultOutDir = "dist"
	DefaultPort   = 5000
)

// DefaultNoHash keeps page URLs stable.
var DefaultNoHash = []string{`\.html$`}

// Load reads the configuration. A missing file is an error only when
// explicit is set; otherwise defaults apply. Environment variables
// override the file.
func Load(path string, explicit bool) (*api.Config, error) {
	_ = godotenv.Load()

	cfg := &api.Config{}
	if path == "" {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *api.Config) error {
	if v := strings.TrimSpace(os.Getenv("FINGERPACK_SRC_DIR")); v != "" {
		cfg.SrcDir = v
	}
	if v := strings.TrimSpace(os.Getenv("FINGERPACK_OUT_DIR")); v != "" {
		cfg.OutDir = v
	}
	if v := strings.TrimSpace(os.Getenv("FINGERPACK_BASE_URL")); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("FINGERPACK_HASH")); v != "" {
		cfg.Hash = v
	}
	if v := strings.TrimSpace(os.Getenv("FINGERPACK_PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FINGERPACK_PORT: %w", err)
		}
		cfg.Port = port
	}
	return nil
}

func applyDefaults(cfg *api.Config) {
	if cfg.SrcDir == "" {
		cfg.SrcDir = DefaultSrcDir
	}
	if cfg.OutDir == "" {
		cfg.OutDir = DefaultOutDir
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.NoHash == nil {
		cfg.NoHash = DefaultNoHash
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
	}
}

// Compile compiles a pattern list.
func Compile(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Transformers builds the dispatcher described by cfg.
func Transformers(cfg *api.Config) (*transform.Dispatcher, error) {
	d := transform.NewDispatcher()
	if cfg.Markdown {
		d.Register(".md", transform.NewMarkdown())
	}
	for _, t := range cfg.Transformers {
		if len(t.Command) == 0 {
			return nil, fmt.Errorf("transformer %q: command is empty", t.Ext)
		}
		d.Register(t.Ext, &transform.Command{
			Name: t.Command[0],
			Args: t.Command[1:],
			Ext:  t.Output,
		})
	}
	return d, nil
}

// Options turns cfg into pipeline options over fs.
func Options(cfg *api.Config, fs vfs.FileSystem) (pipeline.Options, error) {
	var opts pipeline.Options
	noHash, err := Compile(cfg.NoHash)
	if err != nil {
		return opts, fmt.Errorf("no_hash: %w", err)
	}
	noOutput, err := Compile(cfg.NoOutput)
	if err != nil {
		return opts, fmt.Errorf("no_output: %w", err)
	}
	ignore, err := Compile(cfg.Ignore)
	if err != nil {
		return opts, fmt.Errorf("ignore: %w", err)
	}
	hasher, err := fingerprint.HasherByName(cfg.Hash)
	if err != nil {
		return opts, err
	}
	scope, err := refparse.ParseScope(cfg.Scope)
	if err != nil {
		return opts, err
	}
	transformers, err := Transformers(cfg)
	if err != nil {
		return opts, err
	}

	return pipeline.Options{
		SrcDir:       cfg.SrcDir,
		OutDir:       cfg.OutDir,
		FS:           fs,
		Transformers: transformers,
		Parsable:     cfg.Parsable,
		Scope:        scope,
		NoHash:       noHash,
		NoOutput:     noOutput,
		Ignore:       ignore,
		BaseURL:      cfg.BaseURL,
		Hasher:       hasher,
		Concurrency:  cfg.Concurrency,
		Manifest:     cfg.Manifest,
	}, nil
}
