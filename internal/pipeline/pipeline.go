// Package pipeline keeps an output tree in step with a source tree: each
// changed file is transformed, its references are rewritten to the
// fingerprinted outputs of the files it names, and every file depending on
// it is regenerated.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/agentic-research/fingerpack/internal/fingerprint"
	"github.com/agentic-research/fingerpack/internal/graph"
	"github.com/agentic-research/fingerpack/internal/refparse"
	"github.com/agentic-research/fingerpack/internal/transform"
	"github.com/agentic-research/fingerpack/internal/vfs"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Hooks are optional callbacks. OnOutput runs while the pipeline is locked
// and must not call back into it; the others run after it is released.
type Hooks struct {
	// OnBubbleUpFinished fires once per successful external change, after
	// every dependent has settled.
	OnBubbleUpFinished func()
	OnError            func(*FileError)
	// OnOutput fires for every output written, with out empty when a
	// previous output was cleared.
	OnOutput func(src, out string)
}

// Options configure a Pipeline. SrcDir, OutDir and FS are required.
type Options struct {
	SrcDir string
	OutDir string
	FS     vfs.FileSystem

	Transformers *transform.Dispatcher
	// Ledger defaults to a fresh one.
	Ledger *graph.Ledger

	// Parsable lists the extensions scanned for references; nil selects
	// refparse.DefaultExtensions.
	Parsable []string
	Scope    refparse.Scope

	NoHash   []*regexp.Regexp
	NoOutput []*regexp.Regexp
	Ignore   []*regexp.Regexp

	// BaseURL replaces the leading "/" of rewritten references.
	BaseURL string
	Hasher  fingerprint.Hasher

	// Concurrency bounds the parallel reads and transforms of Build.
	Concurrency int
	// Manifest is a file name inside OutDir that receives the source to
	// URL map after every change. Empty disables it.
	Manifest string

	Hooks Hooks
}

// Pipeline owns the dependency ledger and the table of current outputs.
type Pipeline struct {
	srcDir       string
	outDir       string
	fs           vfs.FileSystem
	transformers *transform.Dispatcher
	ledger       *graph.Ledger
	parser       *refparse.Parser
	fp           *fingerprint.Fingerprinter
	noOutput     []*regexp.Regexp
	ignore       []*regexp.Regexp
	baseURL      string
	concurrency  int
	manifest     string
	hooks        Hooks

	locks keyedMutex

	mu      sync.Mutex
	outputs map[string]string // source path → output path
}

func New(opts Options) (*Pipeline, error) {
	if opts.FS == nil {
		return nil, errors.New("pipeline: file system is required")
	}
	if opts.SrcDir == "" || opts.OutDir == "" {
		return nil, errors.New("pipeline: source and output directories are required")
	}
	src, err := filepath.Abs(opts.SrcDir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", opts.SrcDir, err)
	}
	out, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", opts.OutDir, err)
	}
	if within(out, src) || within(src, out) {
		return nil, fmt.Errorf("pipeline: output directory %s and source directory %s must not overlap", out, src)
	}

	p := &Pipeline{
		srcDir:       src,
		outDir:       out,
		fs:           opts.FS,
		transformers: opts.Transformers,
		ledger:       opts.Ledger,
		parser:       refparse.NewParser(src, opts.Parsable, opts.Scope),
		fp:           fingerprint.New(src, out, opts.Hasher, opts.NoHash),
		noOutput:     opts.NoOutput,
		ignore:       opts.Ignore,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		concurrency:  opts.Concurrency,
		manifest:     opts.Manifest,
		hooks:        opts.Hooks,
		outputs:      make(map[string]string),
	}
	if p.transformers == nil {
		p.transformers = transform.NewDispatcher()
	}
	if p.ledger == nil {
		p.ledger = graph.NewLedger()
	}
	if p.concurrency <= 0 {
		p.concurrency = runtime.NumCPU()
	}
	return p, nil
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}

func matchAny(patterns []*regexp.Regexp, path string) bool {
	slash := filepath.ToSlash(path)
	for _, re := range patterns {
		if re.MatchString(slash) {
			return true
		}
	}
	return false
}

func (p *Pipeline) ignored(path string) bool { return matchAny(p.ignore, path) }

// prepared is the result of reading, transforming and parsing one file,
// before anything shared is touched.
type prepared struct {
	path     string
	noOutput bool
	before   *refparse.File
	after    *refparse.File
	ext      string
	data     []byte
}

func (pr *prepared) targets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range []*refparse.File{pr.before, pr.after} {
		for _, t := range f.Targets() {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

func (p *Pipeline) prepare(ctx context.Context, path string) (*prepared, error) {
	src, err := p.fs.ReadBinary(path)
	if err != nil {
		return nil, newFileError(ReadFailure, path, err)
	}
	// Lookups normalize the extension; the output keeps it as written.
	ext := filepath.Ext(path)
	pr := &prepared{
		path:     path,
		noOutput: matchAny(p.noOutput, path),
		ext:      ext,
		data:     src,
		before:   p.parser.Parse(path, ext, src),
	}

	res, ok, err := p.transformers.Dispatch(ctx, path, src)
	if err != nil {
		return nil, newFileError(TransformFailure, path, err)
	}
	if !ok {
		pr.after = pr.before
		return pr, nil
	}
	pr.ext = res.Ext
	pr.data = res.Data
	pr.after = p.parser.Parse(path, res.Ext, res.Data)
	return pr, nil
}

// commit writes the output of pr and records it in the ledger. The ledger
// is left untouched when the write fails. Must be called with p.mu held.
func (p *Pipeline) commit(pr *prepared) error {
	if !pr.noOutput {
		data := pr.data
		if pr.after != nil {
			data = []byte(pr.after.Render(p.resolve))
		}
		if err := p.emit(pr.path, pr.ext, data); err != nil {
			return err
		}
	}
	p.ledger.Set(pr.path, pr.before, pr.after)
	log.Debug().Str("path", pr.path).Int("refs", len(pr.targets())).Msg("processed")
	return nil
}

// report logs err and hands file errors to the OnError hook.
func (p *Pipeline) report(err error) {
	var fe *FileError
	if errors.As(err, &fe) {
		log.Error().Err(fe.Err).Str("path", fe.Path).Stringer("kind", fe.Kind).Msg("file failed")
		if p.hooks.OnError != nil {
			p.hooks.OnError(fe)
		}
		return
	}
	log.Error().Err(err).Msg("pipeline")
}

func (p *Pipeline) finished() {
	if p.hooks.OnBubbleUpFinished != nil {
		p.hooks.OnBubbleUpFinished()
	}
}

// ProcessFile brings the output of path and of every file depending on it
// up to date. A failure leaves the previous state of path intact, is
// reported through OnError and is returned.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	if p.ignored(path) {
		return nil
	}

	p.locks.Lock(path)
	err := p.process(ctx, path)
	p.locks.Unlock(path)

	if err != nil {
		p.report(err)
		return err
	}
	p.finished()
	return nil
}

func (p *Pipeline) process(ctx context.Context, path string) error {
	pr, err := p.prepare(ctx, path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.commit(pr); err != nil {
		return err
	}
	p.bubbleUp(ctx, path)
	p.writeManifest()
	return nil
}

// RemoveFile drops path, its output and its ledger entries, then
// regenerates its dependents. A path that is not tracked is treated as a
// directory and every tracked file below it is removed.
func (p *Pipeline) RemoveFile(ctx context.Context, path string) error {
	path = filepath.Clean(path)

	// Checked under the path lock so an in-flight ProcessFile commits
	// before the removal looks at the ledger.
	p.locks.Lock(path)
	if p.ledger.Tracked(path) {
		removed, errs := p.remove(ctx, []string{path})
		p.locks.Unlock(path)
		return p.removed(removed, errs)
	}
	p.locks.Unlock(path)

	paths := p.ledger.PathsUnder(path)
	if len(paths) == 0 {
		return nil
	}
	// Sorted lock order keeps concurrent directory removals from deadlocking.
	sort.Strings(paths)
	for _, sp := range paths {
		p.locks.Lock(sp)
	}
	var tracked []string
	for _, sp := range paths {
		if p.ledger.Tracked(sp) {
			tracked = append(tracked, sp)
		}
	}
	removed, errs := p.remove(ctx, tracked)
	for _, sp := range paths {
		p.locks.Unlock(sp)
	}
	return p.removed(removed, errs)
}

func (p *Pipeline) removed(removed []string, errs []error) error {
	for _, err := range errs {
		p.report(err)
	}
	if len(removed) > 0 {
		p.finished()
	}
	return errors.Join(errs...)
}

func (p *Pipeline) remove(ctx context.Context, paths []string) ([]string, []error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var removed []string
	var errs []error
	for _, sp := range paths {
		if out, ok := p.outputs[sp]; ok {
			if err := p.fs.Remove(out); err != nil {
				errs = append(errs, newFileError(WriteFailure, sp, err))
				continue
			}
			delete(p.outputs, sp)
			log.Info().Str("path", sp).Str("output", out).Msg("removed")
			p.notifyOutput(sp, "")
		}
		p.ledger.Remove(sp)
		removed = append(removed, sp)
	}
	if len(removed) > 0 {
		p.bubbleUp(ctx, removed...)
		p.writeManifest()
	}
	return removed, errs
}

// Build processes every file under the source directory once. Reads and
// transforms run concurrently; outputs are committed so that a file's
// references are written before the file itself where the graph allows.
// Failed files are reported and skipped; the joined failures are
// returned.
func (p *Pipeline) Build(ctx context.Context) error {
	files, err := p.fs.List(p.srcDir)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	var paths []string
	for _, f := range files {
		if f = filepath.Clean(f); !p.ignored(f) {
			paths = append(paths, f)
		}
	}

	results := make([]*prepared, len(paths))
	failures := make([]error, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			p.locks.Lock(path)
			defer p.locks.Unlock(path)
			results[i], failures[i] = p.prepare(gctx, path)
			return nil
		})
	}
	_ = g.Wait() // failures are per file

	byPath := make(map[string]*prepared, len(paths))
	var ready []string
	for i, pr := range results {
		if pr != nil {
			byPath[paths[i]] = pr
			ready = append(ready, paths[i])
		}
	}
	order := schedule(ready, func(path string) []string { return byPath[path].targets() })

	p.mu.Lock()
	for _, path := range order {
		if err := p.commit(byPath[path]); err != nil {
			failures = append(failures, err)
			continue
		}
		p.bubbleUp(ctx, path)
	}
	p.writeManifest()
	p.mu.Unlock()

	var errs []error
	for _, err := range failures {
		if err != nil {
			p.report(err)
			errs = append(errs, err)
		}
	}
	log.Info().Int("files", len(paths)).Int("failed", len(errs)).Msg("build finished")
	p.finished()
	return errors.Join(errs...)
}

// Watch hands every source event to ProcessFile or RemoveFile until ctx
// is done or, for one-shot file systems, the initial scan is over.
// Per-file failures go to OnError and never stop the loop.
func (p *Pipeline) Watch(ctx context.Context) error {
	return p.fs.Watch(ctx, p.srcDir, vfs.Handler{
		OnUpdate: func(path string) { _ = p.ProcessFile(ctx, path) },
		OnRemove: func(path string) { _ = p.RemoveFile(ctx, path) },
	})
}

// SrcDir returns the absolute source directory.
func (p *Pipeline) SrcDir() string { return p.srcDir }

// OutDir returns the absolute output directory.
func (p *Pipeline) OutDir() string { return p.outDir }

// Ledger returns the dependency ledger.
func (p *Pipeline) Ledger() *graph.Ledger { return p.ledger }

// Resolve turns a path relative to the source directory into an absolute
// source path. Absolute paths are cleaned and returned as is.
func (p *Pipeline) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(p.srcDir, filepath.FromSlash(path))
}

// Dependents lists the files that reference src.
func (p *Pipeline) Dependents(src string) []string { return p.ledger.Dependents(p.Resolve(src)) }

// References lists the files src references.
func (p *Pipeline) References(src string) []string { return p.ledger.References(p.Resolve(src)) }

// ExportSQLite writes the ledger and output table to dbPath.
func (p *Pipeline) ExportSQLite(dbPath string) error {
	return graph.ExportSQLite(p.ledger, p.Outputs(), dbPath)
}
