// Package transform converts source content by file extension, for
// example a template into HTML or a stylesheet dialect into CSS.
package transform

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/agentic-research/fingerpack/internal/refparse"
)

// Result is the output of a transformer. An empty Ext keeps the source
// extension.
type Result struct {
	Ext  string
	Data []byte
}

// Transformer converts the content of one source file.
type Transformer interface {
	Transform(ctx context.Context, absPath string, src []byte) (Result, error)
}

// Func adapts a function to the Transformer interface.
type Func func(ctx context.Context, absPath string, src []byte) (Result, error)

func (f Func) Transform(ctx context.Context, absPath string, src []byte) (Result, error) {
	return f(ctx, absPath, src)
}

// Dispatcher selects a transformer by source extension.
type Dispatcher struct {
	mu    sync.RWMutex
	byExt map[string]Transformer
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{byExt: make(map[string]Transformer)}
}

// Register binds t to ext, replacing any previous binding.
func (d *Dispatcher) Register(ext string, t Transformer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byExt[refparse.NormalizeExt(ext)] = t
}

// Lookup returns the transformer for ext.
func (d *Dispatcher) Lookup(ext string) (Transformer, bool) {
	if d == nil {
		return nil, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.byExt[refparse.NormalizeExt(ext)]
	return t, ok
}

// Has reports whether ext has a transformer.
func (d *Dispatcher) Has(ext string) bool {
	_, ok := d.Lookup(ext)
	return ok
}

// Dispatch runs the transformer registered for path's extension. The bool
// is false when no transformer applies and the content passes through
// unchanged. An empty result extension keeps path's extension as written.
func (d *Dispatcher) Dispatch(ctx context.Context, path string, src []byte) (Result, bool, error) {
	ext := filepath.Ext(path)
	t, ok := d.Lookup(ext)
	if !ok {
		return Result{}, false, nil
	}
	res, err := t.Transform(ctx, path, src)
	if err != nil {
		return Result{}, true, err
	}
	if res.Ext == "" {
		res.Ext = ext
	} else {
		res.Ext = refparse.NormalizeExt(res.Ext)
	}
	return res, true, nil
}
