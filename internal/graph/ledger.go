// Package graph tracks which source files reference which, so a change can
// be propagated to every dependent.
package graph

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/fingerpack/internal/refparse"
)

var ErrNotFound = errors.New("path not tracked")

// Phase says which record of a file an edge came from.
type Phase string

const (
	PhaseBefore Phase = "before"
	PhaseAfter  Phase = "after"
)

// Edge is one reference from Parent to Child.
type Edge struct {
	Parent string
	Child  string
	Phase  Phase
}

type entry struct {
	before *refparse.File
	after  *refparse.File
}

// Ledger holds both parsed records of every tracked file and the inverted
// reference index. A reference counts if it is present in either record.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*entry

	// child path ID → bitmap of parent path IDs.
	parents map[uint32]*roaring.Bitmap
	pathID  map[string]uint32
	idPath  []string
}

func NewLedger() *Ledger {
	return &Ledger{
		entries: make(map[string]*entry),
		parents: make(map[uint32]*roaring.Bitmap),
		pathID:  make(map[string]uint32),
	}
}

// intern returns the bitmap ID for path, assigning one if needed.
// Must be called with l.mu held for writing.
func (l *Ledger) intern(path string) uint32 {
	if id, ok := l.pathID[path]; ok {
		return id
	}
	id := uint32(len(l.idPath))
	l.pathID[path] = id
	l.idPath = append(l.idPath, path)
	return id
}

// Set replaces both records of path. Edges of the previous records are
// retracted before the new ones are inserted; nil records are allowed.
func (l *Ledger) Set(path string, before, after *refparse.File) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if old, ok := l.entries[path]; ok {
		l.unlink(path, old)
	}
	e := &entry{before: before, after: after}
	l.entries[path] = e
	l.link(path, e)
}

// Remove drops path and every edge it contributed. It reports whether the
// path was tracked.
func (l *Ledger) Remove(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	old, ok := l.entries[path]
	if !ok {
		return false
	}
	l.unlink(path, old)
	delete(l.entries, path)
	return true
}

func targets(e *entry) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range []*refparse.File{e.before, e.after} {
		for _, t := range f.Targets() {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

func (l *Ledger) link(path string, e *entry) {
	pid := l.intern(path)
	for _, child := range targets(e) {
		if child == path {
			continue
		}
		cid := l.intern(child)
		bm, ok := l.parents[cid]
		if !ok {
			bm = roaring.New()
			l.parents[cid] = bm
		}
		bm.Add(pid)
	}
}

func (l *Ledger) unlink(path string, e *entry) {
	pid, ok := l.pathID[path]
	if !ok {
		return
	}
	for _, child := range targets(e) {
		cid, ok := l.pathID[child]
		if !ok {
			continue
		}
		if bm, ok := l.parents[cid]; ok {
			bm.Remove(pid)
			if bm.IsEmpty() {
				delete(l.parents, cid)
			}
		}
	}
}

// Before returns the pre-transform record of path.
func (l *Ledger) Before(path string) (*refparse.File, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[path]
	if !ok {
		return nil, ErrNotFound
	}
	return e.before, nil
}

// After returns the post-transform record of path. It is nil for files
// whose output is opaque.
func (l *Ledger) After(path string) (*refparse.File, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[path]
	if !ok {
		return nil, ErrNotFound
	}
	return e.after, nil
}

// Tracked reports whether path has been recorded.
func (l *Ledger) Tracked(path string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[path]
	return ok
}

// Dependents returns the files that reference child in either record,
// sorted.
func (l *Ledger) Dependents(child string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cid, ok := l.pathID[child]
	if !ok {
		return nil
	}
	bm, ok := l.parents[cid]
	if !ok {
		return nil
	}
	out := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, l.idPath[it.Next()])
	}
	sort.Strings(out)
	return out
}

// References returns the distinct targets of both records of parent,
// sorted.
func (l *Ledger) References(parent string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[parent]
	if !ok {
		return nil
	}
	out := targets(e)
	sort.Strings(out)
	return out
}

// Paths returns every tracked path, sorted.
func (l *Ledger) Paths() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.entries))
	for p := range l.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// PathsUnder returns the tracked paths inside dir, sorted.
func (l *Ledger) PathsUnder(dir string) []string {
	prefix := filepath.Clean(dir) + string(filepath.Separator)
	var out []string
	for _, p := range l.Paths() {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out
}

// Edges lists every reference of every tracked file, ordered by parent,
// phase and child.
func (l *Ledger) Edges() []Edge {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Edge
	for path, e := range l.entries {
		for _, t := range e.before.Targets() {
			out = append(out, Edge{Parent: path, Child: t, Phase: PhaseBefore})
		}
		for _, t := range e.after.Targets() {
			out = append(out, Edge{Parent: path, Child: t, Phase: PhaseAfter})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Parent != out[j].Parent {
			return out[i].Parent < out[j].Parent
		}
		if out[i].Phase != out[j].Phase {
			return out[i].Phase < out[j].Phase
		}
		return out[i].Child < out[j].Child
	})
	return out
}
