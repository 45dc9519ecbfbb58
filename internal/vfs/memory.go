package vfs

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
)

// Op is one recorded file system call.
type Op struct {
	Kind string // "read", "write" or "remove"
	Path string
	Data string
}

type watch struct {
	root string
	h    Handler
}

// Memory is an in-memory FileSystem that records every call. Writes and
// removals under a watched root notify the handler synchronously, after
// the call itself has completed.
type Memory struct {
	mu      sync.Mutex
	fs      billy.Filesystem
	log     []Op
	watches []watch
}

func NewMemory() *Memory {
	return &Memory{fs: memfs.New()}
}

func (m *Memory) ReadBinary(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, Op{Kind: "read", Path: path})
	return readFile(m.fs, path)
}

func (m *Memory) Write(path string, data []byte) error {
	m.mu.Lock()
	m.log = append(m.log, Op{Kind: "write", Path: path, Data: string(data)})
	err := writeFile(m.fs, path, data)
	handlers := m.watchersOf(path)
	m.mu.Unlock()

	if err != nil {
		return err
	}
	for _, h := range handlers {
		h.update(path)
	}
	return nil
}

func (m *Memory) Remove(path string) error {
	m.mu.Lock()
	m.log = append(m.log, Op{Kind: "remove", Path: path})
	err := removeFile(m.fs, path)
	handlers := m.watchersOf(path)
	m.mu.Unlock()

	if err != nil {
		return err
	}
	for _, h := range handlers {
		h.remove(path)
	}
	return nil
}

func (m *Memory) List(root string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return listFiles(m.fs, root)
}

// Watch registers h for root, reports every existing file and returns
// without blocking. Later changes arrive through Write and Remove.
func (m *Memory) Watch(_ context.Context, root string, h Handler) error {
	files, err := m.List(root)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.watches = append(m.watches, watch{root: filepath.Clean(root), h: h})
	m.mu.Unlock()

	for _, f := range files {
		h.update(f)
	}
	return nil
}

func (m *Memory) watchersOf(path string) []Handler {
	var out []Handler
	for _, w := range m.watches {
		if strings.HasPrefix(path, w.root+string(filepath.Separator)) {
			out = append(out, w.h)
		}
	}
	return out
}

// Log returns a copy of the recorded calls.
func (m *Memory) Log() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Op(nil), m.log...)
}

// ResetLog clears the recorded calls.
func (m *Memory) ResetLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = nil
}

// Read returns the content of path without recording the call.
func (m *Memory) Read(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := readFile(m.fs, path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Exists reports whether path is a file.
func (m *Memory) Exists(path string) bool {
	_, ok := m.Read(path)
	return ok
}

// Files returns every file under root, without recording the call.
func (m *Memory) Files(root string) []string {
	files, _ := m.List(root)
	return files
}
