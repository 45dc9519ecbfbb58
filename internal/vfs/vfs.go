// Package vfs is the file system the pipeline reads sources from, writes
// outputs to and watches for changes.
package vfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Handler receives change notifications for files under a watched root.
type Handler struct {
	OnUpdate func(path string)
	OnRemove func(path string)
}

func (h Handler) update(path string) {
	if h.OnUpdate != nil {
		h.OnUpdate(path)
	}
}

func (h Handler) remove(path string) {
	if h.OnRemove != nil {
		h.OnRemove(path)
	}
}

// FileSystem is everything the pipeline needs from storage.
type FileSystem interface {
	ReadBinary(path string) ([]byte, error)
	// Write creates parent directories as needed.
	Write(path string, data []byte) error
	// Remove succeeds when the file is already gone.
	Remove(path string) error
	// List returns every regular file under root, sorted.
	List(root string) ([]string, error)
	// Watch reports an update for every existing file under root and then,
	// depending on the implementation, follows later changes. It returns
	// once ctx is done or, for one-shot implementations, after the initial
	// scan.
	Watch(ctx context.Context, root string, h Handler) error
}

func readFile(fs billy.Filesystem, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

func writeFile(fs billy.Filesystem, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	return util.WriteFile(fs, path, data, 0o644)
}

func removeFile(fs billy.Filesystem, path string) error {
	if err := fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func listFiles(fs billy.Filesystem, root string) ([]string, error) {
	var files []string
	err := util.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root && errors.Is(err, os.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if info.Mode().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil && !errors.Is(err, filepath.SkipDir) {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}
	return files, nil
}
