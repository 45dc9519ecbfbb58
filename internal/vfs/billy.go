package vfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog/log"
)

// Billy is a FileSystem over any billy.Filesystem. In continuous mode Watch
// follows fsnotify events after the initial scan, which requires the
// billy paths to be real OS paths.
type Billy struct {
	fs         billy.Filesystem
	continuous bool
}

// NewBilly wraps fs.
func NewBilly(fs billy.Filesystem, continuous bool) *Billy {
	return &Billy{fs: fs, continuous: continuous}
}

// NewOS returns a Billy over the host file system. Paths are absolute.
func NewOS(continuous bool) *Billy {
	return NewBilly(osfs.New("/"), continuous)
}

func (b *Billy) ReadBinary(path string) ([]byte, error) { return readFile(b.fs, path) }

func (b *Billy) Write(path string, data []byte) error { return writeFile(b.fs, path, data) }

func (b *Billy) Remove(path string) error { return removeFile(b.fs, path) }

func (b *Billy) List(root string) ([]string, error) { return listFiles(b.fs, root) }

func (b *Billy) Watch(ctx context.Context, root string, h Handler) error {
	if !b.continuous {
		return b.scan(root, h)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := b.addTree(w, root); err != nil {
		return err
	}
	if err := b.scan(root, h); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			b.handleEvent(w, ev, h)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("root", root).Msg("watch error")
		}
	}
}

func (b *Billy) scan(root string, h Handler) error {
	files, err := b.List(root)
	if err != nil {
		return err
	}
	for _, f := range files {
		h.update(f)
	}
	return nil
}

func (b *Billy) handleEvent(w *fsnotify.Watcher, ev fsnotify.Event, h Handler) {
	path := filepath.Clean(ev.Name)
	switch {
	case ev.Has(fsnotify.Create):
		info, err := b.fs.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			// Files can land in a new directory before its watch exists.
			if err := b.addTree(w, path); err != nil {
				log.Warn().Err(err).Str("dir", path).Msg("watch directory")
			}
			if err := b.scan(path, h); err != nil {
				log.Warn().Err(err).Str("dir", path).Msg("scan directory")
			}
			return
		}
		h.update(path)
	case ev.Has(fsnotify.Write):
		h.update(path)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		_ = w.Remove(path) // not watched unless it was a directory
		h.remove(path)
	}
}

// addTree watches root and every directory below it.
func (b *Billy) addTree(w *fsnotify.Watcher, root string) error {
	err := util.Walk(b.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			if err := w.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
	return err
}
