package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// File stores each document as <dir>/<escaped key>.json.
type File struct {
	fs  afero.Fs
	dir string
}

func NewFile(fs afero.Fs, dir string) (*File, error) {
	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &File{fs: fs, dir: dir}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	data, err := afero.ReadFile(f.fs, f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Put writes atomically via a temp file and rename.
func (f *File) Put(_ context.Context, key string, val []byte) error {
	path := f.path(key)
	tmp := path + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, val, 0o600); err != nil {
		_ = f.fs.Remove(tmp)
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := f.fs.Rename(tmp, path); err != nil {
		_ = f.fs.Remove(tmp)
		return fmt.Errorf("rename tmp: %w", err)
	}
	return nil
}

func (f *File) Ping(context.Context) error {
	_, err := f.fs.Stat(f.dir)
	return err
}
