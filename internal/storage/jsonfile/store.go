// Package jsonfile хранит снимок реестра одним JSON-файлом.
package jsonfile

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"clinic/internal/storage"
)

const backend = "jsonfile"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Store struct {
	path string
}

var _ storage.Store = (*Store)(nil)

func New(path string) *Store { return &Store{path: path} }

func (s *Store) Path() string { return s.path }

func (s *Store) Load(ctx context.Context) (*storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.Wrap(backend, "load", storage.ErrIO, err)
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.Wrap(backend, "load", storage.ErrStoreNotFound, err)
	}
	if err != nil {
		return nil, storage.Wrap(backend, "load", storage.ErrIO, err)
	}
	if !jsoniter.ConfigFastest.Valid(data) {
		return nil, storage.Wrap(backend, "load", storage.ErrCorruptStore, errors.New("malformed json"))
	}
	var snap storage.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, storage.Wrap(backend, "load", storage.ErrCorruptStore, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, storage.Wrap(backend, "load", storage.ErrCorruptStore, err)
	}
	return &snap, nil
}

// Save пишет во временный файл рядом и переименовывает, чтобы не оставить полузаписанный снимок
func (s *Store) Save(ctx context.Context, snap *storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return storage.Wrap(backend, "save", storage.ErrIO, err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return storage.Wrap(backend, "save", storage.ErrIO, err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storage.Wrap(backend, "save", storage.ErrIO, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return storage.Wrap(backend, "save", storage.ErrIO, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return storage.Wrap(backend, "save", storage.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return storage.Wrap(backend, "save", storage.ErrIO, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return storage.Wrap(backend, "save", storage.ErrIO, err)
	}
	return nil
}
