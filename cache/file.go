package cache

import (
	"errors"
	"os"
	"path/filepath"
)

// FileStore keeps the snapshot in a single JSON document.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load() (Store, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewStore(), nil
		}
		return NewStore(), &PersistenceError{Op: "load", Path: f.path, Err: err}
	}

	store, err := decodeSnapshot(data)
	if err != nil {
		return NewStore(), &MalformedStoreError{Path: f.path, Err: err}
	}
	return store, nil
}

// Save writes the snapshot to a temporary file next to the target and renames
// it into place.
func (f *FileStore) Save(store Store) error {
	data, err := encodeSnapshot(store)
	if err != nil {
		return &PersistenceError{Op: "encode", Path: f.path, Err: err}
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PersistenceError{Op: "save", Path: f.path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".scan-cache-*.tmp")
	if err != nil {
		return &PersistenceError{Op: "save", Path: f.path, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &PersistenceError{Op: "save", Path: f.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &PersistenceError{Op: "save", Path: f.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &PersistenceError{Op: "save", Path: f.path, Err: err}
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return &PersistenceError{Op: "save", Path: f.path, Err: err}
	}
	return nil
}
