package cache

import "fmt"

// PersistenceError reports that the durable store could not be read or
// written. A failed save does not undo the in-memory update.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("cache %s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("cache %s %s: %s", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// MalformedStoreError reports a durable store that exists but cannot be
// decoded. The proxy discards such a store and starts cold.
type MalformedStoreError struct {
	Path string
	Err  error
}

func (e *MalformedStoreError) Error() string {
	return fmt.Sprintf("malformed cache %s: %s", e.Path, e.Err)
}

func (e *MalformedStoreError) Unwrap() error {
	return e.Err
}
