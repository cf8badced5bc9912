package cache

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/cockroachdb/pebble"
)

var (
	pebbleMetaVersion = []byte("meta|version")

	pebblePeerPrefix  = []byte("peer|")
	pebblePeerUpper   = []byte("peer}")
	pebbleQueryPrefix = []byte("query|")
	pebbleQueryUpper  = []byte("query}")
)

// PebbleStore keeps the snapshot in a Pebble database, one key per entry.
// Save replaces all peer and query keys in one batch.
type PebbleStore struct {
	db   *pebble.DB
	path string
}

func OpenPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, &PersistenceError{Op: "open", Path: path, Err: err}
	}
	return &PebbleStore{db: db, path: path}, nil
}

func (p *PebbleStore) Path() string {
	return p.path
}

func (p *PebbleStore) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *PebbleStore) Load() (Store, error) {
	value, closer, err := p.db.Get(pebbleMetaVersion)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return NewStore(), nil
		}
		return NewStore(), &PersistenceError{Op: "load", Path: p.path, Err: err}
	}
	version, err := strconv.Atoi(string(value))
	closer.Close()
	if err != nil {
		return NewStore(), &MalformedStoreError{Path: p.path, Err: fmt.Errorf("store version: %w", err)}
	}
	if version != StoreVersion {
		return NewStore(), &MalformedStoreError{
			Path: p.path,
			Err:  fmt.Errorf("unsupported store version %d (expected %d)", version, StoreVersion),
		}
	}

	store := NewStore()

	err = p.scan(pebblePeerPrefix, pebblePeerUpper, func(key string, value []byte) error {
		var r peerRecord
		if err := json.Unmarshal(value, &r); err != nil {
			return err
		}
		if r.Device.IP == nil {
			return fmt.Errorf("peer %q has no address", key)
		}
		store.Peers[key] = r.entry()
		return nil
	})
	if err != nil {
		return NewStore(), &MalformedStoreError{Path: p.path, Err: err}
	}

	err = p.scan(pebbleQueryPrefix, pebbleQueryUpper, func(key string, value []byte) error {
		var r queryRecord
		if err := json.Unmarshal(value, &r); err != nil {
			return err
		}
		store.Queries[key] = r.entry()
		return nil
	})
	if err != nil {
		return NewStore(), &MalformedStoreError{Path: p.path, Err: err}
	}

	return store, nil
}

func (p *PebbleStore) Save(store Store) error {
	b := p.db.NewBatch()
	defer b.Close()

	if err := b.DeleteRange(pebblePeerPrefix, pebblePeerUpper, nil); err != nil {
		return &PersistenceError{Op: "save", Path: p.path, Err: err}
	}
	if err := b.DeleteRange(pebbleQueryPrefix, pebbleQueryUpper, nil); err != nil {
		return &PersistenceError{Op: "save", Path: p.path, Err: err}
	}
	if err := b.Set(pebbleMetaVersion, []byte(strconv.Itoa(StoreVersion)), nil); err != nil {
		return &PersistenceError{Op: "save", Path: p.path, Err: err}
	}

	for addr, e := range store.Peers {
		value, err := json.Marshal(newPeerRecord(e))
		if err != nil {
			return &PersistenceError{Op: "encode", Path: p.path, Err: err}
		}
		if err := b.Set(prefixed(pebblePeerPrefix, addr), value, nil); err != nil {
			return &PersistenceError{Op: "save", Path: p.path, Err: err}
		}
	}
	for key, e := range store.Queries {
		value, err := json.Marshal(newQueryRecord(e))
		if err != nil {
			return &PersistenceError{Op: "encode", Path: p.path, Err: err}
		}
		if err := b.Set(prefixed(pebbleQueryPrefix, key), value, nil); err != nil {
			return &PersistenceError{Op: "save", Path: p.path, Err: err}
		}
	}

	if err := b.Commit(pebble.Sync); err != nil {
		return &PersistenceError{Op: "save", Path: p.path, Err: err}
	}
	return nil
}

func (p *PebbleStore) scan(lower, upper []byte, fn func(key string, value []byte) error) error {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := string(iter.Key()[len(lower):])
		if err := fn(key, iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func prefixed(prefix []byte, key string) []byte {
	k := make([]byte, 0, len(prefix)+len(key))
	k = append(k, prefix...)
	return append(k, key...)
}
