package cache

import (
	"time"

	"github.com/liamg/lancache/scan"
)

// PeerEntry caches one device under its own address.
type PeerEntry struct {
	Device    scan.Device
	ExpiresAt time.Time
}

func (e PeerEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// QueryEntry caches the full result of probing one target.
type QueryEntry struct {
	Devices   []scan.Device
	ExpiresAt time.Time
}

func (e QueryEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Store holds per-peer and per-query entries in separate maps so that an
// address and a target that happens to spell the same string never collide.
type Store struct {
	Peers   map[string]PeerEntry
	Queries map[string]QueryEntry
}

func NewStore() Store {
	return Store{
		Peers:   map[string]PeerEntry{},
		Queries: map[string]QueryEntry{},
	}
}

func (s Store) Len() int {
	return len(s.Peers) + len(s.Queries)
}

// Clone returns a deep copy of the store.
func (s Store) Clone() Store {
	c := Store{
		Peers:   make(map[string]PeerEntry, len(s.Peers)),
		Queries: make(map[string]QueryEntry, len(s.Queries)),
	}
	for addr, e := range s.Peers {
		c.Peers[addr] = PeerEntry{Device: e.Device.Clone(), ExpiresAt: e.ExpiresAt}
	}
	for key, e := range s.Queries {
		c.Queries[key] = QueryEntry{Devices: cloneDevices(e.Devices), ExpiresAt: e.ExpiresAt}
	}
	return c
}

// merge folds the devices probed for key into a new store. s is not modified.
//
// A device already known keeps its expiry and only has its record replaced;
// a new device expires ttl from now. Untouched peers and other queries are
// carried over as they are. The entry for key keeps its expiry while still
// fresh and is renewed otherwise.
func (s Store) merge(key string, devices []scan.Device, now time.Time, ttl time.Duration) Store {
	updated := Store{
		Peers:   make(map[string]PeerEntry, len(s.Peers)+len(devices)),
		Queries: make(map[string]QueryEntry, len(s.Queries)+1),
	}

	for _, device := range devices {
		addr := device.Address()
		if existing, ok := s.Peers[addr]; ok {
			updated.Peers[addr] = PeerEntry{Device: device.Clone(), ExpiresAt: existing.ExpiresAt}
		} else {
			updated.Peers[addr] = PeerEntry{Device: device.Clone(), ExpiresAt: now.Add(ttl)}
		}
	}

	for addr, e := range s.Peers {
		if _, ok := updated.Peers[addr]; !ok {
			updated.Peers[addr] = e
		}
	}

	for k, e := range s.Queries {
		updated.Queries[k] = e
	}

	expiresAt := now.Add(ttl)
	if existing, ok := s.Queries[key]; ok && !existing.Expired(now) {
		expiresAt = existing.ExpiresAt
	}
	updated.Queries[key] = QueryEntry{Devices: cloneDevices(devices), ExpiresAt: expiresAt}

	return updated
}

// prune returns a copy of s without the entries that expired before now and
// the number of entries dropped.
func (s Store) prune(now time.Time) (Store, int) {
	pruned := NewStore()
	removed := 0
	for addr, e := range s.Peers {
		if e.Expired(now) {
			removed++
			continue
		}
		pruned.Peers[addr] = e
	}
	for key, e := range s.Queries {
		if e.Expired(now) {
			removed++
			continue
		}
		pruned.Queries[key] = e
	}
	return pruned, removed
}

func cloneDevices(devices []scan.Device) []scan.Device {
	c := make([]scan.Device, len(devices))
	for i, d := range devices {
		c[i] = d.Clone()
	}
	return c
}
