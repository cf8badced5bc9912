package cache

import (
	"fmt"
	"math"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/liamg/lancache/scan"
)

// StoreVersion is the on-disk schema version written by every Persister.
const StoreVersion = 1

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Persister loads and saves full snapshots of a Store.
//
// Load returns an empty store when nothing has been saved yet, and a
// *MalformedStoreError when the saved data cannot be decoded. Save replaces
// the previous snapshot atomically.
type Persister interface {
	Load() (Store, error)
	Save(store Store) error
}

type snapshot struct {
	Version int                    `json:"version"`
	Peers   map[string]peerRecord  `json:"peers"`
	Queries map[string]queryRecord `json:"queries"`
}

type peerRecord struct {
	Device    scan.Device `json:"device"`
	ExpiresAt float64     `json:"expires_at"`
}

type queryRecord struct {
	Devices   []scan.Device `json:"devices"`
	ExpiresAt float64       `json:"expires_at"`
}

func newPeerRecord(e PeerEntry) peerRecord {
	return peerRecord{Device: e.Device, ExpiresAt: toEpoch(e.ExpiresAt)}
}

func (r peerRecord) entry() PeerEntry {
	return PeerEntry{Device: r.Device, ExpiresAt: fromEpoch(r.ExpiresAt)}
}

func newQueryRecord(e QueryEntry) queryRecord {
	devices := e.Devices
	if devices == nil {
		devices = []scan.Device{}
	}
	return queryRecord{Devices: devices, ExpiresAt: toEpoch(e.ExpiresAt)}
}

func (r queryRecord) entry() QueryEntry {
	devices := r.Devices
	if devices == nil {
		devices = []scan.Device{}
	}
	return QueryEntry{Devices: devices, ExpiresAt: fromEpoch(r.ExpiresAt)}
}

func encodeSnapshot(store Store) ([]byte, error) {
	snap := snapshot{
		Version: StoreVersion,
		Peers:   make(map[string]peerRecord, len(store.Peers)),
		Queries: make(map[string]queryRecord, len(store.Queries)),
	}
	for addr, e := range store.Peers {
		snap.Peers[addr] = newPeerRecord(e)
	}
	for key, e := range store.Queries {
		snap.Queries[key] = newQueryRecord(e)
	}
	return json.MarshalIndent(snap, "", "  ")
}

func decodeSnapshot(data []byte) (Store, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Store{}, err
	}
	if snap.Version != StoreVersion {
		return Store{}, fmt.Errorf("unsupported store version %d (expected %d)", snap.Version, StoreVersion)
	}
	store := NewStore()
	for addr, r := range snap.Peers {
		if r.Device.IP == nil {
			return Store{}, fmt.Errorf("peer %q has no address", addr)
		}
		store.Peers[addr] = r.entry()
	}
	for key, r := range snap.Queries {
		store.Queries[key] = r.entry()
	}
	return store, nil
}

// toEpoch renders t as fractional seconds since the Unix epoch.
func toEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromEpoch(seconds float64) time.Time {
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(math.Round(frac*float64(time.Second))))
}
