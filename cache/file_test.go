package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamg/lancache/scan"
)

func writeFile(path string, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

func sampleStore() Store {
	expiry := time.Unix(1700000600, 250000000)
	store := NewStore()
	a := device("10.0.0.5", "00:1a:2b:3c:4d:5e")
	a.Name = "printer.lan."
	a.Latency = 3 * time.Millisecond
	b := device("10.0.0.6", "00:1a:2b:3c:4d:60")
	store.Peers[a.Address()] = PeerEntry{Device: a, ExpiresAt: expiry}
	store.Peers[b.Address()] = PeerEntry{Device: b, ExpiresAt: expiry.Add(time.Minute)}
	store.Queries[subnet] = QueryEntry{Devices: []scan.Device{a, b}, ExpiresAt: expiry}
	store.Queries["10.0.9.0/24"] = QueryEntry{Devices: []scan.Device{}, ExpiresAt: expiry}
	return store
}

func assertStoresEquivalent(t *testing.T, expected, actual Store) {
	t.Helper()
	require.Len(t, actual.Peers, len(expected.Peers))
	require.Len(t, actual.Queries, len(expected.Queries))
	for addr, e := range expected.Peers {
		got, ok := actual.Peers[addr]
		require.True(t, ok, addr)
		assert.Equal(t, e.Device.Address(), got.Device.Address())
		assert.Equal(t, e.Device.MAC, got.Device.MAC)
		assert.Equal(t, e.Device.Manufacturer, got.Device.Manufacturer)
		assert.Equal(t, e.Device.Name, got.Device.Name)
		assert.Equal(t, e.Device.Latency, got.Device.Latency)
		assert.WithinDuration(t, e.ExpiresAt, got.ExpiresAt, time.Microsecond)
	}
	for key, e := range expected.Queries {
		got, ok := actual.Queries[key]
		require.True(t, ok, key)
		require.Len(t, got.Devices, len(e.Devices))
		for i := range e.Devices {
			assert.Equal(t, e.Devices[i].Address(), got.Devices[i].Address())
			assert.Equal(t, e.Devices[i].MAC, got.Devices[i].MAC)
		}
		assert.WithinDuration(t, e.ExpiresAt, got.ExpiresAt, time.Microsecond)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scan-cache.json")
	store := sampleStore()

	require.NoError(t, NewFileStore(path).Save(store))

	loaded, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assertStoresEquivalent(t, store, loaded)

	// saving what was loaded leaves the content unchanged
	require.NoError(t, NewFileStore(path).Save(loaded))
	reloaded, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assertStoresEquivalent(t, loaded, reloaded)
}

func TestFileStoreMissingFile(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "missing.json")).Load()
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestFileStoreMalformed(t *testing.T) {
	for name, content := range map[string]string{
		"empty":        "",
		"garbage":      "\x80\x02}q\x00.",
		"wrongVersion": `{"version": 99, "peers": {}, "queries": {}}`,
		"noAddress":    `{"version": 1, "peers": {"10.0.0.5": {"device": {}, "expires_at": 1}}, "queries": {}}`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scan-cache.json")
			require.NoError(t, writeFile(path, content))

			store, err := NewFileStore(path).Load()
			require.Error(t, err)

			var malformed *MalformedStoreError
			assert.True(t, errors.As(err, &malformed))
			assert.Equal(t, 0, store.Len())
		})
	}
}

func TestFileStoreSaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, writeFile(blocker, "x"))

	err := NewFileStore(filepath.Join(blocker, "scan-cache.json")).Save(NewStore())
	require.Error(t, err)

	var persistErr *PersistenceError
	require.True(t, errors.As(err, &persistErr))
	assert.Equal(t, "save", persistErr.Op)
}

func TestEpochPrecision(t *testing.T) {
	ts := time.Unix(1700000600, 123456000)
	assert.WithinDuration(t, ts, fromEpoch(toEpoch(ts)), time.Microsecond)
}
