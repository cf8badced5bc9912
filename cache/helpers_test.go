package cache

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/liamg/lancache/scan"
)

type fakeProber struct {
	mu      sync.Mutex
	results map[string][]scan.Device
	err     error
	delay   time.Duration
	calls   int32
}

func newFakeProber() *fakeProber {
	return &fakeProber{results: map[string][]scan.Device{}}
}

func (f *fakeProber) set(target string, devices ...scan.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[target] = devices
}

func (f *fakeProber) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeProber) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

func (f *fakeProber) Probe(ctx context.Context, target string) ([]scan.Device, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.results[target], nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memPersister keeps the last saved snapshot in memory.
type memPersister struct {
	mu      sync.Mutex
	saved   *Store
	saves   int
	saveErr error
	loadErr error
}

func (m *memPersister) Load() (Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return NewStore(), m.loadErr
	}
	if m.saved == nil {
		return NewStore(), nil
	}
	return m.saved.Clone(), nil
}

func (m *memPersister) Save(store Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	c := store.Clone()
	m.saved = &c
	return nil
}

func device(ip string, mac string) scan.Device {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		panic(err)
	}
	return scan.NewDevice(net.ParseIP(ip), hw)
}

var errNoRoute = errors.New("network is unreachable")

// gatedProber blocks every probe until release is closed or its ctx ends.
type gatedProber struct {
	devices []scan.Device
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   int32
}

func newGatedProber(devices ...scan.Device) *gatedProber {
	return &gatedProber{
		devices: devices,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedProber) Calls() int {
	return int(atomic.LoadInt32(&g.calls))
}

func (g *gatedProber) Probe(ctx context.Context, target string) ([]scan.Device, error) {
	atomic.AddInt32(&g.calls, 1)
	g.once.Do(func() { close(g.started) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.release:
		return g.devices, nil
	}
}
