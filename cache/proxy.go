// Package cache memoizes device discovery results per target and keeps them
// on disk between runs.
package cache

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/liamg/lancache/scan"
)

const DefaultTTL = 10 * time.Minute

type Options struct {
	// TTL is how long a fresh entry is served without probing.
	// Default is DefaultTTL.
	TTL time.Duration

	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger

	// Now defaults to time.Now.
	Now func() time.Time

	// Registerer receives the proxy metrics. Optional.
	Registerer prometheus.Registerer
}

func (o *Options) Init() {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Result is what Resolve hands back for a target.
type Result struct {
	Target    string
	Devices   []scan.Device
	Hit       bool
	ExpiresAt time.Time
}

// Proxy sits in front of a Prober and serves cached results until they
// expire. Concurrent misses for one target share a single probe; every
// mutation of the store and the following save happen under one lock.
type Proxy struct {
	prober    scan.Prober
	persister Persister
	opts      Options
	metrics   *metrics

	mu    sync.RWMutex
	store Store

	sf singleflight.Group
}

// New loads the persisted store. A store that cannot be read is discarded
// and the proxy starts empty.
func New(prober scan.Prober, persister Persister, opts Options) *Proxy {
	opts.Init()

	p := &Proxy{
		prober:    prober,
		persister: persister,
		opts:      opts,
		metrics:   newMetrics(opts.Registerer),
	}

	store, err := persister.Load()
	if err != nil {
		opts.Logger.WithError(err).Warn("discarding unreadable scan cache")
		store = NewStore()
	}
	p.store = store
	p.metrics.observeStore(store)

	return p
}

// Resolve returns the devices for target, probing only when there is no
// fresh entry. A probe failure is returned as *scan.ProbeError and leaves
// the store alone. If the result was probed but could not be saved, Resolve
// returns the result together with a *PersistenceError.
//
// A caller whose ctx is cancelled stops waiting, but the shared probe keeps
// running for the other callers of the same target.
func (p *Proxy) Resolve(ctx context.Context, target string) (Result, error) {
	if res, ok := p.lookup(target); ok {
		return res, nil
	}

	flight := p.sf.DoChan(target, func() (interface{}, error) {
		return p.refresh(context.WithoutCancel(ctx), target)
	})

	select {
	case <-ctx.Done():
		return Result{}, &scan.ProbeError{Target: target, Err: ctx.Err()}
	case r := <-flight:
		res, _ := r.Val.(Result)
		res.Devices = cloneDevices(res.Devices)
		return res, r.Err
	}
}

func (p *Proxy) lookup(target string) (Result, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.store.Queries[target]
	if !ok || entry.Expired(p.opts.Now()) {
		return Result{}, false
	}

	p.metrics.hits.Inc()
	p.opts.Logger.WithField("target", target).Debug("serving cached scan results")

	return Result{
		Target:    target,
		Devices:   cloneDevices(entry.Devices),
		Hit:       true,
		ExpiresAt: entry.ExpiresAt,
	}, true
}

func (p *Proxy) refresh(ctx context.Context, target string) (Result, error) {
	// a flight for the same target may have finished since our lookup
	if res, ok := p.lookup(target); ok {
		return res, nil
	}

	p.metrics.misses.Inc()
	logger := p.opts.Logger.WithField("target", target)
	logger.Debug("performing network scan")

	devices, err := p.prober.Probe(ctx, target)
	if err != nil {
		p.metrics.probeErrors.Inc()
		var probeErr *scan.ProbeError
		if !errors.As(err, &probeErr) {
			probeErr = &scan.ProbeError{Target: target, Err: err}
		}
		return Result{}, probeErr
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.store = p.store.merge(target, devices, p.opts.Now(), p.opts.TTL)
	entry := p.store.Queries[target]
	logger.Debugf("cached %d devices", len(entry.Devices))

	res := Result{
		Target:    target,
		Devices:   cloneDevices(entry.Devices),
		ExpiresAt: entry.ExpiresAt,
	}
	return res, p.saveLocked()
}

// Peer returns the cached record for a single device address, if it has not
// expired.
func (p *Proxy) Peer(addr string) (PeerEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.store.Peers[addr]
	if !ok || entry.Expired(p.opts.Now()) {
		return PeerEntry{}, false
	}
	entry.Device = entry.Device.Clone()
	return entry, true
}

// Snapshot returns a deep copy of the current store.
func (p *Proxy) Snapshot() Store {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.store.Clone()
}

// Purge drops expired entries and returns how many were removed. The store
// is only saved when something was removed.
func (p *Proxy) Purge() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pruned, removed := p.store.prune(p.opts.Now())
	if removed == 0 {
		return 0, nil
	}
	p.store = pruned
	return removed, p.saveLocked()
}

// Clear empties the store.
func (p *Proxy) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.store = NewStore()
	return p.saveLocked()
}

// Close releases the persister if it holds resources.
func (p *Proxy) Close() error {
	if c, ok := p.persister.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (p *Proxy) saveLocked() error {
	p.metrics.observeStore(p.store)

	err := p.persister.Save(p.store)
	if err == nil {
		return nil
	}

	p.metrics.persistErrors.Inc()
	p.opts.Logger.WithError(err).Warn("unable to persist scan cache")

	var persistErr *PersistenceError
	if !errors.As(err, &persistErr) {
		persistErr = &PersistenceError{Op: "save", Err: err}
	}
	return persistErr
}
