// Package kvtest provides an in-memory fake kv.Client for tests. It records
// the TTL written for every key and runs on an injectable clock so expiry
// behaviour can be asserted without sleeping.
package kvtest

import (
	"context"
	"sync"
	"time"

	"github.com/Keksclan/goNutStash/kv"
)

type entry struct {
	value     string
	expiresAt time.Time
	hasExpiry bool
}

// Fake is a map-backed kv.Client.
type Fake struct {
	mu   sync.Mutex
	now  time.Time
	data map[string]entry
	ttls map[string]time.Duration

	// Err, when non-nil, is returned by every operation. Use it to simulate
	// a cache outage.
	Err error
}

// New creates a Fake whose clock starts at an arbitrary fixed instant.
func New() *Fake {
	return &Fake{
		now:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		data: make(map[string]entry),
		ttls: make(map[string]time.Duration),
	}
}

// Advance moves the fake clock forward, expiring entries as appropriate.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// TTL returns the TTL most recently written for key and whether one was
// ever written.
func (f *Fake) TTL(key string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.ttls[key]
	return d, ok
}

// Contains reports whether key currently holds a live entry.
func (f *Fake) Contains(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.live(key)
	return ok
}

// Value returns the live value for key, if any.
func (f *Fake) Value(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.live(key)
	return e.value, ok
}

// live returns the entry for key if it has not expired. Callers hold f.mu.
func (f *Fake) live(key string) (entry, bool) {
	e, ok := f.data[key]
	if !ok {
		return entry{}, false
	}
	if e.hasExpiry && !f.now.Before(e.expiresAt) {
		delete(f.data, key)
		return entry{}, false
	}
	return e, true
}

func (f *Fake) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", false, f.Err
	}
	e, ok := f.live(key)
	return e.value, ok, nil
}

func (f *Fake) MGet(_ context.Context, keys ...string) ([]kv.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]kv.Result, len(keys))
	for i, k := range keys {
		if e, ok := f.live(k); ok {
			out[i] = kv.Result{Value: e.value, Found: true}
		}
	}
	return out, nil
}

func (f *Fake) Set(ctx context.Context, key, value string) error {
	return f.SetTTL(ctx, key, value, 0)
}

func (f *Fake) SetTTL(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = f.now.Add(ttl)
		e.hasExpiry = true
	}
	f.data[key] = e
	f.ttls[key] = ttl
	return nil
}

func (f *Fake) Expire(_ context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	e, ok := f.live(key)
	if !ok {
		return nil
	}
	if ttl > 0 {
		e.expiresAt = f.now.Add(ttl)
		e.hasExpiry = true
	} else {
		e.hasExpiry = false
	}
	f.data[key] = e
	f.ttls[key] = ttl
	return nil
}

func (f *Fake) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}
