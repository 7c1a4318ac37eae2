// Package ratelimit implements a per-key sliding-window attempt counter.
// Counting only holds globally when every request is served by one process
// and the default in-memory store is used; multi-instance deployments should
// inject the Redis-backed store instead.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome of a single Check call.
type Result struct {
	// Allowed is false once the window already holds more than limit
	// attempts, counting the current one.
	Allowed bool
	// Remaining is how many further attempts fit in the window.
	Remaining int
	// RetryAfterSeconds is the ceiling of the time until the oldest counted
	// attempt ages out of the window.
	RetryAfterSeconds int
}

// Store holds the recorded attempt timestamps per key. Implementations may
// forget keys after ttl; buckets are recreated lazily on the next attempt.
type Store interface {
	Get(ctx context.Context, key string) ([]time.Time, error)
	Set(ctx context.Context, key string, stamps []time.Time, ttl time.Duration) error
}

// Limiter prunes, counts and records attempts per key over a trailing window.
// Checks for one key are serialized within the process so the read-modify-write
// against the store never loses an attempt.
type Limiter struct {
	store Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New constructs a Limiter over the given store. A nil store falls back to a
// fresh in-memory store.
func New(store Store, opts ...Option) *Limiter {
	if store == nil {
		store = NewMemoryStore()
	}
	l := &Limiter{store: store, now: time.Now, locks: make(map[string]*keyLock)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one attempt for key and reports whether it fits within limit
// attempts per window. The check itself always counts, including the attempt
// that exceeds the limit. Two distinct keys never interfere.
func (l *Limiter) Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	k := l.lockKey(key)
	defer l.unlockKey(key, k)

	now := l.now()
	windowStart := now.Add(-window)

	stamps, err := l.store.Get(ctx, key)
	if err != nil {
		return Result{}, err
	}

	recent := stamps[:0]
	for _, ts := range stamps {
		if ts.After(windowStart) {
			recent = append(recent, ts)
		}
	}
	recent = append(recent, now)

	if err := l.store.Set(ctx, key, recent, window); err != nil {
		return Result{}, err
	}

	count := len(recent)
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	oldest := recent[0]
	retryAfter := window - now.Sub(oldest)
	if retryAfter < 0 {
		retryAfter = 0
	}

	return Result{
		Allowed:           count <= limit,
		Remaining:         remaining,
		RetryAfterSeconds: ceilSeconds(retryAfter),
	}, nil
}

// lockKey acquires the per-key mutex, creating it on first use. Locks are
// refcounted and dropped once no checker holds them, so the map only ever
// contains in-flight keys.
func (l *Limiter) lockKey(key string) *keyLock {
	l.mu.Lock()
	k, ok := l.locks[key]
	if !ok {
		k = &keyLock{}
		l.locks[key] = k
	}
	k.refs++
	l.mu.Unlock()
	k.Lock()
	return k
}

func (l *Limiter) unlockKey(key string, k *keyLock) {
	k.Unlock()
	l.mu.Lock()
	k.refs--
	if k.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
