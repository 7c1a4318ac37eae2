package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps attempt buckets in a process-local map. Buckets whose TTL
// has lapsed are dropped on access and by the janitor, so stale keys do not
// accumulate forever.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]memoryBucket
	now     func() time.Time
}

type memoryBucket struct {
	stamps    []time.Time
	expiresAt time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]memoryBucket),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[key]
	if !ok {
		return nil, nil
	}
	if !b.expiresAt.IsZero() && s.now().After(b.expiresAt) {
		delete(s.buckets, key)
		return nil, nil
	}
	out := make([]time.Time, len(b.stamps))
	copy(out, b.stamps)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, stamps []time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]time.Time, len(stamps))
	copy(kept, stamps)
	b := memoryBucket{stamps: kept}
	if ttl > 0 {
		b.expiresAt = s.now().Add(ttl)
	}
	s.buckets[key] = b
	return nil
}

// Sweep removes every expired bucket and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	dropped := 0
	for key, b := range s.buckets {
		if !b.expiresAt.IsZero() && now.After(b.expiresAt) {
			delete(s.buckets, key)
			dropped++
		}
	}
	return dropped
}

// StartJanitor sweeps expired buckets every interval until ctx is done.
func (s *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Len reports the current number of live buckets.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
