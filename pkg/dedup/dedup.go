// Package dedup suppresses repeats of the same keyed event within a
// TTL window. Used by the alert manager to keep a flapping sensor from
// flooding the bounded alert history.
package dedup

import (
	"sync"
	"time"
)

type Suppressor struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time // key -> suppression expiry
}

func New(ttl time.Duration, max int) *Suppressor {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Suppressor{ttl: ttl, max: max, seen: make(map[string]time.Time, max)}
}

// Allow reports whether key should be processed now. The first call for
// a key within a TTL window returns true and arms the window; repeats
// inside the window return false. An empty key is always allowed.
func (s *Suppressor) Allow(key string) bool {
	if s == nil || key == "" {
		return true
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.seen[key]; ok && now.Before(exp) {
		return false
	}
	s.seen[key] = now.Add(s.ttl)

	// Best-effort cap: drop expired entries when the map grows past max.
	if len(s.seen) > s.max {
		for k, exp := range s.seen {
			if now.After(exp) {
				delete(s.seen, k)
			}
			if len(s.seen) <= s.max {
				break
			}
		}
	}
	return true
}
