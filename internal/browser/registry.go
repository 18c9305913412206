package browser

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/geobrowser/internal/geojoin"
	"github.com/sells-group/geobrowser/internal/metrics"
	"github.com/sells-group/geobrowser/internal/refresh"
)

// Registry is a concurrent-safe LRU of sessions with idle expiry. It also
// holds the datasets new sessions start from.
type Registry struct {
	mu         sync.RWMutex
	entries    map[string]*Session
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64

	data             atomic.Pointer[Datasets]
	matcher          geojoin.Matcher
	provinceFallback bool
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	MaxSessions      int
	TTL              time.Duration
	Matcher          geojoin.Matcher
	ProvinceFallback bool
}

// RegistryStats reports registry usage.
type RegistryStats struct {
	Sessions    int     `json:"sessions"`
	MaxSessions int     `json:"max_sessions"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
}

// NewRegistry creates a Registry serving data.
func NewRegistry(data Datasets, opts RegistryOptions) *Registry {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1000
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.Matcher == nil {
		opts.Matcher = geojoin.ExactMatcher{}
	}
	r := &Registry{
		entries:          make(map[string]*Session),
		maxEntries:       opts.MaxSessions,
		ttl:              opts.TTL,
		matcher:          opts.Matcher,
		provinceFallback: opts.ProvinceFallback,
	}
	r.data.Store(&data)
	return r
}

// Datasets returns the datasets new sessions start from.
func (r *Registry) Datasets() Datasets {
	return *r.data.Load()
}

// SetDatasets swaps the datasets for sessions created from now on. Existing
// sessions keep the datasets they started with.
func (r *Registry) SetDatasets(data Datasets) {
	r.data.Store(&data)
}

// Create starts and stores a new session.
func (r *Registry) Create() *Session {
	joiner := geojoin.NewJoiner(r.matcher, refresh.NewMinter())
	joiner.ProvinceFallback = r.provinceFallback
	s := NewSession(uuid.NewString(), r.Datasets(), joiner)
	r.put(s)
	return s
}

func (r *Registry) put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[s.ID]; ok {
		r.entries[s.ID] = s
		r.touch(s.ID)
		return
	}

	for len(r.entries) >= r.maxEntries && len(r.order) > 0 {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.entries, oldest)
		metrics.SessionEvictionsTotal.Inc()
	}

	r.entries[s.ID] = s
	r.order = append(r.order, s.ID)
	metrics.SessionsActive.Set(float64(len(r.entries)))
}

// Get returns a live session. Sessions idle longer than the TTL are dropped.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.entries[id]
	if !ok {
		r.misses.Add(1)
		return nil, false
	}

	if time.Since(s.idleSince()) > r.ttl {
		delete(r.entries, id)
		r.removeFromOrder(id)
		r.misses.Add(1)
		metrics.SessionEvictionsTotal.Inc()
		metrics.SessionsActive.Set(float64(len(r.entries)))
		return nil, false
	}

	r.touch(id)
	r.hits.Add(1)
	return s, true
}

// Delete removes a session. It reports whether the session existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	r.removeFromOrder(id)
	metrics.SessionsActive.Set(float64(len(r.entries)))
	return true
}

// Sweep drops every expired session and returns how many were dropped.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []string
	dropped := 0
	for _, id := range r.order {
		if time.Since(r.entries[id].idleSince()) > r.ttl {
			delete(r.entries, id)
			dropped++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	if dropped > 0 {
		metrics.SessionEvictionsTotal.Add(float64(dropped))
		metrics.SessionsActive.Set(float64(len(r.entries)))
	}
	return dropped
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				zap.L().Debug("browser: swept idle sessions", zap.Int("dropped", n))
			}
		}
	}
}

// Stats returns registry usage.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	sessions := len(r.entries)
	maxSessions := r.maxEntries
	r.mu.RUnlock()

	hits := r.hits.Load()
	misses := r.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return RegistryStats{
		Sessions:    sessions,
		MaxSessions: maxSessions,
		Hits:        hits,
		Misses:      misses,
		HitRate:     hitRate,
	}
}

// touch moves id to the back of the LRU order.
func (r *Registry) touch(id string) {
	r.removeFromOrder(id)
	r.order = append(r.order, id)
}

// removeFromOrder removes a key from the LRU order slice.
func (r *Registry) removeFromOrder(id string) {
	for i, k := range r.order {
		if k == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
