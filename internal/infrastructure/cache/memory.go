package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/visualmatch/backend/internal/domain"
)

// DefaultCleanupInterval is how often expired result sets are swept
const DefaultCleanupInterval = 10 * time.Minute

// resultItem represents a single result set with expiration
type resultItem struct {
	set        *domain.RankedResultSet
	expiration time.Time
}

// ResultStore is a thread-safe in-memory store of ranked result sets with TTL
// support. Stored sets are treated as immutable.
type ResultStore struct {
	data  map[string]resultItem
	mutex sync.RWMutex
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewResultStore creates a new in-memory result store and starts its expiry sweep
func NewResultStore(cleanupInterval time.Duration) *ResultStore {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	store := &ResultStore{
		data: make(map[string]resultItem),
		now:  time.Now,
		stop: make(chan struct{}),
	}

	go store.cleanupExpired(cleanupInterval)

	return store
}

// Save stores a result set under its ID
func (s *ResultStore) Save(ctx context.Context, set *domain.RankedResultSet, ttl time.Duration) error {
	if set == nil || set.ID == "" {
		return domain.ErrInvalidRequest
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.data[set.ID] = resultItem{
		set:        set,
		expiration: s.now().Add(ttl),
	}

	return nil
}

// Get retrieves a result set that has not expired
func (s *ResultStore) Get(ctx context.Context, id string) (*domain.RankedResultSet, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	item, exists := s.data[id]
	if !exists || s.now().After(item.expiration) {
		return nil, domain.ErrResultSetNotFound
	}

	return item.set, nil
}

// Delete removes a result set
func (s *ResultStore) Delete(ctx context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.data[id]; !exists {
		return domain.ErrResultSetNotFound
	}
	delete(s.data, id)
	return nil
}

// Close stops the expiry sweep. It is safe to call more than once.
func (s *ResultStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// cleanupExpired removes expired entries periodically until Close is called
func (s *ResultStore) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if removed := s.sweep(); removed > 0 {
				log.Debug().Str("component", "cache").Int("removed", removed).Msg("expired result sets removed")
			}
		}
	}
}

func (s *ResultStore) sweep() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	now := s.now()
	for id, item := range s.data {
		if now.After(item.expiration) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Size returns the current number of stored sets, expired ones included until swept
func (s *ResultStore) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.data)
}
