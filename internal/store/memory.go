// Package store keeps saved playback progress per media item.
package store

import (
	"math"
	"sort"
	"time"

	"github.com/genricoloni/reelkeeper/internal/domain"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

// MemoryStore maps MediaID to PlaybackState.
// It is not safe for concurrent use; the manager owns it from a single goroutine.
// With a positive capacity the least recently used entry is evicted first.
type MemoryStore struct {
	logger   *zap.Logger
	capacity int
	entries  *simplelru.LRU[domain.MediaID, domain.PlaybackState]
}

// NewMemoryStore creates a store bounded to capacity entries, 0 for unbounded
func NewMemoryStore(logger *zap.Logger, capacity int) *MemoryStore {
	if capacity < 0 {
		capacity = 0
	}
	return &MemoryStore{
		logger:   logger,
		capacity: capacity,
		entries:  newLRU(capacity),
	}
}

// NewConfiguredStore creates a store sized from the application configuration
func NewConfiguredStore(logger *zap.Logger, cfg domain.Config) *MemoryStore {
	return NewMemoryStore(logger, cfg.GetStoreCapacity())
}

func newLRU(capacity int) *simplelru.LRU[domain.MediaID, domain.PlaybackState] {
	size := capacity
	if size == 0 {
		size = math.MaxInt
	}
	// NewLRU only fails on a non-positive size
	lru, _ := simplelru.NewLRU[domain.MediaID, domain.PlaybackState](size, nil)
	return lru
}

// Save upserts the state for id
func (s *MemoryStore) Save(id domain.MediaID, position mo.Option[time.Duration], duration time.Duration) {
	if s.capacity > 0 && s.entries.Len() >= s.capacity && !s.entries.Contains(id) {
		if oldest, _, ok := s.entries.GetOldest(); ok {
			s.logger.Debug("Evicted playback state", zap.String("mediaID", string(oldest)))
		}
	}
	s.entries.Add(id, domain.PlaybackState{MediaID: id, Position: position, Duration: duration})
}

// Get returns the saved state for id and marks it recently used
func (s *MemoryStore) Get(id domain.MediaID) (domain.PlaybackState, bool) {
	return s.entries.Get(id)
}

// Remove drops the state for id, if any
func (s *MemoryStore) Remove(id domain.MediaID) {
	s.entries.Remove(id)
}

// Clear drops every state
func (s *MemoryStore) Clear() {
	s.entries.Purge()
}

// All returns every saved state ordered by MediaID
func (s *MemoryStore) All() []domain.PlaybackState {
	states := s.entries.Values()
	sort.Slice(states, func(i, j int) bool { return states[i].MediaID < states[j].MediaID })
	return states
}

// Len returns the number of saved states
func (s *MemoryStore) Len() int {
	return s.entries.Len()
}
