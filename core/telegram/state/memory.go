package state

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultCapacity bounds the store when NewMemoryStore receives a non-positive capacity.
const DefaultCapacity = 10000

type memoryStore struct {
	cache *expirable.LRU[int64, Session]
	now   func() time.Time
}

// NewMemoryStore returns a Store kept in process memory. The least recently used
// session is evicted once capacity is reached, and sessions not updated for longer
// than ttl expire. A ttl of zero disables expiry.
func NewMemoryStore(capacity int, ttl time.Duration) Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl < 0 {
		ttl = 0
	}
	return &memoryStore{
		cache: expirable.NewLRU[int64, Session](capacity, nil, ttl),
		now:   time.Now,
	}
}

// Get returns a copy of the session for a user.
func (m *memoryStore) Get(userID int64) (Session, bool) {
	return m.cache.Get(userID)
}

// Set replaces the session for a user and stamps UpdatedAt.
func (m *memoryStore) Set(userID int64, s Session) {
	s.UpdatedAt = m.now()
	m.cache.Add(userID, s)
}

// Clear removes the session for a user.
func (m *memoryStore) Clear(userID int64) {
	m.cache.Remove(userID)
}

// Len returns the number of live sessions.
func (m *memoryStore) Len() int {
	return m.cache.Len()
}
