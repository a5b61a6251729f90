package api

import (
	"sync"

	"github.com/google/uuid"
)

// Tracker tags in-flight view loads so that a slow response for an earlier
// request cannot overwrite the result of a later one. Each view key keeps
// only its most recent tag.
type Tracker struct {
	mu     sync.Mutex
	latest map[string]uuid.UUID
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{latest: make(map[string]uuid.UUID)}
}

// Begin starts a load for key and returns its tag. Any earlier tag for the
// same key becomes stale.
func (t *Tracker) Begin(key string) uuid.UUID {
	tag := uuid.New()
	t.mu.Lock()
	t.latest[key] = tag
	t.mu.Unlock()
	return tag
}

// Current reports whether tag is still the latest for key.
func (t *Tracker) Current(key string, tag uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest[key] == tag
}

// Finish releases key if tag is still current and reports whether it was.
func (t *Tracker) Finish(key string, tag uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest[key] != tag {
		return false
	}
	delete(t.latest, key)
	return true
}
