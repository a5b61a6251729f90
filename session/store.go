package session

import (
	"encoding/json"
	"sync"
)

// Store is the process-wide session state container.
//
// Mutations are applied in call order under a single lock, so a [Store.Snapshot]
// never observes a partial update. Store is safe for concurrent use. It never
// touches persisted storage or the network.
type Store struct {
	mu    sync.RWMutex
	state Session
}

// NewStore returns an empty Store: no token, no profile, not authenticated.
func NewStore() *Store {
	return &Store{}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Token returns the current token, or "" when absent.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// SetToken stores token. Values that mean "no token" clear it instead.
func (s *Store) SetToken(token string) {
	s.update(func(st *Session) {
		st.Token = NormalizeToken(token)
	})
}

// AdoptToken stores token only when the store currently holds none and reports
// whether it did. Reconciliation uses it so a token written concurrently by a
// login is never overwritten by an older persisted one.
func (s *Store) AdoptToken(token string) bool {
	token = NormalizeToken(token)
	if token == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Token != "" {
		return false
	}
	s.state.Token = token
	s.state.Version++
	return true
}

// SetUser replaces the user record. A nil or JSON null record clears it.
func (s *Store) SetUser(user json.RawMessage) {
	s.update(func(st *Session) {
		st.User = normalizeRecord(user)
	})
}

// SetViewer replaces the viewer record. A nil or JSON null record clears it.
func (s *Store) SetViewer(viewer json.RawMessage) {
	s.update(func(st *Session) {
		st.Viewer = normalizeRecord(viewer)
	})
}

// SetCategories replaces the cached category list.
func (s *Store) SetCategories(list []json.RawMessage) {
	s.update(func(st *Session) {
		st.Categories = cloneList(list)
	})
}

// SetFilteredBlogs replaces the cached search result list.
func (s *Store) SetFilteredBlogs(list []json.RawMessage) {
	s.update(func(st *Session) {
		st.FilteredBlogs = cloneList(list)
	})
}

// SetAuthenticated records the outcome of the latest guard decision.
func (s *Store) SetAuthenticated(authenticated bool) {
	s.update(func(st *Session) {
		st.IsAuthenticated = authenticated
	})
}

// ClearToken drops the token and the authenticated flag. Clearing an already
// cleared store applies nothing, so Version does not move either.
func (s *Store) ClearToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Token == "" && !s.state.IsAuthenticated {
		return
	}
	s.state.Token = ""
	s.state.IsAuthenticated = false
	s.state.Version++
}

// Hydrate merges every non-empty field of from into the state, the way a
// server-provided snapshot is merged on page load.
func (s *Store) Hydrate(from Session) {
	from = from.clone()
	s.update(func(st *Session) {
		if token := NormalizeToken(from.Token); token != "" {
			st.Token = token
		}
		if !isNullRecord(from.User) {
			st.User = from.User
		}
		if !isNullRecord(from.Viewer) {
			st.Viewer = from.Viewer
		}
		if from.IsAuthenticated {
			st.IsAuthenticated = true
		}
		if from.Categories != nil {
			st.Categories = from.Categories
		}
		if from.FilteredBlogs != nil {
			st.FilteredBlogs = from.FilteredBlogs
		}
	})
}

// Reset returns the store to its initial state. Only logout calls it.
func (s *Store) Reset() {
	s.update(func(st *Session) {
		version := st.Version
		*st = Session{Version: version}
	})
}

func (s *Store) update(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	s.state.Version++
}

func normalizeRecord(raw json.RawMessage) json.RawMessage {
	if isNullRecord(raw) {
		return nil
	}
	return cloneRaw(raw)
}
