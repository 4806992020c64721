package app

import (
	"sort"
	"sync"
	"time"

	"github.com/fd1az/dapp-marketplace/business/marketplace/domain"
)

// Store holds the session state and notifies subscribers of every change.
// Subscribers run synchronously in update order and must not call Update.
type Store struct {
	mu    sync.RWMutex
	state domain.State

	notifyMu sync.Mutex
	subsMu   sync.Mutex
	subs     map[int]func(domain.State)
	nextID   int

	now func() time.Time
}

// NewStore creates a store holding the initial disconnected state.
func NewStore() *Store {
	return &Store{
		state: domain.InitialState(),
		subs:  make(map[int]func(domain.State)),
		now:   time.Now,
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() domain.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Update applies fn to the state and notifies subscribers.
func (s *Store) Update(fn func(*domain.State)) domain.State {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	fn(&s.state)
	if s.state.Products == nil {
		s.state.Products = []domain.Product{}
	}
	s.state.UpdatedAt = s.now()
	snapshot := s.state.Clone()
	s.mu.Unlock()

	for _, fn := range s.subscribers() {
		fn(snapshot.Clone())
	}
	return snapshot
}

// Subscribe registers fn for state changes. The returned func removes it.
func (s *Store) Subscribe(fn func(domain.State)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) subscribers() []func(domain.State) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]func(domain.State), len(ids))
	for i, id := range ids {
		out[i] = s.subs[id]
	}
	return out
}
