// Package selection tracks the entities a session has picked for comparison
// and enforces how many may be picked at once.
package selection

import (
	"context"
	"errors"
	"sync"

	cmperrors "saas-compare/pkg/errors"
)

var ErrEmptySession = errors.New("session id is required")

// Store persists one ordered ID list per session.
type Store interface {
	Get(ctx context.Context, session string) ([]string, error)
	// Update applies fn to the current list atomically and stores the result.
	// When fn returns an error nothing is written.
	Update(ctx context.Context, session string, fn func(current []string) ([]string, error)) ([]string, error)
	Clear(ctx context.Context, session string) error
}

// Policy caps a selection.
type Policy struct {
	MaxSelectable int `json:"max_selectable"`
}

// Check rejects a selection of n entities above the cap.
func (p Policy) Check(n int) error {
	if p.MaxSelectable > 0 && n > p.MaxSelectable {
		return cmperrors.NewSelectionLimitError(p.MaxSelectable, n)
	}
	return nil
}

// Limits holds the caps for anonymous and authenticated callers.
type Limits struct {
	Anonymous     int
	Authenticated int
}

func DefaultLimits() Limits {
	return Limits{Anonymous: 3, Authenticated: 10}
}

// PolicyFor picks the cap for a caller. Whether the caller is authenticated
// is decided upstream.
func (l Limits) PolicyFor(authenticated bool) Policy {
	if authenticated {
		return Policy{MaxSelectable: l.Authenticated}
	}
	return Policy{MaxSelectable: l.Anonymous}
}

// Selector applies a Policy to Store updates.
type Selector struct {
	store Store
}

func NewSelector(store Store) *Selector {
	return &Selector{store: store}
}

func (s *Selector) Get(ctx context.Context, session string) ([]string, error) {
	if session == "" {
		return nil, ErrEmptySession
	}
	ids, err := s.store.Get(ctx, session)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Add appends ids not yet selected. The whole call is rejected when the
// result would exceed the policy.
func (s *Selector) Add(ctx context.Context, session string, policy Policy, ids ...string) ([]string, error) {
	if session == "" {
		return nil, ErrEmptySession
	}
	return s.store.Update(ctx, session, func(current []string) ([]string, error) {
		next := Normalize(append(append([]string(nil), current...), ids...))
		if err := policy.Check(len(next)); err != nil {
			return nil, err
		}
		return next, nil
	})
}

// Set replaces the selection.
func (s *Selector) Set(ctx context.Context, session string, policy Policy, ids []string) ([]string, error) {
	if session == "" {
		return nil, ErrEmptySession
	}
	next := Normalize(ids)
	if err := policy.Check(len(next)); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, session, func([]string) ([]string, error) {
		return next, nil
	})
}

func (s *Selector) Remove(ctx context.Context, session, id string) ([]string, error) {
	if session == "" {
		return nil, ErrEmptySession
	}
	return s.store.Update(ctx, session, func(current []string) ([]string, error) {
		next := make([]string, 0, len(current))
		for _, c := range current {
			if c != id {
				next = append(next, c)
			}
		}
		return next, nil
	})
}

func (s *Selector) Clear(ctx context.Context, session string) error {
	if session == "" {
		return ErrEmptySession
	}
	return s.store.Clear(ctx, session)
}

// Normalize drops empty and repeated IDs, keeping first occurrences in order.
func Normalize(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// MemoryStore keeps selections in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]string)}
}

func (m *MemoryStore) Get(ctx context.Context, session string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.data[session]...), nil
}

func (m *MemoryStore) Update(ctx context.Context, session string, fn func([]string) ([]string, error)) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := fn(append([]string{}, m.data[session]...))
	if err != nil {
		return nil, err
	}
	m.data[session] = append([]string{}, next...)
	return next, nil
}

func (m *MemoryStore) Clear(ctx context.Context, session string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, session)
	return nil
}
