package subscription

import (
	"context"
	"sync"
)

// MemoryStore keeps subscriptions in process memory. Mutations of one owner
// are serialized by a per-selector lock.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]*Subscription
	byStripe map[string]string

	locksMu sync.Mutex
	locks   map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]*Subscription),
		byStripe: make(map[string]string),
		locks:    make(map[string]*keyLock),
	}
}

func (s *MemoryStore) FindBySelector(_ context.Context, sel Selector) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[sel.Key()]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return clone(rec), nil
}

func (s *MemoryStore) MutateBySelector(ctx context.Context, sel Selector, fn func(*Subscription) (*Subscription, error)) (*Subscription, error) {
	key := sel.Key()
	unlock := s.lock(key)
	defer unlock()

	return s.mutate(key, fn)
}

func (s *MemoryStore) MutateByStripeSubscriptionID(ctx context.Context, id string, fn func(*Subscription) error) (*Subscription, error) {
	s.mu.RLock()
	key, ok := s.byStripe[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSubscriptionNotFound
	}

	unlock := s.lock(key)
	defer unlock()

	return s.mutate(key, func(cur *Subscription) (*Subscription, error) {
		// The record may have moved to another Stripe subscription while we waited.
		if cur == nil || cur.StripeSubscriptionID != id {
			return nil, ErrSubscriptionNotFound
		}
		if err := fn(cur); err != nil {
			return nil, err
		}
		return cur, nil
	})
}

// Len counts stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Must be called with the key lock held.
func (s *MemoryStore) mutate(key string, fn func(*Subscription) (*Subscription, error)) (*Subscription, error) {
	s.mu.RLock()
	cur := clone(s.records[key])
	s.mu.RUnlock()

	next, err := fn(cur)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur != nil && cur.StripeSubscriptionID != "" && cur.StripeSubscriptionID != next.StripeSubscriptionID {
		delete(s.byStripe, cur.StripeSubscriptionID)
	}
	if next.StripeSubscriptionID != "" {
		s.byStripe[next.StripeSubscriptionID] = key
	}
	s.records[key] = clone(next)
	return clone(next), nil
}

func (s *MemoryStore) lock(key string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.locksMu.Unlock()
	}
}
