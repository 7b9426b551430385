package usage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrymomot/billingd/svc/subscription"
)

// Store persists usage records.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	// Sum totals quantities per metric for records of serviceIDs whose
	// timestamp lies in [start, end). Metrics without records are omitted.
	Sum(ctx context.Context, serviceIDs []string, start, end time.Time) ([]Summary, error)
}

// ServiceDirectory answers who owns which service. It is maintained by the
// control plane that provisions services.
type ServiceDirectory interface {
	// OwnerOf returns ErrServiceNotFound for unknown services.
	OwnerOf(ctx context.Context, serviceID string) (subscription.Selector, error)
	ServicesOf(ctx context.Context, sel subscription.Selector) ([]string, error)
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *MemoryStore) Sum(_ context.Context, serviceIDs []string, start, end time.Time) ([]Summary, error) {
	ids := make(map[string]struct{}, len(serviceIDs))
	for _, id := range serviceIDs {
		ids[id] = struct{}{}
	}
	r := DateRange{Start: start, End: end}

	s.mu.RLock()
	totals := make(map[Metric]float64)
	for _, rec := range s.records {
		if _, ok := ids[rec.ServiceID]; ok && r.Contains(rec.Timestamp) {
			totals[rec.Metric] += rec.Quantity
		}
	}
	s.mu.RUnlock()

	return sortedSummaries(totals), nil
}

// Records returns a copy of every stored record.
func (s *MemoryStore) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Record(nil), s.records...)
}

func sortedSummaries(totals map[Metric]float64) []Summary {
	out := make([]Summary, 0, len(totals))
	for m, q := range totals {
		out = append(out, Summary{Metric: m, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metric < out[j].Metric })
	return out
}

// MemoryDirectory is a ServiceDirectory backed by a map.
type MemoryDirectory struct {
	mu     sync.RWMutex
	owners map[string]subscription.Selector
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{owners: make(map[string]subscription.Selector)}
}

// Register assigns serviceID to owner.
func (d *MemoryDirectory) Register(serviceID string, owner subscription.Selector) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.owners[serviceID] = owner
}

func (d *MemoryDirectory) OwnerOf(_ context.Context, serviceID string) (subscription.Selector, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	owner, ok := d.owners[serviceID]
	if !ok {
		return subscription.Selector{}, ErrServiceNotFound
	}
	return owner, nil
}

func (d *MemoryDirectory) ServicesOf(_ context.Context, sel subscription.Selector) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var ids []string
	for id, owner := range d.owners {
		if owner == sel {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// CountServices adapts a directory to subscription.ServiceCounter.
func CountServices(dir ServiceDirectory) subscription.ServiceCounter {
	return func(ctx context.Context, sel subscription.Selector) (int64, error) {
		ids, err := dir.ServicesOf(ctx, sel)
		if err != nil {
			return 0, err
		}
		return int64(len(ids)), nil
	}
}
