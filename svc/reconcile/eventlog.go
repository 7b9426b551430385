package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/billingd/pkg/logger"
	"github.com/dmitrymomot/billingd/pkg/pg"
	"github.com/dmitrymomot/billingd/pkg/redis"
)

// EventLog remembers events that were applied successfully.
type EventLog interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, eventID, eventType string) error
	// Purge forgets events recorded before the cutoff and returns how many.
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// MemoryEventLog keeps event ids in process memory.
type MemoryEventLog struct {
	mu     sync.RWMutex
	events map[string]time.Time
	now    func() time.Time
}

func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{events: make(map[string]time.Time), now: time.Now}
}

func (l *MemoryEventLog) Seen(_ context.Context, eventID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.events[eventID]
	return ok, nil
}

func (l *MemoryEventLog) Record(_ context.Context, eventID, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.events[eventID]; !ok {
		l.events[eventID] = l.now()
	}
	return nil
}

func (l *MemoryEventLog) Purge(_ context.Context, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for id, at := range l.events {
		if at.Before(before) {
			delete(l.events, id)
			n++
		}
	}
	return n, nil
}

// PgEventLog keeps event ids in the webhook_events table.
type PgEventLog struct {
	db pg.DBTX
}

func NewPgEventLog(db pg.DBTX) *PgEventLog {
	return &PgEventLog{db: db}
}

func (l *PgEventLog) Seen(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	err := l.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM webhook_events WHERE event_id = $1)`, eventID,
	).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("lookup webhook event: %w", err)
	}
	return seen, nil
}

func (l *PgEventLog) Record(ctx context.Context, eventID, eventType string) error {
	_, err := l.db.Exec(ctx, `INSERT INTO webhook_events (event_id, event_type, processed_at)
		VALUES ($1, $2, now())
		ON CONFLICT (event_id) DO NOTHING`, eventID, eventType)
	if err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	return nil
}

func (l *PgEventLog) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := l.db.Exec(ctx, `DELETE FROM webhook_events WHERE processed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge webhook events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RedisEventLog keeps event ids in Redis with a TTL equal to the retention,
// so Purge has nothing to do.
type RedisEventLog struct {
	store *redis.Store
	ttl   time.Duration
}

// NewRedisEventLog stores ids under "stripe:event:<id>".
func NewRedisEventLog(client goredis.UniversalClient, retention time.Duration) *RedisEventLog {
	return &RedisEventLog{store: redis.NewStore(client, "stripe:event:"), ttl: retention}
}

func (l *RedisEventLog) Seen(ctx context.Context, eventID string) (bool, error) {
	_, err := l.store.Get(ctx, eventID)
	if errors.Is(err, redis.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *RedisEventLog) Record(ctx context.Context, eventID, eventType string) error {
	return l.store.Set(ctx, eventID, []byte(eventType), l.ttl)
}

func (l *RedisEventLog) Purge(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// RunPurger purges events older than retention every interval until ctx is
// done. Failures are logged and retried on the next tick.
func RunPurger(ctx context.Context, events EventLog, interval, retention time.Duration, log *slog.Logger) error {
	if log == nil {
		log = logger.Discard()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	log = log.With(logger.Component("webhook-event-purger"))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := events.Purge(ctx, time.Now().Add(-retention))
			if err != nil {
				log.ErrorContext(ctx, "failed to purge webhook events", logger.Error(err))
				continue
			}
			if n > 0 {
				log.InfoContext(ctx, "purged webhook events", slog.Int64("count", n))
			}
		}
	}
}
