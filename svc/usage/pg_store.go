package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrymomot/billingd/pkg/pg"
	"github.com/dmitrymomot/billingd/svc/subscription"
)

// PgStore keeps records in the usage_records table.
type PgStore struct {
	db pg.DBTX
}

func NewPgStore(db pg.DBTX) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Insert(ctx context.Context, rec Record) error {
	_, err := s.db.Exec(ctx, `INSERT INTO usage_records
		(id, service_id, metric, quantity, recorded_at, period_start, period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.ServiceID, string(rec.Metric), rec.Quantity, rec.Timestamp, rec.PeriodStart, rec.PeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

func (s *PgStore) Sum(ctx context.Context, serviceIDs []string, start, end time.Time) ([]Summary, error) {
	if len(serviceIDs) == 0 {
		return []Summary{}, nil
	}
	rows, err := s.db.Query(ctx, `SELECT metric, SUM(quantity)
		FROM usage_records
		WHERE service_id = ANY($1) AND recorded_at >= $2 AND recorded_at < $3
		GROUP BY metric
		ORDER BY metric`, serviceIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("sum usage: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			metric string
			total  float64
		)
		if err := rows.Scan(&metric, &total); err != nil {
			return nil, fmt.Errorf("scan usage sum: %w", err)
		}
		out = append(out, Summary{Metric: Metric(metric), Quantity: total})
	}
	return out, rows.Err()
}

// PgDirectory reads service ownership from the services table.
type PgDirectory struct {
	db pg.DBTX
}

func NewPgDirectory(db pg.DBTX) *PgDirectory {
	return &PgDirectory{db: db}
}

func (d *PgDirectory) OwnerOf(ctx context.Context, serviceID string) (subscription.Selector, error) {
	var sel subscription.Selector
	err := d.db.QueryRow(ctx, `SELECT COALESCE(user_id, ''), COALESCE(organization_id, '')
		FROM services WHERE id = $1`, serviceID).Scan(&sel.UserID, &sel.OrganizationID)
	if pg.IsNotFoundError(err) {
		return subscription.Selector{}, ErrServiceNotFound
	}
	if err != nil {
		return subscription.Selector{}, fmt.Errorf("lookup service owner: %w", err)
	}
	return sel, nil
}

func (d *PgDirectory) ServicesOf(ctx context.Context, sel subscription.Selector) ([]string, error) {
	column, value := "user_id", sel.UserID
	if !sel.IsUser() {
		column, value = "organization_id", sel.OrganizationID
	}
	rows, err := d.db.Query(ctx, `SELECT id FROM services WHERE `+column+` = $1 ORDER BY id`, value)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan service id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
