package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/billingd/pkg/pg"
	"github.com/dmitrymomot/billingd/pkg/plans"
)

// PgStore keeps subscriptions in the subscriptions table. Mutations take a
// transaction-scoped advisory lock on the selector so concurrent creates for
// one owner are serialized; partial unique indexes on user_id and
// organization_id back this up at the schema level.
type PgStore struct {
	db pg.TxBeginner
}

// NewPgStore wraps a pool.
func NewPgStore(db pg.TxBeginner) *PgStore {
	return &PgStore{db: db}
}

const subscriptionColumns = `id, COALESCE(user_id, ''), COALESCE(organization_id, ''),
	COALESCE(stripe_customer_id, ''), COALESCE(stripe_subscription_id, ''),
	plan, status, current_period_start, current_period_end, created_at, updated_at, canceled_at`

func (s *PgStore) FindBySelector(ctx context.Context, sel Selector) (*Subscription, error) {
	where, arg := selectorClause(sel)
	row := s.db.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE `+where, arg)
	return scanSubscription(row)
}

func (s *PgStore) MutateBySelector(ctx context.Context, sel Selector, fn func(*Subscription) (*Subscription, error)) (*Subscription, error) {
	var out *Subscription
	err := pg.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := pg.AdvisoryXactLock(ctx, tx, "subscription:"+sel.Key()); err != nil {
			return err
		}

		where, arg := selectorClause(sel)
		cur, err := scanSubscription(tx.QueryRow(ctx,
			`SELECT `+subscriptionColumns+` FROM subscriptions WHERE `+where+` FOR UPDATE`, arg))
		if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
			return err
		}

		next, err := fn(cur)
		if err != nil {
			return err
		}

		if cur == nil {
			err = insertSubscription(ctx, tx, next)
		} else {
			err = updateSubscription(ctx, tx, next)
		}
		if err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PgStore) MutateByStripeSubscriptionID(ctx context.Context, id string, fn func(*Subscription) error) (*Subscription, error) {
	var out *Subscription
	err := pg.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		cur, err := scanSubscription(tx.QueryRow(ctx,
			`SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_subscription_id = $1
			ORDER BY updated_at DESC LIMIT 1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := fn(cur); err != nil {
			return err
		}
		if err := updateSubscription(ctx, tx, cur); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func selectorClause(sel Selector) (string, string) {
	if sel.IsUser() {
		return "user_id = $1", sel.UserID
	}
	return "organization_id = $1", sel.OrganizationID
}

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var (
		sub          Subscription
		plan, status string
	)
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.OrganizationID,
		&sub.StripeCustomerID, &sub.StripeSubscriptionID,
		&plan, &status, &sub.CurrentPeriodStart, &sub.CurrentPeriodEnd,
		&sub.CreatedAt, &sub.UpdatedAt, &sub.CanceledAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	sub.Plan = plans.Plan(plan)
	sub.Status = Status(status)
	return &sub, nil
}

func insertSubscription(ctx context.Context, tx pgx.Tx, s *Subscription) error {
	_, err := tx.Exec(ctx, `INSERT INTO subscriptions (
		id, user_id, organization_id, stripe_customer_id, stripe_subscription_id,
		plan, status, current_period_start, current_period_end, created_at, updated_at, canceled_at
	) VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12)`,
		s.ID, s.UserID, s.OrganizationID, s.StripeCustomerID, s.StripeSubscriptionID,
		string(s.Plan), string(s.Status), s.CurrentPeriodStart, s.CurrentPeriodEnd,
		s.CreatedAt, s.UpdatedAt, s.CanceledAt,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func updateSubscription(ctx context.Context, tx pgx.Tx, s *Subscription) error {
	_, err := tx.Exec(ctx, `UPDATE subscriptions SET
		stripe_customer_id = NULLIF($2, ''),
		stripe_subscription_id = NULLIF($3, ''),
		plan = $4,
		status = $5,
		current_period_start = $6,
		current_period_end = $7,
		updated_at = $8,
		canceled_at = $9
	WHERE id = $1`,
		s.ID, s.StripeCustomerID, s.StripeSubscriptionID, string(s.Plan), string(s.Status),
		s.CurrentPeriodStart, s.CurrentPeriodEnd, s.UpdatedAt, s.CanceledAt,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}
