package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/subkit/pkg/subscription"
)

// DB is the querying surface shared by pgxpool.Pool and pgx.Tx, so the same
// store code serves both plain and transaction-scoped access.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SubscriptionStore is the postgres subscription.Store. With forUpdate set
// (transaction-scoped instances only) single-row reads take a row lock, so
// concurrent prolongations of the same subscription serialize.
type SubscriptionStore struct {
	db        DB
	forUpdate bool
}

// NewSubscriptionStore creates a pool-backed subscription store.
func NewSubscriptionStore(db DB) *SubscriptionStore {
	if db == nil {
		panic("pg: DB is required")
	}
	return &SubscriptionStore{db: db}
}

const subscriptionColumns = `id, user_id, plan_codename, begin_at, end_at, created_at, updated_at`

func (s *SubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.UserID, sub.PlanCodename, sub.Begin, sub.End, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE subscriptions
		SET plan_codename = $2, begin_at = $3, end_at = $4, updated_at = $5
		WHERE id = $1`,
		sub.ID, sub.PlanCodename, sub.Begin, sub.End, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrSubscriptionNotFound
	}
	return nil
}

func (s *SubscriptionStore) Get(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	if s.forUpdate {
		query += ` FOR UPDATE`
	}
	sub, err := scanSubscription(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFound(err) {
			return nil, subscription.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) ListActive(ctx context.Context, userID uuid.UUID, now time.Time) ([]subscription.Subscription, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = $1 AND end_at >= $2
		ORDER BY begin_at`,
		userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}
	return collectSubscriptions(rows)
}

func (s *SubscriptionStore) ListExpiring(ctx context.Context, within time.Duration, now time.Time) ([]subscription.Subscription, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE end_at >= $1 AND end_at <= $2
		ORDER BY begin_at`,
		now, now.Add(within))
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring subscriptions: %w", err)
	}
	return collectSubscriptions(rows)
}

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	err := row.Scan(&sub.ID, &sub.UserID, &sub.PlanCodename, &sub.Begin, &sub.End, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func collectSubscriptions(rows pgx.Rows) ([]subscription.Subscription, error) {
	defer rows.Close()
	var out []subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

// UsageStore is the postgres subscription.UsageStore.
type UsageStore struct {
	db DB
}

// NewUsageStore creates a pool-backed usage store.
func NewUsageStore(db DB) *UsageStore {
	if db == nil {
		panic("pg: DB is required")
	}
	return &UsageStore{db: db}
}

func (s *UsageStore) Record(ctx context.Context, u *subscription.Usage) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO usage_records (id, user_id, resource, amount, recorded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.UserID, string(u.Resource), u.Amount, u.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

func (s *UsageStore) ListBetween(ctx context.Context, userID uuid.UUID, res subscription.Resource, from, to time.Time) ([]subscription.Usage, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, resource, amount, recorded_at FROM usage_records
		WHERE user_id = $1 AND resource = $2 AND recorded_at >= $3 AND recorded_at <= $4
		ORDER BY recorded_at`,
		userID, string(res), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	var out []subscription.Usage
	for rows.Next() {
		var u subscription.Usage
		var resource string
		if err := rows.Scan(&u.ID, &u.UserID, &resource, &u.Amount, &u.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		u.Resource = subscription.Resource(resource)
		out = append(out, u)
	}
	return out, rows.Err()
}
