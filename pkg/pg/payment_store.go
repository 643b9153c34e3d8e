package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/subkit/pkg/payment"
	"github.com/dmitrymomot/subkit/pkg/subscription"
)

// PaymentStore is the postgres payment.Store. Transaction-scoped instances
// read single rows with FOR UPDATE so the idempotent status transition
// serializes under concurrent webhook deliveries.
type PaymentStore struct {
	db        DB
	forUpdate bool
}

// NewPaymentStore creates a pool-backed payment store.
func NewPaymentStore(db DB) *PaymentStore {
	if db == nil {
		panic("pg: DB is required")
	}
	return &PaymentStore{db: db}
}

const paymentColumns = `id, user_id, plan_codename, provider_codename, provider_payment_id,
	status, amount, currency, quantity, subscription_id, metadata, created_at, updated_at`

func (s *PaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode payment metadata: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.UserID, p.PlanCodename, p.ProviderCodename, p.ProviderPaymentID,
		string(p.Status), p.Amount.Amount, p.Amount.Currency, p.Quantity,
		p.SubscriptionID, metadata, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return payment.ErrDuplicatePayment
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (s *PaymentStore) Update(ctx context.Context, p *payment.Payment) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode payment metadata: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE payments
		SET provider_payment_id = $2, status = $3, subscription_id = $4, metadata = $5, updated_at = $6
		WHERE id = $1`,
		p.ID, p.ProviderPaymentID, string(p.Status), p.SubscriptionID, metadata, p.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return payment.ErrDuplicatePayment
		}
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payment.ErrPaymentNotFound
	}
	return nil
}

func (s *PaymentStore) Get(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	if s.forUpdate {
		query += ` FOR UPDATE`
	}
	return s.one(ctx, query, id)
}

func (s *PaymentStore) GetByProviderPaymentID(ctx context.Context, providerCodename, providerPaymentID string) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE provider_codename = $1 AND provider_payment_id = $2`
	if s.forUpdate {
		query += ` FOR UPDATE`
	}
	return s.one(ctx, query, providerCodename, providerPaymentID)
}

func (s *PaymentStore) ListPendingCreatedAfter(ctx context.Context, cutoff time.Time) ([]payment.Payment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE status = $1 AND created_at >= $2
		ORDER BY created_at`,
		string(payment.StatusPending), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending payments: %w", err)
	}
	return collectPayments(rows)
}

func (s *PaymentStore) ListBySubscriptionBetween(ctx context.Context, subID uuid.UUID, from, to time.Time) ([]payment.Payment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE subscription_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at`,
		subID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscription payments: %w", err)
	}
	return collectPayments(rows)
}

func (s *PaymentStore) LastCompletedForSubscription(ctx context.Context, subID uuid.UUID) (*payment.Payment, error) {
	return s.one(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE subscription_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		subID, string(payment.StatusCompleted))
}

func (s *PaymentStore) one(ctx context.Context, query string, args ...any) (*payment.Payment, error) {
	p, err := scanPayment(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if isNotFound(err) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

func scanPayment(row pgx.Row) (*payment.Payment, error) {
	var (
		p        payment.Payment
		status   string
		metadata []byte
	)
	err := row.Scan(&p.ID, &p.UserID, &p.PlanCodename, &p.ProviderCodename, &p.ProviderPaymentID,
		&status, &p.Amount.Amount, &p.Amount.Currency, &p.Quantity,
		&p.SubscriptionID, &metadata, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = payment.Status(status)
	p.Metadata = make(map[string]string)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode payment metadata: %w", err)
		}
	}
	return &p, nil
}

func collectPayments(rows pgx.Rows) ([]payment.Payment, error) {
	defer rows.Close()
	var out []payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Transactor is the postgres payment.Transactor: one transaction spans the
// payment and subscription writes of a status transition, with FOR UPDATE
// reads inside it.
type Transactor struct {
	pool interface {
		Begin(ctx context.Context) (pgx.Tx, error)
	}
}

// NewTransactor wires the pool into a payment.Transactor.
func NewTransactor(pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}) *Transactor {
	if pool == nil {
		panic("pg: pool is required")
	}
	return &Transactor{pool: pool}
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, payments payment.Store, subs subscription.Store) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	payments := &PaymentStore{db: tx, forUpdate: true}
	subs := &SubscriptionStore{db: tx, forUpdate: true}
	if err := fn(ctx, payments, subs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
