package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"

	"github.com/dmitrymomot/subkit/pkg/payment"
	"github.com/dmitrymomot/subkit/pkg/subscription"
)

// PaddleConfig holds configuration for the Paddle billing provider.
// PriceIDs maps plan codenames to Paddle catalog price IDs.
type PaddleConfig struct {
	APIKey        string            `env:"PADDLE_API_KEY,required"`
	WebhookSecret string            `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string            `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	PriceIDs      map[string]string `env:"PADDLE_PRICE_IDS"`
}

// PaddleProvider implements Provider backed by the Paddle Billing API.
type PaddleProvider struct {
	client      *paddle.SDK
	verifier    *paddle.WebhookVerifier
	config      PaddleConfig
	transitions *payment.Service
}

// NewPaddleProvider creates a Paddle provider. The transition service is
// used by reconciliation to settle payments found terminal upstream.
func NewPaddleProvider(config PaddleConfig, transitions *payment.Service) (*PaddleProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("paddle API key is required")
	}
	if config.WebhookSecret == "" {
		return nil, errors.New("paddle webhook secret is required")
	}
	if transitions == nil {
		return nil, errors.New("payment transition service is required")
	}

	var client *paddle.SDK
	var err error

	switch strings.ToLower(config.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(config.APIKey)
	case "production", "":
		client, err = paddle.New(config.APIKey)
	default:
		return nil, fmt.Errorf("invalid paddle environment: %s", config.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return &PaddleProvider{
		client:      client,
		verifier:    paddle.NewWebhookVerifier(config.WebhookSecret),
		config:      config,
		transitions: transitions,
	}, nil
}

// Codename identifies this provider in payment rows and webhook routes.
func (p *PaddleProvider) Codename() string { return "paddle" }

// GetAmount prices quantity units of the plan. Paddle charges the catalog
// price attached to the price ID, so the quote comes from the plan itself.
func (p *PaddleProvider) GetAmount(_ context.Context, _ uuid.UUID, plan subscription.Plan, quantity int) (subscription.Money, error) {
	if quantity < 1 {
		return subscription.Money{}, subscription.ErrInvalidUsage
	}
	return subscription.Money{
		Amount:   plan.ChargeAmount.Amount * int64(quantity),
		Currency: plan.ChargeAmount.Currency,
	}, nil
}

// ChargeOffline creates a Paddle transaction against the customer's saved
// payment method and records the transaction ID on the payment. Paddle
// settles most offline charges asynchronously: the transaction usually comes
// back billed, so settled is true only when the response already reports the
// money collected; otherwise the completion webhook or reconciliation
// finishes the job.
func (p *PaddleProvider) ChargeOffline(ctx context.Context, pay *payment.Payment) (bool, error) {
	priceID, ok := p.config.PriceIDs[pay.PlanCodename]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrMissingPriceID, pay.PlanCodename)
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  priceID,
		Quantity: pay.Quantity,
	})

	transaction, err := p.client.TransactionsClient.CreateTransaction(ctx, &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"payment_id": pay.ID.String(),
			"user_id":    pay.UserID.String(),
		},
	})
	if err != nil {
		return false, errors.Join(ErrPaymentFailed, err)
	}

	pay.ProviderPaymentID = transaction.ID
	settled := mapPaddleTransactionStatus(string(transaction.Status)) == payment.StatusCompleted
	return settled, nil
}

// CheckPayments re-reads each pending transaction from Paddle and settles
// the ones the upstream reports terminal. A transport failure aborts the
// whole batch; stale rows are retried on the next reconciliation run.
func (p *PaddleProvider) CheckPayments(ctx context.Context, pending []payment.Payment) error {
	for _, pay := range pending {
		if pay.ProviderPaymentID == "" {
			continue // charge never reached Paddle, nothing to ask about
		}

		transaction, err := p.client.TransactionsClient.GetTransaction(ctx, &paddle.GetTransactionRequest{
			TransactionID: pay.ProviderPaymentID,
		})
		if err != nil {
			return fmt.Errorf("failed to fetch paddle transaction %s: %w", pay.ProviderPaymentID, err)
		}

		if err := p.settle(ctx, pay.ProviderPaymentID, string(transaction.Status)); err != nil {
			return err
		}
	}
	return nil
}

func (p *PaddleProvider) settle(ctx context.Context, providerPaymentID, paddleStatus string) error {
	now := time.Now().UTC()
	switch mapPaddleTransactionStatus(paddleStatus) {
	case payment.StatusCompleted:
		return p.transitions.Complete(ctx, p.Codename(), providerPaymentID, now)
	case payment.StatusCancelled:
		return p.transitions.Cancel(ctx, p.Codename(), providerPaymentID, now)
	case payment.StatusError:
		return p.transitions.Fail(ctx, p.Codename(), providerPaymentID, now)
	default:
		return nil // still in flight upstream
	}
}

// ParseWebhook verifies the Paddle-Signature header and maps transaction
// lifecycle events onto payment statuses. Events for anything other than
// transactions surface as pending so the endpoint acknowledges them without
// touching payment state.
func (p *PaddleProvider) ParseWebhook(r *http.Request) (*WebhookResult, error) {
	valid, err := p.verifier.Verify(r)
	if err != nil {
		return nil, errors.Join(ErrMalformedWebhook, err)
	}
	if !valid {
		return nil, fmt.Errorf("%w: signature verification failed", ErrMalformedWebhook)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, errors.Join(ErrMalformedWebhook, err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var event struct {
		EventType string `json:"event_type"`
		Data      struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, errors.Join(ErrMalformedWebhook, err)
	}

	if !strings.HasPrefix(event.EventType, "transaction.") {
		return &WebhookResult{Status: payment.StatusPending}, nil
	}
	if event.Data.ID == "" {
		return nil, fmt.Errorf("%w: transaction event without id", ErrMalformedWebhook)
	}

	result := &WebhookResult{
		ProviderPaymentID: event.Data.ID,
		Status:            payment.StatusPending,
	}
	switch event.EventType {
	case "transaction.completed", "transaction.paid":
		result.Status = payment.StatusCompleted
	case "transaction.payment_failed":
		result.Status = payment.StatusError
	case "transaction.canceled":
		result.Status = payment.StatusCancelled
	}
	return result, nil
}

func mapPaddleTransactionStatus(status string) payment.Status {
	switch strings.ToLower(status) {
	case "completed", "paid":
		return payment.StatusCompleted
	case "canceled", "cancelled":
		return payment.StatusCancelled
	case "past_due":
		return payment.StatusError
	default:
		return payment.StatusPending
	}
}
