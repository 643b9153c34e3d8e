package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subkit/pkg/email"
	"github.com/dmitrymomot/subkit/pkg/payment"
	"github.com/dmitrymomot/subkit/pkg/subscription"
)

// Notifier receives charge outcomes. Notification failures are logged and
// never fail the charge itself.
type Notifier interface {
	PaymentSucceeded(ctx context.Context, p payment.Payment, sub subscription.Subscription) error
	PaymentFailed(ctx context.Context, p payment.Payment, sub subscription.Subscription) error
}

// UserDirectory resolves a user ID to an email address.
type UserDirectory interface {
	EmailFor(ctx context.Context, userID uuid.UUID) (string, error)
}

// EmailNotifier sends charge outcome emails through an EmailSender.
type EmailNotifier struct {
	sender email.EmailSender
	users  UserDirectory
	log    *slog.Logger
}

// NewEmailNotifier creates an email-backed notifier.
// Panics on nil dependencies to fail fast during initialization.
func NewEmailNotifier(sender email.EmailSender, users UserDirectory, log *slog.Logger) *EmailNotifier {
	if sender == nil {
		panic("jobs: EmailSender is required")
	}
	if users == nil {
		panic("jobs: UserDirectory is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &EmailNotifier{sender: sender, users: users, log: log}
}

func (n *EmailNotifier) PaymentSucceeded(ctx context.Context, p payment.Payment, sub subscription.Subscription) error {
	return n.send(ctx, p.UserID, email.SendEmailParams{
		Subject: "Your subscription has been renewed",
		BodyHTML: fmt.Sprintf(
			"<p>We charged %s for your <strong>%s</strong> subscription.</p><p>It is now active until %s.</p>",
			formatMoney(p.Amount), p.PlanCodename, sub.End.Format("January 2, 2006")),
		Tag: "subscription-renewed",
	})
}

func (n *EmailNotifier) PaymentFailed(ctx context.Context, p payment.Payment, sub subscription.Subscription) error {
	return n.send(ctx, p.UserID, email.SendEmailParams{
		Subject: "We could not renew your subscription",
		BodyHTML: fmt.Sprintf(
			"<p>A charge of %s for your <strong>%s</strong> subscription failed.</p>"+
				"<p>We will retry automatically before %s. Please check your payment method.</p>",
			formatMoney(p.Amount), p.PlanCodename, sub.End.Format("January 2, 2006")),
		Tag: "subscription-charge-failed",
	})
}

func (n *EmailNotifier) send(ctx context.Context, userID uuid.UUID, params email.SendEmailParams) error {
	addr, err := n.users.EmailFor(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve email for user %s: %w", userID, err)
	}
	params.SendTo = addr
	return n.sender.SendEmail(ctx, params)
}

func formatMoney(m subscription.Money) string {
	return fmt.Sprintf("%.2f %s", float64(m.Amount)/100, m.Currency)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) PaymentSucceeded(context.Context, payment.Payment, subscription.Subscription) error {
	return nil
}

func (NopNotifier) PaymentFailed(context.Context, payment.Payment, subscription.Subscription) error {
	return nil
}
