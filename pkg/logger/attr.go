package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
// If id is nil, it returns an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// SubscriptionID records the subscription identifier under the key
// "subscription_id". If id is nil, it returns an empty Attr.
func SubscriptionID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("subscription_id", id)
}

// PaymentID records the payment identifier under the key "payment_id".
// If id is nil, it returns an empty Attr.
func PaymentID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("payment_id", id)
}

// Provider records a payment provider codename under the key "provider".
func Provider(codename string) slog.Attr {
	return slog.String("provider", codename)
}

// Plan records a plan codename under the key "plan".
func Plan(codename string) slog.Attr {
	return slog.String("plan", codename)
}

// Resource records a quota resource name under the key "resource".
func Resource(name string) slog.Attr {
	return slog.String("resource", name)
}

// Job records a background job name under the key "job".
func Job(name string) slog.Attr {
	return slog.String("job", name)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
