package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/subkit/pkg/payment"
)

// NormalizePayload flattens a webhook body into string fields regardless of
// whether it arrived as JSON or form-encoded data. Providers are sloppy
// about cardinality: the same field shows up as a scalar in one delivery
// and a one-element list in the next, so list values collapse to their
// first element. The result is safe to use as an idempotency key source.
func NormalizePayload(r *http.Request) (map[string]string, error) {
	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil && contentType != "" {
		return nil, errors.Join(ErrMalformedWebhook, err)
	}

	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return nil, errors.Join(ErrMalformedWebhook, err)
		}
		out := make(map[string]string, len(r.PostForm))
		for key, values := range r.PostForm {
			if len(values) > 0 {
				out[key] = values[0]
			}
		}
		return out, nil
	default:
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, errors.Join(ErrMalformedWebhook, err)
		}
		out := make(map[string]string, len(raw))
		for key, value := range raw {
			s, ok := scalarize(value)
			if !ok {
				continue
			}
			out[key] = s
		}
		return out, nil
	}
}

func scalarize(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case []any:
		if len(v) == 0 {
			return "", false
		}
		return scalarize(v[0])
	default:
		return "", false
	}
}

// Router mounts one webhook endpoint per registered provider at
// POST /{codename}. Unverifiable or malformed payloads answer 400 and
// change nothing; unknown idempotency keys answer 404 so the provider
// redelivers once the payment row lands; duplicate deliveries answer 200.
func Router(registry *Registry, transitions *payment.Service, log *slog.Logger) chi.Router {
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Post("/{provider}", func(w http.ResponseWriter, req *http.Request) {
		codename := chi.URLParam(req, "provider")
		prov, err := registry.Get(codename)
		if err != nil {
			http.NotFound(w, req)
			return
		}

		result, err := prov.ParseWebhook(req)
		if err != nil {
			log.WarnContext(req.Context(), "webhook rejected",
				slog.String("provider", codename),
				slog.String("error", err.Error()))
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if err := applyTransition(req, transitions, codename, result); err != nil {
			if errors.Is(err, payment.ErrPaymentNotFound) {
				http.Error(w, "unknown payment", http.StatusNotFound)
				return
			}
			log.ErrorContext(req.Context(), "webhook transition failed",
				slog.String("provider", codename),
				slog.String("provider_payment_id", result.ProviderPaymentID),
				slog.String("error", err.Error()))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	})
	return r
}

func applyTransition(req *http.Request, transitions *payment.Service, codename string, result *WebhookResult) error {
	ctx := req.Context()
	now := time.Now().UTC()

	switch result.Status {
	case payment.StatusCompleted:
		return transitions.Complete(ctx, codename, result.ProviderPaymentID, now)
	case payment.StatusCancelled:
		return transitions.Cancel(ctx, codename, result.ProviderPaymentID, now)
	case payment.StatusError:
		return transitions.Fail(ctx, codename, result.ProviderPaymentID, now)
	case payment.StatusPending:
		return nil // informational delivery, nothing to transition
	default:
		return fmt.Errorf("%w: unknown status %q", ErrMalformedWebhook, result.Status)
	}
}
