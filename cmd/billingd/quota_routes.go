package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/subkit/pkg/quota"
	"github.com/dmitrymomot/subkit/pkg/subscription"
)

// quotaRoutes exposes the metering surface: read remaining balances, record
// consumption. Recording is never gated by the balance; enforcement is the
// caller's decision.
func quotaRoutes(ledger *quota.Ledger, usage subscription.UsageStore) chi.Router {
	r := chi.NewRouter()

	r.Get("/{user_id}", func(w http.ResponseWriter, req *http.Request) {
		userID, err := uuid.Parse(chi.URLParam(req, "user_id"))
		if err != nil {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}

		now := time.Now().UTC()
		remaining, err := ledger.Remaining(req.Context(), userID, time.Time{}, nil, now)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"resources": remaining,
			"as_of":     now,
		})
	})

	r.Post("/{user_id}/usage", func(w http.ResponseWriter, req *http.Request) {
		userID, err := uuid.Parse(chi.URLParam(req, "user_id"))
		if err != nil {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}

		var body struct {
			Resource string `json:"resource"`
			Amount   int64  `json:"amount"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		rec, err := subscription.NewUsage(userID, subscription.Resource(body.Resource), body.Amount, time.Now().UTC())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := usage.Record(req.Context(), &rec); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"id": rec.ID})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
