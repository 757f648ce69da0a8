package gate

import (
	"errors"
	"net/http"

	"github.com/therunreport/paywall/internal/httputil"
	"github.com/therunreport/paywall/pkg/paywall"
)

type lookupFound struct {
	Found  bool    `json:"found"`
	UserID string  `json:"user_id"`
	Status *string `json:"status"`
}

type lookupNotFound struct {
	Found bool `json:"found"`
}

// Lookup reports whether an account exists for an email and its raw
// subscription status, so the sign-in flow can branch between "enter
// password" and "go to payment". It never evaluates entitlement.
//
// Configuration errors, failed identity calls and genuine absence all return
// the same {found:false} body: callers must not be able to distinguish "no
// such user" from "lookup temporarily failed", or the endpoint would leak
// infrastructure state pre-authentication.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	httputil.SetCORSHeaders(w)

	if r.Method == http.MethodOptions {
		writeOK(w)
		return
	}
	if r.Method != http.MethodPost {
		h.lookupMiss(w, http.StatusMethodNotAllowed)
		return
	}

	if h.store == nil || h.users == nil {
		h.lookupMiss(w, http.StatusOK)
		return
	}

	email, ok := h.readEmail(w, r)
	if !ok {
		h.lookupMiss(w, http.StatusBadRequest)
		return
	}
	if email == "" {
		h.lookupMiss(w, http.StatusOK)
		return
	}

	user, err := h.users.FindUserByEmail(r.Context(), email)
	if err != nil {
		if !errors.Is(err, paywall.ErrUserNotFound) {
			h.logger.Error().Err(err).Msg("admin user lookup failed")
		}
		h.lookupMiss(w, http.StatusOK)
		return
	}

	var status *string
	rec, err := h.store.GetSubscription(r.Context(), user.ID)
	if err != nil && !errors.Is(err, paywall.ErrSubscriptionNotFound) {
		h.logger.Error().Err(err).Str("user_id", user.ID).Msg("subscription lookup failed")
	}
	if rec != nil {
		status = &rec.Status
	}

	h.metrics.RecordLookup("found")
	_ = httputil.WriteJSON(w, http.StatusOK, lookupFound{Found: true, UserID: user.ID, Status: status})
}

func (h *Handler) lookupMiss(w http.ResponseWriter, code int) {
	h.metrics.RecordLookup("not_found")
	_ = httputil.WriteJSON(w, code, lookupNotFound{Found: false})
}
