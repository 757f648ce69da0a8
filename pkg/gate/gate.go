// Package gate implements the pre-authentication endpoints the sign-in flow
// calls: the password-reset gate (entitled subscribers only) and the
// subscription lookup (existence + status, no entitlement judgment).
package gate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/therunreport/paywall/internal/httputil"
	"github.com/therunreport/paywall/pkg/identity"
	"github.com/therunreport/paywall/pkg/paywall"
)

// UserFinder resolves an email to an account. Satisfied by
// *identity.Client and *identity.CachedDirectory.
type UserFinder interface {
	FindUserByEmail(ctx context.Context, email string) (*identity.User, error)
}

// Config holds the gate handlers' dependencies.
type Config struct {
	// Store is read for subscription status. May be nil when the datastore
	// is unconfigured; requests then degrade to the config-missing response.
	Store paywall.SubscriptionStore

	// Users resolves emails to accounts. May be nil when the auth provider
	// is unconfigured.
	Users UserFinder

	// Metrics is an optional metrics collector. If nil, metrics are ignored.
	Metrics paywall.Metrics

	Logger zerolog.Logger
}

// Handler serves /password-reset-gate and /subscription-lookup.
type Handler struct {
	store   paywall.SubscriptionStore
	users   UserFinder
	metrics paywall.Metrics
	logger  zerolog.Logger
}

// NewHandler creates the gate handler.
func NewHandler(config Config) *Handler {
	metrics := config.Metrics
	if metrics == nil {
		metrics = &paywall.NoopMetrics{}
	}
	return &Handler{
		store:   config.Store,
		users:   config.Users,
		metrics: metrics,
		logger:  config.Logger,
	}
}

type emailRequest struct {
	Email string `json:"email"`
}

type gateResponse struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
}

// ResetGate decides whether an email may reset its password. Every decision
// is HTTP 200 with the verdict in the body so the UI can display "please
// subscribe first" as a normal outcome; only a wrong method (405) and a
// malformed JSON body (400) use error status codes.
func (h *Handler) ResetGate(w http.ResponseWriter, r *http.Request) {
	httputil.SetCORSHeaders(w)

	if r.Method == http.MethodOptions {
		writeOK(w)
		return
	}
	if r.Method != http.MethodPost {
		h.gateVerdict(w, http.StatusMethodNotAllowed, "method")
		return
	}

	if h.store == nil || h.users == nil {
		h.logger.Error().Msg("reset gate called without configured store or auth provider")
		h.gateVerdict(w, http.StatusOK, "config")
		return
	}

	email, ok := h.readEmail(w, r)
	if !ok {
		h.gateVerdict(w, http.StatusBadRequest, "json")
		return
	}
	if email == "" {
		h.gateVerdict(w, http.StatusOK, "email_missing")
		return
	}

	user, err := h.users.FindUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, paywall.ErrUserNotFound) {
			h.gateVerdict(w, http.StatusOK, "user_not_found")
			return
		}
		h.logger.Error().Err(err).Msg("admin user lookup failed")
		h.gateVerdict(w, http.StatusOK, "user_lookup")
		return
	}

	rec, err := h.store.GetSubscription(r.Context(), user.ID)
	if err != nil && !errors.Is(err, paywall.ErrSubscriptionNotFound) {
		// Read failures are indistinguishable from absence for the caller;
		// log for the operator and fall through to no_subscription.
		h.logger.Error().Err(err).Str("user_id", user.ID).Msg("subscription lookup failed")
	}
	if rec == nil {
		h.gateVerdict(w, http.StatusOK, "no_subscription")
		return
	}

	status := strings.ToLower(strings.TrimSpace(rec.Status))
	if paywall.IsEntitled(status) {
		h.metrics.RecordGateDecision("ok")
		_ = httputil.WriteJSON(w, http.StatusOK, gateResponse{OK: true, Reason: "ok"})
		return
	}

	if status == "" {
		status = "unknown"
	}
	h.gateVerdict(w, http.StatusOK, "inactive_status:"+status)
}

// gateVerdict writes a deny response and records the decision.
func (h *Handler) gateVerdict(w http.ResponseWriter, code int, reason string) {
	h.metrics.RecordGateDecision(reason)
	_ = httputil.WriteJSON(w, code, gateResponse{OK: false, Reason: reason})
}

// readEmail decodes the request body into a trimmed, lowercased email.
// The second return is false when the body is not valid JSON.
func (h *Handler) readEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	body, err := httputil.ReadBodyStrict(w, r, httputil.MaxBodySize)
	if err != nil {
		return "", false
	}
	var req emailRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(req.Email)), true
}

func writeOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
