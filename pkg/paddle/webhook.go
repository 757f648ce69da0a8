package paddle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/therunreport/paywall/internal/httputil"
	"github.com/therunreport/paywall/pkg/identity"
	"github.com/therunreport/paywall/pkg/paywall"
)

// WebhookConfig holds the webhook handler's dependencies. Everything is
// injected; the handler holds no ambient state.
type WebhookConfig struct {
	// Store receives the upserted subscription records.
	Store paywall.SubscriptionStore

	// Secret is the shared webhook secret used for signature verification.
	Secret string

	// Directory resolves emails to accounts. Only consulted when
	// ResolveByEmail is set.
	Directory identity.Directory

	// ResolveByEmail enables the legacy fallback: when custom_data carries no
	// user_id, look the user up by email and invite a new account if none
	// exists. Off by default; without it an event with no user id is
	// acknowledged as a no-op.
	ResolveByEmail bool

	// Metrics is an optional metrics collector. If nil, metrics are ignored.
	Metrics paywall.Metrics

	Logger zerolog.Logger
}

// WebhookHandler processes Paddle webhook deliveries.
type WebhookHandler struct {
	store          paywall.SubscriptionStore
	secret         []byte
	directory      identity.Directory
	resolveByEmail bool
	metrics        paywall.Metrics
	logger         zerolog.Logger
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(config WebhookConfig) *WebhookHandler {
	metrics := config.Metrics
	if metrics == nil {
		metrics = &paywall.NoopMetrics{}
	}
	return &WebhookHandler{
		store:          config.Store,
		secret:         []byte(strings.TrimSpace(config.Secret)),
		directory:      config.Directory,
		resolveByEmail: config.ResolveByEmail,
		metrics:        metrics,
		logger:         config.Logger,
	}
}

// ServeHTTP implements http.Handler for POST /paddle-webhook.
//
// Response contract: 405 non-POST, 503 unconfigured, 401 bad signature,
// 400 unparseable JSON, 500 only for a genuine datastore (or invite) failure,
// 200 otherwise - including the deliberate no-op when no user id can be
// determined, so Paddle does not retry an event that can never resolve.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	httputil.SetSecurityHeaders(w)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if len(h.secret) == 0 || h.store == nil {
		http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
		return
	}

	body, err := httputil.ReadBodyStrict(w, r, httputil.MaxBodySize)
	if err != nil {
		if errors.Is(err, httputil.ErrPayloadTooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			h.metrics.RecordWebhookError("payload_too_large")
		} else {
			http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
			h.metrics.RecordWebhookError("invalid_payload")
		}
		return
	}

	if !VerifySignature(r.Header.Get("Paddle-Signature"), body, h.secret) {
		h.logger.Warn().
			Bool("signature_present", r.Header.Get("Paddle-Signature") != "").
			Msg("webhook signature verification failed")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		h.metrics.RecordWebhookError("auth_failed")
		return
	}

	env, err := ParseEnvelope(body)
	if err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		h.metrics.RecordWebhookError("invalid_payload")
		return
	}

	ev := Normalize(env)
	eventType := ev.EventType
	if eventType == "" {
		eventType = "UNKNOWN"
	}

	userID := ev.UserID
	if userID == "" && h.resolveByEmail && ev.Email != "" && h.directory != nil {
		userID, err = h.resolveUser(r.Context(), ev.Email)
		if err != nil {
			h.logger.Error().Err(err).Str("event_type", eventType).Msg("invite user failed")
			http.Error(w, "invite failed", http.StatusInternalServerError)
			h.metrics.RecordWebhookError("invite_failed")
			return
		}
	}

	if userID == "" {
		h.logger.Warn().
			Str("event_type", eventType).
			Str("event_id", env.EventID).
			Msg("webhook event carries no resolvable user id, acknowledging as no-op")
		h.metrics.RecordWebhookEvent(eventType, "skipped")
		writeOK(w, "Missing user id")
		return
	}

	applied, err := h.apply(r.Context(), userID, ev)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("subscription upsert failed")
		http.Error(w, "database error", http.StatusInternalServerError)
		h.metrics.RecordWebhookEvent(eventType, "error")
		h.metrics.RecordWebhookError("store_error")
		return
	}

	if applied {
		h.metrics.RecordWebhookEvent(eventType, "success")
	} else {
		h.metrics.RecordWebhookEvent(eventType, "skipped")
	}
	h.metrics.RecordWebhookProcessingDuration(eventType, time.Since(startTime))
	writeOK(w, "ok")
}

// resolveUser finds the account for an email, inviting a new one when none
// exists. Idempotency under duplicate deliveries rests on the provider's
// email uniqueness.
func (h *WebhookHandler) resolveUser(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := h.directory.FindUserByEmail(ctx, email)
	if err == nil {
		return user.ID, nil
	}
	if !errors.Is(err, paywall.ErrUserNotFound) {
		return "", err
	}

	invited, err := h.directory.InviteUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	h.logger.Info().Str("user_id", invited.ID).Msg("invited new account for webhook event")
	return invited.ID, nil
}

// apply upserts the normalized event, skipping writes whose event timestamp
// is not newer than the stored one so an out-of-order or retried delivery
// cannot overwrite fresher state. Events without a timestamp are applied
// unconditionally. Reports whether a write happened.
func (h *WebhookHandler) apply(ctx context.Context, userID string, ev *Event) (bool, error) {
	existing, err := h.store.GetSubscription(ctx, userID)
	if err != nil && !errors.Is(err, paywall.ErrSubscriptionNotFound) {
		return false, err
	}

	if existing != nil && existing.OccurredAt != nil && ev.OccurredAt != nil &&
		!ev.OccurredAt.After(*existing.OccurredAt) {
		h.logger.Debug().
			Str("user_id", userID).
			Time("stored", *existing.OccurredAt).
			Time("event", *ev.OccurredAt).
			Msg("skipping stale webhook event")
		return false, nil
	}

	rec := &paywall.SubscriptionRecord{
		UserID:         userID,
		CustomerID:     ev.CustomerID,
		SubscriptionID: ev.SubscriptionID,
		Status:         ev.Status,
		PriceID:        ev.PriceID,
		OccurredAt:     ev.OccurredAt,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := h.store.UpsertSubscription(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

func writeOK(w http.ResponseWriter, msg string) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(msg))
}
