package paddle

import (
	"encoding/json"
	"strings"
	"time"
)

// Envelope is the raw webhook envelope Paddle posts. Older notification
// settings used camelCase for the event type, so both spellings are accepted.
type Envelope struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	EventTypeAlt string    `json:"eventType"`
	OccurredAt   string    `json:"occurred_at"`
	Data         EventData `json:"data"`
}

// EventData enumerates the known shapes of the envelope's data object across
// subscription, transaction and checkout events. Fields not present for a
// given event type simply decode to their zero values.
type EventData struct {
	ID             string           `json:"id"`
	SubscriptionID string           `json:"subscription_id"`
	CustomerID     string           `json:"customer_id"`
	Status         string           `json:"status"`
	Email          string           `json:"email"`
	CustomerEmail  string           `json:"customer_email"`
	PriceID        string           `json:"price_id"`
	CustomData     json.RawMessage  `json:"custom_data"`
	Customer       *CustomerRef     `json:"customer"`
	Subscription   *SubscriptionRef `json:"subscription"`
	Transaction    *TransactionRef  `json:"transaction"`
	Checkout       *CheckoutRef     `json:"checkout"`
	Items          []Item           `json:"items"`
	Price          *PriceRef        `json:"price"`
}

// CustomerRef is a nested customer object.
type CustomerRef struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	Email      string          `json:"email"`
	CustomData json.RawMessage `json:"custom_data"`
}

// SubscriptionRef is a nested subscription object.
type SubscriptionRef struct {
	ID         string          `json:"id"`
	CustomData json.RawMessage `json:"custom_data"`
}

// TransactionRef is a nested transaction object.
type TransactionRef struct {
	ID         string          `json:"id"`
	CustomData json.RawMessage `json:"custom_data"`
}

// CheckoutRef is a nested checkout object.
type CheckoutRef struct {
	CustomData json.RawMessage `json:"custom_data"`
}

// Item is a subscription or transaction line item.
type Item struct {
	PriceID string    `json:"price_id"`
	Price   *PriceRef `json:"price"`
}

// PriceRef is a nested price object.
type PriceRef struct {
	ID string `json:"id"`
}

// customData is the opaque bag the checkout flow attaches to a transaction,
// round-tripped back in webhook events. It carries the account id.
type customData struct {
	UserID    string `json:"user_id"`
	UserIDAlt string `json:"userId"`
	Email     string `json:"email"`
}

// Event is the canonical tuple normalized from a raw envelope. Empty strings
// mean the field was absent from the event.
type Event struct {
	EventType      string
	UserID         string
	Email          string
	CustomerID     string
	SubscriptionID string
	PriceID        string
	Status         string

	// OccurredAt is the event's own timestamp; nil when absent or unparseable.
	OccurredAt *time.Time
}

// ParseEnvelope decodes a webhook body into an Envelope.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Normalize maps a provider envelope into the canonical tuple.
func Normalize(env *Envelope) *Event {
	data := &env.Data
	cd := data.firstCustomData()

	ev := &Event{
		EventType:      env.eventType(),
		UserID:         cd.userID(),
		Email:          extractEmail(cd, data),
		CustomerID:     extractCustomerID(data),
		SubscriptionID: extractSubscriptionID(data),
		PriceID:        extractPriceID(data),
		OccurredAt:     parseOccurredAt(env.OccurredAt),
	}
	ev.Status = NormalizeStatus(ev.EventType, data.Status)
	return ev
}

func (e *Envelope) eventType() string {
	if e.EventType != "" {
		return e.EventType
	}
	return e.EventTypeAlt
}

// firstCustomData probes the known custom_data nesting points in priority
// order and returns the first that is present and parses. Unknown or broken
// shapes are treated as absent.
func (d *EventData) firstCustomData() *customData {
	candidates := []json.RawMessage{d.CustomData}
	if d.Customer != nil {
		candidates = append(candidates, d.Customer.CustomData)
	}
	if d.Subscription != nil {
		candidates = append(candidates, d.Subscription.CustomData)
	}
	if d.Transaction != nil {
		candidates = append(candidates, d.Transaction.CustomData)
	}
	if d.Checkout != nil {
		candidates = append(candidates, d.Checkout.CustomData)
	}
	for _, raw := range candidates {
		if cd := parseCustomData(raw); cd != nil {
			return cd
		}
	}
	return nil
}

// parseCustomData tolerates custom_data arriving either as a JSON object or
// as a JSON-encoded string holding an object.
func parseCustomData(raw json.RawMessage) *customData {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil
		}
		raw = json.RawMessage(encoded)
	}

	var cd customData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return nil
	}
	return &cd
}

func (cd *customData) userID() string {
	if cd == nil {
		return ""
	}
	if cd.UserID != "" {
		return cd.UserID
	}
	return cd.UserIDAlt
}

func extractEmail(cd *customData, d *EventData) string {
	if cd != nil && cd.Email != "" {
		return cd.Email
	}
	if d.Customer != nil && d.Customer.Email != "" {
		return d.Customer.Email
	}
	if d.CustomerEmail != "" {
		return d.CustomerEmail
	}
	return d.Email
}

func extractCustomerID(d *EventData) string {
	if d.CustomerID != "" {
		return d.CustomerID
	}
	if d.Customer != nil {
		if d.Customer.ID != "" {
			return d.Customer.ID
		}
		return d.Customer.CustomerID
	}
	return ""
}

func extractSubscriptionID(d *EventData) string {
	if d.ID != "" {
		return d.ID
	}
	if d.SubscriptionID != "" {
		return d.SubscriptionID
	}
	if d.Subscription != nil {
		return d.Subscription.ID
	}
	return ""
}

func extractPriceID(d *EventData) string {
	if len(d.Items) > 0 {
		if d.Items[0].PriceID != "" {
			return d.Items[0].PriceID
		}
		if d.Items[0].Price != nil && d.Items[0].Price.ID != "" {
			return d.Items[0].Price.ID
		}
	}
	if d.PriceID != "" {
		return d.PriceID
	}
	if d.Price != nil {
		return d.Price.ID
	}
	return ""
}

// NormalizeStatus lowercases the raw status and applies event-type overrides.
// The overrides win over the raw value; completed transactions count as
// active; unrecognized statuses pass through lowercase so new provider
// statuses are stored rather than dropped.
func NormalizeStatus(eventType, raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))

	switch eventType {
	case "subscription.activated", "transaction.paid":
		return "active"
	case "subscription.canceled":
		return "canceled"
	}

	if normalized == "complete" || normalized == "completed" {
		return "active"
	}
	return normalized
}

func parseOccurredAt(value string) *time.Time {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		t = t.UTC()
		return &t
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t
	}
	return nil
}
