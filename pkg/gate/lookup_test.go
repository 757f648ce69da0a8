package gate

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therunreport/paywall/pkg/paywall"
	"github.com/therunreport/paywall/storage/memory"
)

func postLookup(t *testing.T, h *Handler, body string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/subscription-lookup", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Lookup(rec, req)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestLookup_FoundWithStatus(t *testing.T) {
	store := memory.New()
	seedSubscription(t, store, "user-1", "canceled")
	users := &fakeUsers{users: map[string]string{"a@example.com": "user-1"}}
	h := newGateHandler(store, users)

	rec, out := postLookup(t, h, `{"email":"a@example.com"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `true`, string(out["found"]))
	assert.JSONEq(t, `"user-1"`, string(out["user_id"]))
	// Raw status, never an entitlement verdict: canceled is reported as-is.
	assert.JSONEq(t, `"canceled"`, string(out["status"]))
}

func TestLookup_FoundWithoutSubscription(t *testing.T) {
	users := &fakeUsers{users: map[string]string{"a@example.com": "user-1"}}
	h := newGateHandler(memory.New(), users)

	rec, out := postLookup(t, h, `{"email":"a@example.com"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `true`, string(out["found"]))
	assert.JSONEq(t, `null`, string(out["status"]))
}

func TestLookup_MissesAreUniform(t *testing.T) {
	// Every miss variant must produce the identical body so the endpoint
	// cannot be used to probe which accounts or backends exist.
	const missBody = `{"found":false}` + "\n"

	tests := []struct {
		name     string
		handler  *Handler
		body     string
		wantCode int
	}{
		{
			"unknown user",
			newGateHandler(memory.New(), &fakeUsers{}),
			`{"email":"nobody@example.com"}`,
			http.StatusOK,
		},
		{
			"identity lookup failure",
			newGateHandler(memory.New(), &fakeUsers{findErr: errors.New("admin api down")}),
			`{"email":"a@example.com"}`,
			http.StatusOK,
		},
		{
			"no store configured",
			newGateHandler(nil, &fakeUsers{}),
			`{"email":"a@example.com"}`,
			http.StatusOK,
		},
		{
			"no users configured",
			newGateHandler(memory.New(), nil),
			`{"email":"a@example.com"}`,
			http.StatusOK,
		},
		{
			"empty email",
			newGateHandler(memory.New(), &fakeUsers{}),
			`{"email":""}`,
			http.StatusOK,
		},
		{
			"malformed json",
			newGateHandler(memory.New(), &fakeUsers{}),
			`{broken`,
			http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/subscription-lookup", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			tt.handler.Lookup(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, missBody, rec.Body.String())
		})
	}
}

func TestLookup_StoreReadFailureStillReportsFound(t *testing.T) {
	users := &fakeUsers{users: map[string]string{"a@example.com": "user-1"}}
	h := NewHandler(Config{Store: brokenStore{}, Users: users, Logger: zerolog.Nop()})

	rec, out := postLookup(t, h, `{"email":"a@example.com"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `true`, string(out["found"]))
	assert.JSONEq(t, `null`, string(out["status"]))
}

func TestLookup_MethodHandling(t *testing.T) {
	h := newGateHandler(memory.New(), &fakeUsers{})

	t.Run("options preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Lookup(rec, httptest.NewRequest(http.MethodOptions, "/subscription-lookup", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("get rejected with uniform miss", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Lookup(rec, httptest.NewRequest(http.MethodGet, "/subscription-lookup", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

		var out lookupNotFound
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.False(t, out.Found)
	})
}

var _ paywall.SubscriptionStore = brokenStore{}
