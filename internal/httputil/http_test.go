package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBodyStrict(t *testing.T) {
	t.Run("reads body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("hello"))
		body, err := ReadBodyStrict(httptest.NewRecorder(), req, MaxBodySize)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(body))
	})

	t.Run("rejects empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		_, err := ReadBodyStrict(httptest.NewRecorder(), req, MaxBodySize)
		assert.Error(t, err)
	})

	t.Run("rejects oversized body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 100)))
		_, err := ReadBodyStrict(httptest.NewRecorder(), req, 10)
		assert.ErrorIs(t, err, ErrPayloadTooLarge)
	})

	t.Run("accepts body at the limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 10)))
		body, err := ReadBodyStrict(httptest.NewRecorder(), req, 10)
		require.NoError(t, err)
		assert.Len(t, body, 10)
	})
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteJSON(rec, http.StatusTeapot, map[string]bool{"ok": true})

	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		remoteAddr string
		want       string
	}{
		{"no proxy header", "", "192.0.2.1:1234", "192.0.2.1:1234"},
		{"single forwarded ip", "203.0.113.7", "192.0.2.1:1234", "203.0.113.7"},
		{"first of chain wins", "203.0.113.7, 10.0.0.1", "192.0.2.1:1234", "203.0.113.7"},
		{"spaces trimmed", "  203.0.113.7 , 10.0.0.1", "192.0.2.1:1234", "203.0.113.7"},
		{"empty header falls back", "  ,10.0.0.1", "192.0.2.1:1234", "192.0.2.1:1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
