package paywall

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEntitled(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"active", true},
		{"trialing", true},
		{"complete", true},
		{"Active", true},
		{" active ", true},
		{"canceled", false},
		{"past_due", false},
		{"paused", false},
		{"", false},
		{"completed", false}, // normalization maps this to active before storage
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEntitled(tt.status))
		})
	}
}
