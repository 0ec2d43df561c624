package multitoken_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	multitoken "github.com/goliatone/go-multitoken"
)

func TestIsWithinThresholdPeriod(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		inputTime time.Time
		threshold time.Duration
		expected  bool
	}{
		{
			name:      "Within 1 hour threshold",
			inputTime: now.Add(-30 * time.Minute),
			threshold: time.Hour,
			expected:  true,
		},
		{
			name:      "Outside 1 hour threshold",
			inputTime: now.Add(-90 * time.Minute),
			threshold: time.Hour,
			expected:  false,
		},
		{
			name:      "At exact threshold",
			inputTime: now.Add(-1 * time.Hour),
			threshold: time.Hour,
			expected:  true,
		},
		{
			name:      "One nanosecond past threshold",
			inputTime: now.Add(-1*time.Hour - time.Nanosecond),
			threshold: time.Hour,
			expected:  false,
		},
		{
			name:      "Future time",
			inputTime: now.Add(1 * time.Hour),
			threshold: 2 * time.Hour,
			expected:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, multitoken.IsWithinThresholdPeriod(tt.inputTime, now, tt.threshold))
			assert.Equal(t, !tt.expected, multitoken.IsOutsideThresholdPeriod(tt.inputTime, now, tt.threshold))
		})
	}
}

func TestResetTokenExpiry(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	token := &multitoken.ResetToken{CreatedAt: created}

	assert.Equal(t, created.Add(24*time.Hour), token.ExpiresAt(24))
	assert.False(t, token.IsExpired(created.Add(24*time.Hour), 24))
	assert.True(t, token.IsExpired(created.Add(24*time.Hour+time.Second), 24))
	assert.Equal(t, created, multitoken.ExpiryCutoff(created.Add(24*time.Hour), 24))
}
