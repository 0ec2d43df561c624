package multitoken

import "time"

// IsWithinThresholdPeriod checks if the given time is within the threshold
// counted back from now
func IsWithinThresholdPeriod(t, now time.Time, threshold time.Duration) bool {
	return !t.Before(now.Add(-threshold))
}

// IsOutsideThresholdPeriod is the negation of IsWithinThresholdPeriod
func IsOutsideThresholdPeriod(t, now time.Time, threshold time.Duration) bool {
	return !IsWithinThresholdPeriod(t, now, threshold)
}

// ExpiryCutoff is the created_at at or before which a reset token is purged
func ExpiryCutoff(now time.Time, expiryHours int) time.Time {
	return now.Add(-time.Duration(expiryHours) * time.Hour)
}
