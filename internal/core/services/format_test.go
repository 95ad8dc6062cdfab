package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompactCount(t *testing.T) {
	assert.Equal(t, "0", CompactCount(0))
	assert.Equal(t, "999", CompactCount(999))
	assert.Equal(t, "1.0K", CompactCount(1000))
	assert.Equal(t, "1.2K", CompactCount(1234))
	assert.Equal(t, "15.7K", CompactCount(15680))
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "just now", RelativeTime(now.Add(-30*time.Second), now))
	assert.Equal(t, "1 minute ago", RelativeTime(now.Add(-90*time.Second), now))
	assert.Equal(t, "45 minutes ago", RelativeTime(now.Add(-45*time.Minute), now))
	assert.Equal(t, "1 hour ago", RelativeTime(now.Add(-1*time.Hour), now))
	assert.Equal(t, "3 hours ago", RelativeTime(now.Add(-3*time.Hour-10*time.Minute), now))
	assert.Equal(t, "2 days ago", RelativeTime(now.Add(-49*time.Hour), now))
}
