package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLimiterIsolatesKeys(t *testing.T) {
	l := NewPerMinute(1, 2)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
}

func TestKeyedLimiterPrune(t *testing.T) {
	l := NewPerMinute(10, 1)
	l.Allow("a")
	l.idle = -time.Second
	assert.Equal(t, 1, l.Prune())
	assert.True(t, l.Allow("a"))
}
