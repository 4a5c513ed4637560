package monotonic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockOffset(t *testing.T) {
	c := NewClock()
	assert.Equal(t, time.Duration(0), c.Offset())

	before := time.Now()
	c.SetOffset(time.Hour)
	assert.Equal(t, time.Hour, c.Offset())
	assert.True(t, c.Now().After(before.Add(59*time.Minute)))
}

func TestManualClock(t *testing.T) {
	start := time.Unix(1000, 0)
	m := NewManualClock(start)
	assert.Equal(t, start, m.Now())
	m.Advance(time.Second)
	assert.Equal(t, start.Add(time.Second), m.Now())
	m.Set(start)
	assert.Equal(t, start, m.Now())
}

func TestExpiredAtBoundary(t *testing.T) {
	start := time.Unix(1000, 0)
	lifetime := 10 * time.Minute

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"at start", start, false},
		{"one nanosecond before", start.Add(lifetime - time.Nanosecond), false},
		{"exactly at lifetime", start.Add(lifetime), true},
		{"well past", start.Add(time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpiredAt(start, lifetime, tt.now))
		})
	}
}

func TestRemaining(t *testing.T) {
	start := time.Unix(1000, 0)
	assert.Equal(t, 5*time.Second, Remaining(start, 10*time.Second, start.Add(5*time.Second)))
	assert.Equal(t, time.Duration(0), Remaining(start, 10*time.Second, start.Add(time.Minute)))
}
