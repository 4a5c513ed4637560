package sntp

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/beevik/ntp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-i2p/go-onionpath/lib/util/time/monotonic"
)

type fakeNTPClient struct {
	mu      sync.Mutex
	offsets map[string]time.Duration
	fail    map[string]bool
	queried []string
}

func (f *fakeNTPClient) QueryWithOptions(host string, _ ntp.QueryOptions) (*ntp.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queried = append(f.queried, host)
	if f.fail[host] {
		return nil, errors.New("timeout")
	}
	now := time.Now()
	return &ntp.Response{
		Time:          now,
		ReferenceTime: now,
		Stratum:       2,
		ClockOffset:   f.offsets[host],
	}, nil
}

func TestSyncOnceAppliesMedian(t *testing.T) {
	client := &fakeNTPClient{offsets: map[string]time.Duration{
		"a": 2 * time.Second,
		"b": 4 * time.Second,
	}}
	clock := monotonic.NewClock()
	s := NewSyncer(client, clock, []string{"a", "b"})

	offset, err := s.SyncOnce()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, offset)
	assert.Equal(t, 3*time.Second, clock.Offset())

	last, at, fails := s.Status()
	assert.Equal(t, 3*time.Second, last)
	assert.False(t, at.IsZero())
	assert.Equal(t, 0, fails)
}

func TestSyncOnceSkipsFailingServers(t *testing.T) {
	client := &fakeNTPClient{
		offsets: map[string]time.Duration{"a": time.Second, "b": time.Second, "c": time.Second},
		fail:    map[string]bool{"b": true},
	}
	clock := monotonic.NewClock()
	s := NewSyncer(client, clock, []string{"a", "b", "c"})
	offset, err := s.SyncOnce()
	require.NoError(t, err)
	assert.Equal(t, time.Second, offset)
}

func TestSyncOnceNoConsensus(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeNTPClient
	}{
		{"servers disagree", &fakeNTPClient{offsets: map[string]time.Duration{"a": 0, "b": time.Minute}}},
		{"all fail", &fakeNTPClient{fail: map[string]bool{"a": true, "b": true}}},
		{"offset out of range", &fakeNTPClient{offsets: map[string]time.Duration{"a": time.Hour, "b": time.Hour}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := monotonic.NewClock()
			s := NewSyncer(tt.client, clock, []string{"a", "b"})
			_, err := s.SyncOnce()
			assert.ErrorIs(t, err, ErrNoConsensus)
			assert.Equal(t, time.Duration(0), clock.Offset())
			_, _, fails := s.Status()
			assert.Equal(t, 1, fails)
		})
	}
}

func TestSyncOnceNoServers(t *testing.T) {
	s := NewSyncer(&fakeNTPClient{}, nil, nil)
	_, err := s.SyncOnce()
	assert.Error(t, err)
}

func TestMedianAndSpread(t *testing.T) {
	assert.Equal(t, 2*time.Second, median([]time.Duration{3 * time.Second, time.Second, 2 * time.Second}))
	assert.Equal(t, 2*time.Second, spread([]time.Duration{3 * time.Second, time.Second}))
	assert.Equal(t, time.Duration(0), spread(nil))
}
