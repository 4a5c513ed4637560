// Package sntp keeps the router clock's NTP offset current.
//
// A Syncer queries a list of servers, discards invalid answers, and when
// enough servers agree it moves the clock offset to the median of their
// offsets. Disagreeing servers leave the offset untouched.
package sntp

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/beevik/ntp"
	"github.com/go-i2p/crypto/rand"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// NTPClient is the subset of beevik/ntp the syncer uses.
type NTPClient interface {
	QueryWithOptions(host string, options ntp.QueryOptions) (*ntp.Response, error)
}

type DefaultNTPClient struct{}

func (c *DefaultNTPClient) QueryWithOptions(host string, options ntp.QueryOptions) (*ntp.Response, error) {
	return ntp.QueryWithOptions(host, options)
}

// OffsetSetter receives accepted offsets; *monotonic.Clock implements it.
type OffsetSetter interface {
	SetOffset(time.Duration)
}

const (
	defaultTimeout    = 5 * time.Second
	defaultConcurring = 2
	maxVariance       = 10 * time.Second
	maxClockOffset    = 10 * time.Minute
)

// ErrNoConsensus is returned when too few servers gave usable, agreeing answers.
var ErrNoConsensus = oops.New("ntp servers did not agree on an offset")

// Syncer periodically corrects an OffsetSetter from NTP.
type Syncer struct {
	servers    []string
	client     NTPClient
	target     OffsetSetter
	concurring int
	timeout    time.Duration

	mu         sync.Mutex
	lastOffset time.Duration
	lastSync   time.Time
	fails      int
}

// NewSyncer returns a syncer for the given servers.
func NewSyncer(client NTPClient, target OffsetSetter, servers []string) *Syncer {
	if client == nil {
		client = &DefaultNTPClient{}
	}
	concurring := defaultConcurring
	if len(servers) < concurring {
		concurring = len(servers)
	}
	return &Syncer{
		servers:    append([]string(nil), servers...),
		client:     client,
		target:     target,
		concurring: concurring,
		timeout:    defaultTimeout,
	}
}

// SyncOnce queries the servers in random order and applies the median offset
// of the first concurring valid answers.
func (s *Syncer) SyncOnce() (time.Duration, error) {
	if len(s.servers) == 0 {
		return 0, oops.Errorf("no ntp servers configured")
	}
	order := make([]string, len(s.servers))
	copy(order, s.servers)
	for i := len(order) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}

	var offsets []time.Duration
	for _, host := range order {
		resp, err := s.client.QueryWithOptions(host, ntp.QueryOptions{Timeout: s.timeout})
		if err != nil {
			log.WithFields(logger.Fields{
				"at":     "(Syncer) SyncOnce",
				"server": host,
			}).WithError(err).Debug("ntp query failed")
			continue
		}
		if !validResponse(resp) {
			log.WithFields(logger.Fields{
				"at":     "(Syncer) SyncOnce",
				"server": host,
			}).Debug("discarding invalid ntp response")
			continue
		}
		offsets = append(offsets, resp.ClockOffset)
		if len(offsets) >= s.concurring {
			break
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(offsets) < s.concurring || spread(offsets) > maxVariance {
		s.fails++
		return 0, ErrNoConsensus
	}
	offset := median(offsets)
	s.fails = 0
	s.lastOffset = offset
	s.lastSync = time.Now()
	if s.target != nil {
		s.target.SetOffset(offset)
	}
	log.WithFields(logger.Fields{
		"at":     "(Syncer) SyncOnce",
		"offset": offset,
	}).Info("clock offset updated from ntp")
	return offset, nil
}

// Run syncs immediately and then every interval until ctx is done.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	if _, err := s.SyncOnce(); err != nil {
		log.WithError(err).Warn("initial ntp sync failed")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SyncOnce(); err != nil {
				log.WithError(err).Debug("ntp sync failed")
			}
		}
	}
}

// Status returns the last applied offset, when it was applied, and how many
// rounds have failed since.
func (s *Syncer) Status() (offset time.Duration, at time.Time, fails int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOffset, s.lastSync, s.fails
}

func validResponse(resp *ntp.Response) bool {
	if resp == nil || resp.Validate() != nil {
		return false
	}
	if resp.ClockOffset > maxClockOffset || resp.ClockOffset < -maxClockOffset {
		return false
	}
	return true
}

func median(d []time.Duration) time.Duration {
	s := append([]time.Duration(nil), d...)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func spread(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	lo, hi := d[0], d[0]
	for _, v := range d[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi - lo
}
