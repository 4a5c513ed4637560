package path

import (
	"sync"
	"time"

	"github.com/go-i2p/logger"
	"golang.org/x/time/rate"

	"github.com/go-i2p/go-onionpath/lib/common/keys"
)

// SourceLimiter rate limits relay-commit messages per previous hop with a
// token bucket. Sources that keep hitting the limit are banned for a while.
type SourceLimiter struct {
	mu      sync.Mutex
	sources map[keys.RouterID]*sourceState

	limit       rate.Limit
	burst       int
	banDuration time.Duration
	idleAfter   time.Duration

	totalRequests   uint64
	totalRejections uint64
}

type sourceState struct {
	limiter     *rate.Limiter
	lastSeen    time.Time
	rejectCount uint64
	bannedUntil time.Time
}

const (
	maxRejectsBeforeBan = 10
	defaultBanDuration  = 5 * time.Minute
)

// NewSourceLimiter allows perMinute requests per source with the given burst.
func NewSourceLimiter(perMinute, burst int) *SourceLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &SourceLimiter{
		sources:     make(map[keys.RouterID]*sourceState),
		limit:       rate.Every(time.Minute / time.Duration(perMinute)),
		burst:       burst,
		banDuration: defaultBanDuration,
		idleAfter:   10 * time.Minute,
	}
}

// Allow consumes one token for source at now.
func (sl *SourceLimiter) Allow(source keys.RouterID, now time.Time) (bool, string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.totalRequests++

	state, ok := sl.sources[source]
	if !ok {
		state = &sourceState{limiter: rate.NewLimiter(sl.limit, sl.burst)}
		sl.sources[source] = state
	}
	state.lastSeen = now

	if now.Before(state.bannedUntil) {
		sl.totalRejections++
		return false, "source_banned"
	}
	if state.limiter.AllowN(now, 1) {
		return true, ""
	}

	state.rejectCount++
	sl.totalRejections++
	if state.rejectCount > maxRejectsBeforeBan {
		state.bannedUntil = now.Add(sl.banDuration)
		state.rejectCount = 0
		log.WithFields(logger.Fields{
			"at":           "(SourceLimiter) Allow",
			"phase":        "path_build",
			"reason":       "source_auto_banned",
			"source":       source.Short(),
			"ban_duration": sl.banDuration,
		}).Warn("banning source for excessive relay commits")
		return false, "source_auto_banned"
	}
	return false, "rate_limit_exceeded"
}

// Prune forgets sources idle since before now minus the idle window.
func (sl *SourceLimiter) Prune(now time.Time) int {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	removed := 0
	for id, state := range sl.sources {
		if now.Before(state.bannedUntil) {
			continue
		}
		if now.Sub(state.lastSeen) >= sl.idleAfter {
			delete(sl.sources, id)
			removed++
		}
	}
	return removed
}

// Stats returns counters since creation and the number of tracked sources.
func (sl *SourceLimiter) Stats() (requests, rejections uint64, tracked int) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.totalRequests, sl.totalRejections, len(sl.sources)
}
