package router

import (
	"sync"
	"sync/atomic"
	"time"

	ckeys "github.com/go-i2p/go-onionpath/lib/common/keys"
	"github.com/go-i2p/go-onionpath/lib/path"
)

type counters struct {
	sent         atomic.Uint64
	sendFailures atomic.Uint64
	received     atomic.Uint64
	malformed    atomic.Uint64
	unhandled    atomic.Uint64
	builds       atomic.Uint64

	mu      sync.Mutex
	expired path.ExpireStats
}

func (c *counters) addExpired(st path.ExpireStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired.TransitHops += st.TransitHops
	c.expired.TimedOut += st.TimedOut
	c.expired.Expired += st.Expired
}

// Stats is a point-in-time view of a router.
type Stats struct {
	ID      ckeys.RouterID
	Running bool
	Now     time.Time

	Paths       map[path.PathStatus]int
	TransitHops int
	// Expired accumulates every Tick since the router was created.
	Expired path.ExpireStats

	BuildsStarted   uint64
	BuildRequests   uint64
	BuildRejections uint64

	Sent         uint64
	SendFailures uint64
	Received     uint64
	Malformed    uint64
	Unhandled    uint64

	LogicBacklog  int
	WorkerPending int

	ClockOffset   time.Duration
	ClockSyncedAt time.Time
}

// Stats takes a snapshot of the router's registries and counters.
func (r *Router) Stats() Stats {
	st := Stats{
		ID:            r.ID(),
		Running:       r.Running(),
		Now:           r.Now(),
		Paths:         make(map[path.PathStatus]int),
		TransitHops:   r.paths.TransitHopCount(),
		BuildsStarted: r.counters.builds.Load(),
		Sent:          r.counters.sent.Load(),
		SendFailures:  r.counters.sendFailures.Load(),
		Received:      r.counters.received.Load(),
		Malformed:     r.counters.malformed.Load(),
		Unhandled:     r.counters.unhandled.Load(),
		LogicBacklog:  r.logic.Backlog(),
		WorkerPending: r.worker.Pending(),
	}
	for _, p := range r.paths.OwnPaths() {
		st.Paths[p.Status()]++
	}
	st.BuildRequests, st.BuildRejections = r.paths.BuildRequestStats()
	r.counters.mu.Lock()
	st.Expired = r.counters.expired
	r.counters.mu.Unlock()
	if r.syncer != nil {
		st.ClockOffset, st.ClockSyncedAt, _ = r.syncer.Status()
	}
	return st
}
