package path

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-i2p/go-onionpath/lib/common/keys"
	"github.com/go-i2p/go-onionpath/lib/crypto"
	"github.com/go-i2p/go-onionpath/lib/messages"
)

// ExitHandler receives upstream plaintext at the terminus of a path.
type ExitHandler func(ctx *PathContext, hop *TransitHop, payload []byte)

// Config holds the PathContext policy knobs.
type Config struct {
	AllowTransit           bool
	TransitLifetime        time.Duration
	MaxTransitHops         int
	BuildRequestsPerMinute int
	BuildRequestBurst      int
	PathLifetime           time.Duration
	BuildTimeout           time.Duration
}

// DefaultConfig matches the router's configuration defaults.
func DefaultConfig() Config {
	return Config{
		AllowTransit:           true,
		TransitLifetime:        DefaultTransitLifetime,
		MaxTransitHops:         2000,
		BuildRequestsPerMinute: 60,
		BuildRequestBurst:      10,
		PathLifetime:           DefaultPathLifetime,
		BuildTimeout:           DefaultBuildTimeout,
	}
}

// PathContext is the router-wide registry of owned paths and transit hops.
type PathContext struct {
	router Router
	cfg    Config

	allowTransit atomic.Bool
	transit      *syncTransitMap
	owned        *syncOwnedPaths
	limiter      *SourceLimiter

	exitMu sync.RWMutex
	exit   ExitHandler
}

// NewPathContext creates an empty registry for r.
func NewPathContext(r Router, cfg Config) *PathContext {
	if cfg.TransitLifetime <= 0 {
		cfg.TransitLifetime = DefaultTransitLifetime
	}
	if cfg.PathLifetime <= 0 {
		cfg.PathLifetime = DefaultPathLifetime
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = DefaultBuildTimeout
	}
	ctx := &PathContext{
		router:  r,
		cfg:     cfg,
		transit: newSyncTransitMap(),
		owned:   newSyncOwnedPaths(),
		limiter: NewSourceLimiter(cfg.BuildRequestsPerMinute, cfg.BuildRequestBurst),
	}
	ctx.allowTransit.Store(cfg.AllowTransit)
	return ctx
}

// Router returns the router this context belongs to.
func (ctx *PathContext) Router() Router { return ctx.router }

func (ctx *PathContext) AllowTransit() {
	ctx.allowTransit.Store(true)
}

func (ctx *PathContext) RejectTransit() {
	ctx.allowTransit.Store(false)
}

func (ctx *PathContext) AllowingTransit() bool {
	return ctx.allowTransit.Load()
}

// SetExitHandler installs where terminus traffic goes. Without one it is dropped.
func (ctx *PathContext) SetExitHandler(h ExitHandler) {
	ctx.exitMu.Lock()
	ctx.exit = h
	ctx.exitMu.Unlock()
}

// HopIsUs reports whether id is this router.
func (ctx *PathContext) HopIsUs(id keys.RouterID) bool {
	return ctx.router.ID() == id
}

func (ctx *PathContext) HasTransitHop(info TransitHopInfo) bool {
	return ctx.transit.has(info)
}

// PutTransitHop registers hop, replacing any hop with the same info.
func (ctx *PathContext) PutTransitHop(hop *TransitHop) {
	ctx.transit.put(hop)
}

// AddOwnPath registers p under its first hop's path ID.
func (ctx *PathContext) AddOwnPath(p *Path) {
	ctx.owned.add(p)
	log.WithFields(logger.Fields{
		"at":      "(PathContext) AddOwnPath",
		"phase":   "path_build",
		"path_id": p.PathID().String(),
	}).Debug("registered owned path")
}

// GetOwnPath looks up an owned path by its first hop's path ID.
func (ctx *PathContext) GetOwnPath(id keys.PathID) (*Path, bool) {
	return ctx.owned.get(id)
}

func (ctx *PathContext) removeOwnPath(p *Path) {
	ctx.owned.remove(p)
}

// TransitHopCount is the number of registered transit hops.
func (ctx *PathContext) TransitHopCount() int {
	return ctx.transit.len()
}

// OwnPathCount is the number of registered owned paths.
func (ctx *PathContext) OwnPathCount() int {
	return ctx.owned.len()
}

// OwnPaths returns a snapshot of the owned paths.
func (ctx *PathContext) OwnPaths() []*Path {
	return ctx.owned.snapshot()
}

// TransitHops returns a snapshot of the transit hops.
func (ctx *PathContext) TransitHops() []*TransitHop {
	return ctx.transit.snapshot()
}

// BuildPath starts the key-exchange pipeline for a path through hops.
// handler is called on the logic thread when the build attempt ends.
func (ctx *PathContext) BuildPath(hops []RouterContact, handler BuildHandler) (*Path, error) {
	for i, h := range hops {
		if ctx.HopIsUs(h.ID) {
			return nil, oops.Errorf("hop %d: %w", i, ErrHopIsUs)
		}
	}
	p, err := NewPath(hops, ctx.cfg.PathLifetime, ctx.cfg.BuildTimeout)
	if err != nil {
		return nil, err
	}
	kx, err := newKeyExchange(ctx, p, handler)
	if err != nil {
		return nil, err
	}
	p.BuildStarted = ctx.router.Now()
	if err := kx.start(); err != nil {
		return nil, oops.Wrapf(err, "failed to start path build")
	}
	log.WithFields(logger.Fields{
		"at":    "(PathContext) BuildPath",
		"phase": "path_build",
		"hops":  len(hops),
	}).Debug("path build started")
	return p, nil
}

// ExpireStats reports what one ExpirePaths call removed.
type ExpireStats struct {
	TransitHops int
	TimedOut    int
	Expired     int
}

// ExpirePaths drops expired transit hops and owned paths that timed out or
// outlived their lifetime. Transitions and removal happen in the same call,
// so a second call at the same instant removes nothing.
func (ctx *PathContext) ExpirePaths() ExpireStats {
	now := ctx.router.Now()
	var st ExpireStats
	st.TransitHops = ctx.transit.removeExpired(now)

	type note struct {
		p  *Path
		h  StatusHandler
		to PathStatus
	}
	var notes []note
	for _, e := range ctx.owned.removeExpired(now) {
		switch e.to {
		case TimedOut:
			st.TimedOut++
		case Expired:
			st.Expired++
		}
		if e.h != nil {
			notes = append(notes, note{e.p, e.h, e.to})
		}
	}
	for _, n := range notes {
		n.h(n.p, n.to)
	}
	ctx.limiter.Prune(now)

	if st.TransitHops+st.TimedOut+st.Expired > 0 {
		log.WithFields(logger.Fields{
			"at":           "(PathContext) ExpirePaths",
			"transit_hops": st.TransitHops,
			"timed_out":    st.TimedOut,
			"expired":      st.Expired,
		}).Debug("expired paths")
	}
	return st
}

// ForwardLRCM sends the remaining commit frames to nextHop. A false return
// is recoverable: the originator's build times out.
func (ctx *PathContext) ForwardLRCM(nextHop keys.RouterID, frames []crypto.EncryptedFrame) bool {
	data, err := messages.Encode(&messages.RelayCommitMessage{Frames: frames})
	if err != nil {
		log.WithField("at", "(PathContext) ForwardLRCM").WithError(err).Warn("cannot encode relay commit")
		return false
	}
	if err := ctx.router.SendRaw(nextHop, data); err != nil {
		log.WithFields(logger.Fields{
			"at":     "(PathContext) ForwardLRCM",
			"phase":  "path_build",
			"peer":   nextHop.Short(),
			"reason": ErrRouteUnavailable.Error(),
		}).WithError(err).Warn("cannot forward relay commit")
		return false
	}
	return true
}

// syncTransitMap holds transit hops keyed by path ID, with a second index on
// the downstream path ID for upstream traffic lookups.
type syncTransitMap struct {
	mu           sync.RWMutex
	byPathID     map[keys.PathID][]*TransitHop
	byDownstream map[keys.PathID][]*TransitHop
	count        int
}

func newSyncTransitMap() *syncTransitMap {
	return &syncTransitMap{
		byPathID:     make(map[keys.PathID][]*TransitHop),
		byDownstream: make(map[keys.PathID][]*TransitHop),
	}
}

func (m *syncTransitMap) has(info TransitHopInfo) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.byPathID[info.PathID] {
		if h.Info == info {
			return true
		}
	}
	return false
}

func (m *syncTransitMap) put(hop *TransitHop) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hops := m.byPathID[hop.Info.PathID]
	for i, h := range hops {
		if h.Info == hop.Info {
			hops[i] = hop
			m.byDownstream[h.DownstreamPathID] = removeHop(m.byDownstream[h.DownstreamPathID], h)
			if len(m.byDownstream[h.DownstreamPathID]) == 0 {
				delete(m.byDownstream, h.DownstreamPathID)
			}
			m.byDownstream[hop.DownstreamPathID] = append(m.byDownstream[hop.DownstreamPathID], hop)
			return
		}
	}
	m.byPathID[hop.Info.PathID] = append(hops, hop)
	m.byDownstream[hop.DownstreamPathID] = append(m.byDownstream[hop.DownstreamPathID], hop)
	m.count++
}

// byUpstream finds the hop tagged id whose upstream neighbour is from.
func (m *syncTransitMap) byUpstream(id keys.PathID, from keys.RouterID) *TransitHop {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.byPathID[id] {
		if h.Info.Upstream == from {
			return h
		}
	}
	return nil
}

// byDownstreamPeer finds the hop whose downstream neighbour is from and tags
// its messages to us with id.
func (m *syncTransitMap) byDownstreamPeer(id keys.PathID, from keys.RouterID) *TransitHop {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.byDownstream[id] {
		if h.Info.Downstream == from {
			return h
		}
	}
	return nil
}

func (m *syncTransitMap) removeExpired(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, hops := range m.byPathID {
		kept := hops[:0]
		for _, h := range hops {
			if h.Expired(now) {
				removed++
				m.byDownstream[h.DownstreamPathID] = removeHop(m.byDownstream[h.DownstreamPathID], h)
				if len(m.byDownstream[h.DownstreamPathID]) == 0 {
					delete(m.byDownstream, h.DownstreamPathID)
				}
				continue
			}
			kept = append(kept, h)
		}
		if len(kept) == 0 {
			delete(m.byPathID, id)
		} else {
			for i := len(kept); i < len(hops); i++ {
				hops[i] = nil
			}
			m.byPathID[id] = kept
		}
	}
	m.count -= removed
	return removed
}

func (m *syncTransitMap) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}

func (m *syncTransitMap) snapshot() []*TransitHop {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*TransitHop, 0, m.count)
	for _, hops := range m.byPathID {
		out = append(out, hops...)
	}
	return out
}

func removeHop(hops []*TransitHop, target *TransitHop) []*TransitHop {
	for i, h := range hops {
		if h == target {
			return append(hops[:i], hops[i+1:]...)
		}
	}
	return hops
}

// syncOwnedPaths holds the paths this router originated.
type syncOwnedPaths struct {
	mu    sync.Mutex
	paths map[keys.PathID]*Path
}

func newSyncOwnedPaths() *syncOwnedPaths {
	return &syncOwnedPaths{paths: make(map[keys.PathID]*Path)}
}

func (o *syncOwnedPaths) add(p *Path) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paths[p.PathID()] = p
}

func (o *syncOwnedPaths) get(id keys.PathID) (*Path, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.paths[id]
	return p, ok
}

func (o *syncOwnedPaths) remove(p *Path) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cur, ok := o.paths[p.PathID()]; ok && cur == p {
		delete(o.paths, p.PathID())
	}
}

func (o *syncOwnedPaths) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.paths)
}

func (o *syncOwnedPaths) snapshot() []*Path {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*Path, 0, len(o.paths))
	for _, p := range o.paths {
		out = append(out, p)
	}
	return out
}

type expiredPath struct {
	p  *Path
	h  StatusHandler
	to PathStatus
}

// removeExpired applies time-based transitions and drops terminal paths.
// Handlers are returned rather than called so they run without the lock.
func (o *syncOwnedPaths) removeExpired(now time.Time) []expiredPath {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []expiredPath
	for id, p := range o.paths {
		terminal, h, to := p.tick(now)
		if !terminal {
			continue
		}
		delete(o.paths, id)
		out = append(out, expiredPath{p: p, h: h, to: to})
	}
	return out
}

// BuildRequestStats reports relay-commit admission counters.
func (ctx *PathContext) BuildRequestStats() (requests, rejections uint64) {
	requests, rejections, _ = ctx.limiter.Stats()
	return requests, rejections
}
