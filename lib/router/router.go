package router

import (
	"context"
	"sync"
	"time"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	ckeys "github.com/go-i2p/go-onionpath/lib/common/keys"
	"github.com/go-i2p/go-onionpath/lib/config"
	"github.com/go-i2p/go-onionpath/lib/crypto"
	"github.com/go-i2p/go-onionpath/lib/keys"
	"github.com/go-i2p/go-onionpath/lib/logic"
	"github.com/go-i2p/go-onionpath/lib/path"
	"github.com/go-i2p/go-onionpath/lib/transport"
	"github.com/go-i2p/go-onionpath/lib/util/threadpool"
	"github.com/go-i2p/go-onionpath/lib/util/time/monotonic"
	"github.com/go-i2p/go-onionpath/lib/util/time/sntp"
)

var log = logger.GetGoI2PLogger()

var _ path.Router = (*Router)(nil)

// Options configures a Router. Only Transports is required.
type Options struct {
	Config config.ConfigDefaults
	// Keys defaults to the "router" keystore in Config.Router.WorkingDir,
	// written to disk on first use.
	Keys *keys.RouterKeystore
	// Transports are tried in order when sending.
	Transports []transport.Transport
	// Clock defaults to a monotonic.Clock. NTP sync only runs when the clock
	// accepts an offset.
	Clock monotonic.Source
	// NTPClient overrides the beevik/ntp client used by the clock syncer.
	NTPClient sntp.NTPClient
	// Crypto defaults to X25519Crypto.
	Crypto crypto.Crypto
}

// Router is one onion routing node.
type Router struct {
	cfg       config.ConfigDefaults
	keystore  *keys.RouterKeystore
	crypto    crypto.Crypto
	clock     monotonic.Source
	syncer    *sntp.Syncer
	transport *transport.Muxer
	worker    *threadpool.Pool
	logic     *logic.Logic
	paths     *path.PathContext

	counters counters

	// close channel
	closeChnl chan bool
	done      chan struct{}
	// running flag and mutex for thread-safe access
	running bool
	started bool
	stopped bool
	runMux  sync.RWMutex
	cancel  context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// New creates a router from opts. It does not start the tick loop or accept
// inbound messages until Start is called.
func New(opts Options) (*Router, error) {
	cfg := opts.Config
	if err := config.Validate(cfg); err != nil {
		return nil, oops.Wrapf(err, "invalid router configuration")
	}
	if len(opts.Transports) == 0 {
		return nil, transport.ErrNoTransportAvailable
	}

	ks := opts.Keys
	if ks == nil {
		var err error
		if ks, err = loadRouterKeys(cfg.Router.WorkingDir); err != nil {
			return nil, err
		}
	}

	r := &Router{
		cfg:       cfg,
		keystore:  ks,
		crypto:    opts.Crypto,
		clock:     opts.Clock,
		transport: transport.Mux(opts.Transports...),
		worker:    threadpool.New("path-workers", cfg.Router.Workers),
		logic:     logic.New(),
		closeChnl: make(chan bool),
		done:      make(chan struct{}),
	}
	if r.crypto == nil {
		r.crypto = crypto.NewX25519Crypto()
	}
	if r.clock == nil {
		r.clock = monotonic.NewClock()
	}
	if setter, ok := r.clock.(sntp.OffsetSetter); ok && cfg.Clock.NTPEnabled {
		r.syncer = sntp.NewSyncer(opts.NTPClient, setter, cfg.Clock.NTPServers)
	}
	r.paths = path.NewPathContext(r, pathConfig(cfg))

	log.WithFields(logger.Fields{
		"at":        "router.New",
		"router_id": r.ID().Short(),
		"workers":   cfg.Router.Workers,
		"transit":   cfg.Transit.Allow,
	}).Debug("router created")
	return r, nil
}

func loadRouterKeys(dir string) (*keys.RouterKeystore, error) {
	ks, err := keys.NewRouterKeystore(dir, "router")
	if err != nil {
		return nil, oops.Wrapf(err, "failed to load router keys")
	}
	if err := ks.StoreKeys(); err != nil {
		return nil, oops.Wrapf(err, "failed to store router keys")
	}
	return ks, nil
}

func pathConfig(cfg config.ConfigDefaults) path.Config {
	return path.Config{
		AllowTransit:           cfg.Transit.Allow,
		TransitLifetime:        cfg.Transit.Lifetime,
		MaxTransitHops:         cfg.Transit.MaxHops,
		BuildRequestsPerMinute: cfg.Transit.MaxBuildRequestsPerMinute,
		BuildRequestBurst:      cfg.Transit.BuildRequestBurstSize,
		PathLifetime:           cfg.Path.Lifetime,
		BuildTimeout:           cfg.Path.BuildTimeout,
	}
}

func (r *Router) ID() ckeys.RouterID               { return r.keystore.RouterID() }
func (r *Router) EncryptionKeypair() ckeys.Keypair { return r.keystore.EncryptionKeypair() }
func (r *Router) Crypto() crypto.Crypto            { return r.crypto }
func (r *Router) Worker() path.Worker              { return r.worker }
func (r *Router) Logic() path.Logic                { return r.logic }
func (r *Router) Now() time.Time                   { return r.clock.Now() }
func (r *Router) Paths() *path.PathContext         { return r.paths }
func (r *Router) Config() config.ConfigDefaults    { return r.cfg }
func (r *Router) Keystore() *keys.RouterKeystore   { return r.keystore }

// Contact is what other routers need to put this router in a path.
func (r *Router) Contact() path.RouterContact {
	return path.NewRouterContact(r.keystore.Identity(), r.keystore.EncryptionKeypair().Public)
}

// SendRaw sends a link message through the first transport that has a route.
func (r *Router) SendRaw(to ckeys.RouterID, data []byte) error {
	if err := r.transport.SendRaw(to, data); err != nil {
		r.counters.sendFailures.Add(1)
		return err
	}
	r.counters.sent.Add(1)
	return nil
}

// BuildPath starts building a path through hops. handler runs on the logic
// thread once the build completes or fails.
func (r *Router) BuildPath(hops []path.RouterContact, handler path.BuildHandler) (*path.Path, error) {
	p, err := r.paths.BuildPath(hops, handler)
	if err != nil {
		return nil, err
	}
	r.counters.builds.Add(1)
	return p, nil
}

// SetExitHandler sets where plaintext arriving at this router as a path
// terminus is delivered.
func (r *Router) SetExitHandler(h path.ExitHandler) {
	r.paths.SetExitHandler(h)
}

// Tick expires transit hops and owned paths now.
func (r *Router) Tick() path.ExpireStats {
	st := r.paths.ExpirePaths()
	r.counters.addExpired(st)
	return st
}

// Start installs the inbound handler and starts the tick loop.
func (r *Router) Start() {
	r.runMux.Lock()
	defer r.runMux.Unlock()

	if r.running || r.stopped {
		log.WithFields(logger.Fields{
			"at":     "(Router) Start",
			"reason": "router is already running or was stopped",
		}).Error("Error Starting router")
		return
	}
	log.WithField("router_id", r.ID().Short()).Info("Starting router")
	r.running = true
	r.started = true
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.transport.SetHandler(r.handleInbound)
	go r.mainloop(ctx)
}

// Stop signals the tick loop to exit. It does not release resources; see Close.
func (r *Router) Stop() {
	log.Debug("Stopping router")
	r.runMux.Lock()
	defer r.runMux.Unlock()

	if r.stopped {
		log.Debug("Router already stopped")
		return
	}
	r.running = false
	r.stopped = true
	if r.cancel != nil {
		r.cancel()
	}
	close(r.closeChnl)
}

// Wait blocks until the router is stopped and its tick loop has exited.
func (r *Router) Wait() {
	log.Debug("Waiting for router to stop")
	<-r.closeChnl
	r.runMux.RLock()
	started := r.started
	r.runMux.RUnlock()
	if started {
		<-r.done
	}
	log.Debug("Router has stopped")
}

// Close stops the router and releases its transport and threads. Jobs
// already queued still run.
func (r *Router) Close() error {
	r.closeOnce.Do(func() {
		r.Stop()
		r.Wait()
		var errs []error
		if err := r.transport.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := r.worker.Stop(); err != nil {
			errs = append(errs, err)
		}
		if err := r.logic.Stop(); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			r.closeErr = oops.Wrapf(errs[0], "failed to close router cleanly (%d errors)", len(errs))
		}
		log.WithField("router_id", r.ID().Short()).Info("router closed")
	})
	return r.closeErr
}

// Running reports whether the tick loop is active.
func (r *Router) Running() bool {
	r.runMux.RLock()
	defer r.runMux.RUnlock()
	return r.running
}

func (r *Router) mainloop(ctx context.Context) {
	defer close(r.done)
	if r.syncer != nil {
		go r.syncer.Run(ctx, r.cfg.Clock.SyncInterval)
	}
	ticker := time.NewTicker(r.cfg.Router.TickInterval)
	defer ticker.Stop()

	log.WithFields(logger.Fields{
		"at":            "(Router) mainloop",
		"tick_interval": r.cfg.Router.TickInterval,
	}).Debug("Router mainloop running")
	for {
		select {
		case <-r.closeChnl:
			log.Debug("Router received close signal in mainloop")
			return
		case <-ticker.C:
			if err := r.logic.Queue(func() { r.Tick() }); err != nil {
				log.WithField("at", "(Router) mainloop").WithError(err).Warn("cannot queue tick")
			}
		}
	}
}
