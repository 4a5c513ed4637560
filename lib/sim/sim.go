// Package sim runs a small network of routers in one process over memnet.
package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-i2p/crypto/rand"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-i2p/go-onionpath/lib/config"
	"github.com/go-i2p/go-onionpath/lib/keys"
	"github.com/go-i2p/go-onionpath/lib/path"
	"github.com/go-i2p/go-onionpath/lib/router"
	"github.com/go-i2p/go-onionpath/lib/transport"
	"github.com/go-i2p/go-onionpath/lib/transport/memnet"
	"github.com/go-i2p/go-onionpath/lib/util/time/monotonic"
)

var log = logger.GetGoI2PLogger()

var ErrNotEnoughRouters = errors.New("not enough routers for the requested hop count")

// Options configures a Simulation.
type Options struct {
	Routers int
	Config  config.ConfigDefaults
	// KeyDir is where router keystores are looked up. Keys that do not exist
	// are generated and kept in memory only.
	KeyDir string
	Clock  monotonic.Source
}

// Simulation owns a memnet network and the routers attached to it. Every
// router echoes traffic that reaches it as a path terminus.
type Simulation struct {
	net     *memnet.Network
	routers []*router.Router
}

// New creates opts.Routers routers. NTP is always off inside a simulation.
func New(opts Options) (*Simulation, error) {
	if opts.Routers < 2 {
		return nil, oops.Errorf("need at least 2 routers, got %d", opts.Routers)
	}
	cfg := opts.Config
	cfg.Clock.NTPEnabled = false

	s := &Simulation{net: memnet.NewNetwork()}
	for i := 0; i < opts.Routers; i++ {
		r, err := s.addRouter(i, cfg, opts)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.routers = append(s.routers, r)
	}
	log.WithFields(logger.Fields{
		"at":      "sim.New",
		"routers": len(s.routers),
	}).Info("simulation created")
	return s, nil
}

func (s *Simulation) addRouter(i int, cfg config.ConfigDefaults, opts Options) (*router.Router, error) {
	ks, err := keys.NewRouterKeystore(opts.KeyDir, fmt.Sprintf("sim-%02d", i))
	if err != nil {
		return nil, err
	}
	node, err := s.net.Attach(ks.RouterID())
	if err != nil {
		return nil, err
	}
	r, err := router.New(router.Options{
		Config:     cfg,
		Keys:       ks,
		Transports: []transport.Transport{node},
		Clock:      opts.Clock,
	})
	if err != nil {
		_ = node.Close()
		return nil, err
	}
	r.SetExitHandler(echo)
	return r, nil
}

func echo(ctx *path.PathContext, hop *path.TransitHop, payload []byte) {
	if err := ctx.SendDownstream(hop, payload); err != nil {
		log.WithField("at", "sim.echo").WithError(err).Debug("echo failed")
	}
}

// Start starts every router.
func (s *Simulation) Start() {
	for _, r := range s.routers {
		r.Start()
	}
}

func (s *Simulation) Routers() []*router.Router { return s.routers }

func (s *Simulation) Network() *memnet.Network { return s.net }

// Stats snapshots every router.
func (s *Simulation) Stats() []router.Stats {
	out := make([]router.Stats, len(s.routers))
	for i, r := range s.routers {
		out[i] = r.Stats()
	}
	return out
}

// SelectHops picks n distinct relays other than origin in random order.
func (s *Simulation) SelectHops(origin, n int) ([]path.RouterContact, error) {
	if n < 1 || n > len(s.routers)-1 {
		return nil, oops.Errorf("%d hops from %d routers: %w", n, len(s.routers), ErrNotEnoughRouters)
	}
	idx := make([]int, 0, len(s.routers)-1)
	for i := range s.routers {
		if i != origin {
			idx = append(idx, i)
		}
	}
	for i := len(idx) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		idx[i], idx[j] = idx[j], idx[i]
	}
	hops := make([]path.RouterContact, n)
	for i := range hops {
		hops[i] = s.routers[idx[i]].Contact()
	}
	return hops, nil
}

// BuildPath builds a path from router origin through hops and waits until it
// is established, fails, or ctx is done.
func (s *Simulation) BuildPath(ctx context.Context, origin int, hops []path.RouterContact) (*path.Path, error) {
	r := s.routers[origin]
	result := make(chan error, 1)
	p, err := r.BuildPath(hops, func(p *path.Path, err error) {
		if err != nil {
			result <- err
			return
		}
		p.SetStatusHandler(func(_ *path.Path, st path.PathStatus) {
			switch st {
			case path.Established:
				result <- nil
			case path.TimedOut:
				result <- path.ErrBuildTimeout
			}
		})
	})
	if err != nil {
		return nil, err
	}
	select {
	case err := <-result:
		if err != nil {
			return p, oops.Wrapf(err, "path build failed")
		}
		return p, nil
	case <-ctx.Done():
		return p, ctx.Err()
	}
}

// Echo sends payload along p and waits for the terminus to send it back.
func (s *Simulation) Echo(ctx context.Context, origin int, p *path.Path, payload []byte) ([]byte, error) {
	if len(payload) > path.PayloadSize {
		return nil, oops.Errorf("payload of %d bytes: %w", len(payload), path.ErrBadPayloadSize)
	}
	replies := make(chan []byte, 1)
	p.SetDataHandler(func(_ *path.Path, data []byte) {
		select {
		case replies <- append([]byte(nil), data...):
		default:
		}
	})
	buf := make([]byte, path.PayloadSize)
	copy(buf, payload)
	if err := p.EncryptAndSend(buf, s.routers[origin]); err != nil {
		return nil, err
	}
	select {
	case data := <-replies:
		return data[:len(payload)], nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes every router.
func (s *Simulation) Close() error {
	var first error
	for _, r := range s.routers {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
