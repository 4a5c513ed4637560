package router

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ckeys "github.com/go-i2p/go-onionpath/lib/common/keys"
	"github.com/go-i2p/go-onionpath/lib/config"
	"github.com/go-i2p/go-onionpath/lib/crypto"
	"github.com/go-i2p/go-onionpath/lib/keys"
	"github.com/go-i2p/go-onionpath/lib/path"
	"github.com/go-i2p/go-onionpath/lib/transport"
	"github.com/go-i2p/go-onionpath/lib/transport/memnet"
	"github.com/go-i2p/go-onionpath/lib/util"
	"github.com/go-i2p/go-onionpath/lib/util/time/monotonic"
)

const waitFor = 5 * time.Second

func testConfig(t *testing.T) config.ConfigDefaults {
	cfg := config.Defaults()
	cfg.Router.WorkingDir = t.TempDir()
	// Tests drive Tick directly; the loop itself is covered separately.
	cfg.Router.TickInterval = time.Hour
	cfg.Clock.NTPEnabled = false
	return cfg
}

type testNetwork struct {
	net   *memnet.Network
	clock *monotonic.ManualClock
}

func newTestNetwork() *testNetwork {
	return &testNetwork{
		net:   memnet.NewNetwork(),
		clock: monotonic.NewManualClock(time.Unix(1_700_000_000, 0)),
	}
}

func (n *testNetwork) router(t *testing.T, name string) *Router {
	t.Helper()
	return n.routerWith(t, name, testConfig(t))
}

func (n *testNetwork) routerWith(t *testing.T, name string, cfg config.ConfigDefaults) *Router {
	t.Helper()
	ks, err := keys.NewRouterKeystore(t.TempDir(), name)
	require.NoError(t, err)
	node, err := n.net.Attach(ks.RouterID())
	require.NoError(t, err)
	r, err := New(Options{
		Config:     cfg,
		Keys:       ks,
		Transports: []transport.Transport{node},
		Clock:      n.clock,
	})
	require.NoError(t, err)
	r.Start()
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func build(t *testing.T, origin *Router, hops ...*Router) (*path.Path, error) {
	t.Helper()
	contacts := make([]path.RouterContact, len(hops))
	for i, h := range hops {
		contacts[i] = h.Contact()
	}
	done := make(chan error, 1)
	p, err := origin.BuildPath(contacts, func(_ *path.Path, err error) { done <- err })
	require.NoError(t, err)
	select {
	case err := <-done:
		return p, err
	case <-time.After(waitFor):
		t.Fatal("build handler not called")
		return nil, nil
	}
}

func TestThreeHopPathOverMemnet(t *testing.T) {
	n := newTestNetwork()
	origin := n.router(t, "origin")
	a, b, c := n.router(t, "a"), n.router(t, "b"), n.router(t, "c")

	c.SetExitHandler(func(ctx *path.PathContext, hop *path.TransitHop, payload []byte) {
		reply := bytes.ToUpper(payload)
		assert.NoError(t, ctx.SendDownstream(hop, reply))
	})

	p, err := build(t, origin, a, b, c)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return p.Status() == path.Established }, waitFor, 5*time.Millisecond)

	for _, relay := range []*Router{a, b, c} {
		assert.Equal(t, 1, relay.Paths().TransitHopCount())
	}
	got, ok := origin.Paths().GetOwnPath(p.PathID())
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.Equal(t, c.ID(), p.Terminus())

	received := make(chan []byte, 1)
	p.SetDataHandler(func(_ *path.Path, data []byte) {
		received <- append([]byte(nil), data...)
	})
	msg := make([]byte, path.PayloadSize)
	copy(msg, "hello through three hops")
	require.NoError(t, p.EncryptAndSend(append([]byte(nil), msg...), origin))

	select {
	case data := <-received:
		assert.Equal(t, bytes.ToUpper(msg), data)
	case <-time.After(waitFor):
		t.Fatal("no reply from the terminus")
	}

	st := origin.Stats()
	assert.Equal(t, origin.ID(), st.ID)
	assert.True(t, st.Running)
	assert.Equal(t, 1, st.Paths[path.Established])
	assert.Equal(t, uint64(1), st.BuildsStarted)
	assert.Zero(t, st.Malformed)
	assert.Equal(t, uint64(1), c.Stats().BuildRequests)
}

func TestBuildTimesOutWhenRelayRefusesTransit(t *testing.T) {
	n := newTestNetwork()
	origin := n.router(t, "origin")
	a, b := n.router(t, "a"), n.router(t, "b")
	b.Paths().RejectTransit()

	var statuses []path.PathStatus
	statusCh := make(chan path.PathStatus, 4)
	p, err := build(t, origin, a, b)
	require.NoError(t, err)
	p.SetStatusHandler(func(_ *path.Path, s path.PathStatus) { statusCh <- s })

	require.Eventually(t, func() bool { return a.Paths().TransitHopCount() == 1 }, waitFor, 5*time.Millisecond)
	require.Eventually(t, func() bool { return b.Stats().Unhandled == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, 0, b.Paths().TransitHopCount())
	assert.Equal(t, path.Building, p.Status())

	n.clock.Advance(testConfig(t).Path.BuildTimeout)
	st := origin.Tick()
	assert.Equal(t, 1, st.TimedOut)
	assert.Equal(t, path.TimedOut, p.Status())
	assert.Equal(t, 0, origin.Paths().OwnPathCount())

	select {
	case s := <-statusCh:
		statuses = append(statuses, s)
	case <-time.After(waitFor):
		t.Fatal("status handler not called")
	}
	assert.Equal(t, []path.PathStatus{path.TimedOut}, statuses)
	assert.Equal(t, 1, origin.Stats().Expired.TimedOut)
}

func TestBuildFailsWhenFirstHopUnreachable(t *testing.T) {
	n := newTestNetwork()
	origin := n.router(t, "origin")
	a := n.router(t, "a")
	n.net.Cut(origin.ID(), a.ID())

	p, err := build(t, origin, a)
	assert.ErrorIs(t, err, path.ErrRouteUnavailable)
	assert.Equal(t, path.Building, p.Status())
	assert.Equal(t, uint64(1), origin.Stats().SendFailures)
}

func TestTransitHopsExpireOnTick(t *testing.T) {
	n := newTestNetwork()
	origin := n.router(t, "origin")
	a := n.router(t, "a")

	p, err := build(t, origin, a)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return p.Status() == path.Established }, waitFor, 5*time.Millisecond)
	require.Equal(t, 1, a.Paths().TransitHopCount())

	n.clock.Advance(testConfig(t).Transit.Lifetime)
	assert.Equal(t, 1, a.Tick().TransitHops)
	assert.Equal(t, 0, a.Paths().TransitHopCount())
	assert.Equal(t, 1, origin.Tick().Expired)
	assert.Equal(t, path.Expired, p.Status())
}

func TestMalformedInboundIsCounted(t *testing.T) {
	n := newTestNetwork()
	r := n.router(t, "r")
	rogue, err := n.net.Attach(ckeys.RouterIDFromIdentity([]byte("rogue")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rogue.Close() })

	require.NoError(t, rogue.SendRaw(r.ID(), []byte{0xFF, 0x00}))
	require.Eventually(t, func() bool { return r.Stats().Malformed == 1 }, waitFor, 5*time.Millisecond)
	assert.Zero(t, r.Stats().Received)
}

func TestNewValidation(t *testing.T) {
	t.Run("no transports", func(t *testing.T) {
		_, err := New(Options{Config: testConfig(t)})
		assert.ErrorIs(t, err, transport.ErrNoTransportAvailable)
	})
	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Router.Workers = 0
		node, err := memnet.NewNetwork().Attach(ckeys.RouterIDFromIdentity([]byte("x")))
		require.NoError(t, err)
		_, err = New(Options{Config: cfg, Transports: []transport.Transport{node}})
		assert.Error(t, err)
	})
}

func TestDefaultKeystoreIsPersisted(t *testing.T) {
	cfg := testConfig(t)
	node, err := memnet.NewNetwork().Attach(ckeys.RouterIDFromIdentity([]byte("x")))
	require.NoError(t, err)
	r, err := New(Options{Config: cfg, Transports: []transport.Transport{node}})
	require.NoError(t, err)
	defer r.Close()

	assert.True(t, util.CheckFileExists(filepath.Join(cfg.Router.WorkingDir, "router.key")))
	reloaded, err := keys.NewRouterKeystore(cfg.Router.WorkingDir, "router")
	require.NoError(t, err)
	assert.Equal(t, r.ID(), reloaded.RouterID())
}

func TestLifecycle(t *testing.T) {
	n := newTestNetwork()
	ks, err := keys.NewRouterKeystore(t.TempDir(), "life")
	require.NoError(t, err)
	node, err := n.net.Attach(ks.RouterID())
	require.NoError(t, err)
	r, err := New(Options{Config: testConfig(t), Keys: ks, Transports: []transport.Transport{node}, Clock: n.clock})
	require.NoError(t, err)

	assert.False(t, r.Running())
	r.Start()
	assert.True(t, r.Running())
	r.Start()
	assert.True(t, r.Running())

	r.Stop()
	r.Wait()
	assert.False(t, r.Running())
	r.Stop()

	// A stopped router does not restart.
	r.Start()
	assert.False(t, r.Running())

	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	_, err = r.BuildPath([]path.RouterContact{path.NewRouterContact(kp.Public[:], kp.Public)}, nil)
	assert.Error(t, err)
}

func TestCloseWithoutStart(t *testing.T) {
	n := newTestNetwork()
	ks, err := keys.NewRouterKeystore(t.TempDir(), "idle")
	require.NoError(t, err)
	node, err := n.net.Attach(ks.RouterID())
	require.NoError(t, err)
	r, err := New(Options{Config: testConfig(t), Keys: ks, Transports: []transport.Transport{node}, Clock: n.clock})
	require.NoError(t, err)
	assert.NoError(t, r.Close())
}

func TestTickLoopExpiresPaths(t *testing.T) {
	n := newTestNetwork()
	cfg := testConfig(t)
	cfg.Router.TickInterval = 10 * time.Millisecond
	origin := n.routerWith(t, "origin", cfg)
	a := n.routerWith(t, "a", cfg)

	p, err := build(t, origin, a)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return p.Status() == path.Established }, waitFor, 5*time.Millisecond)

	n.clock.Advance(cfg.Path.Lifetime)
	require.Eventually(t, func() bool {
		return origin.Stats().Expired.Expired == 1 && a.Stats().Expired.TransitHops == 1
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, path.Expired, p.Status())
	assert.Equal(t, 0, origin.Paths().OwnPathCount())
	assert.Equal(t, 0, a.Paths().TransitHopCount())
}
