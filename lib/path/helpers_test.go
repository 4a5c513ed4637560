package path

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-i2p/go-onionpath/lib/common/keys"
	"github.com/go-i2p/go-onionpath/lib/crypto"
	"github.com/go-i2p/go-onionpath/lib/logic"
	"github.com/go-i2p/go-onionpath/lib/messages"
	"github.com/go-i2p/go-onionpath/lib/util/threadpool"
	"github.com/go-i2p/go-onionpath/lib/util/time/monotonic"
)

var testEpoch = time.Unix(1_700_000_000, 0)

type sentMsg struct {
	to  keys.RouterID
	msg messages.Message
}

// fakeRouter records outbound messages instead of sending them.
type fakeRouter struct {
	id       keys.RouterID
	identity []byte
	enc      keys.Keypair
	c        crypto.Crypto
	worker   *threadpool.Pool
	logic    *logic.Logic
	clock    *monotonic.ManualClock
	ctx      *PathContext

	mu      sync.Mutex
	sendErr error
	sent    chan sentMsg
}

func newFakeRouter(t *testing.T, name string, clock *monotonic.ManualClock, cfg Config) *fakeRouter {
	t.Helper()
	enc, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	identity := append([]byte(name), enc.Public[:]...)
	r := &fakeRouter{
		id:       keys.RouterIDFromIdentity(identity),
		identity: identity,
		enc:      enc,
		c:        crypto.NewX25519Crypto(),
		worker:   threadpool.New(name+"-workers", 4),
		logic:    logic.New(),
		clock:    clock,
		sent:     make(chan sentMsg, 256),
	}
	r.ctx = NewPathContext(r, cfg)
	t.Cleanup(func() {
		_ = r.worker.Stop()
		_ = r.logic.Stop()
	})
	return r
}

func (r *fakeRouter) ID() keys.RouterID               { return r.id }
func (r *fakeRouter) EncryptionKeypair() keys.Keypair { return r.enc }
func (r *fakeRouter) Crypto() crypto.Crypto           { return r.c }
func (r *fakeRouter) Worker() Worker                  { return r.worker }
func (r *fakeRouter) Logic() Logic                    { return r.logic }
func (r *fakeRouter) Now() time.Time                  { return r.clock.Now() }

func (r *fakeRouter) SendRaw(to keys.RouterID, data []byte) error {
	r.mu.Lock()
	err := r.sendErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	msg, err := messages.Decode(data)
	if err != nil {
		return err
	}
	r.sent <- sentMsg{to: to, msg: msg}
	return nil
}

func (r *fakeRouter) setSendErr(err error) {
	r.mu.Lock()
	r.sendErr = err
	r.mu.Unlock()
}

func (r *fakeRouter) contact() RouterContact {
	return RouterContact{ID: r.id, EncryptionKey: r.enc.Public, Identity: r.identity}
}

func (r *fakeRouter) nextSent(t *testing.T) sentMsg {
	t.Helper()
	select {
	case m := <-r.sent:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("router sent nothing")
		return sentMsg{}
	}
}

func (r *fakeRouter) assertNothingSent(t *testing.T) {
	t.Helper()
	select {
	case m := <-r.sent:
		t.Fatalf("unexpected message %T to %s", m.msg, m.to.Short())
	default:
	}
}

// buildAndWait builds a path and waits for its handler.
func buildAndWait(t *testing.T, r *fakeRouter, hops []RouterContact) (*Path, error) {
	t.Helper()
	done := make(chan error, 1)
	p, err := r.ctx.BuildPath(hops, func(_ *Path, err error) { done <- err })
	require.NoError(t, err)
	select {
	case err := <-done:
		return p, err
	case <-time.After(5 * time.Second):
		t.Fatal("path build did not complete")
		return nil, nil
	}
}

// randomContact is a hop nobody is listening on.
func randomContact(t *testing.T) RouterContact {
	t.Helper()
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	return NewRouterContact(kp.Public[:], kp.Public)
}
