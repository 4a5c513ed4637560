package memnet

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-i2p/go-onionpath/lib/common/keys"
	"github.com/go-i2p/go-onionpath/lib/transport"
)

func rid(s string) keys.RouterID { return keys.RouterIDFromIdentity([]byte(s)) }

func TestDeliveryInOrder(t *testing.T) {
	net := NewNetwork()
	a, err := net.Attach(rid("a"))
	require.NoError(t, err)
	b, err := net.Attach(rid("b"))
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		got  []byte
		from keys.RouterID
	)
	done := make(chan struct{})
	b.SetHandler(func(f keys.RouterID, data []byte) {
		mu.Lock()
		defer mu.Unlock()
		from = f
		got = append(got, data[0])
		if len(got) == 100 {
			close(done)
		}
	})
	for i := 0; i < 100; i++ {
		require.NoError(t, a.SendRaw(b.ID(), []byte{byte(i)}))
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("messages not delivered")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, a.ID(), from)
	for i, v := range got {
		assert.Equal(t, byte(i), v)
	}
	sent, _ := a.Stats()
	assert.Equal(t, uint64(100), sent)
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
}

func TestSendCopiesBuffer(t *testing.T) {
	net := NewNetwork()
	a, _ := net.Attach(rid("a"))
	b, _ := net.Attach(rid("b"))
	ch := make(chan []byte, 1)
	b.SetHandler(func(_ keys.RouterID, data []byte) { ch <- data })

	buf := []byte{1, 2, 3}
	require.NoError(t, a.SendRaw(b.ID(), buf))
	buf[0] = 9
	select {
	case data := <-ch:
		assert.Equal(t, []byte{1, 2, 3}, data)
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestRouteUnavailable(t *testing.T) {
	net := NewNetwork()
	a, _ := net.Attach(rid("a"))
	b, _ := net.Attach(rid("b"))

	assert.ErrorIs(t, a.SendRaw(rid("nobody"), []byte{1}), transport.ErrRouteUnavailable)

	net.Cut(a.ID(), b.ID())
	assert.ErrorIs(t, a.SendRaw(b.ID(), []byte{1}), transport.ErrRouteUnavailable)
	net.Heal(a.ID(), b.ID())
	assert.NoError(t, a.SendRaw(b.ID(), []byte{1}))

	require.NoError(t, b.Close())
	assert.ErrorIs(t, a.SendRaw(b.ID(), []byte{1}), transport.ErrRouteUnavailable)
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.SendRaw(b.ID(), []byte{1}), transport.ErrTransportClosed)
}

func TestAttachTwice(t *testing.T) {
	net := NewNetwork()
	_, err := net.Attach(rid("a"))
	require.NoError(t, err)
	_, err = net.Attach(rid("a"))
	assert.Error(t, err)
}

func TestMuxFallsBack(t *testing.T) {
	netA := NewNetwork()
	netB := NewNetwork()
	a1, _ := netA.Attach(rid("a"))
	a2, _ := netB.Attach(rid("a"))
	b2, _ := netB.Attach(rid("b"))

	ch := make(chan struct{}, 1)
	b2.SetHandler(func(keys.RouterID, []byte) { ch <- struct{}{} })

	m := transport.Mux(a1, a2)
	require.NoError(t, m.SendRaw(rid("b"), []byte{1}))
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("mux did not fall back to second transport")
	}
	assert.ErrorIs(t, m.SendRaw(rid("c"), []byte{1}), transport.ErrRouteUnavailable)
	assert.ErrorIs(t, transport.Mux().SendRaw(rid("b"), nil), transport.ErrNoTransportAvailable)
	require.NoError(t, m.Close())
}
