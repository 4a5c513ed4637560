package keys

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterIDFromIdentity(t *testing.T) {
	a := RouterIDFromIdentity([]byte("identity-a"))
	b := RouterIDFromIdentity([]byte("identity-a"))
	c := RouterIDFromIdentity([]byte("identity-c"))

	assert.Equal(t, a, b, "same identity must give the same router id")
	assert.NotEqual(t, a, c)
	assert.False(t, a.IsZero())
	assert.True(t, strings.HasSuffix(a.String(), ".router"))
	assert.Len(t, a.Short(), 16)
}

func TestRouterIDFromBytes(t *testing.T) {
	_, err := RouterIDFromBytes(make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidKeyLength)

	raw := make([]byte, RouterIDSize)
	raw[0] = 7
	id, err := RouterIDFromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, byte(7), id[0])
}

func TestByteWiseOrdering(t *testing.T) {
	var lo, hi PathID
	lo[PathIDSize-1] = 1
	hi[0] = 1

	assert.True(t, lo.Less(hi))
	assert.False(t, hi.Less(lo))
	assert.False(t, lo.Less(lo))

	var r1, r2 RouterID
	r2[3] = 0xff
	assert.True(t, r1.Less(r2))
	assert.True(t, r1.Equal(RouterID{}))
}

func TestPathIDRandomize(t *testing.T) {
	a, err := NewPathID()
	require.NoError(t, err)
	b, err := NewPathID()
	require.NoError(t, err)

	assert.False(t, a.IsZero())
	assert.NotEqual(t, a, b)
	assert.Len(t, a.String(), PathIDSize*2)
}

func TestHashIsStableAndSpreads(t *testing.T) {
	seen := make(map[uint64]struct{})
	for i := 0; i < 256; i++ {
		id, err := NewPathID()
		require.NoError(t, err)
		assert.Equal(t, id.Hash(), id.Hash())
		seen[id.Hash()] = struct{}{}
	}
	assert.Len(t, seen, 256)
}

func TestTunnelNonceXOR(t *testing.T) {
	n, err := NewTunnelNonce()
	require.NoError(t, err)
	x, err := NewTunnelNonce()
	require.NoError(t, err)

	assert.Equal(t, n, n.XOR(x).XOR(x))
	assert.Equal(t, TunnelNonce{}, n.XOR(n))
}

func TestSecretKeyZero(t *testing.T) {
	k := SecretKey{1, 2, 3}
	k.Zero()
	assert.Equal(t, SecretKey{}, k)
}
