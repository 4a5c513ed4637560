package messages

import (
	"encoding/binary"
	"time"

	"github.com/samber/oops"

	"github.com/go-i2p/go-onionpath/lib/common/keys"
)

/*
[CommitRecord]

Description
The cleartext a path originator seals into one hop's commit frame. It tells
the relay which path ID to use, where to forward the rest of the commit, and
the ephemeral key and nonce from which the relay derives its path key.

Contents
+----+----+----+----+----+----+----+----+
|ver | path_id (16 bytes)                |
+----+----+----+----+----+----+----+----+
| downstream_path_id (16 bytes)         |
+----+----+----+----+----+----+----+----+
| next_hop (32 bytes)                   |
+----+----+----+----+----+----+----+----+
| commit_key (32 bytes)                 |
+----+----+----+----+----+----+----+----+
| tunnel_nonce (24 bytes)               |
+----+----+----+----+----+----+----+----+
| lifetime (4 bytes, seconds)           |
+----+----+----+----+----+----+----+----+

next_hop equal to the relay's own router ID marks the relay as the terminus.
*/
type CommitRecord struct {
	Version          byte
	PathID           keys.PathID
	DownstreamPathID keys.PathID
	NextHop          keys.RouterID
	CommitKey        keys.PubKey
	TunnelNonce      keys.TunnelNonce
	Lifetime         time.Duration
}

const CommitRecordSize = 1 + keys.PathIDSize*2 + keys.RouterIDSize + keys.PubKeySize + keys.TunnelNonceSize + 4

// Encode writes the record into the start of buf.
func (r *CommitRecord) Encode(buf []byte) error {
	if len(buf) < CommitRecordSize {
		return oops.Errorf("commit record needs %d bytes, buffer has %d: %w", CommitRecordSize, len(buf), ErrNotEnoughData)
	}
	off := 0
	buf[off] = r.Version
	off++
	off += copy(buf[off:], r.PathID[:])
	off += copy(buf[off:], r.DownstreamPathID[:])
	off += copy(buf[off:], r.NextHop[:])
	off += copy(buf[off:], r.CommitKey[:])
	off += copy(buf[off:], r.TunnelNonce[:])
	binary.BigEndian.PutUint32(buf[off:], uint32(r.Lifetime/time.Second))
	return nil
}

// ReadCommitRecord parses a record from the start of buf; trailing bytes are padding.
func ReadCommitRecord(buf []byte) (CommitRecord, error) {
	var r CommitRecord
	if len(buf) < CommitRecordSize {
		return r, oops.Errorf("commit record needs %d bytes, got %d: %w", CommitRecordSize, len(buf), ErrNotEnoughData)
	}
	off := 0
	r.Version = buf[off]
	off++
	if r.Version != ProtocolVersion {
		return r, oops.Errorf("commit record version %d: %w", r.Version, ErrBadVersion)
	}
	off += copy(r.PathID[:], buf[off:])
	off += copy(r.DownstreamPathID[:], buf[off:])
	off += copy(r.NextHop[:], buf[off:])
	off += copy(r.CommitKey[:], buf[off:])
	off += copy(r.TunnelNonce[:], buf[off:])
	r.Lifetime = time.Duration(binary.BigEndian.Uint32(buf[off:])) * time.Second
	return r, nil
}
