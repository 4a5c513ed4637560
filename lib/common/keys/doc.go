// Package keys implements the fixed-size key material used by path building:
// router identities, path identifiers, X25519 keys, shared secrets and tunnel nonces.
//
// Every type is a plain byte array so it can be compared with == and used as a
// map key. Ordering is byte-wise and Hash is a fast non-cryptographic mix of
// the raw bytes, suitable for registry lookups only.
package keys
