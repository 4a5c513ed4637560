// Package crypto provides the primitives used to build and relay onion paths.
//
// # Primitives
//
//   - X25519 for ephemeral commit keys and router encryption keys
//   - keyed BLAKE2b-256 to turn raw DH output into a SharedSecret
//   - XChaCha20 for length-preserving onion layers
//   - XChaCha20-Poly1305 for commit frames addressed to a single relay
//
// All randomness comes from github.com/go-i2p/crypto/rand.
//
// The Crypto interface exists so that path building can be tested against
// failing or instrumented primitives; X25519Crypto is the production implementation.
package crypto
