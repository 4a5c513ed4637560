// Package keys persists a router's long-term key material.
//
// A router owns an ed25519 identity key and an X25519 encryption key. Relays
// decrypt commit frames with the encryption key; the router ID is the SHA-256
// hash of the identity's public half followed by the encryption public key.
package keys
