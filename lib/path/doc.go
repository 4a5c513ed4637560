// Package path builds, tracks and relays onion paths.
//
// # Roles
//
// A router plays two roles at once. As an originator it owns Paths: ordered
// lists of relays it chose, whose per-hop keys it negotiates through the
// key-exchange pipeline before sending a single relay-commit message to the
// first hop. As a relay it holds TransitHops: one link of someone else's
// path, created when a relay-commit frame addressed to it decrypts cleanly.
//
// # Hop order
//
// Hop 0 is the first relay after the originator and the last hop is the
// terminus. Each hop's upstream is the next hop's router; the terminus names
// itself as upstream, which is how a relay learns it is the last hop. An
// owned path is registered under hop 0's path ID.
//
// # Message tags
//
// Every hop gets its own random path ID. The commit record also carries the
// path ID of the previous hop (hop 0 repeats its own), so a relay knows the
// tag its downstream neighbour uses:
//   - upstream traffic is tagged with the receiver's downstream path ID
//   - downstream traffic and relay-acks are tagged with the receiver's path ID
//
// # Threads
//
// Crypto runs on the worker pool, one unit per path build at a time. Build
// completion, relay handlers and expiry run on the logic thread. The transit
// registry and the owned-path registry have separate locks and no code path
// holds both.
package path
