// Package config provides configuration management for the onion path router.
//
// Settings are read through viper from $HOME/.go-onionpath/config.yaml, which
// is created with the defaults on first run. Every key has a default set via
// setDefaults, and Defaults() is the single source of truth for those values.
//
// Keys are grouped into four sections:
//   - router: working directory, worker count, tick interval
//   - path: hops per path, path lifetime, build timeout
//   - transit: whether to relay for others and the admission limits
//   - clock: NTP synchronisation
package config
