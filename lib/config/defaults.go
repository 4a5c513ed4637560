package config

import (
	"path/filepath"
	"time"

	"github.com/go-i2p/logger"
)

// MaxPathHops is the longest path a relay-commit message can describe.
const MaxPathHops = 8

// ConfigDefaults contains all configuration values for the router.
type ConfigDefaults struct {
	Router  RouterDefaults  `yaml:"router"`
	Path    PathDefaults    `yaml:"path"`
	Transit TransitDefaults `yaml:"transit"`
	Clock   ClockDefaults   `yaml:"clock"`
}

// RouterDefaults contains default values for router configuration
type RouterDefaults struct {
	// WorkingDir holds the router keys
	// Default: $HOME/.go-onionpath/config
	WorkingDir string `yaml:"working_dir"`

	// Workers is the size of the crypto worker pool
	// Default: 4
	Workers int `yaml:"workers"`

	// TickInterval is how often paths and transit hops are expired
	// Default: 1 second
	TickInterval time.Duration `yaml:"tick_interval"`
}

// PathDefaults contains default values for paths this router builds.
type PathDefaults struct {
	// Hops is the number of relays per path
	// Default: 3
	Hops int `yaml:"hops"`

	// Lifetime is how long an owned path is used, counted from the start of its build
	// Default: 10 minutes
	Lifetime time.Duration `yaml:"lifetime"`

	// BuildTimeout is how long to wait for the relay-ack
	// Default: 30 seconds
	BuildTimeout time.Duration `yaml:"build_timeout"`
}

// TransitDefaults controls relaying for paths built by other routers.
// These settings protect against resource exhaustion attacks.
type TransitDefaults struct {
	// Allow enables accepting transit hops
	// Default: true
	Allow bool `yaml:"allow"`

	// Lifetime is how long a transit hop is kept
	// Default: 10 minutes
	Lifetime time.Duration `yaml:"lifetime"`

	// MaxHops is the hard limit on concurrent transit hops
	// Default: 2000
	MaxHops int `yaml:"max_hops"`

	// MaxBuildRequestsPerMinute is the relay-commit budget per previous hop
	// Default: 60
	MaxBuildRequestsPerMinute int `yaml:"max_build_requests_per_minute"`

	// BuildRequestBurstSize is the burst allowance on top of that budget
	// Default: 10
	BuildRequestBurstSize int `yaml:"build_request_burst_size"`
}

// ClockDefaults controls NTP synchronisation of the router clock.
type ClockDefaults struct {
	// NTPEnabled starts the background syncer
	// Default: true
	NTPEnabled bool `yaml:"ntp_enabled"`

	// NTPServers are queried in random order
	NTPServers []string `yaml:"ntp_servers"`

	// SyncInterval is the time between sync rounds
	// Default: 11 minutes
	SyncInterval time.Duration `yaml:"sync_interval"`
}

// Defaults returns a ConfigDefaults instance with all default values set.
func Defaults() ConfigDefaults {
	return ConfigDefaults{
		Router:  buildRouterDefaults(filepath.Join(BuildBaseDirPath(), "config")),
		Path:    buildPathDefaults(),
		Transit: buildTransitDefaults(),
		Clock:   buildClockDefaults(),
	}
}

func buildRouterDefaults(workingDir string) RouterDefaults {
	return RouterDefaults{
		WorkingDir:   workingDir,
		Workers:      4,
		TickInterval: time.Second,
	}
}

func buildPathDefaults() PathDefaults {
	return PathDefaults{
		Hops:         3,
		Lifetime:     10 * time.Minute,
		BuildTimeout: 30 * time.Second,
	}
}

func buildTransitDefaults() TransitDefaults {
	return TransitDefaults{
		Allow:                     true,
		Lifetime:                  10 * time.Minute,
		MaxHops:                   2000,
		MaxBuildRequestsPerMinute: 60,
		BuildRequestBurstSize:     10,
	}
}

func buildClockDefaults() ClockDefaults {
	return ClockDefaults{
		NTPEnabled:   true,
		NTPServers:   []string{"0.pool.ntp.org", "1.pool.ntp.org", "2.pool.ntp.org"},
		SyncInterval: 11 * time.Minute,
	}
}

// Validate checks if the provided configuration values are reasonable.
// Returns an error describing the first invalid value found.
func Validate(cfg ConfigDefaults) error {
	log.WithFields(logger.Fields{
		"at":     "Validate",
		"reason": "verification_requested",
	}).Debug("validating configuration")
	validators := []func() error{
		func() error { return validateRouter(cfg.Router) },
		func() error { return validatePath(cfg.Path) },
		func() error { return validateTransit(cfg.Transit) },
		func() error { return validateClock(cfg.Clock) },
	}
	for _, validator := range validators {
		if err := validator(); err != nil {
			log.WithError(err).Error("Configuration validation failed")
			return err
		}
	}
	return nil
}

func validateRouter(router RouterDefaults) error {
	if router.Workers < 1 {
		return newValidationError("Router.Workers must be at least 1")
	}
	if router.TickInterval < 10*time.Millisecond {
		return newValidationError("Router.TickInterval must be at least 10ms")
	}
	return nil
}

func validatePath(path PathDefaults) error {
	if path.Hops < 1 || path.Hops > MaxPathHops {
		return newValidationError("Path.Hops must be between 1 and 8")
	}
	if path.Lifetime < time.Second {
		return newValidationError("Path.Lifetime must be at least 1 second")
	}
	if path.BuildTimeout <= 0 || path.BuildTimeout > path.Lifetime {
		return newValidationError("Path.BuildTimeout must be positive and no longer than Path.Lifetime")
	}
	return nil
}

func validateTransit(transit TransitDefaults) error {
	if transit.Lifetime < time.Second {
		return newValidationError("Transit.Lifetime must be at least 1 second")
	}
	if transit.MaxHops < 1 {
		return newValidationError("Transit.MaxHops must be at least 1")
	}
	if transit.MaxBuildRequestsPerMinute < 1 {
		return newValidationError("Transit.MaxBuildRequestsPerMinute must be at least 1")
	}
	if transit.BuildRequestBurstSize < 1 {
		return newValidationError("Transit.BuildRequestBurstSize must be at least 1")
	}
	return nil
}

func validateClock(clock ClockDefaults) error {
	if !clock.NTPEnabled {
		return nil
	}
	if len(clock.NTPServers) == 0 {
		return newValidationError("Clock.NTPServers must not be empty when NTP is enabled")
	}
	if clock.SyncInterval < time.Minute {
		return newValidationError("Clock.SyncInterval must be at least 1 minute")
	}
	return nil
}

type validationError struct {
	message string
}

func newValidationError(message string) error {
	return &validationError{message: message}
}

func (e *validationError) Error() string {
	return "configuration validation failed: " + e.message
}
