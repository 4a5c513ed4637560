package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultsAreValid(t *testing.T) {
	d := Defaults()
	assert.NoError(t, Validate(d))
	assert.Equal(t, 3, d.Path.Hops)
	assert.Equal(t, 10*time.Minute, d.Path.Lifetime)
	assert.Equal(t, 10*time.Minute, d.Transit.Lifetime)
	assert.True(t, d.Transit.Allow)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ConfigDefaults)
	}{
		{"no workers", func(c *ConfigDefaults) { c.Router.Workers = 0 }},
		{"tick too fast", func(c *ConfigDefaults) { c.Router.TickInterval = time.Millisecond }},
		{"zero hops", func(c *ConfigDefaults) { c.Path.Hops = 0 }},
		{"too many hops", func(c *ConfigDefaults) { c.Path.Hops = MaxPathHops + 1 }},
		{"short lifetime", func(c *ConfigDefaults) { c.Path.Lifetime = time.Millisecond }},
		{"build timeout beyond lifetime", func(c *ConfigDefaults) { c.Path.BuildTimeout = time.Hour }},
		{"transit lifetime", func(c *ConfigDefaults) { c.Transit.Lifetime = 0 }},
		{"transit cap", func(c *ConfigDefaults) { c.Transit.MaxHops = 0 }},
		{"rate", func(c *ConfigDefaults) { c.Transit.MaxBuildRequestsPerMinute = 0 }},
		{"burst", func(c *ConfigDefaults) { c.Transit.BuildRequestBurstSize = 0 }},
		{"no ntp servers", func(c *ConfigDefaults) { c.Clock.NTPServers = nil }},
		{"sync too often", func(c *ConfigDefaults) { c.Clock.SyncInterval = time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "configuration validation failed")
		})
	}
}

func TestValidateNTPDisabledSkipsServers(t *testing.T) {
	cfg := Defaults()
	cfg.Clock.NTPEnabled = false
	cfg.Clock.NTPServers = nil
	assert.NoError(t, Validate(cfg))
}
