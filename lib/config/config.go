package config

import (
	"io"
	"os"
	"path/filepath"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/go-i2p/go-onionpath/lib/util"
)

var (
	CfgFile string
	log     = logger.GetGoI2PLogger()
)

const BASE_DIR = ".go-onionpath"

// InitConfig points viper at the config file, applies defaults, and writes
// the default file if none exists yet.
func InitConfig() error {
	if CfgFile != "" {
		viper.SetConfigFile(CfgFile)
	} else {
		viper.AddConfigPath(BuildBaseDirPath())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}
	setDefaults()
	return handleConfigFile()
}

func setDefaults() {
	d := Defaults()

	viper.SetDefault("router.working_dir", d.Router.WorkingDir)
	viper.SetDefault("router.workers", d.Router.Workers)
	viper.SetDefault("router.tick_interval", d.Router.TickInterval)

	viper.SetDefault("path.hops", d.Path.Hops)
	viper.SetDefault("path.lifetime", d.Path.Lifetime)
	viper.SetDefault("path.build_timeout", d.Path.BuildTimeout)

	viper.SetDefault("transit.allow", d.Transit.Allow)
	viper.SetDefault("transit.lifetime", d.Transit.Lifetime)
	viper.SetDefault("transit.max_hops", d.Transit.MaxHops)
	viper.SetDefault("transit.max_build_requests_per_minute", d.Transit.MaxBuildRequestsPerMinute)
	viper.SetDefault("transit.build_request_burst_size", d.Transit.BuildRequestBurstSize)

	viper.SetDefault("clock.ntp_enabled", d.Clock.NTPEnabled)
	viper.SetDefault("clock.ntp_servers", d.Clock.NTPServers)
	viper.SetDefault("clock.sync_interval", d.Clock.SyncInterval)
}

// CurrentConfig reads every setting back out of viper.
func CurrentConfig() ConfigDefaults {
	return ConfigDefaults{
		Router: RouterDefaults{
			WorkingDir:   viper.GetString("router.working_dir"),
			Workers:      viper.GetInt("router.workers"),
			TickInterval: viper.GetDuration("router.tick_interval"),
		},
		Path: PathDefaults{
			Hops:         viper.GetInt("path.hops"),
			Lifetime:     viper.GetDuration("path.lifetime"),
			BuildTimeout: viper.GetDuration("path.build_timeout"),
		},
		Transit: TransitDefaults{
			Allow:                     viper.GetBool("transit.allow"),
			Lifetime:                  viper.GetDuration("transit.lifetime"),
			MaxHops:                   viper.GetInt("transit.max_hops"),
			MaxBuildRequestsPerMinute: viper.GetInt("transit.max_build_requests_per_minute"),
			BuildRequestBurstSize:     viper.GetInt("transit.build_request_burst_size"),
		},
		Clock: ClockDefaults{
			NTPEnabled:   viper.GetBool("clock.ntp_enabled"),
			NTPServers:   viper.GetStringSlice("clock.ntp_servers"),
			SyncInterval: viper.GetDuration("clock.sync_interval"),
		},
	}
}

// WriteDefaultConfig writes the defaults as YAML in the config file layout.
func WriteDefaultConfig(w io.Writer) error {
	return WriteConfig(w, Defaults())
}

// WriteConfig writes cfg as YAML.
func WriteConfig(w io.Writer, cfg ConfigDefaults) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return oops.Wrapf(err, "failed to encode configuration")
	}
	return enc.Close()
}

// ReadConfig parses YAML produced by WriteConfig. Missing keys keep their defaults.
func ReadConfig(r io.Reader) (ConfigDefaults, error) {
	cfg := Defaults()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && err != io.EOF {
		return cfg, oops.Wrapf(err, "failed to decode configuration")
	}
	return cfg, nil
}

func createDefaultConfig(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return oops.Wrapf(err, "could not create config directory %s", dir)
	}
	file := filepath.Join(dir, "config.yaml")
	f, err := os.OpenFile(file, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return oops.Wrapf(err, "could not create default config file")
	}
	defer f.Close()
	if err := WriteDefaultConfig(f); err != nil {
		return err
	}
	log.Debugf("Created default configuration at: %s", file)
	return nil
}

func handleConfigFile() error {
	err := viper.ReadInConfig()
	if err == nil {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
		return nil
	}
	if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		return oops.Wrapf(err, "error reading config file")
	}
	if CfgFile != "" {
		return oops.Wrapf(err, "config file %s is not found", CfgFile)
	}
	return createDefaultConfig(BuildBaseDirPath())
}

func BuildBaseDirPath() string {
	return filepath.Join(util.UserHome(), BASE_DIR)
}
