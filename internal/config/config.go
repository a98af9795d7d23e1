// ABOUTME: Persisted configuration for the recorder
// ABOUTME: Viper-backed YAML config with environment overrides
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the persisted configuration. The capture core only ever
// reads it; nothing here is written during a recording.
type Config struct {
	Output  OutputConfig  `mapstructure:"output"`
	Capture CaptureConfig `mapstructure:"capture"`
}

// OutputConfig controls where recordings land and what happens on stop.
type OutputConfig struct {
	Directory      string `mapstructure:"directory"`
	MergeAfterStop bool   `mapstructure:"merge_after_stop"`
}

// CaptureConfig tunes the capture streams.
type CaptureConfig struct {
	// MuteWhileTapped silences tapped sources on the real output while
	// capturing.
	MuteWhileTapped bool `mapstructure:"mute_while_tapped"`

	// SampleRate pins both streams to a fixed project rate. Zero means
	// resolve from hardware.
	SampleRate float64 `mapstructure:"sample_rate"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Directory:      defaultOutputDir(),
			MergeAfterStop: true,
		},
	}
}

// Load reads the config file (or falls back to defaults) with TAPDECK_*
// environment overrides, e.g. TAPDECK_OUTPUT_MERGE_AFTER_STOP=false.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Every key needs a registered default: viper only consults the
	// environment for keys it already knows about.
	defaults := Default()
	v.SetDefault("output.directory", defaults.Output.Directory)
	v.SetDefault("output.merge_after_stop", defaults.Output.MergeAfterStop)
	v.SetDefault("capture.mute_while_tapped", defaults.Capture.MuteWhileTapped)
	v.SetDefault("capture.sample_rate", defaults.Capture.SampleRate)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("tapdeck")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TAPDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = defaultOutputDir()
	}
	return cfg, nil
}

func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tapdeck")
	}
	return "."
}

func defaultOutputDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Recordings")
	}
	return "."
}
