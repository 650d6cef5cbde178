// Package config loads check settings from defaults, an optional YAML file,
// MULTIPING_* environment variables and command line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/jandubois/multiping/internal/notify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "MULTIPING"

// CheckConfig holds the settings of one multiping run.
type CheckConfig struct {
	Name         string        `mapstructure:"name"`
	Warning      float64       `mapstructure:"warning"`  // milliseconds
	Critical     float64       `mapstructure:"critical"` // milliseconds
	Backend      string        `mapstructure:"backend"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Interval     time.Duration `mapstructure:"interval"`
	PayloadSize  string        `mapstructure:"payload_size"`
	Unprivileged bool          `mapstructure:"unprivileged"`
	DNSServer    string        `mapstructure:"dns_server"`
	Database     string        `mapstructure:"database"`
	Textfile     string        `mapstructure:"textfile"`
	JSON         bool          `mapstructure:"json"`

	Ntfy notify.NtfyConfig `mapstructure:"ntfy"`
}

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"name":         "name",
	"warning":      "warning",
	"critical":     "critical",
	"backend":      "backend",
	"timeout":      "timeout",
	"interval":     "interval",
	"payload-size": "payload_size",
	"unprivileged": "unprivileged",
	"dns-server":   "dns_server",
	"database":     "database",
	"textfile":     "textfile",
	"json":         "json",
	"ntfy-server":  "ntfy.server",
	"ntfy-topic":   "ntfy.topic",
	"ntfy-token":   "ntfy.token",
}

// Load reads the configuration. path may be empty. Flags are only bound
// when present in flags, and only override lower layers when set.
func Load(path string, flags *pflag.FlagSet) (*CheckConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetDefault("name", "multiping")
	v.SetDefault("warning", 50.0)
	v.SetDefault("critical", 500.0)
	v.SetDefault("backend", "icmp")
	v.SetDefault("timeout", "2s")
	v.SetDefault("interval", "500ms")
	v.SetDefault("payload_size", "56B")
	v.SetDefault("unprivileged", false)
	v.SetDefault("dns_server", "")
	v.SetDefault("database", "")
	v.SetDefault("textfile", "")
	v.SetDefault("json", false)
	v.SetDefault("ntfy.server", "")
	v.SetDefault("ntfy.topic", "")
	v.SetDefault("ntfy.token", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg CheckConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects probe timings that would make every probe fail.
func (c *CheckConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative, got %s", c.Interval)
	}
	return nil
}

// NotifyEnabled reports whether status changes should be sent to ntfy.
func (c *CheckConfig) NotifyEnabled() bool {
	return c.Ntfy.Topic != "" && c.Database != ""
}
