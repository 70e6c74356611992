// Package config loads the shim's settings and managed fleet from a config
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ArthurVardevanyan/poe-shim/internal/fleet"
	"github.com/ArthurVardevanyan/poe-shim/internal/unifi"
)

// EnvPrefix prefixes every environment override, e.g. POE_SHIM_LISTEN.
const EnvPrefix = "POE_SHIM"

type Config struct {
	Listen     string           `mapstructure:"listen"`
	Debug      bool             `mapstructure:"debug"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Controller ControllerConfig `mapstructure:"controller"`
	Devices    []DeviceConfig   `mapstructure:"devices"`
}

// AuthConfig enables basic auth on the power endpoints when both fields are set.
type AuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ControllerConfig struct {
	URL                string        `mapstructure:"url"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	Timeout            time.Duration `mapstructure:"timeout"`
	Reauthenticate     bool          `mapstructure:"reauthenticate"`
}

type DeviceConfig struct {
	MAC      string          `mapstructure:"mac"`
	Machines []MachineConfig `mapstructure:"machines"`
}

// MachineConfig accepts maas_id/port_id as aliases for system_id/port.
type MachineConfig struct {
	SystemID string `mapstructure:"system_id"`
	Port     int    `mapstructure:"port"`
	MaasID   string `mapstructure:"maas_id"`
	PortID   int    `mapstructure:"port_id"`
}

func (m MachineConfig) id() string {
	if m.SystemID != "" {
		return m.SystemID
	}
	return m.MaasID
}

func (m MachineConfig) port() int {
	if m.Port != 0 {
		return m.Port
	}
	return m.PortID
}

// New returns a viper instance with defaults and environment bindings set.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("listen", ":3000")
	v.SetDefault("debug", false)
	v.SetDefault("controller.insecure_skip_verify", true)
	v.SetDefault("controller.timeout", "15s")
	v.SetDefault("controller.reauthenticate", true)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("auth.username")
	_ = v.BindEnv("auth.password")
	_ = v.BindEnv("controller.url")
	_ = v.BindEnv("controller.username", EnvPrefix+"_CONTROLLER_USERNAME", "UNIFI_USERNAME")
	_ = v.BindEnv("controller.password", EnvPrefix+"_CONTROLLER_PASSWORD", "UNIFI_PASSWORD")
	return v
}

// Load reads path (or config.{toml,yaml,json} from . and /etc/poe-shim when
// path is empty) and returns a validated Config.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/poe-shim")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return FromViper(v)
}

// FromViper decodes and validates an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Controller.URL == "" {
		cfg.Controller.URL = v.GetString("url")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fleet and controller settings. Every problem is reported.
func (c *Config) Validate() error {
	var errs []error
	if c.Controller.URL == "" {
		errs = append(errs, errors.New("controller.url is required"))
	} else if _, err := unifi.ParseBaseURL(c.Controller.URL); err != nil {
		errs = append(errs, fmt.Errorf("controller.url: %w", err))
	}
	if len(c.Devices) == 0 {
		errs = append(errs, errors.New("at least one device is required"))
	}

	seen := map[string]string{}
	for i, d := range c.Devices {
		if strings.TrimSpace(d.MAC) == "" {
			errs = append(errs, fmt.Errorf("devices[%d]: mac is required", i))
		}
		for j, m := range d.Machines {
			id := m.id()
			switch {
			case id == "":
				errs = append(errs, fmt.Errorf("devices[%d].machines[%d]: system_id is required", i, j))
			case seen[id] != "":
				errs = append(errs, fmt.Errorf("devices[%d].machines[%d]: system_id %q already assigned to %s", i, j, id, seen[id]))
			default:
				seen[id] = d.MAC
			}
		}
	}
	return errors.Join(errs...)
}

// Fleet builds the immutable identifier map from the configured devices.
func (c *Config) Fleet() *fleet.Fleet {
	devices := make([]fleet.Device, 0, len(c.Devices))
	for _, d := range c.Devices {
		fd := fleet.Device{MAC: fleet.Address(strings.TrimSpace(d.MAC))}
		for _, m := range d.Machines {
			fd.Machines = append(fd.Machines, fleet.Machine{SystemID: m.id(), Port: m.port()})
		}
		devices = append(devices, fd)
	}
	return fleet.New(devices)
}

// ClientConfig returns the settings for the live controller client.
func (c *Config) ClientConfig() unifi.ClientConfig {
	return unifi.ClientConfig{
		BaseURL:            c.Controller.URL,
		InsecureSkipVerify: c.Controller.InsecureSkipVerify,
		Timeout:            c.Controller.Timeout,
		Reauthenticate:     c.Controller.Reauthenticate,
	}
}
