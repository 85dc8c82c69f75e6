// Package config loads server and client settings from an optional TOML
// file, CALC_-prefixed environment variables and a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	TopologyCombined = "combined"
	TopologySplit    = "split"
)

// Endpoint locates one binding in a registry.
type Endpoint struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Binding string `mapstructure:"binding"`
}

type Server struct {
	Combined Endpoint `mapstructure:"combined"`
	Math     Endpoint `mapstructure:"math"`
	Trig     Endpoint `mapstructure:"trig"`

	// AdvertiseHost skips address resolution when set.
	AdvertiseHost string `mapstructure:"advertise_host"`
}

type Client struct {
	Username string   `mapstructure:"username"`
	Topology string   `mapstructure:"topology"`
	Combined Endpoint `mapstructure:"combined"`
	Math     Endpoint `mapstructure:"math"`
	Trig     Endpoint `mapstructure:"trig"`
}

type Telemetry struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

type Config struct {
	Server    Server    `mapstructure:"server"`
	Client    Client    `mapstructure:"client"`
	Telemetry Telemetry `mapstructure:"telemetry"`
}

var defaults = map[string]any{
	"server.combined.port":    5050,
	"server.combined.binding": "CalculatorService",
	"server.math.port":        5050,
	"server.math.binding":     "MathService",
	"server.trig.port":        5051,
	"server.trig.binding":     "TrigService",
	"server.advertise_host":   "",

	"client.username":         "guest",
	"client.topology":         TopologySplit,
	"client.combined.host":    "127.0.0.1",
	"client.combined.port":    5050,
	"client.combined.binding": "CalculatorService",
	"client.math.host":        "127.0.0.1",
	"client.math.port":        5050,
	"client.math.binding":     "MathService",
	"client.trig.host":        "127.0.0.1",
	"client.trig.port":        5051,
	"client.trig.binding":     "TrigService",

	"telemetry.enabled":      false,
	"telemetry.service_name": "",
}

// Load reads calculator.toml from the working directory, or the file at
// path when it is not empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("CALC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("calculator")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Client.Topology {
	case TopologyCombined, TopologySplit:
	default:
		return fmt.Errorf("client.topology: unknown topology %q", c.Client.Topology)
	}
	if strings.TrimSpace(c.Client.Username) == "" {
		return errors.New("client.username: must not be empty")
	}

	endpoints := map[string]Endpoint{
		"server.combined": c.Server.Combined,
		"server.math":     c.Server.Math,
		"server.trig":     c.Server.Trig,
		"client.combined": c.Client.Combined,
		"client.math":     c.Client.Math,
		"client.trig":     c.Client.Trig,
	}
	for name, ep := range endpoints {
		if ep.Port < 0 || ep.Port > 65535 {
			return fmt.Errorf("%s.port: %d out of range", name, ep.Port)
		}
		if ep.Binding == "" {
			return fmt.Errorf("%s.binding: must not be empty", name)
		}
	}
	return nil
}

// LoadDotEnv loads environment variables from the given files, or .env
// when none are given. Missing files are skipped and variables already
// set in the process environment are not overridden.
func LoadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err == nil {
		return nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("load .env: %w", err)
}
