// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"roboburn/pkg/eventbus"
)

type DiscoveryConfig struct {
	Service        string `yaml:"service"`
	Domain         string `yaml:"domain"`
	QueryTimeoutMs int    `yaml:"query_timeout_ms"`
	RetrySeconds   int    `yaml:"retry_seconds"`
}

// MQTTConfig enables the status publisher when Broker is set.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

type Config struct {
	PollIntervalMs   int    `yaml:"poll_interval_ms"`
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms"`
	ReadTimeoutMs    int    `yaml:"read_timeout_ms"`
	HTTPAddr         string `yaml:"http_addr"`
	PrefsFile        string `yaml:"prefs_file"`

	Discovery DiscoveryConfig `yaml:"discovery"`
	MQTT      MQTTConfig      `yaml:"mqtt"`

	// not loaded from file, but added here to
	// pass to all services alongside config
	EventBus *eventbus.Bus `yaml:"-"`
}

// Load reads the YAML file at path and applies defaults. A missing file
// is not an error.
func Load(path string) (*Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = 1000
	}
	if c.ConnectTimeoutMs <= 0 {
		c.ConnectTimeoutMs = 2500
	}
	if c.ReadTimeoutMs <= 0 {
		c.ReadTimeoutMs = 2500
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.PrefsFile == "" {
		c.PrefsFile = "var/config/prefs.yml"
	}
	if c.Discovery.Service == "" {
		c.Discovery.Service = "_roboburn._tcp"
	}
	if c.Discovery.Domain == "" {
		c.Discovery.Domain = "local"
	}
	if c.Discovery.QueryTimeoutMs <= 0 {
		c.Discovery.QueryTimeoutMs = 2000
	}
	if c.Discovery.RetrySeconds <= 0 {
		c.Discovery.RetrySeconds = 10
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "roboburn"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "roboburn"
	}
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

func (d DiscoveryConfig) QueryTimeout() time.Duration {
	return time.Duration(d.QueryTimeoutMs) * time.Millisecond
}

func (d DiscoveryConfig) RetryInterval() time.Duration {
	return time.Duration(d.RetrySeconds) * time.Second
}
