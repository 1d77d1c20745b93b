package readers

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is loaded from YAML; unset fields keep their defaults.
//
//	log:
//	  level: debug
//	readers:
//	  disabled: [MetaImageReader]
//	watch:
//	  debounce: 300ms
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Readers ReadersConfig `yaml:"readers"`
	Watch   WatchConfig   `yaml:"watch"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type ReadersConfig struct {
	// Disabled lists reader names the factory refuses to register.
	Disabled []string `yaml:"disabled"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

func DefaultConfig() *Config {
	return &Config{
		Log:   LogConfig{Level: "info"},
		Watch: WatchConfig{Debounce: 300 * time.Millisecond},
	}
}

// LoadConfig reads path over the defaults. An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = DefaultConfig().Watch.Debounce
	}
	return cfg, nil
}

func (c *Config) isDisabled(name string) bool {
	for _, d := range c.Readers.Disabled {
		if d == name {
			return true
		}
	}
	return false
}
