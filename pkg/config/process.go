package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Process reads the configuration from a stream and returns the parsed
// configuration after validating its type and version header.
func Process(r io.Reader) (*Config, error) {
	var conf Config
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&conf); err != nil {
		return nil, fmt.Errorf("fatal error reading config file: %w", err)
	}
	if conf.Type != configType {
		return nil, fmt.Errorf("unknown config type: %s", conf.Type)
	}
	if conf.Version != version {
		return nil, fmt.Errorf("unknown config version: %s", conf.Version)
	}
	return &conf, nil
}

// LogLevel translates the configured logging level into the numeric
// verbosity the CLI uses. Unknown or empty levels map to info.
func (c *Config) LogLevel() int {
	switch c.Logging {
	case logLevelDebug:
		return 1
	case logLevelTrace:
		return 2
	default:
		return 0
	}
}
