package utils

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/benmeehan/whatsminer-cli/internal/constants"
	"github.com/benmeehan/whatsminer-cli/pkg/file"
)

// Config represents the structure of the miner configuration file.
type Config struct {
	Host     string `json:"host" yaml:"host"`         // Miner IP address or hostname
	Port     int    `json:"port" yaml:"port"`         // Miner API port
	Login    string `json:"login" yaml:"login"`       // Account name (super, user1, ...)
	Password string `json:"password" yaml:"password"` // Account password
	Timeout  int    `json:"timeout" yaml:"timeout"`   // Socket timeout in seconds

	Log struct {
		Level string `json:"level" yaml:"level"` // debug, info, warn or error
		JSON  bool   `json:"json" yaml:"json"`   // Emit JSON instead of console output
	} `json:"log" yaml:"log"`
}

// ConfigError reports connection fields that are still missing after all
// configuration sources were applied.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s must be supplied either via CLI or config file", strings.Join(e.Missing, " and "))
}

// LoadConfig loads the configuration from the specified file. YAML is used for
// .yaml and .yml files and JSON otherwise. A missing file yields an empty config.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config

	exists, err := fileClient.IsFileExists(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", filename, err)
	}
	if !exists {
		return &config, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = fileClient.ReadYamlFile(filename, &config)
	default:
		err = fileClient.ReadJsonFile(filename, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	return &config, nil
}

// ApplyDefaults fills in the port, login and timeout when they are unset.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = constants.DefaultPort
	}
	if c.Login == "" {
		c.Login = constants.DefaultAccount
	}
	if c.Timeout <= 0 {
		c.Timeout = int(constants.DefaultTimeout / time.Second)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that the fields required to reach the miner are present.
func (c *Config) Validate() error {
	var missing []string
	if c.Host == "" {
		missing = append(missing, "host")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// TimeoutDuration returns the socket timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
