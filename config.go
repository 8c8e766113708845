package runbox

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the workspace configuration. It
// can be populated from YAML, JSON or environment variables. The zero-value
// is not usable on its own; start from DefaultConfig.
type Config struct {
	// WorkDir is the workspace root; the shell session starts here and
	// relative file paths resolve against the session's live cwd.
	WorkDir  string `json:"workDir" yaml:"workDir"`
	Username string `json:"username" yaml:"username"`
	// KernelPort is the jupyter gateway port; validated against the
	// registered-port range when the kernel plugin initializes.
	KernelPort int  `json:"kernelPort" yaml:"kernelPort"`
	LocalMode  bool `json:"localMode" yaml:"localMode"`

	Shell  ShellConfig  `json:"shell" yaml:"shell"`
	Kernel KernelConfig `json:"kernel" yaml:"kernel"`
}

type ShellConfig struct {
	// Path to the shell binary; empty selects /bin/bash.
	Path string `json:"path" yaml:"path"`
	// StartupTimeoutSec bounds the wait for the first prompt sentinel.
	StartupTimeoutSec int `json:"startupTimeout" yaml:"startupTimeout"`
	// DefaultTimeoutSec applies to commands that carry no explicit timeout.
	DefaultTimeoutSec int `json:"defaultTimeout" yaml:"defaultTimeout"`
}

type KernelConfig struct {
	StartupTimeoutSec int `json:"startupTimeout" yaml:"startupTimeout"`
	DefaultTimeoutSec int `json:"defaultTimeout" yaml:"defaultTimeout"`
}

// DefaultConfig returns a Config populated with the same defaults the
// component constructors use. Callers may modify the returned struct before
// passing it to New.
func DefaultConfig() *Config {
	return &Config{
		WorkDir:    "/workspace",
		Username:   "user",
		KernelPort: 8888,
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config was nil")
	}
	if c.WorkDir == "" {
		return fmt.Errorf("workDir must not be empty")
	}
	if c.KernelPort <= 0 {
		return fmt.Errorf("kernelPort must be > 0")
	}
	return nil
}

// LoadConfig reads a YAML config file and overlays it on DefaultConfig.
func LoadConfig(location string) (*Config, error) {
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %v: %w", location, err)
	}
	ret := DefaultConfig()
	if err = yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to parse config %v: %w", location, err)
	}
	if err = ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}
