// Package config handles deobvm.toml session configuration.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Missing-class policies.
const (
	PolicyStrict = "strict"
	PolicyPrune  = "prune"
)

// Config is the per-session configuration.
type Config struct {
	Analysis  Analysis  `toml:"analysis"`
	Execution Execution `toml:"execution"`
	Hierarchy Hierarchy `toml:"hierarchy"`
	Providers Providers `toml:"providers"`
}

// Analysis configures the abstract interpreter.
type Analysis struct {
	// MaxSteps bounds the number of instruction visits per method.
	MaxSteps int `toml:"max_steps"`
}

// Execution configures the concrete interpreter.
type Execution struct {
	MaxCallDepth int `toml:"max_call_depth"`
	// MaxInstructions bounds instructions executed per top-level call;
	// 0 means unbounded.
	MaxInstructions int `toml:"max_instructions"`
}

// Hierarchy configures class resolution.
type Hierarchy struct {
	Policy string `toml:"policy"`
	// Library lists jmod files and class directories searched, in order,
	// for classes that are not under analysis.
	Library []string `toml:"library"`
	// Builtins enables the bundled platform class stubs as the last loader.
	Builtins *bool `toml:"builtins"`
}

// Providers configures the standard provider chain.
type Providers struct {
	// AllowReflection registers the reflection-backed provider, which calls
	// arbitrary host code.
	AllowReflection bool `toml:"allow_reflection"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load parses a TOML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return Parse(string(data))
}

// Parse decodes configuration text and applies defaults.
func Parse(text string) (*Config, error) {
	var c Config
	if _, err := toml.Decode(text, &c); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Analysis.MaxSteps == 0 {
		c.Analysis.MaxSteps = 1 << 20
	}
	if c.Execution.MaxCallDepth == 0 {
		c.Execution.MaxCallDepth = 256
	}
	if c.Hierarchy.Policy == "" {
		c.Hierarchy.Policy = PolicyStrict
	}
	if c.Hierarchy.Builtins == nil {
		on := true
		c.Hierarchy.Builtins = &on
	}
}

// Validate checks option values.
func (c *Config) Validate() error {
	switch c.Hierarchy.Policy {
	case PolicyStrict, PolicyPrune:
	default:
		return fmt.Errorf("hierarchy.policy: unknown policy %q", c.Hierarchy.Policy)
	}
	if c.Analysis.MaxSteps < 0 {
		return fmt.Errorf("analysis.max_steps: must not be negative")
	}
	if c.Execution.MaxCallDepth < 0 || c.Execution.MaxInstructions < 0 {
		return fmt.Errorf("execution: limits must not be negative")
	}
	return nil
}

// UseBuiltins reports whether the bundled platform stubs are enabled.
func (c *Config) UseBuiltins() bool {
	return c.Hierarchy.Builtins == nil || *c.Hierarchy.Builtins
}
