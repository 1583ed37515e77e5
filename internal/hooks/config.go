package hooks

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the commit gate looks for its hook definitions
// when no explicit path is given.
const DefaultConfigPath = ".commit-hooks.yaml"

// Config is the root hook-pipeline document: a list of tool repositories,
// each pinned to a revision.
type Config struct {
	Repos []Repo `yaml:"repos"`
}

// Repo is one external tool repository pinned to a revision, declaring one
// or more hooks.
type Repo struct {
	Repo  string `yaml:"repo"`
	Rev   string `yaml:"rev"`
	Hooks []Hook `yaml:"hooks"`
}

// Hook is a single tool invocation applied to a filtered subset of the
// staged files.
type Hook struct {
	ID string `yaml:"id"`

	// Entry overrides the executable for this hook. When empty the entry is
	// resolved from the built-in registry, falling back to the hook ID.
	Entry string `yaml:"entry,omitempty"`

	// Args are appended before the file list on every invocation.
	Args []string `yaml:"args,omitempty"`

	// Files, when set, restricts the hook to paths matching the pattern.
	Files string `yaml:"files,omitempty"`

	// Exclude removes matching paths from the hook's input set.
	Exclude string `yaml:"exclude,omitempty"`
}

// ParseConfig decodes and validates a hook-pipeline document.
func ParseConfig(data []byte) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("hooks: config payload is empty")
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("hooks: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig reads a YAML hook-pipeline file from disk.
func LoadConfig(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("hooks: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("hooks: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hooks: read %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("hooks: %s: %w", filepath.Clean(path), err)
	}
	return cfg, nil
}

// HookCount returns the total number of hooks declared across all repos.
func (c *Config) HookCount() int {
	n := 0
	for _, r := range c.Repos {
		n += len(r.Hooks)
	}
	return n
}
