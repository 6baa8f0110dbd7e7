// Package config loads the YAML configuration for the assistant core.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the core. Zero values fall back to
// defaults, so an empty file (or no file) is a working configuration.
type Config struct {
	// KnowledgeDB is the path to the pre-built knowledge database.
	KnowledgeDB string `yaml:"knowledge_db"`

	// MemoryDB is the path to the read-write memory database.
	MemoryDB string `yaml:"memory_db"`

	// SessionTTL is how long a session stays adoptable, e.g. "48h".
	SessionTTL string `yaml:"session_ttl"`

	// ContextBudget is the char budget for retrieved prompt context.
	ContextBudget int `yaml:"context_budget"`

	// GenerationReserve is the token count held back for generation.
	GenerationReserve int `yaml:"generation_reserve"`

	// MaxTokens hard-caps generated tokens per response.
	MaxTokens int `yaml:"max_tokens"`

	// BatchSize is the prefill decode batch size.
	BatchSize int `yaml:"batch_size"`

	// TargetBullets is the bullet count that ends generation early.
	TargetBullets int `yaml:"target_bullets"`

	// MinBullets is the history admission threshold.
	MinBullets int `yaml:"min_bullets"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads a YAML config file and applies defaults and validation.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	home, _ := os.UserHomeDir()
	if c.KnowledgeDB == "" {
		c.KnowledgeDB = filepath.Join(home, ".aidmate", "knowledge.db")
	}
	if c.MemoryDB == "" {
		c.MemoryDB = filepath.Join(home, ".aidmate", "memory.db")
	}
	if c.SessionTTL == "" {
		c.SessionTTL = "48h"
	}
	if c.ContextBudget == 0 {
		c.ContextBudget = 800
	}
	if c.GenerationReserve == 0 {
		c.GenerationReserve = 200
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 200
	}
	if c.BatchSize == 0 {
		c.BatchSize = 512
	}
	if c.TargetBullets == 0 {
		c.TargetBullets = 5
	}
	if c.MinBullets == 0 {
		c.MinBullets = 3
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.SessionTTL); err != nil {
		return fmt.Errorf("config: session_ttl %q: %w", c.SessionTTL, err)
	}
	if c.MinBullets > c.TargetBullets {
		return fmt.Errorf("config: min_bullets %d exceeds target_bullets %d", c.MinBullets, c.TargetBullets)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: batch_size must be positive, got %d", c.BatchSize)
	}
	return nil
}

// TTL returns the parsed session TTL.
func (c *Config) TTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return 48 * time.Hour
	}
	return d
}
