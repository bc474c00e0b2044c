package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Store backends served by celld.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendRaft   = "raft"
)

type Config struct {
	NodeID  string `yaml:"node_id" env:"NODE_ID"`
	Backend string `yaml:"backend" env:"BACKEND"`
	DataDir string `yaml:"data_dir" env:"DATA_DIR"`

	RaftAddr      string `yaml:"raft_addr" env:"RAFT_ADDR"`
	RaftBootstrap bool   `yaml:"raft_bootstrap" env:"RAFT_BOOTSTRAP"`
	GRPCAddr      string `yaml:"grpc_addr" env:"GRPC_ADDR"`
	HTTPAddr      string `yaml:"http_addr" env:"HTTP_ADDR"`

	// QuotaBytes caps the memory backend; zero means unlimited.
	QuotaBytes int `yaml:"quota_bytes" env:"QUOTA_BYTES"`

	// Client side: a remote host address wins over a local bolt file.
	StoreAddr      string        `yaml:"store_addr" env:"STORE_ADDR"`
	StorePath      string        `yaml:"store_path" env:"STORE_PATH"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// LoadConfig loads configuration from a YAML file if path is provided,
// then applies environment variable overrides and defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			// If path was explicitly provided but file doesn't exist, return error
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Unset variables leave YAML values untouched.
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.NodeID == "" {
		cfg.NodeID = "node1"
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendBolt
	}
	if cfg.DataDir == "" {
		cfg.DataDir = fmt.Sprintf("./pyazcell/%s", cfg.NodeID)
	}
	if cfg.GRPCAddr == "" {
		cfg.GRPCAddr = ":9090"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.StoreAddr == "" && cfg.StorePath == "" {
		cfg.StorePath = filepath.Join(cfg.DataDir, "cells.db")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// ValidateServer checks the fields celld needs.
func (c *Config) ValidateServer() error {
	switch c.Backend {
	case BackendMemory, BackendBolt:
	case BackendRaft:
		if c.RaftAddr == "" {
			return fmt.Errorf("RAFT_ADDR is required for the raft backend (set via environment or config file)")
		}
	default:
		return fmt.Errorf("unknown backend %q (want %s, %s or %s)", c.Backend, BackendMemory, BackendBolt, BackendRaft)
	}
	if c.QuotaBytes < 0 {
		return fmt.Errorf("QUOTA_BYTES may not be negative")
	}
	return nil
}

// BoltPath is where the bolt backend keeps its data.
func (c *Config) BoltPath() string {
	return filepath.Join(c.DataDir, "store.db")
}
