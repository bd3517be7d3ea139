// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/sift/pkg/cache"
	"github.com/kraklabs/sift/pkg/ingestion"
	"github.com/kraklabs/sift/pkg/ratelimit"
	"github.com/kraklabs/sift/pkg/remote"
	"github.com/kraklabs/sift/pkg/storage"
)

const (
	configDirName  = ".sift"
	configFileName = "config.yaml"
)

// Config is the content of ~/.sift/config.yaml.
type Config struct {
	GitHub    GitHubConfig    `yaml:"github"`
	Storage   StorageConfig   `yaml:"storage"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Remote    RemoteConfig    `yaml:"remote"`
	Exclude   ExcludeConfig   `yaml:"exclude"`
}

// GitHubConfig holds the credential and default owner. The API and raw
// content hosts are fixed.
type GitHubConfig struct {
	Token    string `yaml:"token,omitempty"`
	Username string `yaml:"username,omitempty"`
}

type StorageConfig struct {
	Engine  string `yaml:"engine"`
	DataDir string `yaml:"data_dir,omitempty"`
}

type IngestionConfig struct {
	Collection string `yaml:"collection"`
	Workers    int    `yaml:"workers,omitempty"`
	BatchSize  int    `yaml:"batch_size"`
}

type RemoteConfig struct {
	MaxConcurrent int           `yaml:"max_concurrent"`
	Quota         int           `yaml:"quota"`
	Window        time.Duration `yaml:"window"`
	CacheSize     int           `yaml:"cache_size"`
	MaxDepth      int           `yaml:"max_depth"`
	Timeout       time.Duration `yaml:"timeout"`
}

// ExcludeConfig adds to the built-in exclusion policy.
type ExcludeConfig struct {
	Extensions []string `yaml:"extensions,omitempty"`
	DirNames   []string `yaml:"dir_names,omitempty"`
	Dirs       []string `yaml:"dirs,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Engine: storage.EngineSQLite,
		},
		Ingestion: IngestionConfig{
			Collection: ingestion.DefaultCollection,
			BatchSize:  1,
		},
		Remote: RemoteConfig{
			MaxConcurrent: ratelimit.DefaultMaxConcurrent,
			Quota:         ratelimit.DefaultQuota,
			Window:        ratelimit.DefaultWindow,
			CacheSize:     cache.DefaultCapacity,
			MaxDepth:      remote.DefaultMaxDepth,
			Timeout:       30 * time.Second,
		},
	}
}

// ConfigDir returns ~/.sift.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// DefaultConfigPath returns ~/.sift/config.yaml.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// LoadConfig reads the config file at path (default: DefaultConfigPath).
// A missing file yields DefaultConfig. Environment overrides are applied
// last.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv applies SIFT_GITHUB_TOKEN (falling back to GITHUB_TOKEN) and
// SIFT_GITHUB_USER.
func (c *Config) applyEnv() {
	if v := os.Getenv("SIFT_GITHUB_TOKEN"); v != "" {
		c.GitHub.Token = v
	} else if v := os.Getenv("GITHUB_TOKEN"); v != "" && c.GitHub.Token == "" {
		c.GitHub.Token = v
	}
	if v := os.Getenv("SIFT_GITHUB_USER"); v != "" {
		c.GitHub.Username = v
	}
}

// Validate rejects values no command can run with.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case storage.EngineSQLite, storage.EngineBadger, storage.EngineMemory:
	default:
		return fmt.Errorf("storage.engine %q is not one of %s, %s, %s",
			c.Storage.Engine, storage.EngineSQLite, storage.EngineBadger, storage.EngineMemory)
	}
	if strings.TrimSpace(c.Ingestion.Collection) == "" {
		return errors.New("ingestion.collection must not be empty")
	}
	if err := storage.ValidateCollectionName(c.Ingestion.Collection); err != nil {
		return fmt.Errorf("ingestion.collection: %w", err)
	}
	if c.Ingestion.Workers < 0 || c.Ingestion.BatchSize < 0 {
		return errors.New("ingestion.workers and ingestion.batch_size must not be negative")
	}
	if c.Remote.MaxConcurrent < 0 || c.Remote.Quota < 0 || c.Remote.Window < 0 {
		return errors.New("remote limits must not be negative")
	}
	return nil
}

// SaveConfig writes cfg to path, creating the directory. The token is never
// written; it belongs in the environment.
func SaveConfig(cfg *Config, path string) error {
	out := *cfg
	out.GitHub.Token = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) RateLimit() ratelimit.Config {
	return ratelimit.Config{
		MaxConcurrent: c.Remote.MaxConcurrent,
		Quota:         c.Remote.Quota,
		Window:        c.Remote.Window,
	}
}

// DataDir returns the storage directory, defaulting to ~/.sift/data.
func (c *Config) DataDir() (string, error) {
	if c.Storage.DataDir != "" {
		return expandHome(c.Storage.DataDir)
	}
	return storage.DefaultDataDir()
}

// CheckpointDir returns the directory holding id checkpoints.
func (c *Config) CheckpointDir() (string, error) {
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "checkpoints"), nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
