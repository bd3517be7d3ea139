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

package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Storage engines accepted by Open.
const (
	EngineSQLite = "sqlite"
	EngineBadger = "badger"
	EngineMemory = "memory"
)

// Config selects and locates a Backend.
type Config struct {
	// Engine is one of EngineSQLite, EngineBadger or EngineMemory.
	// Defaults to EngineSQLite.
	Engine string

	// DataDir is the directory holding the engine's files.
	// Defaults to ~/.sift/data.
	DataDir string

	Logger *slog.Logger
}

// DefaultDataDir returns ~/.sift/data.
func DefaultDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(homeDir, ".sift", "data"), nil
}

// Open creates the configured Backend.
func Open(config Config) (Backend, error) {
	if config.Engine == "" {
		config.Engine = EngineSQLite
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Engine == EngineMemory {
		return NewMemoryBackend(), nil
	}

	if config.DataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		config.DataDir = dir
	}
	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	switch config.Engine {
	case EngineSQLite:
		return NewSQLiteBackend(filepath.Join(config.DataDir, "sift.db"), config.Logger)
	case EngineBadger:
		return NewBadgerBackend(filepath.Join(config.DataDir, "badger"), config.Logger)
	default:
		return nil, fmt.Errorf("unknown storage engine %q (want %s, %s or %s)",
			config.Engine, EngineSQLite, EngineBadger, EngineMemory)
	}
}
