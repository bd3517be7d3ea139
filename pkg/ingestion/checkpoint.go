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

package ingestion

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Checkpoint persists the id sequence of a collection across runs so that a
// persistent sink never receives a reused id.
type Checkpoint struct {
	Collection     string `json:"collection"`
	NextID         uint64 `json:"next_id"`
	RecordsEmitted int64  `json:"records_emitted"`
	Runs           int    `json:"runs"`
	StartTime      string `json:"start_time"`
	LastUpdateTime string `json:"last_update_time"`
}

// CheckpointManager reads and writes checkpoints in a directory.
type CheckpointManager struct {
	checkpointPath string
}

// NewCheckpointManager creates a manager rooted at checkpointPath.
func NewCheckpointManager(checkpointPath string) *CheckpointManager {
	return &CheckpointManager{
		checkpointPath: checkpointPath,
	}
}

// LoadCheckpoint returns the checkpoint of a collection, or nil if none exists.
func (cm *CheckpointManager) LoadCheckpoint(collection string) (*Checkpoint, error) {
	path := cm.getCheckpointPath(collection)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return &checkpoint, nil
}

// SaveCheckpoint writes checkpoint atomically (temp file + rename).
func (cm *CheckpointManager) SaveCheckpoint(checkpoint *Checkpoint) error {
	path := cm.getCheckpointPath(checkpoint.Collection)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// ClearCheckpoint removes the checkpoint of a collection.
func (cm *CheckpointManager) ClearCheckpoint(collection string) error {
	path := cm.getCheckpointPath(collection)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}
	return nil
}

func (cm *CheckpointManager) getCheckpointPath(collection string) string {
	return filepath.Join(cm.checkpointPath, fmt.Sprintf("checkpoint-%s.json", collection))
}
