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
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kraklabs/sift/pkg/storage"
)

// DefaultCollection is the collection records are written to.
const DefaultCollection = "siftfiles"

// Record sources.
const (
	SourceLocal  = "local"
	SourceGitHub = "github"
)

// Content encodings.
const (
	EncodingText   = "text"
	EncodingBase64 = "base64"
)

// Item is one discovered unit of content handed to the pipeline.
type Item struct {
	// Path is the absolute file path for local items and
	// owner/repo/path for remote ones.
	Path string

	// Source is SourceLocal or SourceGitHub.
	Source string

	// Repo is owner/repo for remote items.
	Repo string

	// URL is the browsable location of a remote item.
	URL string

	// Data holds the already fetched content of a remote item.
	// Local items are read from Path.
	Data []byte
}

// FileMetadata is the metadata derived from an item's path.
type FileMetadata struct {
	FilePath  string
	FileName  string
	Extension string
	Size      int64
	Source    string
	Repo      string
	URL       string
	Encoding  string
}

// Metadata flattens m into the sink representation.
func (m FileMetadata) Metadata() storage.Metadata {
	md := storage.Metadata{
		"filepath":  m.FilePath,
		"filename":  m.FileName,
		"extension": m.Extension,
		"size":      strconv.FormatInt(m.Size, 10),
		"location":  m.Source,
		"encoding":  m.Encoding,
	}
	if m.Repo != "" {
		md["repo"] = m.Repo
	}
	if m.URL != "" {
		md["url"] = m.URL
	}
	return md
}

// ContentRecord is the normalized record emitted to the sink.
type ContentRecord struct {
	ID       string
	Content  string
	Metadata FileMetadata
}

// metadataFor derives FileMetadata from an item and its content size.
func metadataFor(it Item, size int64, encoding string) FileMetadata {
	name := fileName(it)
	return FileMetadata{
		FilePath:  it.Path,
		FileName:  name,
		Extension: extension(name),
		Size:      size,
		Source:    it.Source,
		Repo:      it.Repo,
		URL:       it.URL,
		Encoding:  encoding,
	}
}

func fileName(it Item) string {
	if it.Source == SourceGitHub {
		return path.Base(it.Path)
	}
	return filepath.Base(it.Path)
}

// extension returns the extension without its dot, empty when there is none.
func extension(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimPrefix(ext, ".")
}
