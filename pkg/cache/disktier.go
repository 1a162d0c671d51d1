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

package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"

	cieerrors "github.com/kraklabs/cie/internal/errors"
)

// diskIndexSchemaVersion guards the on-disk index format the same way
// pkg/trust's store does for its own file.
const diskIndexSchemaVersion = 1

// diskIndexFile is the root JSON document for the disk tier's index.
type diskIndexFile struct {
	SchemaVersion int                      `json:"schema_version"`
	Compressed    bool                     `json:"compressed"`
	Entries       map[string]diskIndexItem `json:"entries"`
}

type diskIndexItem struct {
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	AccessCount  int64     `json:"access_count"`
	SizeBytes    int64     `json:"size_bytes"`
	Category     Category  `json:"category"`
}

// diskTier is the content-addressed, optionally compressed on-disk store
// (spec.md §4.6.3). Payloads live under dir/ab/cd/<rest-of-hash>; the index
// maps cache keys to metadata and is rewritten after every mutation.
type diskTier struct {
	mu        sync.RWMutex
	dir       string
	compress  bool
	indexPath string
	index     map[string]diskIndexItem
}

func newDiskTier(dir string, compress bool) (*diskTier, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create cache dir %s: %v", cieerrors.ErrIO, dir, err)
	}

	d := &diskTier{
		dir:       dir,
		compress:  compress,
		indexPath: filepath.Join(dir, "index.json"),
		index:     make(map[string]diskIndexItem),
	}

	data, err := os.ReadFile(d.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return nil, fmt.Errorf("%w: read index: %v", cieerrors.ErrIO, err)
	}
	if len(data) == 0 {
		return d, nil
	}

	var doc diskIndexFile
	if err := json.Unmarshal(data, &doc); err != nil {
		// A corrupt index is treated as empty rather than fatal: the next
		// successful put rewrites it (mirrors pkg/trust.Store's posture).
		return d, nil
	}
	if doc.Compressed != compress {
		// Payloads written under the other compression setting cannot be
		// decoded by this tier; start with an empty index so they read as
		// misses instead of being returned undecoded.
		return d, nil
	}
	d.index = doc.Entries
	if d.index == nil {
		d.index = make(map[string]diskIndexItem)
	}
	return d, nil
}

// shardPath returns dir/ab/cd/<rest> for key, derived from its sha256 hash
// (spec.md §4.6.1: "A cryptographic hash of the key yields the on-disk
// shard path dir[0..2]/dir[2..4]/dir[4..]").
func (d *diskTier) shardPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	hash := hex.EncodeToString(sum[:])
	return filepath.Join(d.dir, hash[0:2], hash[2:4], hash[4:])
}

// get reads key from disk if present and not expired, decompressing if the
// tier was configured with compression (spec.md §4.6.4 step 2). An index
// written under the other compression setting is discarded at load, so its
// entries read as plain misses; a payload that fails to decode yields
// ErrCacheCorrupt, which the caller records as a miss.
func (d *diskTier) get(key string, ttl time.Duration, now time.Time) ([]byte, EntryMeta, error, bool) {
	d.mu.RLock()
	item, ok := d.index[key]
	d.mu.RUnlock()
	if !ok {
		return nil, EntryMeta{}, nil, false
	}
	if ttl > 0 && now.Sub(item.CreatedAt) > ttl {
		return nil, EntryMeta{}, nil, false
	}

	raw, err := os.ReadFile(d.shardPath(key))
	if err != nil {
		return nil, EntryMeta{}, nil, false
	}

	data, err := d.decode(raw)
	if err != nil {
		return nil, EntryMeta{}, fmt.Errorf("%w: %s: %v", cieerrors.ErrCacheCorrupt, key, err), true
	}

	meta := EntryMeta{
		CreatedAt:    item.CreatedAt,
		LastAccessed: now,
		AccessCount:  item.AccessCount + 1,
		SizeBytes:    int64(len(data)),
		Category:     item.Category,
	}
	return data, meta, nil, true
}

// put persists data under key's shard path and updates the index,
// rewriting it atomically (spec.md §4.6.5 step 4).
func (d *diskTier) put(key string, data []byte, meta EntryMeta) error {
	encoded, err := d.encode(data)
	if err != nil {
		return fmt.Errorf("%w: compress %s: %v", cieerrors.ErrIO, key, err)
	}

	path := d.shardPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("%w: %v", cieerrors.ErrIO, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o640); err != nil {
		return fmt.Errorf("%w: %v", cieerrors.ErrIO, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", cieerrors.ErrIO, err)
	}

	d.mu.Lock()
	d.index[key] = diskIndexItem{
		CreatedAt:    meta.CreatedAt,
		LastAccessed: meta.LastAccessed,
		AccessCount:  meta.AccessCount,
		SizeBytes:    int64(len(data)),
		Category:     meta.Category,
	}
	err = d.persistIndexLocked()
	d.mu.Unlock()
	return err
}

// remove deletes key's payload file and index entry, best-effort on the
// file removal (a missing file is not an error).
func (d *diskTier) remove(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.index[key]; !ok {
		return nil
	}
	_ = os.Remove(d.shardPath(key))
	delete(d.index, key)
	return d.persistIndexLocked()
}

// sweepExpired removes every index entry older than ttl, deleting files
// best-effort, and rewrites the index once (spec.md §4.6.6 "Disk TTL
// sweep"). It returns the number of entries removed.
func (d *diskTier) sweepExpired(ttl time.Duration, now time.Time) int {
	d.mu.RLock()
	var expired []string
	for key, item := range d.index {
		if now.Sub(item.CreatedAt) > ttl {
			expired = append(expired, key)
		}
	}
	d.mu.RUnlock()

	if len(expired) == 0 {
		return 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, key := range expired {
		_ = os.Remove(d.shardPath(key))
		delete(d.index, key)
	}
	_ = d.persistIndexLocked()
	return len(expired)
}

// clear recursively removes the cache directory, recreates it, and resets
// the index (spec.md §4.6.6 "Clear").
func (d *diskTier) clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.RemoveAll(d.dir); err != nil {
		return fmt.Errorf("%w: %v", cieerrors.ErrIO, err)
	}
	if err := os.MkdirAll(d.dir, 0o750); err != nil {
		return fmt.Errorf("%w: %v", cieerrors.ErrIO, err)
	}
	d.index = make(map[string]diskIndexItem)
	return nil
}

func (d *diskTier) entryCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.index)
}

func (d *diskTier) totalBytes() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var total int64
	for _, item := range d.index {
		total += item.SizeBytes
	}
	return total
}

// persistIndexLocked writes the index via write-temp-then-rename. Caller
// must hold d.mu.
func (d *diskTier) persistIndexLocked() error {
	doc := diskIndexFile{SchemaVersion: diskIndexSchemaVersion, Compressed: d.compress, Entries: d.index}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", cieerrors.ErrIO, err)
	}
	tmp := d.indexPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("%w: %v", cieerrors.ErrIO, err)
	}
	if err := os.Rename(tmp, d.indexPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", cieerrors.ErrIO, err)
	}
	return nil
}

// encode applies flate compression when d.compress is set (spec.md §4.6.8
// "A format tag is implied by configuration").
func (d *diskTier) encode(data []byte) ([]byte, error) {
	if !d.compress {
		return data, nil
	}
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decode reverses encode. Reads assume the tier's current compression
// setting matches how the payload was written (newDiskTier drops an index
// written under the other setting); a payload that does not inflate
// surfaces as a decode failure, which the caller wraps as ErrCacheCorrupt.
func (d *diskTier) decode(raw []byte) ([]byte, error) {
	if !d.compress {
		return raw, nil
	}
	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	return io.ReadAll(r)
}
