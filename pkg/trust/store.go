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

package trust

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	cieerrors "github.com/kraklabs/cie/internal/errors"
)

// storeSchemaVersion is embedded in the on-disk file so future field
// additions can default missing values instead of guessing — spec.md §9
// open question 6.
const storeSchemaVersion = 1

// onDiskFile is the root JSON document persisted to the trust store file.
type onDiskFile struct {
	SchemaVersion int            `json:"schema_version"`
	Entries       []onDiskRecord `json:"entries"`
}

type onDiskRecord struct {
	Path       string            `json:"path"`
	Level      Level             `json:"level"`
	Recursive  bool              `json:"recursive"`
	Operations []string          `json:"operations,omitempty"`
	GrantedAt  time.Time         `json:"granted_at"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Conditions []onDiskCondition `json:"conditions,omitempty"`
}

type onDiskCondition struct {
	Kind       string     `json:"kind"`
	Since      *time.Time `json:"since,omitempty"`
	MaxSize    int64      `json:"max_size,omitempty"`
	Extensions []string   `json:"extensions,omitempty"`
}

// Store is the durable, canonical-path-keyed trust decision record
// (spec.md component B). Session-scoped entries (Scope.Session) are held
// only in memory and are never written to disk.
type Store struct {
	mu   sync.RWMutex
	path string // empty means memory-only, no persistence
	// entries holds everything, including Session-scoped entries that are
	// excluded from persistence.
	entries map[string]Entry
}

// NewStore loads a Store from path (creating an empty one if the file does
// not exist). An empty path yields a memory-only store, used by tests.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path, entries: make(map[string]Entry)}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", cieerrors.ErrIO, path, err)
	}

	if len(data) == 0 {
		return s, nil
	}

	var doc onDiskFile
	if err := json.Unmarshal(data, &doc); err != nil {
		// Load-time corruption yields StoreCorrupt and an empty in-memory
		// store; no silent overwrite of the file happens here — the next
		// successful Upsert is what rewrites it (spec.md §4.1 "Failure semantics").
		return s, fmt.Errorf("%w: %s: %v", cieerrors.ErrStoreCorrupt, path, err)
	}

	for _, rec := range doc.Entries {
		s.entries[rec.Path] = fromRecord(rec)
	}
	return s, nil
}

func fromRecord(rec onDiskRecord) Entry {
	scope := Scope{Recursive: rec.Recursive}
	if len(rec.Operations) > 0 {
		scope.Operations = make(map[string]bool, len(rec.Operations))
		for _, op := range rec.Operations {
			scope.Operations[op] = true
		}
	}
	conds := make([]Condition, 0, len(rec.Conditions))
	for _, c := range rec.Conditions {
		cond := Condition{Kind: c.Kind, MaxSize: c.MaxSize, Extensions: c.Extensions}
		if c.Since != nil {
			cond.Since = *c.Since
		}
		conds = append(conds, cond)
	}
	return Entry{
		Path:       rec.Path,
		Level:      rec.Level,
		Scope:      scope,
		GrantedAt:  rec.GrantedAt,
		ExpiresAt:  rec.ExpiresAt,
		Reason:     rec.Reason,
		Conditions: conds,
	}
}

func toRecord(e Entry) onDiskRecord {
	rec := onDiskRecord{
		Path:      e.Path,
		Level:     e.Level,
		Recursive: e.Scope.Recursive,
		GrantedAt: e.GrantedAt,
		ExpiresAt: e.ExpiresAt,
		Reason:    e.Reason,
	}
	for op, ok := range e.Scope.Operations {
		if ok {
			rec.Operations = append(rec.Operations, op)
		}
	}
	for _, c := range e.Conditions {
		cond := onDiskCondition{Kind: c.Kind, MaxSize: c.MaxSize, Extensions: c.Extensions}
		if !c.Since.IsZero() {
			since := c.Since
			cond.Since = &since
		}
		rec.Conditions = append(rec.Conditions, cond)
	}
	return rec
}

// Get returns the exact-match entry at path, if any.
func (s *Store) Get(path string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[path]
	return e, ok
}

// All returns a snapshot of every entry currently held, including Session
// ones (used by Watcher's initial scan; Export, which `trust list` reads,
// omits Session entries since those are never persisted).
func (s *Store) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// BestMatch returns the nearest ancestor entry applicable to path: the
// entry at path itself if present, otherwise the deepest proper ancestor
// whose scope is Recursive or whose level is Blocked. A Blocked ancestor
// always dominates, even over an exact entry at path itself (spec.md P2
// "Block dominance": if some ancestor is Blocked, no descendant decision
// yields Granted) — it would be unsound for a Blocked decision to be
// shadowed by a more specific grant the descendant acquired earlier.
func (s *Store) BestMatch(path string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exact, hasExact := s.entries[path]

	var nearest Entry
	hasNearest := false
	cur := path
	for {
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
		e, ok := s.entries[cur]
		if !ok {
			continue
		}
		if e.Level == Blocked {
			return e, true
		}
		if !hasExact && !hasNearest && e.Scope.Recursive {
			nearest, hasNearest = e, true
		}
	}

	if hasExact {
		return exact, true
	}
	if hasNearest {
		return nearest, true
	}
	return Entry{}, false
}

// Upsert atomically replaces the entry for e.Path, persisting the new state
// before returning (unless e.Scope.Session, which is memory-only). A
// persistence failure rolls back the in-memory state and returns
// ErrStorePersist (spec.md §4.1 "Guarantees").
func (s *Store) Upsert(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.entries[e.Path]
	s.entries[e.Path] = e

	if e.Scope.Session {
		return nil
	}

	if err := s.persistLocked(); err != nil {
		if had {
			s.entries[e.Path] = prev
		} else {
			delete(s.entries, e.Path)
		}
		return fmt.Errorf("%w: %v", cieerrors.ErrStorePersist, err)
	}
	return nil
}

// Remove deletes the entry at path, persisting the new state.
func (s *Store) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.entries[path]
	if !had {
		return nil
	}
	delete(s.entries, path)

	if prev.Scope.Session {
		return nil
	}

	if err := s.persistLocked(); err != nil {
		s.entries[path] = prev
		return fmt.Errorf("%w: %v", cieerrors.ErrStorePersist, err)
	}
	return nil
}

// SweepExpired removes all entries past ExpiresAt, returning the count
// removed. Session entries without an ExpiresAt are untouched here — they
// are discarded only at process shutdown by the caller (spec.md "Lifecycle").
func (s *Store) SweepExpired(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for path, e := range s.entries {
		if e.expired(now) {
			removed = append(removed, path)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}

	backup := make(map[string]Entry, len(removed))
	for _, path := range removed {
		backup[path] = s.entries[path]
		delete(s.entries, path)
	}

	if err := s.persistLocked(); err != nil {
		for path, e := range backup {
			s.entries[path] = e
		}
		return 0, fmt.Errorf("%w: %v", cieerrors.ErrStorePersist, err)
	}
	return len(removed), nil
}

// Export serializes every non-Session entry for transfer.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marshalLocked()
}

// Import merges (merge=true) or replaces (merge=false) the store's contents
// from a previously Exported byte slice.
func (s *Store) Import(data []byte, merge bool) error {
	var doc onDiskFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", cieerrors.ErrStoreCorrupt, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !merge {
		s.entries = make(map[string]Entry, len(doc.Entries))
	}
	for _, rec := range doc.Entries {
		s.entries[rec.Path] = fromRecord(rec)
	}

	if err := s.persistLocked(); err != nil {
		return fmt.Errorf("%w: %v", cieerrors.ErrStorePersist, err)
	}
	return nil
}

// marshalLocked serializes non-Session entries. Caller must hold s.mu.
func (s *Store) marshalLocked() ([]byte, error) {
	doc := onDiskFile{SchemaVersion: storeSchemaVersion}
	for _, e := range s.entries {
		if e.Scope.Session {
			continue
		}
		doc.Entries = append(doc.Entries, toRecord(e))
	}
	return json.MarshalIndent(doc, "", "  ")
}

// persistLocked writes the store to s.path using write-temp-then-rename.
// Caller must hold s.mu. A no-op when the store is memory-only.
func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}

	data, err := s.marshalLocked()
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
