// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// defaultMaxSizeBytes is the size past which FileSink rotates its log,
// following the bounded retention original_source/src/security/audit.rs
// applies to its in-process ring before flushing — see SPEC_FULL.md §12.2.
const defaultMaxSizeBytes = 10 * 1024 * 1024 // 10 MiB

// FileSink is a Sink that appends newline-delimited JSON records to a file,
// rotating to "<path>.1" once the file exceeds MaxSizeBytes. One rotation
// slot is kept; older rotations are overwritten.
type FileSink struct {
	mu           sync.Mutex
	path         string
	f            *os.File
	size         int64
	MaxSizeBytes int64
}

// NewFileSink opens (creating if necessary) path for append, and returns a
// FileSink that writes to it.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat audit log %s: %w", path, err)
	}
	return &FileSink{
		path:         path,
		f:            f,
		size:         info.Size(),
		MaxSizeBytes: defaultMaxSizeBytes,
	}, nil
}

// Record appends event as a JSON line, rotating the file first if it has
// grown past MaxSizeBytes. If rotation fails, the event is not written and
// the wrapped rotation error is returned.
func (s *FileSink) Record(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size >= s.MaxSizeBytes {
		if err := s.rotateLocked(); err != nil {
			return fmt.Errorf("rotate audit log: %w", err)
		}
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	line = append(line, '\n')

	n, err := s.f.Write(line)
	s.size += int64(n)
	if err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// rotateLocked renames the current file to "<path>.1" (overwriting any
// previous rotation) and opens a fresh file at path. Caller must hold s.mu.
func (s *FileSink) rotateLocked() error {
	if err := s.f.Close(); err != nil {
		return err
	}
	rotated := s.path + ".1"
	if err := os.Rename(s.path, rotated); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return err
	}
	s.f = f
	s.size = 0
	return nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
