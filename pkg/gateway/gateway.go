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

package gateway

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	cieerrors "github.com/kraklabs/cie/internal/errors"
	"github.com/kraklabs/cie/pkg/audit"
	"github.com/kraklabs/cie/pkg/trust"
)

const (
	opRead     = "read"
	opWrite    = "write"
	opList     = "list"
	opMetadata = "metadata"
)

// Metadata is the result of a Metadata or Exists call.
type Metadata struct {
	Path    string
	Size    int64
	IsDir   bool
	Mode    os.FileMode
	ModTime time.Time
}

// Gateway is the Secure File Gateway (spec.md component E): every
// filesystem verb the rest of the application uses goes through here, so
// trust gating and path safety are enforced uniformly (spec.md §4.5 "Every
// operation composes: PathSafety -> TrustManager -> filesystem -> Audit").
type Gateway struct {
	safety *PathSafety
	trust  *trust.Manager
	sink   audit.Sink
}

// New builds a Gateway from its three collaborators.
func New(safety *PathSafety, manager *trust.Manager, sink audit.Sink) *Gateway {
	return &Gateway{safety: safety, trust: manager, sink: sink}
}

// Read returns the contents of path after it passes path safety, trust
// gating, and the read-size cap.
func (g *Gateway) Read(path string) ([]byte, error) {
	canon, err := g.authorize(path, opRead)
	if err != nil {
		return nil, err
	}

	if _, err := g.safety.CheckReadSize(canon); err != nil {
		g.audit(audit.KindSecurityViolation, canon, audit.OutcomeDenied, err.Error())
		return nil, err
	}

	data, err := os.ReadFile(canon)
	if err != nil {
		g.audit(audit.KindFileAccess, canon, audit.OutcomeFailure, err.Error())
		return nil, fmt.Errorf("%w: %v", cieerrors.ErrIO, err)
	}
	g.audit(audit.KindFileAccess, canon, audit.OutcomeSuccess, "read")
	return data, nil
}

// Write creates or overwrites path with data, after a writability probe on
// its parent directory.
func (g *Gateway) Write(path string, data []byte, perm os.FileMode) error {
	canon, err := g.authorize(path, opWrite)
	if err != nil {
		return err
	}

	dir := filepath.Dir(canon)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		g.audit(audit.KindFileAccess, canon, audit.OutcomeFailure, err.Error())
		return fmt.Errorf("%w: %v", cieerrors.ErrIO, err)
	}
	if err := ProbeWritable(dir); err != nil {
		g.audit(audit.KindFileAccess, canon, audit.OutcomeDenied, err.Error())
		return err
	}

	if err := os.WriteFile(canon, data, perm); err != nil {
		g.audit(audit.KindFileAccess, canon, audit.OutcomeFailure, err.Error())
		return fmt.Errorf("%w: %v", cieerrors.ErrIO, err)
	}
	g.audit(audit.KindFileAccess, canon, audit.OutcomeSuccess, "write")
	return nil
}

// List returns the names of entries directly inside the directory at path.
func (g *Gateway) List(path string) ([]string, error) {
	canon, err := g.authorize(path, opList)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(canon)
	if err != nil {
		g.audit(audit.KindFileAccess, canon, audit.OutcomeFailure, err.Error())
		return nil, fmt.Errorf("%w: %v", cieerrors.ErrIO, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	g.audit(audit.KindFileAccess, canon, audit.OutcomeSuccess, "list")
	return names, nil
}

// Metadata returns file metadata for path without reading its contents.
func (g *Gateway) Metadata(path string) (Metadata, error) {
	canon, err := g.authorize(path, opMetadata)
	if err != nil {
		return Metadata{}, err
	}

	info, err := os.Stat(canon)
	if err != nil {
		g.audit(audit.KindFileAccess, canon, audit.OutcomeFailure, err.Error())
		return Metadata{}, fmt.Errorf("%w: %v", cieerrors.ErrIO, err)
	}
	g.audit(audit.KindFileAccess, canon, audit.OutcomeSuccess, "metadata")
	return Metadata{
		Path:    canon,
		Size:    info.Size(),
		IsDir:   info.IsDir(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
	}, nil
}

// Exists reports whether path exists. Per spec.md §4.5, exists is the one
// verb that does not go through TrustManager.check — only symlink-escape
// canonicalization applies, so it returns a plain boolean rather than
// ErrDenied for an untrusted path.
func (g *Gateway) Exists(path string) (bool, error) {
	canon, err := g.safety.Canonicalize(path)
	if err != nil {
		g.audit(audit.KindSecurityViolation, path, audit.OutcomeDenied, err.Error())
		return false, err
	}

	_, err = os.Stat(canon)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", cieerrors.ErrIO, err)
}

// authorize runs PathSafety.Canonicalize then trust.Manager.Check, in that
// order: a path that escapes its allowed roots is rejected before the trust
// manager ever sees it, so a symlink trick can't be laundered into a trust
// prompt for an unrelated, dangerous location.
func (g *Gateway) authorize(path, op string) (string, error) {
	canon, err := g.safety.Canonicalize(path)
	if err != nil {
		g.audit(audit.KindSecurityViolation, path, audit.OutcomeDenied, err.Error())
		return "", err
	}

	res := g.trust.Check(canon, op)
	if !res.Granted {
		return "", fmt.Errorf("%w: %s", cieerrors.ErrDenied, res.Reason)
	}
	return canon, nil
}

func (g *Gateway) audit(kind audit.Kind, path string, outcome audit.Outcome, details string) {
	if g.sink == nil {
		return
	}
	_ = g.sink.Record(audit.NewEvent(kind, path, outcome, details))
}
