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
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kraklabs/cie/internal/config"
	"github.com/kraklabs/cie/internal/gitutil"
	"github.com/kraklabs/cie/pkg/audit"
)

// Manager is the single entry point every filesystem-touching operation
// calls through (spec.md component D, §4.3 "Trust Manager"). It composes a
// Store, a Prompter, and an audit.Sink, and is safe for concurrent use.
type Manager struct {
	store  *Store
	prompt Prompter
	sink   audit.Sink
	cfg    config.TrustConfig

	inflight sync.Map // path string -> *inflightPrompt
}

type inflightPrompt struct {
	wg     sync.WaitGroup
	result Decision
	err    error
}

// NewManager builds a Manager. sink may be nil, in which case audit events
// are dropped (used by tests that don't care about the audit trail).
func NewManager(store *Store, prompt Prompter, sink audit.Sink, cfg config.TrustConfig) *Manager {
	return &Manager{store: store, prompt: prompt, sink: sink, cfg: cfg}
}

// Check is the trust gate every read/write/list/metadata call passes
// through first (spec.md §4.3 algorithm). op is one of "read", "write",
// "list", "metadata".
func (m *Manager) Check(path, op string) CheckResult {
	canon, err := canonicalize(path)
	if err != nil {
		return m.deny(path, op, "path could not be canonicalized: "+err.Error())
	}

	if !m.cfg.Enabled {
		return CheckResult{Granted: true}
	}

	if res, ok := m.checkStore(canon, op); ok {
		return res
	}

	if res, ok := m.checkAutoTrust(canon); ok {
		return res
	}

	return m.checkPrompt(canon, op)
}

// checkStore evaluates any existing Store entry (exact or ancestor match),
// re-checking expiry and conditions on every call (spec.md P1 "Condition
// re-evaluation") and enforcing Block dominance (P2) and scope.Admits (P4).
func (m *Manager) checkStore(canon, op string) (CheckResult, bool) {
	e, ok := m.store.BestMatch(canon)
	if !ok {
		return CheckResult{}, false
	}

	if e.expired(time.Now()) {
		return CheckResult{}, false
	}

	switch e.Level {
	case Blocked:
		res := m.denyWithKind(audit.KindSecurityViolation, canon, op, "path is explicitly blocked")
		return res, true

	case Trusted, Temporary:
		if !conditionsHold(e, os.Stat) {
			// Treated as Untrusted for this lookup: fall through to the
			// auto-trust rules and the prompt without removing the entry.
			return CheckResult{}, false
		}
		if !e.Scope.Admits(op) {
			res := m.deny(canon, op, "trust scope does not admit operation "+op)
			return res, true
		}
		m.audit(audit.KindFileAccess, canon, audit.OutcomeSuccess, "granted by existing trust entry")
		return CheckResult{Granted: true}, true

	default: // Untrusted
		return CheckResult{}, false
	}
}

// checkAutoTrust applies the ordered auto-trust rules (spec.md §4.3
// "Auto-trust rules", evaluated in this order): configured always-trusted
// roots, git-repository detection, size threshold, then extension
// whitelist. The first rule that matches grants Trusted, Recursive trust and
// records it in the store so subsequent lookups short-circuit via checkStore.
func (m *Manager) checkAutoTrust(canon string) (CheckResult, bool) {
	if !m.cfg.Enabled {
		return CheckResult{}, false
	}

	for _, trustedRoot := range m.cfg.TrustedPaths {
		root, err := canonicalize(trustedRoot)
		if err != nil {
			continue
		}
		if canon == root || strings.HasPrefix(canon, root+string(filepath.Separator)) {
			return m.grantAuto(canon, "configured trusted path", Scope{Recursive: true})
		}
	}

	info, err := os.Stat(canon)
	if err != nil {
		return CheckResult{}, false
	}

	if m.cfg.AutoTrustGit && info.IsDir() && gitutil.HasRepo(canon) {
		return m.grantAuto(canon, "auto-trusted git repository", Scope{
			Recursive: true,
		})
	}

	size, sizeErr := pathSize(canon, info)
	if sizeErr == nil && m.cfg.MaxAutoTrustSize > 0 && size <= m.cfg.MaxAutoTrustSize {
		if allFilesHaveExtension(canon, m.cfg.TrustedExtensions, os.Stat) {
			return m.grantAuto(canon, "small directory of trusted file types", Scope{Recursive: true})
		}
	}

	return CheckResult{}, false
}

func (m *Manager) grantAuto(canon, reason string, scope Scope) (CheckResult, bool) {
	now := time.Now()
	var expiresAt *time.Time
	if m.cfg.TrustTimeout > 0 {
		t := now.Add(time.Duration(m.cfg.TrustTimeout))
		expiresAt = &t
	}
	entry := Entry{
		Path:      canon,
		Level:     Trusted,
		Scope:     scope,
		GrantedAt: now,
		ExpiresAt: expiresAt,
		Reason:    reason,
	}
	if err := m.store.Upsert(entry); err != nil {
		// Persistence failure degrades to a one-shot grant: the decision
		// still stands for this call, but isn't remembered.
		m.audit(audit.KindTrustDecision, canon, audit.OutcomeFailure, "auto-trust persist failed: "+err.Error())
		return CheckResult{Granted: true}, true
	}
	m.audit(audit.KindTrustDecision, canon, audit.OutcomeSuccess, reason)
	return CheckResult{Granted: true}, true
}

// checkPrompt falls back to interactive confirmation, coalescing concurrent
// callers for the same canonical path into a single Prompt invocation
// (spec.md P6 "Prompt coalescing"). A caller that abandons its own request
// (e.g. a cancelled context upstream) does not cancel the in-flight prompt
// for other waiters.
func (m *Manager) checkPrompt(canon, op string) CheckResult {
	// Add before publishing, so a waiter that loads this entry always
	// blocks until the leader has stored its result.
	fresh := &inflightPrompt{}
	fresh.wg.Add(1)
	inflightAny, loaded := m.inflight.LoadOrStore(canon, fresh)
	inf := inflightAny.(*inflightPrompt)

	if loaded {
		inf.wg.Wait()
		return m.applyDecision(canon, op, inf.result, inf.err, false)
	}

	defer func() {
		m.inflight.Delete(canon)
		inf.wg.Done()
	}()

	stats, statErr := ComputeDirStats(canon, false)
	if statErr != nil {
		inf.err = statErr
		return m.deny(canon, op, "could not inspect path: "+statErr.Error())
	}

	decision, err := m.prompt.Prompt(canon, stats)
	inf.result, inf.err = decision, err
	return m.applyDecision(canon, op, decision, err, true)
}

// applyDecision records a Prompter decision into the store (first caller
// only — subsequent coalesced callers just reuse the outcome) and returns
// the CheckResult for this particular call's op.
func (m *Manager) applyDecision(canon, op string, decision Decision, err error, persist bool) CheckResult {
	if err != nil {
		return m.deny(canon, op, "prompt failed: "+err.Error())
	}

	switch decision.Outcome {
	case DecisionGrant:
		if persist {
			entry := Entry{
				Path:      canon,
				Level:     Trusted,
				Scope:     decision.Scope,
				GrantedAt: time.Now(),
				Reason:    decision.Reason,
			}
			if decision.Scope.Session {
				entry.Level = Temporary
			}
			if uerr := m.store.Upsert(entry); uerr != nil {
				m.audit(audit.KindTrustDecision, canon, audit.OutcomeFailure, "grant persist failed: "+uerr.Error())
			} else {
				m.audit(audit.KindTrustDecision, canon, audit.OutcomeSuccess, decision.Reason)
			}
		}
		if !decision.Scope.Admits(op) {
			return m.deny(canon, op, "granted scope does not admit operation "+op)
		}
		return CheckResult{Granted: true}

	case DecisionBlock:
		if persist {
			entry := Entry{Path: canon, Level: Blocked, GrantedAt: time.Now(), Reason: decision.Reason}
			if uerr := m.store.Upsert(entry); uerr != nil {
				m.audit(audit.KindTrustDecision, canon, audit.OutcomeFailure, "block persist failed: "+uerr.Error())
			} else {
				m.audit(audit.KindTrustRevoked, canon, audit.OutcomeSuccess, decision.Reason)
			}
		}
		return m.deny(canon, op, "user blocked path")

	default: // DecisionDeny
		return m.denyWithKind(audit.KindTrustDecision, canon, op, decision.Reason)
	}
}

func (m *Manager) deny(path, op, reason string) CheckResult {
	return m.denyWithKind(audit.KindFileAccess, path, op, reason)
}

// denyWithKind records a denial under the given audit kind. Most denials are
// plain FileAccess/Denied events, but spec.md §4.3 calls for specific kinds
// at specific steps: a Blocked best-match is a SecurityViolation, and a
// Prompter Deny decision is itself a TrustDecision.
func (m *Manager) denyWithKind(kind audit.Kind, path, op, reason string) CheckResult {
	m.audit(kind, path, audit.OutcomeDenied, op+": "+reason)
	return CheckResult{Granted: false, Reason: reason}
}

func (m *Manager) audit(kind audit.Kind, path string, outcome audit.Outcome, details string) {
	if m.sink == nil {
		return
	}
	_ = m.sink.Record(audit.NewEvent(kind, path, outcome, details))
}

// canonicalize resolves path to an absolute, symlink-free form, matching
// the key space the Store is indexed by.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			// A not-yet-created write target has no symlinks to resolve;
			// fall back to the absolute, cleaned path.
			return filepath.Clean(abs), nil
		}
		return "", err
	}
	return resolved, nil
}

func pathSize(path string, info fs.FileInfo) (int64, error) {
	if !info.IsDir() {
		return info.Size(), nil
	}
	return dirSize(path)
}
