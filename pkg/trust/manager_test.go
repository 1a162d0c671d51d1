// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package trust

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/cie/internal/config"
	"github.com/kraklabs/cie/pkg/audit"
)

func newTestManager(t *testing.T, prompt Prompter, cfg config.TrustConfig) (*Manager, *audit.MemorySink) {
	t.Helper()
	store, err := NewStore("")
	require.NoError(t, err)
	sink := audit.NewMemorySink()
	return NewManager(store, prompt, sink, cfg), sink
}

func TestCheckDeniesWithNonInteractivePromptByDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.bin"), []byte{1, 2, 3}, 0o644))

	cfg := config.TrustConfig{Enabled: true}
	mgr, sink := newTestManager(t, NonInteractivePrompt{}, cfg)

	res := mgr.Check(dir, "read")
	assert.False(t, res.Granted)
	assert.Equal(t, 1, sink.Count(audit.KindTrustDecision))
}

func TestCheckDisabledAlwaysGrants(t *testing.T) {
	dir := t.TempDir()
	mgr, _ := newTestManager(t, NonInteractivePrompt{}, config.TrustConfig{Enabled: false})

	res := mgr.Check(dir, "read")
	assert.True(t, res.Granted)
}

func TestCheckAutoTrustsGitRepo(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))

	cfg := config.TrustConfig{Enabled: true, AutoTrustGit: true}
	mgr, sink := newTestManager(t, NonInteractivePrompt{}, cfg)

	res := mgr.Check(dir, "read")
	assert.True(t, res.Granted)
	assert.Equal(t, 1, sink.Count(audit.KindTrustDecision))

	// Second call should short-circuit through the store, not auto-trust again.
	res2 := mgr.Check(dir, "read")
	assert.True(t, res2.Granted)
}

func TestCheckAutoTrustsBySizeAndExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("hello"), 0o644))

	cfg := config.TrustConfig{
		Enabled:           true,
		MaxAutoTrustSize:  1024,
		TrustedExtensions: []string{".md"},
	}
	mgr, _ := newTestManager(t, NonInteractivePrompt{}, cfg)

	res := mgr.Check(dir, "read")
	assert.True(t, res.Granted)
}

func TestCheckDoesNotAutoTrustDisallowedExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.exe"), []byte("hello"), 0o644))

	cfg := config.TrustConfig{
		Enabled:           true,
		MaxAutoTrustSize:  1024,
		TrustedExtensions: []string{".md"},
	}
	mgr, _ := newTestManager(t, NonInteractivePrompt{}, cfg)

	res := mgr.Check(dir, "read")
	assert.False(t, res.Granted)
}

func TestCheckBlockedEntryDominatesTrustedAncestor(t *testing.T) {
	store, err := NewStore("")
	require.NoError(t, err)

	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	target := filepath.Join(sub, "f.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	canonRoot, err := canonicalize(root)
	require.NoError(t, err)
	canonSub, err := canonicalize(sub)
	require.NoError(t, err)

	require.NoError(t, store.Upsert(Entry{Path: canonRoot, Level: Trusted, Scope: Scope{Recursive: true}, GrantedAt: time.Now()}))
	require.NoError(t, store.Upsert(Entry{Path: canonSub, Level: Blocked, GrantedAt: time.Now()}))

	mgr := NewManager(store, NonInteractivePrompt{}, nil, config.TrustConfig{Enabled: true})
	res := mgr.Check(target, "read")
	assert.False(t, res.Granted, "a Blocked entry must win over a Trusted/Recursive ancestor")
}

// countingPrompt blocks until release is closed, then returns decision,
// counting how many times Prompt was actually invoked.
type countingPrompt struct {
	calls    int32
	release  chan struct{}
	decision Decision
}

func (p *countingPrompt) Prompt(_ string, _ DirStats) (Decision, error) {
	atomic.AddInt32(&p.calls, 1)
	<-p.release
	return p.decision, nil
}

func TestCheckCoalescesConcurrentPromptsForSamePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), []byte{1}, 0o644))

	prompt := &countingPrompt{release: make(chan struct{}), decision: Decision{Outcome: DecisionGrant}}
	mgr, _ := newTestManager(t, prompt, config.TrustConfig{Enabled: true})

	const n = 8
	var wg sync.WaitGroup
	results := make([]CheckResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = mgr.Check(dir, "read")
		}(i)
	}

	// Give all goroutines a chance to enqueue behind the single in-flight prompt.
	time.Sleep(50 * time.Millisecond)
	close(prompt.release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&prompt.calls), "concurrent checks for the same path must coalesce into one prompt")
	for _, r := range results {
		assert.True(t, r.Granted)
	}
}
