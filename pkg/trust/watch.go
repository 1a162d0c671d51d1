// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package trust

import (
	"github.com/fsnotify/fsnotify"
)

// Watcher opportunistically demotes a Trusted, Recursive entry whose
// "no_modifications_since" condition would otherwise only be caught the
// next time something calls Check. It is a pure latency optimization:
// conditionsHold already re-stats the filesystem on every synchronous
// lookup (spec.md P1), so a missed, delayed, or coalesced fsnotify event
// never grants access a live check would have denied — it only means the
// demotion in the Store lags the write by however long the watch takes to
// deliver its event.
type Watcher struct {
	store *Store
	fsw   *fsnotify.Watcher
	done  chan struct{}
}

// NewWatcher starts watching every currently Trusted, Recursive entry in
// store that carries a "no_modifications_since" condition. Failing to start
// a watch (e.g. inotify instance limits, an unreadable root) is non-fatal:
// the caller simply falls back to the synchronous re-evaluation path alone.
func NewWatcher(store *Store) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{store: store, fsw: fsw, done: make(chan struct{})}
	for _, e := range store.All() {
		if e.Level == Trusted && e.Scope.Recursive && hasFreshnessCondition(e) {
			_ = fsw.Add(e.Path)
		}
	}

	go w.loop()
	return w, nil
}

func hasFreshnessCondition(e Entry) bool {
	for _, c := range e.Conditions {
		if c.Kind == "no_modifications_since" {
			return true
		}
	}
	return false
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.demoteRootOf(event.Name)
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Watch errors are not fatal: the next Check still re-stats live.
		}
	}
}

// demoteRootOf removes the trust entry that owns the watched root
// containing changedPath, so the next Check re-runs auto-trust or prompts
// afresh instead of reusing a grant whose freshness condition just broke.
func (w *Watcher) demoteRootOf(changedPath string) {
	for _, e := range w.store.All() {
		if e.Level == Trusted && e.Scope.Recursive && hasFreshnessCondition(e) {
			if changedPath == e.Path || len(changedPath) > len(e.Path) && changedPath[:len(e.Path)+1] == e.Path+"/" {
				_ = w.store.Remove(e.Path)
			}
		}
	}
}

// Close stops the underlying filesystem watch. Safe to call once.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
