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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// CategorySnapshot is a point-in-time read of one category's counters
// (spec.md §4.6.7).
type CategorySnapshot struct {
	Hits    int64
	Misses  int64
	Entries int64
	Bytes   int64
}

// Snapshot is the full statistics read returned by Cache.Stats.
type Snapshot struct {
	ByCategory map[Category]CategorySnapshot
	TotalHits  int64
	TotalMiss  int64
	HitRate    float64
}

// statistics tracks hits/misses/entries/bytes per category, both as plain
// in-process counters (for Snapshot, which `cie cache stats` prints) and as
// prometheus metrics, which are registered only when a caller supplies
// Options.Registerer, matching the teacher's use of prometheus/client_golang
// for CLI-facing metrics (cmd/cie/index.go).
type statistics struct {
	mu     sync.Mutex
	hits   map[Category]int64
	misses map[Category]int64

	promHits   *prometheus.CounterVec
	promMisses *prometheus.CounterVec
	promBytes  *prometheus.GaugeVec
	promCount  *prometheus.GaugeVec
}

func newStatistics(reg prometheus.Registerer) *statistics {
	s := &statistics{
		hits:   make(map[Category]int64),
		misses: make(map[Category]int64),
		promHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cie",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache hits, partitioned by category.",
		}, []string{"category"}),
		promMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cie",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache misses, partitioned by category.",
		}, []string{"category"}),
		promBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cie",
			Subsystem: "cache",
			Name:      "bytes",
			Help:      "Bytes currently tracked in the memory tier, partitioned by category.",
		}, []string{"category"}),
		promCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cie",
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Entries currently tracked in the memory tier, partitioned by category.",
		}, []string{"category"}),
	}

	if reg != nil {
		reg.MustRegister(s.promHits, s.promMisses, s.promBytes, s.promCount)
	}
	return s
}

func (s *statistics) recordHit(cat Category) {
	s.mu.Lock()
	s.hits[cat]++
	s.mu.Unlock()
	s.promHits.WithLabelValues(string(cat)).Inc()
}

func (s *statistics) recordMiss(cat Category) {
	s.mu.Lock()
	s.misses[cat]++
	s.mu.Unlock()
	s.promMisses.WithLabelValues(string(cat)).Inc()
}

func (s *statistics) setGauge(cat Category, entries int64, bytes int64) {
	s.promCount.WithLabelValues(string(cat)).Set(float64(entries))
	s.promBytes.WithLabelValues(string(cat)).Set(float64(bytes))
}

func (s *statistics) reset() {
	s.mu.Lock()
	s.hits = make(map[Category]int64)
	s.misses = make(map[Category]int64)
	s.mu.Unlock()
	s.promHits.Reset()
	s.promMisses.Reset()
	s.promBytes.Reset()
	s.promCount.Reset()
}

func (s *statistics) snapshot(entryCounts map[Category]int64, byteCounts map[Category]int64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Snapshot{ByCategory: make(map[Category]CategorySnapshot)}
	seen := make(map[Category]bool)
	for cat, h := range s.hits {
		seen[cat] = true
		out.TotalHits += h
	}
	for cat, m := range s.misses {
		seen[cat] = true
		out.TotalMiss += m
	}
	for cat := range entryCounts {
		seen[cat] = true
	}

	for cat := range seen {
		out.ByCategory[cat] = CategorySnapshot{
			Hits:    s.hits[cat],
			Misses:  s.misses[cat],
			Entries: entryCounts[cat],
			Bytes:   byteCounts[cat],
		}
	}

	total := out.TotalHits + out.TotalMiss
	if total > 0 {
		out.HitRate = float64(out.TotalHits) / float64(total)
	}
	return out
}
