// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySinkRecordsAndCounts(t *testing.T) {
	sink := NewMemorySink()
	require.NoError(t, sink.Record(NewEvent(KindFileAccess, "/a", OutcomeSuccess, "read")))
	require.NoError(t, sink.Record(NewEvent(KindTrustDecision, "/b", OutcomeSuccess, "granted")))
	require.NoError(t, sink.Record(NewEvent(KindFileAccess, "/c", OutcomeDenied, "blocked")))

	assert.Equal(t, 3, sink.Count(""))
	assert.Equal(t, 2, sink.Count(KindFileAccess))
	assert.Len(t, sink.Events(), 3)
}

func TestWithMetadataDoesNotMutateOriginal(t *testing.T) {
	base := NewEvent(KindFileAccess, "/a", OutcomeSuccess, "read")
	withMeta := base.WithMetadata("size", 1024)

	assert.Nil(t, base.Metadata)
	assert.Equal(t, 1024, withMeta.Metadata["size"])

	withMore := withMeta.WithMetadata("category", "ast")
	assert.Len(t, withMeta.Metadata, 1, "earlier copy must not see later additions")
	assert.Len(t, withMore.Metadata, 2)
}

func TestFileSinkAppendsNewlineDelimitedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Record(NewEvent(KindFileAccess, "/a", OutcomeSuccess, "read")))
	require.NoError(t, sink.Record(NewEvent(KindSecurityViolation, "/b", OutcomeDenied, "escape")))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)

	var e Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &e))
	assert.Equal(t, KindFileAccess, e.Kind)
}

func TestFileSinkRotatesPastMaxSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	defer sink.Close()
	sink.MaxSizeBytes = 1 // force rotation on the first write after the file holds any data

	require.NoError(t, sink.Record(NewEvent(KindFileAccess, "/a", OutcomeSuccess, "read")))
	require.NoError(t, sink.Record(NewEvent(KindFileAccess, "/b", OutcomeSuccess, "read")))

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "rotated file should exist")
}
