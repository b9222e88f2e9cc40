package datastore

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"/data/tasks.json", "tasks", true},
		{"/data/my_notes-2.json", "my_notes-2", true},
		{"/data/.tasks.json.tmp-12-99", "", false},
		{"/data/tasks.json.corrupt-1700000000000.bak", "", false},
		{"/data/readme.md", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := collectionFromPath(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWatcher_ReloadsExternalEdits(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)

	var notified atomic.Int32
	w, err := NewWatcher(s, nil, func(collection string) {
		if collection == "events" {
			notified.Add(1)
		}
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "events.json"), []byte(`[{"id":"outside"}]`), 0o644))

	require.Eventually(t, func() bool {
		doc, err := s.Get("events")
		return err == nil && string(doc) == `[{"id":"outside"}]`
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return notified.Load() >= 1 }, time.Second, 10*time.Millisecond)
}
