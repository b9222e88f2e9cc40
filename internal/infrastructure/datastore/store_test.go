package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyplanner/core/internal/domain/entities"
	"github.com/studyplanner/core/internal/testutil"
)

var knownCollections = []string{"tasks", "subjects", "timetable", "events", "chat", "assessments"}

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(context.Background(), Options{
		DataDir:      dir,
		Collections:  knownCollections,
		WriteTimeout: 5 * time.Second,
		Clock:        testutil.FixedClock().Now,
	})
	require.NoError(t, err)
	return s
}

func TestOpen_SeedsKnownCollections(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)

	assert.ElementsMatch(t, knownCollections, s.Collections())
	for _, name := range knownCollections {
		assert.FileExists(t, filepath.Join(dir, name+".json"))
	}

	tt, err := Load[entities.Timetable](s, "timetable")
	require.NoError(t, err)
	assert.Equal(t, 1, tt.Version)
	assert.Len(t, tt.Days["monday"], 2)

	tasks, err := Load[[]entities.Task](s, "tasks")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestOpen_WritesIndentedJSON(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)

	require.NoError(t, s.Set(context.Background(), "notes", []string{"a"}))

	raw, err := os.ReadFile(filepath.Join(dir, "notes.json"))
	require.NoError(t, err)
	assert.Equal(t, "[\n  \"a\"\n]", string(raw))
}

func TestOpen_DiscoversExistingCollections(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte(`[{"id":"n1"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tasks.json.tmp-1-1"), []byte(`[`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad name.json"), []byte(`[]`), 0o644))

	s := openTestStore(t, dir)

	assert.Contains(t, s.Collections(), "notes")
	assert.NotContains(t, s.Collections(), "bad name")

	doc, err := s.Get("notes")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"n1"}]`, string(doc))

	// stray temp files are left alone
	assert.FileExists(t, filepath.Join(dir, ".tasks.json.tmp-1-1"))
}

func TestGet_RejectsInvalidName(t *testing.T) {
	s := openTestStore(t, t.TempDir())

	_, err := s.Get("../etc/passwd")
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestGet_SeedsUnknownCollectionOnFirstAccess(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)

	doc, err := s.Get("scratch")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(doc))
	assert.FileExists(t, filepath.Join(dir, "scratch.json"))
}

func TestSetGet_RoundTripReturnsIndependentCopy(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	ctx := context.Background()

	want := []map[string]interface{}{
		{"id": "x1", "title": "Essay", "tags": []interface{}{"english"}},
	}
	require.NoError(t, s.Set(ctx, "tasks", want))

	got, err := Load[[]map[string]interface{}](s, "tasks")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// editing the returned value must not reach the store
	got[0]["title"] = "changed"
	got[0]["tags"] = append(got[0]["tags"].([]interface{}), "mutated")

	again, err := Load[[]map[string]interface{}](s, "tasks")
	require.NoError(t, err)
	assert.Equal(t, want, again)

	raw, err := s.Get("tasks")
	require.NoError(t, err)
	for i := range raw {
		raw[i] = ' '
	}
	raw2, err := s.Get("tasks")
	require.NoError(t, err)
	assert.True(t, json.Valid(raw2))
}

func TestUpdate_ConcurrentAppendsAreAllPersisted(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			_, err := Mutate(ctx, s, "numbers", func(cur []int) ([]int, error) {
				return append(cur, v), nil
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := Load[[]int](s, "numbers")
	require.NoError(t, err)
	sort.Ints(got)
	want := make([]int, n)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)

	// and on disk, as seen by a fresh store
	reopened := openTestStore(t, dir)
	fromDisk, err := Load[[]int](reopened, "numbers")
	require.NoError(t, err)
	assert.Len(t, fromDisk, n)
}

func TestUpdate_UpdaterErrorWritesNothing(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)
	ctx := context.Background()

	before, err := os.ReadFile(filepath.Join(dir, "subjects.json"))
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.Update(ctx, "subjects", func(json.RawMessage) (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	after, err := os.ReadFile(filepath.Join(dir, "subjects.json"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdate_FailedOperationDoesNotPoisonQueue(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	ctx := context.Background()

	_, err := s.Update(ctx, "numbers", func(json.RawMessage) (interface{}, error) {
		panic("updater exploded")
	})
	var updErr *UpdaterError
	require.ErrorAs(t, err, &updErr)
	assert.Equal(t, "numbers", updErr.Collection)

	s.files.beforeRename = func(string) error { return errors.New("disk full") }
	_, err = Mutate(ctx, s, "numbers", func(cur []int) ([]int, error) { return append(cur, 1), nil })
	require.ErrorIs(t, err, ErrWriteFailed)
	s.files.beforeRename = nil

	got, err := Mutate(ctx, s, "numbers", func(cur []int) ([]int, error) { return append(cur, 2), nil })
	require.NoError(t, err)
	assert.Equal(t, []int{2}, got)
}

func TestWrite_AbortBeforeRenameKeepsPriorFile(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "tasks", []map[string]string{{"id": "keep"}}))
	path := filepath.Join(dir, "tasks.json")
	prior, err := os.ReadFile(path)
	require.NoError(t, err)

	var tmpSeen string
	s.files.beforeRename = func(tmp string) error {
		tmpSeen = tmp
		return errors.New("process killed")
	}

	err = s.Set(ctx, "tasks", []map[string]string{{"id": "lost"}})
	require.ErrorIs(t, err, ErrWriteFailed)
	assert.Contains(t, filepath.Base(tmpSeen), ".tasks.json.tmp-")

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, prior, current)

	// cache keeps the last good value
	doc, err := s.Get("tasks")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"keep"}]`, string(doc))

	// restart sees the prior document
	reopened := openTestStore(t, dir)
	doc, err = reopened.Get("tasks")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"keep"}]`, string(doc))
}

func TestWrite_TimeoutSurfacesAsWriteFailure(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(context.Background(), Options{
		DataDir:      dir,
		WriteTimeout: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, s.Set(context.Background(), "tasks", []string{}))

	s.files.beforeRename = func(string) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}
	err = s.Set(context.Background(), "tasks", []string{"slow"})
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.ErrorIs(t, err, ErrWriteTimeout)

	doc, err := s.Get("tasks")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(doc))
}

func TestWrite_StalledDiskDoesNotBlockQueue(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(context.Background(), Options{
		DataDir:      dir,
		WriteTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), "tasks", []string{}))

	release := make(chan struct{})
	var calls atomic.Int32
	s.files.beforeRename = func(string) error {
		if calls.Add(1) == 1 {
			<-release
		}
		return nil
	}

	start := time.Now()
	err = s.Set(context.Background(), "tasks", []string{"stalled"})
	assert.ErrorIs(t, err, ErrWriteTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	require.NoError(t, s.Set(context.Background(), "tasks", []string{"next"}))
	close(release)

	path := filepath.Join(dir, "tasks.json")
	assert.Eventually(t, func() bool {
		matches, _ := filepath.Glob(filepath.Join(dir, ".tasks.json.tmp-*"))
		return len(matches) == 0
	}, 2*time.Second, 10*time.Millisecond)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `["next"]`, string(data))
}

func TestWrite_CancelledRequestContextStillCompletes(t *testing.T) {
	s := openTestStore(t, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Set(ctx, "tasks", []string{"done"}))
	doc, err := s.Get("tasks")
	require.NoError(t, err)
	assert.JSONEq(t, `["done"]`, string(doc))
}

func TestRead_CorruptFileIsQuarantinedAndReseeded(t *testing.T) {
	dir := t.TempDir()
	corrupt := []byte(`[{"id": "1", "title": `)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.json"), corrupt, 0o644))

	s := openTestStore(t, dir)

	tasks, err := Load[[]entities.Task](s, "tasks")
	require.NoError(t, err)
	assert.Len(t, tasks, 2, "seed tasks expected after quarantine")

	backups, err := filepath.Glob(filepath.Join(dir, "tasks.json.corrupt-*.bak"))
	require.NoError(t, err)
	require.Len(t, backups, 1)

	saved, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, corrupt, saved)
}

func TestReload_PicksUpExternalEdits(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)

	changed, err := s.Reload("tasks")
	require.NoError(t, err)
	assert.False(t, changed, "own write must not count as a change")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.json"), []byte(`[{"id":"ext"}]`), 0o644))
	changed, err = s.Reload("tasks")
	require.NoError(t, err)
	assert.True(t, changed)

	doc, err := s.Get("tasks")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"ext"}]`, string(doc))

	// half-written external content is ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.json"), []byte(`[{"id":`), 0o644))
	changed, err = s.Reload("tasks")
	require.NoError(t, err)
	assert.False(t, changed)

	doc, err = s.Get("tasks")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"ext"}]`, string(doc))
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)

	require.NoError(t, s.HealthCheck())

	stats := s.Stats()
	assert.Equal(t, dir, stats["data_dir"])
	assert.Greater(t, stats["cached_bytes"], 0)
	assert.Equal(t, s.Collections(), stats["collections"])
}

func ExampleMutate() {
	dir, _ := os.MkdirTemp("", "store-example")
	defer os.RemoveAll(dir)

	s, _ := Open(context.Background(), Options{DataDir: dir})
	out, _ := Mutate(context.Background(), s, "counters", func(cur []int) ([]int, error) {
		return append(cur, 1, 2), nil
	})
	fmt.Println(out)
	// Output: [1 2]
}
