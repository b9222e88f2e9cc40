package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyplanner/core/internal/domain/entities"
	"github.com/studyplanner/core/internal/infrastructure/datastore"
	"github.com/studyplanner/core/internal/infrastructure/logger"
	"github.com/studyplanner/core/internal/ports"
	"github.com/studyplanner/core/internal/testutil"
)

func newTestStore(t *testing.T) *datastore.Store {
	t.Helper()
	s, err := datastore.Open(context.Background(), datastore.Options{
		DataDir:     t.TempDir(),
		Collections: []string{"tasks", "subjects", "timetable"},
		Clock:       testutil.FixedClock().Now,
	})
	require.NoError(t, err)
	return s
}

func intPtr(v int) *int { return &v }

func TestListRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewSubjectRepository(newTestStore(t), logger.NewNop())

	created, err := repo.Insert(ctx, entities.Subject{ID: "s_new", Name: "Art"})
	require.NoError(t, err)
	assert.Equal(t, "Art", created.Name)

	_, err = repo.Insert(ctx, entities.Subject{ID: "s_new", Name: "Again"})
	assert.ErrorIs(t, err, entities.ErrInvalidInput)

	got, err := repo.Get(ctx, "s_new")
	require.NoError(t, err)
	assert.Equal(t, "Art", got.Name)

	updated, err := repo.Replace(ctx, "s_new", func(s entities.Subject) (entities.Subject, error) {
		s.Name = "Fine Art"
		return s, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Fine Art", updated.Name)

	_, err = repo.Replace(ctx, "s_new", func(s entities.Subject) (entities.Subject, error) {
		s.ID = "other"
		return s, nil
	})
	assert.ErrorIs(t, err, entities.ErrInvalidInput)

	require.NoError(t, repo.Remove(ctx, "s_new"))
	_, err = repo.Get(ctx, "s_new")
	assert.ErrorIs(t, err, entities.ErrSubjectNotFound)
	assert.ErrorIs(t, repo.Remove(ctx, "s_new"), entities.ErrSubjectNotFound)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 6, "only the seeded subjects remain")
}

func TestListRepository_ConcurrentInsertsAreAllKept(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestStore(t), logger.NewNop())

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Insert(ctx, entities.Task{ID: fmt.Sprintf("t_%d", i), Title: "parallel"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	tasks, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, n+2)
}

func TestListRepository_PreservesMalformedRecords(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	raw := `[{"id":"good","title":"ok"},{"id":"bad","estimatedDuration":"soon"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.json"), []byte(raw), 0o644))

	store, err := datastore.Open(ctx, datastore.Options{DataDir: dir, Collections: []string{"tasks"}})
	require.NoError(t, err)
	repo := NewTaskRepository(store, logger.NewNop())

	tasks, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "good", tasks[0].ID)

	_, err = repo.Insert(ctx, entities.Task{ID: "new"})
	require.NoError(t, err)

	doc, err := store.Get("tasks")
	require.NoError(t, err)
	assert.Contains(t, string(doc), `"soon"`)
}

func TestListRepository_NonListDocumentIsNeverOverwritten(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	raw := `{"note":"hand edited"}`
	path := filepath.Join(dir, "subjects.json")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	store, err := datastore.Open(ctx, datastore.Options{DataDir: dir, Collections: []string{"subjects"}})
	require.NoError(t, err)
	repo := NewSubjectRepository(store, logger.NewNop())

	_, err = repo.List(ctx)
	assert.ErrorIs(t, err, ErrNotList)
	_, err = repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotList)
	_, err = repo.Insert(ctx, entities.Subject{ID: "s_new", Name: "Art"})
	assert.ErrorIs(t, err, ErrNotList)
	_, err = repo.Replace(ctx, "s1", func(s entities.Subject) (entities.Subject, error) { return s, nil })
	assert.ErrorIs(t, err, ErrNotList)
	assert.ErrorIs(t, repo.Remove(ctx, "s1"), ErrNotList)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(data))
}

func TestTimetableRepository_SaveIncrementsVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewTimetableRepository(newTestStore(t), logger.NewNop())
	at := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

	current, err := repo.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, current.Version)

	days := map[string][]entities.Block{
		"monday": {{ID: "b1", Start: "08:00", End: "09:00", Subject: "Math"}},
	}
	res, err := repo.Save(ctx, ports.TimetableChange{Version: intPtr(1), Days: days, At: at})
	require.NoError(t, err)
	assert.False(t, res.Conflict)
	assert.Equal(t, 2, res.Timetable.Version)
	assert.Equal(t, days, res.Timetable.Days)
	assert.Equal(t, current.WeekStart, res.Timetable.WeekStart, "weekStart kept when omitted")
	assert.True(t, at.Equal(res.Timetable.UpdatedAt))

	// no version: always accepted
	res, err = repo.Save(ctx, ports.TimetableChange{At: at})
	require.NoError(t, err)
	assert.False(t, res.Conflict)
	assert.Equal(t, 3, res.Timetable.Version)
	assert.Equal(t, days, res.Timetable.Days)
}

func TestTimetableRepository_ConcurrentSavesFromSameVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewTimetableRepository(newTestStore(t), logger.NewNop())

	results := make([]*ports.SaveResult, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := repo.Save(ctx, ports.TimetableChange{
				Version: intPtr(1),
				Days:    map[string][]entities.Block{"friday": {{ID: fmt.Sprintf("c%d", i), Start: "10:00", End: "11:00"}}},
				At:      time.Now(),
			})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	conflicts, wins := 0, 0
	for _, res := range results {
		require.NotNil(t, res)
		if res.Conflict {
			conflicts++
			assert.Equal(t, 2, res.Timetable.Version, "conflict carries the winner's document")
		} else {
			wins++
			assert.Equal(t, 2, res.Timetable.Version)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)

	stored, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
}

func TestTimetableRepository_StaleVersionWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := NewTimetableRepository(store, logger.NewNop())

	for i := 0; i < 4; i++ {
		_, err := repo.Save(ctx, ports.TimetableChange{At: time.Now()})
		require.NoError(t, err)
	}
	before, err := store.Get("timetable")
	require.NoError(t, err)

	res, err := repo.Save(ctx, ports.TimetableChange{Version: intPtr(3), Days: map[string][]entities.Block{}, At: time.Now()})
	require.NoError(t, err)
	assert.True(t, res.Conflict)
	assert.Equal(t, 5, res.Timetable.Version)

	after, err := store.Get("timetable")
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}
