package planner

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyplanner/core/internal/domain/entities"
	"github.com/studyplanner/core/internal/testutil"
)

func minutes(m float64) *float64 { return &m }

func at(t time.Time) *entities.Date { return entities.NewDate(t) }

func TestCompute_UrgentTaskSplitAcrossDays(t *testing.T) {
	now := testutil.FixedClock().Now()
	tasks := []entities.Task{
		{ID: "a", Title: "Essay", Priority: entities.PriorityUrgent, EstimatedDuration: minutes(180), DueDate: at(now.Add(24 * time.Hour)), Status: entities.TaskStatusPending},
		{ID: "b", Title: "Reading", Priority: entities.PriorityLow, EstimatedDuration: minutes(60), Status: entities.TaskStatusPending},
	}

	plan := Compute(tasks, Options{DailyCapacityHours: 4, WindowDays: 2, Now: now})

	require.Len(t, plan.RecommendedOrder, 2)
	assert.Equal(t, "a", plan.RecommendedOrder[0].ID)
	assert.Equal(t, 1, plan.RecommendedOrder[0].Order)
	assert.Equal(t, 0.8, plan.RecommendedOrder[0].Score)
	assert.Equal(t, 3.0, plan.RecommendedOrder[0].EstimatedHours)
	assert.Equal(t, "b", plan.RecommendedOrder[1].ID)
	assert.Equal(t, 0.23, plan.RecommendedOrder[1].Score)

	require.Len(t, plan.DailySchedule, 2)
	assert.Equal(t, []ScheduleItem{
		{TaskID: "a", Title: "Essay", Hours: 2},
		{TaskID: "b", Title: "Reading", Hours: 1},
	}, plan.DailySchedule[0].Items)
	assert.Equal(t, []ScheduleItem{
		{TaskID: "a", Title: "Essay", Hours: 1},
	}, plan.DailySchedule[1].Items)

	assert.Equal(t, now, plan.DailySchedule[0].Date)
	assert.Equal(t, now.Add(24*time.Hour), plan.DailySchedule[1].Date)
}

func TestCompute_FiltersCompletedAndUnidentified(t *testing.T) {
	now := testutil.FixedClock().Now()
	tasks := []entities.Task{
		{ID: "done", Title: "Done", Status: entities.TaskStatusCompleted},
		{ID: "", Title: "No id"},
		{ID: "open", Title: "Open", Status: entities.TaskStatusInProgress},
	}

	plan := Compute(tasks, Options{DailyCapacityHours: 4, WindowDays: 1, Now: now})

	require.Len(t, plan.RecommendedOrder, 1)
	assert.Equal(t, "open", plan.RecommendedOrder[0].ID)
	assert.Equal(t, entities.PriorityMedium, plan.RecommendedOrder[0].Priority)
	assert.Equal(t, 1.0, plan.RecommendedOrder[0].EstimatedHours, "default estimate is one hour")
}

func TestCompute_FloorsInputs(t *testing.T) {
	plan := Compute(nil, Options{DailyCapacityHours: 0.25, WindowDays: 0, Now: time.Unix(0, 0)})

	assert.Equal(t, 1.0, plan.DailyCapacityHours)
	assert.Equal(t, 1, plan.WindowDays)
	require.Len(t, plan.DailySchedule, 1)
	assert.NotNil(t, plan.DailySchedule[0].Items)
	assert.Empty(t, plan.DailySchedule[0].Items)
}

func TestCompute_OverdueTaskHasMaximumUrgency(t *testing.T) {
	now := testutil.FixedClock().Now()
	tasks := []entities.Task{
		{ID: "late", Priority: entities.PriorityLow, DueDate: at(now.Add(-72 * time.Hour))},
	}

	plan := Compute(tasks, Options{DailyCapacityHours: 4, WindowDays: 1, Now: now})

	// 0.6*0.25 + 0.4*1
	assert.Equal(t, 0.55, plan.RecommendedOrder[0].Score)
}

func TestCompute_TiesKeepInputOrder(t *testing.T) {
	now := testutil.FixedClock().Now()
	var tasks []entities.Task
	for i := 0; i < 5; i++ {
		tasks = append(tasks, entities.Task{ID: fmt.Sprintf("t%d", i), Priority: entities.PriorityHigh})
	}

	plan := Compute(tasks, Options{DailyCapacityHours: 4, WindowDays: 1, Now: now})

	for i, r := range plan.RecommendedOrder {
		assert.Equal(t, fmt.Sprintf("t%d", i), r.ID)
	}
}

func TestCompute_RespectsTaskAndDayBounds(t *testing.T) {
	now := testutil.FixedClock().Now()
	rng := rand.New(rand.NewSource(42))
	priorities := []entities.Priority{"Low", "Medium", "High", "Urgent", "", "weird"}

	for run := 0; run < 200; run++ {
		var tasks []entities.Task
		n := rng.Intn(12)
		for i := 0; i < n; i++ {
			task := entities.Task{
				ID:       fmt.Sprintf("r%d-%d", run, i),
				Priority: priorities[rng.Intn(len(priorities))],
			}
			if rng.Intn(4) > 0 {
				task.EstimatedDuration = minutes(float64(rng.Intn(600)))
			}
			if rng.Intn(2) == 0 {
				task.DueDate = at(now.Add(time.Duration(rng.Intn(20*24)-5*24) * time.Hour))
			}
			tasks = append(tasks, task)
		}
		capacity := 1 + rng.Float64()*7
		window := 1 + rng.Intn(10)

		plan := Compute(tasks, Options{DailyCapacityHours: capacity, WindowDays: window, Now: now})

		estimate := map[string]float64{}
		for _, r := range plan.RecommendedOrder {
			estimate[r.ID] = r.EstimatedHours
		}
		assigned := map[string]float64{}
		for _, day := range plan.DailySchedule {
			total := 0.0
			for _, item := range day.Items {
				assert.LessOrEqual(t, item.Hours, MaxChunkHours)
				assigned[item.TaskID] += item.Hours
				total += item.Hours
			}
			assert.LessOrEqual(t, total, plan.DailyCapacityHours+0.01, "run %d day %s", run, day.Date)
		}
		for id, hours := range assigned {
			assert.LessOrEqual(t, hours, estimate[id]+0.01, "run %d task %s", run, id)
		}
	}
}

func TestCompute_IsDeterministic(t *testing.T) {
	now := testutil.FixedClock().Now()
	tasks := []entities.Task{
		{ID: "x", Priority: "High", EstimatedDuration: minutes(200), DueDate: at(now.Add(48 * time.Hour))},
		{ID: "y", Priority: "Urgent", EstimatedDuration: minutes(45)},
		{ID: "z", Priority: "Medium", DueDate: at(now.Add(-time.Hour))},
	}
	opts := Options{DailyCapacityHours: 3, WindowDays: 4, Now: now}

	first, err := json.Marshal(Compute(tasks, opts))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := json.Marshal(Compute(tasks, opts))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, DaysUntil(now.Add(time.Hour), now))
	assert.Equal(t, 1, DaysUntil(now.Add(24*time.Hour), now))
	assert.Equal(t, 2, DaysUntil(now.Add(25*time.Hour), now))
	assert.Equal(t, 0, DaysUntil(now, now))
	assert.Equal(t, -1, DaysUntil(now.Add(-30*time.Hour), now))
}

func TestDecodeTasks_SkipsMalformedRecords(t *testing.T) {
	records := []json.RawMessage{
		json.RawMessage(`{"id":"ok","title":"Fine","estimatedDuration":30}`),
		json.RawMessage(`{"id":"bad","estimatedDuration":"two hours"}`),
		json.RawMessage(`{"title":"no id"}`),
		json.RawMessage(`42`),
	}

	tasks, skipped := DecodeTasks(records)

	require.Len(t, tasks, 1)
	assert.Equal(t, "ok", tasks[0].ID)
	assert.Equal(t, 3, skipped)
}
