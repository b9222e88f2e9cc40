// Package planner builds a greedy multi-day study schedule from a task snapshot.
//
// Tasks are scored by priority and due-date urgency, sorted by score, and then
// packed day by day: each task gets at most MaxChunkHours per day, and a day is
// closed once its capacity is used up. Hours that do not fit in the window are
// left unallocated. Compute is a pure function of its inputs.
package planner

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/studyplanner/core/internal/domain/entities"
)

const (
	// MaxChunkHours caps the hours one task receives on a single day.
	MaxChunkHours = 2.0
	// DefaultEstimateMinutes is used for tasks without an estimated duration.
	DefaultEstimateMinutes = 60.0
	// NoDueDateUrgency is the urgency score of tasks without a due date.
	NoDueDateUrgency = 0.2

	priorityWeight = 0.6
	urgencyWeight  = 0.4

	DefaultDailyHours = 4.0
	DefaultWindowDays = 7
)

// Options are the planning inputs besides the tasks.
type Options struct {
	DailyCapacityHours float64
	WindowDays         int
	Now                time.Time
}

// Recommendation is one scored task in plan order.
type Recommendation struct {
	Order          int               `json:"order"`
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Subject        *string           `json:"subject"`
	DueDate        *entities.Date    `json:"dueDate"`
	Priority       entities.Priority `json:"priority"`
	EstimatedHours float64           `json:"estimatedHours"`
	Score          float64           `json:"score"`
}

// ScheduleItem is a block of hours assigned to a task on one day.
type ScheduleItem struct {
	TaskID string  `json:"taskId"`
	Title  string  `json:"title"`
	Hours  float64 `json:"hours"`
}

// Day is one day of the schedule.
type Day struct {
	Date  time.Time      `json:"date"`
	Items []ScheduleItem `json:"items"`
}

// Plan is the computed study plan.
type Plan struct {
	PlanGeneratedAt    time.Time        `json:"planGeneratedAt"`
	WindowDays         int              `json:"windowDays"`
	DailyCapacityHours float64          `json:"dailyCapacityHours"`
	RecommendedOrder   []Recommendation `json:"recommendedOrder"`
	DailySchedule      []Day            `json:"dailySchedule"`
}

// Compute scores the open tasks and distributes their hours over the window.
// Completed tasks and tasks without an id are ignored. Daily capacity and window
// are floored at 1.
func Compute(tasks []entities.Task, opts Options) Plan {
	capacity := math.Max(1, opts.DailyCapacityHours)
	if math.IsNaN(capacity) || math.IsInf(capacity, 0) {
		capacity = DefaultDailyHours
	}
	window := opts.WindowDays
	if window < 1 {
		window = 1
	}

	order := make([]Recommendation, 0, len(tasks))
	for _, t := range tasks {
		if t.ID == "" || t.Status == entities.TaskStatusCompleted {
			continue
		}
		order = append(order, score(t, opts.Now))
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].Score > order[j].Score
	})
	for i := range order {
		order[i].Order = i + 1
	}

	return Plan{
		PlanGeneratedAt:    opts.Now,
		WindowDays:         window,
		DailyCapacityHours: capacity,
		RecommendedOrder:   order,
		DailySchedule:      allocate(order, capacity, window, opts.Now),
	}
}

func score(t entities.Task, now time.Time) Recommendation {
	minutes := DefaultEstimateMinutes
	if t.EstimatedDuration != nil && !math.IsNaN(*t.EstimatedDuration) && *t.EstimatedDuration >= 0 {
		minutes = *t.EstimatedDuration
	}

	urgency := NoDueDateUrgency
	if t.DueDate.IsSet() {
		urgency = 1 / (math.Max(float64(DaysUntil(t.DueDate.Time, now)), 0) + 1)
	}

	priority := t.Priority
	if strings.TrimSpace(string(priority)) == "" {
		priority = entities.PriorityMedium
	}

	return Recommendation{
		ID:             t.ID,
		Title:          t.Title,
		Subject:        t.Subject,
		DueDate:        t.DueDate,
		Priority:       priority,
		EstimatedHours: round2(minutes / 60),
		Score:          round4(priorityWeight*float64(priority.Rank())/4 + urgencyWeight*urgency),
	}
}

func allocate(order []Recommendation, capacity float64, window int, now time.Time) []Day {
	remaining := make([]float64, len(order))
	for i, r := range order {
		remaining[i] = r.EstimatedHours
	}

	days := make([]Day, 0, window)
	for d := 0; d < window; d++ {
		left := capacity
		items := []ScheduleItem{}
		for i, r := range order {
			if left <= 0 {
				break
			}
			if remaining[i] <= 0 {
				continue
			}
			chunk := math.Min(remaining[i], math.Min(left, MaxChunkHours))
			if chunk <= 0 {
				continue
			}
			items = append(items, ScheduleItem{TaskID: r.ID, Title: r.Title, Hours: round2(chunk)})
			remaining[i] = round2(remaining[i] - chunk)
			left = round2(left - chunk)
		}
		days = append(days, Day{
			Date:  now.Add(time.Duration(d) * 24 * time.Hour),
			Items: items,
		})
	}
	return days
}

// DaysUntil returns the whole days from now until due, rounded up. Past dates are negative.
func DaysUntil(due, now time.Time) int {
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}

// DecodeTasks decodes task records one by one. Records that do not decode
// (for example a non-numeric estimatedDuration) or have no id are skipped and counted.
func DecodeTasks(records []json.RawMessage) ([]entities.Task, int) {
	tasks := make([]entities.Task, 0, len(records))
	skipped := 0
	for _, raw := range records {
		var t entities.Task
		if err := json.Unmarshal(raw, &t); err != nil || t.ID == "" {
			skipped++
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, skipped
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
