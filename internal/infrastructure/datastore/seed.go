package datastore

import (
	"fmt"
	"time"

	"github.com/studyplanner/core/internal/domain/entities"
)

const day = 24 * time.Hour

// Seed returns the default document written when a collection has no readable file.
// Unknown collections seed an empty list.
func Seed(collection string, now time.Time) interface{} {
	now = now.UTC()

	switch collection {
	case "tasks":
		return []entities.Task{
			{
				ID:                "1",
				Title:             "Complete Math Assignment",
				Description:       "Solve problems 1-20 from Chapter 5",
				Subject:           strPtr("Mathematics"),
				DueDate:           entities.NewDate(now.Add(7 * day)),
				Priority:          entities.PriorityHigh,
				Urgency:           strPtr("high"),
				Difficulty:        strPtr("moderate"),
				Status:            entities.TaskStatusPending,
				EstimatedDuration: floatPtr(120),
				Tags:              []string{},
				CreatedAt:         now,
				UpdatedAt:         now,
			},
			{
				ID:                "2",
				Title:             "Read Biology Chapter",
				Description:       "Read and take notes on Chapter 3",
				Subject:           strPtr("Biology"),
				DueDate:           entities.NewDate(now.Add(3 * day)),
				Priority:          entities.PriorityMedium,
				Urgency:           strPtr("medium"),
				Difficulty:        strPtr("easy"),
				Status:            entities.TaskStatusPending,
				EstimatedDuration: floatPtr(90),
				Tags:              []string{},
				CreatedAt:         now,
				UpdatedAt:         now,
			},
		}

	case "subjects":
		names := []string{"Mathematics", "Biology", "Chemistry", "Physics", "English", "History"}
		subjects := make([]entities.Subject, 0, len(names))
		for i, name := range names {
			subjects = append(subjects, entities.Subject{
				ID:        fmt.Sprintf("s%d", i+1),
				Name:      name,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		return subjects

	case "timetable":
		return entities.Timetable{
			Version:   1,
			WeekStart: now,
			Days: map[string][]entities.Block{
				"monday": {
					{ID: "mon-1", Start: "09:00", End: "10:00", Subject: "Mathematics", Location: "Room 101", Color: "#2563eb"},
					{ID: "mon-2", Start: "10:30", End: "11:30", Subject: "Chemistry", Location: "Lab B", Color: "#0ea5e9"},
				},
				"tuesday": {
					{ID: "tue-1", Start: "09:00", End: "10:00", Subject: "Physics", Location: "Lab A", Color: "#16a34a"},
					{ID: "tue-2", Start: "13:30", End: "14:30", Subject: "History", Location: "Room 204", Color: "#f59e0b"},
				},
				"wednesday": {
					{ID: "wed-1", Start: "11:00", End: "12:00", Subject: "English", Location: "Room 110", Color: "#64748b"},
				},
				"thursday": {
					{ID: "thu-1", Start: "14:00", End: "15:30", Subject: "Biology", Location: "Room 303", Color: "#22c55e"},
				},
				"friday": {
					{ID: "fri-1", Start: "10:00", End: "11:30", Subject: "Computer Science", Location: "Lab C", Color: "#a855f7"},
				},
				"saturday": {},
				"sunday":   {},
			},
			UpdatedAt: now,
		}

	case "events":
		return []entities.Event{
			{ID: "e1", Title: "Math Midterm", Date: entities.Date{Time: now.Add(5 * day)}, Subject: strPtr("Mathematics"), Type: "exam", CreatedAt: now, UpdatedAt: now},
			{ID: "e2", Title: "Chemistry Quiz", Date: entities.Date{Time: now.Add(2 * day)}, Subject: strPtr("Chemistry"), Type: "quiz", CreatedAt: now, UpdatedAt: now},
		}

	case "chat":
		return []entities.ChatSession{
			{
				SessionID: "session_1",
				Messages: []entities.ChatMessage{
					{Role: "user", Content: "Hello", Timestamp: now},
					{Role: "assistant", Content: "Hi! How can I help you today?", Timestamp: now},
				},
				Status:        "active",
				CreatedAt:     now,
				LastMessageAt: now,
			},
		}

	case "assessments":
		return []entities.Assessment{
			{
				ID:           "a1",
				Title:        "Math Midterm",
				Subject:      strPtr("Mathematics"),
				Date:         entities.NewDate(now.Add(5 * day)),
				Status:       entities.AssessmentStatusUpcoming,
				Weight:       floatPtr(0.3),
				ScoreHistory: []float64{72, 78, 81, 85, 88},
				Resources: []entities.Resource{
					{Label: "Study Guide", URL: "https://example.com/math-midterm-guide"},
					{Label: "Practice Problems", URL: "https://example.com/math-practice"},
				},
				CreatedAt: now,
				UpdatedAt: now,
			},
			{
				ID:           "a2",
				Title:        "Chemistry Quiz",
				Subject:      strPtr("Chemistry"),
				Date:         entities.NewDate(now.Add(2 * day)),
				Status:       entities.AssessmentStatusUpcoming,
				Weight:       floatPtr(0.1),
				ScoreHistory: []float64{65, 70, 74, 76, 80},
				Resources: []entities.Resource{
					{Label: "Chapter 4 Notes", URL: "https://example.com/chem-notes"},
				},
				CreatedAt: now,
				UpdatedAt: now,
			},
			{
				ID:           "a3",
				Title:        "History Essay",
				Subject:      strPtr("History"),
				Date:         entities.NewDate(now.Add(-2 * day)),
				Status:       entities.AssessmentStatusCompleted,
				Weight:       floatPtr(0.2),
				ScoreHistory: []float64{},
				Resources:    []entities.Resource{},
				CreatedAt:    now,
				UpdatedAt:    now,
			},
		}
	}

	return []interface{}{}
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
