package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors
var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrSubjectNotFound    = errors.New("subject not found")
	ErrEventNotFound      = errors.New("event not found")
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidBlock       = errors.New("invalid timetable block")
	ErrDuplicateBlockID   = errors.New("duplicate timetable block id")
	ErrInvalidWeekday     = errors.New("invalid weekday")
	ErrUnknownIntent      = errors.New("unknown intent")
)

// Enums and types
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// Priorities lists every accepted priority, lowest first.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Rank returns the priority weight (Low=1 .. Urgent=4). Unknown values rank as Medium.
func (p Priority) Rank() int {
	switch strings.ToLower(string(p)) {
	case "low":
		return 1
	case "medium":
		return 2
	case "high":
		return 3
	case "urgent":
		return 4
	default:
		return 2
	}
}

// IsValid reports whether p is one of the accepted priorities.
func (p Priority) IsValid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusOverdue    TaskStatus = "overdue"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskStatuses lists every accepted task status.
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusCompleted,
	TaskStatusOverdue,
	TaskStatusCancelled,
}

// IsValid reports whether s is one of the accepted statuses.
func (s TaskStatus) IsValid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type AssessmentStatus string

const (
	AssessmentStatusUpcoming    AssessmentStatus = "upcoming"
	AssessmentStatusCompleted   AssessmentStatus = "completed"
	AssessmentStatusOverdue     AssessmentStatus = "overdue"
	AssessmentStatusUnscheduled AssessmentStatus = "unscheduled"
)

// Task represents a unit of study work
type Task struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Subject           *string    `json:"subject"`
	DueDate           *Date      `json:"dueDate"`
	Priority          Priority   `json:"priority"`
	Urgency           *string    `json:"urgency,omitempty"`
	Difficulty        *string    `json:"difficulty,omitempty"`
	Status            TaskStatus `json:"status"`
	EstimatedDuration *float64   `json:"estimatedDuration"`
	ActualDuration    *float64   `json:"actualDuration,omitempty"`
	Tags              []string   `json:"tags"`
	Notes             string     `json:"notes"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// RecordID returns the task identifier
func (t Task) RecordID() string { return t.ID }

// Subject represents a course the student follows
type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     *string   `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecordID returns the subject identifier
func (s Subject) RecordID() string { return s.ID }

// Event represents a dated calendar entry (exam, quiz, deadline)
type Event struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Date      Date      `json:"date"`
	Subject   *string   `json:"subject"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecordID returns the event identifier
func (e Event) RecordID() string { return e.ID }

// Resource is a study link attached to an assessment
type Resource struct {
	Label string `json:"label" validate:"required,max=100"`
	URL   string `json:"url" validate:"required,url"`
}

// Assessment represents a graded piece of work with its score history
type Assessment struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Subject      *string          `json:"subject"`
	Date         *Date            `json:"date"`
	Status       AssessmentStatus `json:"status,omitempty"`
	Weight       *float64         `json:"weight"`
	ScoreHistory []float64        `json:"scoreHistory"`
	Resources    []Resource       `json:"resources"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// RecordID returns the assessment identifier
func (a Assessment) RecordID() string { return a.ID }

// EffectiveStatus derives the status from the assessment date unless it is completed.
func (a Assessment) EffectiveStatus(now time.Time) AssessmentStatus {
	if a.Status == AssessmentStatusCompleted {
		return AssessmentStatusCompleted
	}
	if !a.Date.IsSet() {
		if a.Status == "" {
			return AssessmentStatusUnscheduled
		}
		return a.Status
	}
	if !a.Date.Before(now) {
		return AssessmentStatusUpcoming
	}
	return AssessmentStatusOverdue
}

// ChatMessage is one turn of a chat session
type ChatMessage struct {
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ChatSession is a persisted conversation with the study assistant
type ChatSession struct {
	SessionID     string        `json:"sessionId"`
	Messages      []ChatMessage `json:"messages"`
	Status        string        `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	LastMessageAt time.Time     `json:"lastMessageAt"`
}

// RecordID returns the session identifier
func (s ChatSession) RecordID() string { return s.SessionID }

// Weekdays lists the timetable day keys in display order.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// IsWeekday reports whether day is a valid timetable day key.
func IsWeekday(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// Block is one scheduled slot of the weekly timetable
type Block struct {
	ID       string `json:"id"`
	Start    string `json:"start" validate:"required,hhmm"`
	End      string `json:"end" validate:"required,hhmm"`
	Subject  string `json:"subject"`
	Location string `json:"location"`
	Notes    string `json:"notes"`
	Color    string `json:"color"`
}

// Timetable is the versioned weekly schedule singleton
type Timetable struct {
	Version   int                `json:"version"`
	WeekStart time.Time          `json:"weekStart"`
	Days      map[string][]Block `json:"days"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// BlockCount returns the number of blocks across all days.
func (t *Timetable) BlockCount() int {
	n := 0
	for _, blocks := range t.Days {
		n += len(blocks)
	}
	return n
}

// Validate checks day keys, block times and block id uniqueness across the whole week.
// Times are compared as zero-padded "HH:MM" strings; invalid ranges are rejected, never corrected.
func (t *Timetable) Validate() error {
	seen := make(map[string]string)
	for day, blocks := range t.Days {
		if !IsWeekday(day) {
			return fmt.Errorf("%w: %q", ErrInvalidWeekday, day)
		}
		for _, b := range blocks {
			if _, err := ParseClock(b.Start); err != nil {
				return fmt.Errorf("%w: block %q start: %v", ErrInvalidBlock, b.ID, err)
			}
			if _, err := ParseClock(b.End); err != nil {
				return fmt.Errorf("%w: block %q end: %v", ErrInvalidBlock, b.ID, err)
			}
			if b.End <= b.Start {
				return fmt.Errorf("%w: block %q ends at %s, not after %s", ErrInvalidBlock, b.ID, b.End, b.Start)
			}
			if b.ID == "" {
				continue
			}
			if other, ok := seen[b.ID]; ok {
				return fmt.Errorf("%w: %q on %s and %s", ErrDuplicateBlockID, b.ID, other, day)
			}
			seen[b.ID] = day
		}
	}
	return nil
}

// ParseClock parses a 24h "HH:MM" string into minutes after midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	h, m := 0, 0
	for i, c := range s {
		if i == 2 {
			continue
		}
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%q is not HH:MM", s)
		}
		if i < 2 {
			h = h*10 + int(c-'0')
		} else {
			m = m*10 + int(c-'0')
		}
	}
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("%q is out of range", s)
	}
	return h*60 + m, nil
}
