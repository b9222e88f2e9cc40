package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/studyplanner/core/internal/domain/entities"
	"github.com/studyplanner/core/internal/domain/planner"
)

// TaskService interface for task management operations
type TaskService interface {
	CreateTask(ctx context.Context, req CreateTaskRequest) (*entities.Task, error)
	GetTask(ctx context.Context, id string) (*entities.Task, error)
	UpdateTask(ctx context.Context, id string, req UpdateTaskRequest) (*entities.Task, error)
	CompleteTask(ctx context.Context, id string) (*entities.Task, error)
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, filter TaskFilter) ([]entities.Task, error)
}

// SubjectService interface for subject operations
type SubjectService interface {
	CreateSubject(ctx context.Context, req CreateSubjectRequest) (*entities.Subject, error)
	GetSubject(ctx context.Context, id string) (*entities.Subject, error)
	UpdateSubject(ctx context.Context, id string, req UpdateSubjectRequest) (*entities.Subject, error)
	DeleteSubject(ctx context.Context, id string) error
	ListSubjects(ctx context.Context) ([]entities.Subject, error)
}

// EventService interface for calendar event operations
type EventService interface {
	CreateEvent(ctx context.Context, req CreateEventRequest) (*entities.Event, error)
	GetEvent(ctx context.Context, id string) (*entities.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context) ([]entities.Event, error)
}

// AssessmentService interface for assessment operations
type AssessmentService interface {
	CreateAssessment(ctx context.Context, req CreateAssessmentRequest) (*entities.Assessment, error)
	GetAssessment(ctx context.Context, id string) (*entities.Assessment, error)
	UpdateAssessment(ctx context.Context, id string, req UpdateAssessmentRequest) (*entities.Assessment, error)
	DeleteAssessment(ctx context.Context, id string) error
	ListAssessments(ctx context.Context, filter AssessmentFilter) ([]entities.Assessment, error)
}

// ChatService interface for chat session and intent operations
type ChatService interface {
	CreateSession(ctx context.Context) (*entities.ChatSession, error)
	GetSession(ctx context.Context, sessionID string) (*entities.ChatSession, error)
	AppendMessage(ctx context.Context, sessionID string, req ChatMessageRequest) (*entities.ChatSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
	ExecuteIntent(ctx context.Context, req IntentRequest) (*IntentResult, error)
}

// TimetableService interface for the versioned weekly timetable
type TimetableService interface {
	GetTimetable(ctx context.Context) (*entities.Timetable, error)
	SaveTimetable(ctx context.Context, req SaveTimetableRequest) (*SaveResult, error)
}

// StudyPlanService interface for study plan computation
type StudyPlanService interface {
	ComputePlan(ctx context.Context, req StudyPlanRequest) (*planner.Plan, error)
}

// Request/Response Types

// Task related types
type CreateTaskRequest struct {
	Title             string              `json:"title" validate:"required,max=500"`
	Description       string              `json:"description" validate:"max=2000"`
	Subject           *string             `json:"subject" validate:"omitempty,max=100"`
	DueDate           *entities.Date      `json:"dueDate"`
	Priority          entities.Priority   `json:"priority" validate:"omitempty,priority"`
	Urgency           *string             `json:"urgency" validate:"omitempty,max=50"`
	Difficulty        *string             `json:"difficulty" validate:"omitempty,max=50"`
	Status            entities.TaskStatus `json:"status" validate:"omitempty,taskstatus"`
	EstimatedDuration *float64            `json:"estimatedDuration" validate:"omitempty,min=0"`
	Tags              []string            `json:"tags" validate:"omitempty,dive,max=50"`
	Notes             string              `json:"notes" validate:"max=2000"`
}

type UpdateTaskRequest struct {
	Title             *string              `json:"title" validate:"omitempty,min=1,max=500"`
	Description       *string              `json:"description" validate:"omitempty,max=2000"`
	Subject           *string              `json:"subject" validate:"omitempty,max=100"`
	DueDate           *entities.Date       `json:"dueDate"`
	Priority          *entities.Priority   `json:"priority" validate:"omitempty,priority"`
	Urgency           *string              `json:"urgency" validate:"omitempty,max=50"`
	Difficulty        *string              `json:"difficulty" validate:"omitempty,max=50"`
	Status            *entities.TaskStatus `json:"status" validate:"omitempty,taskstatus"`
	EstimatedDuration *float64             `json:"estimatedDuration" validate:"omitempty,min=0"`
	ActualDuration    *float64             `json:"actualDuration" validate:"omitempty,min=0"`
	Tags              []string             `json:"tags" validate:"omitempty,dive,max=50"`
	Notes             *string              `json:"notes" validate:"omitempty,max=2000"`
}

type TaskFilter struct {
	Status  *entities.TaskStatus
	Subject *string
}

// Subject related types
type CreateSubjectRequest struct {
	Name  string  `json:"name" validate:"required,max=100"`
	Color *string `json:"color" validate:"omitempty,hexcolor"`
}

type UpdateSubjectRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Color *string `json:"color" validate:"omitempty,hexcolor"`
}

// Event related types
type CreateEventRequest struct {
	Title   string         `json:"title" validate:"required,max=200"`
	Date    *entities.Date `json:"date" validate:"required"`
	Subject *string        `json:"subject" validate:"omitempty,max=100"`
	Type    string         `json:"type" validate:"omitempty,max=50"`
}

// Assessment related types
type CreateAssessmentRequest struct {
	Title        string                    `json:"title" validate:"required,max=200"`
	Subject      *string                   `json:"subject" validate:"omitempty,max=100"`
	Date         *entities.Date            `json:"date"`
	Status       entities.AssessmentStatus `json:"status" validate:"omitempty,oneof=upcoming completed overdue unscheduled"`
	Weight       *float64                  `json:"weight" validate:"omitempty,min=0,max=1"`
	ScoreHistory []float64                 `json:"scoreHistory" validate:"omitempty,dive,min=0,max=100"`
	Resources    []entities.Resource       `json:"resources" validate:"omitempty,dive"`
}

type UpdateAssessmentRequest struct {
	Title        *string                    `json:"title" validate:"omitempty,min=1,max=200"`
	Subject      *string                    `json:"subject" validate:"omitempty,max=100"`
	Date         *entities.Date             `json:"date"`
	Status       *entities.AssessmentStatus `json:"status" validate:"omitempty,oneof=upcoming completed overdue unscheduled"`
	Weight       *float64                   `json:"weight" validate:"omitempty,min=0,max=1"`
	ScoreHistory []float64                  `json:"scoreHistory" validate:"omitempty,dive,min=0,max=100"`
	Resources    []entities.Resource        `json:"resources" validate:"omitempty,dive"`
}

type AssessmentFilter struct {
	Subject *string
	From    *time.Time
	To      *time.Time
	Status  *entities.AssessmentStatus
}

// Chat related types
type ChatMessageRequest struct {
	Role     string                 `json:"role" validate:"required,oneof=user assistant system"`
	Content  string                 `json:"content" validate:"required,max=10000"`
	Metadata map[string]interface{} `json:"metadata"`
}

// IntentRequest is a structured action produced by the assistant
type IntentRequest struct {
	Intent    string          `json:"intent" validate:"required,oneof=create_task update_task complete_task create_subject none"`
	Payload   json.RawMessage `json:"payload"`
	Reply     string          `json:"reply" validate:"required"`
	SessionID string          `json:"sessionId"`
}

// IntentResult carries the fresh resources after an intent ran
type IntentResult struct {
	Reply     string                 `json:"reply"`
	Intent    string                 `json:"intent"`
	Resources IntentResources        `json:"resources"`
	Result    map[string]interface{} `json:"result,omitempty"`
}

type IntentResources struct {
	Tasks    []entities.Task    `json:"tasks"`
	Subjects []entities.Subject `json:"subjects"`
	Events   []entities.Event   `json:"events"`
}

// Timetable related types
type SaveTimetableRequest struct {
	Version   *int                        `json:"version" validate:"omitempty,min=0"`
	WeekStart *time.Time                  `json:"weekStart"`
	Days      map[string][]entities.Block `json:"days" validate:"omitempty,dive,keys,weekday,endkeys,dive"`
}

// Study plan related types
type StudyPlanRequest struct {
	DailyHours *float64
	WindowDays *int
}

// Response types for common structures
type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Message   string                 `json:"message"`
	Retryable bool                   `json:"retryable,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}
