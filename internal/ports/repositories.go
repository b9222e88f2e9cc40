package ports

import (
	"context"
	"time"

	"github.com/studyplanner/core/internal/domain/entities"
)

// Record is an entity stored in a list collection
type Record interface {
	RecordID() string
}

// ListRepository defines the operations on a list collection.
// Every mutation is a single read-modify-write of the whole collection.
type ListRepository[T Record] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (*T, error)
	Insert(ctx context.Context, record T) (*T, error)
	Replace(ctx context.Context, id string, fn func(current T) (T, error)) (*T, error)
	Remove(ctx context.Context, id string) error
}

// TaskRepository defines the interface for task data operations
type TaskRepository = ListRepository[entities.Task]

// SubjectRepository defines the interface for subject data operations
type SubjectRepository = ListRepository[entities.Subject]

// EventRepository defines the interface for event data operations
type EventRepository = ListRepository[entities.Event]

// AssessmentRepository defines the interface for assessment data operations
type AssessmentRepository = ListRepository[entities.Assessment]

// ChatRepository defines the interface for chat session data operations
type ChatRepository = ListRepository[entities.ChatSession]

// TimetableRepository defines the versioned timetable operations
type TimetableRepository interface {
	Get(ctx context.Context) (*entities.Timetable, error)
	Save(ctx context.Context, change TimetableChange) (*SaveResult, error)
}

// TimetableChange is a client save. A nil Version skips the version check;
// nil WeekStart or Days keep the current values.
type TimetableChange struct {
	Version   *int
	WeekStart *time.Time
	Days      map[string][]entities.Block
	At        time.Time
}

// SaveResult is the outcome of a versioned save. On conflict Timetable is the
// latest stored document and nothing was written.
type SaveResult struct {
	Conflict  bool               `json:"conflict"`
	Timetable entities.Timetable `json:"data"`
}

// TimetableNotifier is told about every accepted timetable save
type TimetableNotifier interface {
	TimetableUpdated(version int)
}

// Clock provides the current time
type Clock interface {
	Now() time.Time
}

// Validator checks a request struct against its validate tags
type Validator interface {
	Validate(i interface{}) error
}

// IDGenerator produces unique identifiers
type IDGenerator interface {
	New() string
}
