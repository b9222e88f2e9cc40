package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/studyplanner/core/internal/domain/entities"
	"github.com/studyplanner/core/internal/infrastructure/datastore"
	"github.com/studyplanner/core/internal/infrastructure/logger"
	"github.com/studyplanner/core/internal/ports"
)

// ErrNotList is returned when a list collection holds a JSON value other than an array.
// The document is left as it is.
var ErrNotList = errors.New("collection is not a list")

// ListRepository stores records of type T as a JSON array in one collection.
// Elements are handled as raw JSON inside each update, so an element that does
// not decode as T is carried through unchanged instead of being dropped.
type ListRepository[T ports.Record] struct {
	store      *datastore.Store
	collection string
	notFound   error
	logger     *logger.Logger
}

// NewListRepository creates a repository over collection. notFound is returned
// when an id is not present.
func NewListRepository[T ports.Record](store *datastore.Store, collection string, notFound error, log *logger.Logger) *ListRepository[T] {
	return &ListRepository[T]{
		store:      store,
		collection: collection,
		notFound:   notFound,
		logger:     log.WithCollection(collection),
	}
}

// NewTaskRepository creates the tasks repository
func NewTaskRepository(store *datastore.Store, log *logger.Logger) ports.TaskRepository {
	return NewListRepository[entities.Task](store, "tasks", entities.ErrTaskNotFound, log)
}

// NewSubjectRepository creates the subjects repository
func NewSubjectRepository(store *datastore.Store, log *logger.Logger) ports.SubjectRepository {
	return NewListRepository[entities.Subject](store, "subjects", entities.ErrSubjectNotFound, log)
}

// NewEventRepository creates the events repository
func NewEventRepository(store *datastore.Store, log *logger.Logger) ports.EventRepository {
	return NewListRepository[entities.Event](store, "events", entities.ErrEventNotFound, log)
}

// NewAssessmentRepository creates the assessments repository
func NewAssessmentRepository(store *datastore.Store, log *logger.Logger) ports.AssessmentRepository {
	return NewListRepository[entities.Assessment](store, "assessments", entities.ErrAssessmentNotFound, log)
}

// NewChatRepository creates the chat sessions repository
func NewChatRepository(store *datastore.Store, log *logger.Logger) ports.ChatRepository {
	return NewListRepository[entities.ChatSession](store, "chat", entities.ErrSessionNotFound, log)
}

// List returns every record that decodes as T, in stored order.
func (r *ListRepository[T]) List(ctx context.Context) ([]T, error) {
	doc, err := r.store.Get(r.collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.collection, err)
	}

	elems, err := r.elements(doc)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(elems))
	for i, raw := range elems {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			r.logger.WithError(err).Warnw("Skipping malformed record", "index", i)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get returns the record with the given id.
func (r *ListRepository[T]) Get(ctx context.Context, id string) (*T, error) {
	doc, err := r.store.Get(r.collection)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.collection, err)
	}

	elems, err := r.elements(doc)
	if err != nil {
		return nil, err
	}
	_, rec, ok := find[T](elems, id)
	if !ok {
		return nil, r.notFound
	}
	return &rec, nil
}

// Insert appends record. Ids must be unique within the collection.
func (r *ListRepository[T]) Insert(ctx context.Context, record T) (*T, error) {
	if record.RecordID() == "" {
		return nil, fmt.Errorf("%w: record id is required", entities.ErrInvalidInput)
	}

	encoded, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	_, err = r.store.Update(ctx, r.collection, func(doc json.RawMessage) (interface{}, error) {
		elems, err := r.elements(doc)
		if err != nil {
			return nil, err
		}
		if _, _, exists := find[T](elems, record.RecordID()); exists {
			return nil, fmt.Errorf("%w: id %s already exists", entities.ErrInvalidInput, record.RecordID())
		}
		return append(elems, encoded), nil
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// Replace applies fn to the stored record with the given id. The id cannot change.
func (r *ListRepository[T]) Replace(ctx context.Context, id string, fn func(current T) (T, error)) (*T, error) {
	var updated T
	_, err := r.store.Update(ctx, r.collection, func(doc json.RawMessage) (interface{}, error) {
		elems, err := r.elements(doc)
		if err != nil {
			return nil, err
		}
		idx, current, ok := find[T](elems, id)
		if !ok {
			return nil, r.notFound
		}

		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		if next.RecordID() != id {
			return nil, fmt.Errorf("%w: id is immutable", entities.ErrInvalidInput)
		}

		encoded, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("encode record: %w", err)
		}
		elems[idx] = encoded
		updated = next
		return elems, nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// Remove deletes the record with the given id.
func (r *ListRepository[T]) Remove(ctx context.Context, id string) error {
	_, err := r.store.Update(ctx, r.collection, func(doc json.RawMessage) (interface{}, error) {
		elems, err := r.elements(doc)
		if err != nil {
			return nil, err
		}
		idx, _, ok := find[T](elems, id)
		if !ok {
			return nil, r.notFound
		}
		return append(elems[:idx], elems[idx+1:]...), nil
	})
	return err
}

// elements splits the collection into raw records. null counts as empty.
func (r *ListRepository[T]) elements(doc json.RawMessage) ([]json.RawMessage, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(doc, &elems); err != nil {
		r.logger.WithError(err).Errorw("Collection is not a list")
		return nil, fmt.Errorf("%w: %s", ErrNotList, r.collection)
	}
	if elems == nil {
		elems = []json.RawMessage{}
	}
	return elems, nil
}

func find[T ports.Record](elems []json.RawMessage, id string) (int, T, bool) {
	var zero T
	if id == "" {
		return -1, zero, false
	}
	for i, raw := range elems {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		if rec.RecordID() == id {
			return i, rec, true
		}
	}
	return -1, zero, false
}
