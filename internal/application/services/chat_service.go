package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/studyplanner/core/internal/domain/entities"
	"github.com/studyplanner/core/internal/infrastructure/logger"
	"github.com/studyplanner/core/internal/ports"
)

// Supported assistant intents
const (
	IntentCreateTask    = "create_task"
	IntentUpdateTask    = "update_task"
	IntentCompleteTask  = "complete_task"
	IntentCreateSubject = "create_subject"
	IntentNone          = "none"
)

// ChatService stores chat sessions and executes assistant intents through the
// regular resource services.
type ChatService struct {
	chatRepo  ports.ChatRepository
	tasks     ports.TaskService
	subjects  ports.SubjectService
	events    ports.EventService
	validator ports.Validator
	clock     ports.Clock
	ids       ports.IDGenerator
	logger    *logger.Logger
}

// NewChatService creates a new chat service
func NewChatService(
	chatRepo ports.ChatRepository,
	tasks ports.TaskService,
	subjects ports.SubjectService,
	events ports.EventService,
	validator ports.Validator,
	clock ports.Clock,
	ids ports.IDGenerator,
	logger *logger.Logger,
) *ChatService {
	return &ChatService{
		chatRepo:  chatRepo,
		tasks:     tasks,
		subjects:  subjects,
		events:    events,
		validator: validator,
		clock:     clock,
		ids:       ids,
		logger:    logger,
	}
}

var _ ports.ChatService = (*ChatService)(nil)

// CreateSession starts an empty chat session
func (s *ChatService) CreateSession(ctx context.Context) (*entities.ChatSession, error) {
	now := s.clock.Now()
	return s.chatRepo.Insert(ctx, entities.ChatSession{
		SessionID:     "session_" + s.ids.New(),
		Messages:      []entities.ChatMessage{},
		Status:        "active",
		CreatedAt:     now,
		LastMessageAt: now,
	})
}

// GetSession returns a session with its history
func (s *ChatService) GetSession(ctx context.Context, sessionID string) (*entities.ChatSession, error) {
	return s.chatRepo.Get(ctx, sessionID)
}

// AppendMessage adds a message to a session
func (s *ChatService) AppendMessage(ctx context.Context, sessionID string, req ports.ChatMessageRequest) (*entities.ChatSession, error) {
	return s.chatRepo.Replace(ctx, sessionID, func(session entities.ChatSession) (entities.ChatSession, error) {
		now := laterOf(session.LastMessageAt, s.clock.Now())
		session.Messages = append(session.Messages, entities.ChatMessage{
			Role:      req.Role,
			Content:   req.Content,
			Timestamp: now,
			Metadata:  req.Metadata,
		})
		session.LastMessageAt = now
		return session, nil
	})
}

// DeleteSession removes a session
func (s *ChatService) DeleteSession(ctx context.Context, sessionID string) error {
	return s.chatRepo.Remove(ctx, sessionID)
}

// ExecuteIntent runs a structured intent and returns fresh resources.
// With a session id the reply is recorded in that session afterwards.
func (s *ChatService) ExecuteIntent(ctx context.Context, req ports.IntentRequest) (*ports.IntentResult, error) {
	if req.SessionID != "" {
		if _, err := s.chatRepo.Get(ctx, req.SessionID); err != nil {
			return nil, err
		}
	}

	result, err := s.runIntent(ctx, req)
	if err != nil {
		return nil, err
	}

	resources, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	if req.SessionID != "" {
		_, err := s.AppendMessage(ctx, req.SessionID, ports.ChatMessageRequest{
			Role:     "assistant",
			Content:  req.Reply,
			Metadata: map[string]interface{}{"intent": req.Intent},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record reply: %w", err)
		}
	}

	s.logger.Infow("Intent executed", "intent", req.Intent, "session_id", req.SessionID)

	return &ports.IntentResult{
		Reply:     req.Reply,
		Intent:    req.Intent,
		Resources: *resources,
		Result:    result,
	}, nil
}

func (s *ChatService) runIntent(ctx context.Context, req ports.IntentRequest) (map[string]interface{}, error) {
	switch req.Intent {
	case IntentCreateTask:
		var payload ports.CreateTaskRequest
		if err := s.decode(req.Payload, &payload); err != nil {
			return nil, err
		}
		if payload.Priority != "" && !payload.Priority.IsValid() {
			return nil, fmt.Errorf("%w: unknown priority %q", entities.ErrInvalidInput, payload.Priority)
		}
		// assistant-created tasks always start pending
		payload.Status = entities.TaskStatusPending
		task, err := s.tasks.CreateTask(ctx, payload)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"task": task}, nil

	case IntentUpdateTask:
		var payload struct {
			ID string `json:"id"`
			ports.UpdateTaskRequest
		}
		if err := s.decode(req.Payload, &payload); err != nil {
			return nil, err
		}
		if strings.TrimSpace(payload.ID) == "" {
			return nil, fmt.Errorf("%w: update_task.id is required", entities.ErrInvalidInput)
		}
		if payload.Priority != nil && !payload.Priority.IsValid() {
			return nil, fmt.Errorf("%w: unknown priority %q", entities.ErrInvalidInput, *payload.Priority)
		}
		if payload.Status != nil && !payload.Status.IsValid() {
			return nil, fmt.Errorf("%w: unknown status %q", entities.ErrInvalidInput, *payload.Status)
		}
		task, err := s.tasks.UpdateTask(ctx, payload.ID, payload.UpdateTaskRequest)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"task": task}, nil

	case IntentCompleteTask:
		var payload struct {
			ID string `json:"id"`
		}
		if err := decodePayload(req.Payload, &payload); err != nil {
			return nil, err
		}
		if strings.TrimSpace(payload.ID) == "" {
			return nil, fmt.Errorf("%w: complete_task.id is required", entities.ErrInvalidInput)
		}
		task, err := s.tasks.CompleteTask(ctx, payload.ID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"task": task}, nil

	case IntentCreateSubject:
		var payload ports.CreateSubjectRequest
		if err := s.decode(req.Payload, &payload); err != nil {
			return nil, err
		}
		subject, err := s.subjects.CreateSubject(ctx, payload)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"subject": subject}, nil

	case IntentNone:
		return nil, nil
	}

	return nil, fmt.Errorf("%w: %q", entities.ErrUnknownIntent, req.Intent)
}

func (s *ChatService) snapshot(ctx context.Context) (*ports.IntentResources, error) {
	tasks, err := s.tasks.ListTasks(ctx, ports.TaskFilter{})
	if err != nil {
		return nil, err
	}
	subjects, err := s.subjects.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}
	events, err := s.events.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	return &ports.IntentResources{Tasks: tasks, Subjects: subjects, Events: events}, nil
}

// decode reads an intent payload and checks it with the same rules as the
// matching REST request.
func (s *ChatService) decode(raw json.RawMessage, dst interface{}) error {
	if err := decodePayload(raw, dst); err != nil {
		return err
	}
	if s.validator == nil {
		return nil
	}
	if err := s.validator.Validate(dst); err != nil {
		return fmt.Errorf("%w: %w", entities.ErrInvalidInput, err)
	}
	return nil
}

func decodePayload(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: payload must be an object", entities.ErrInvalidInput)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: payload: %v", entities.ErrInvalidInput, err)
	}
	return nil
}
