package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/studyplanner/core/internal/domain/entities"
	"github.com/studyplanner/core/internal/infrastructure/logger"
	"github.com/studyplanner/core/internal/ports"
)

// TaskService handles task-related operations
type TaskService struct {
	taskRepo ports.TaskRepository
	clock    ports.Clock
	ids      ports.IDGenerator
	logger   *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(taskRepo ports.TaskRepository, clock ports.Clock, ids ports.IDGenerator, logger *logger.Logger) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		clock:    clock,
		ids:      ids,
		logger:   logger,
	}
}

var _ ports.TaskService = (*TaskService)(nil)

// CreateTask creates a new task
func (s *TaskService) CreateTask(ctx context.Context, req ports.CreateTaskRequest) (*entities.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", entities.ErrInvalidInput)
	}

	now := s.clock.Now()
	task := entities.Task{
		ID:                "t_" + s.ids.New(),
		Title:             title,
		Description:       req.Description,
		Subject:           req.Subject,
		DueDate:           req.DueDate,
		Priority:          req.Priority,
		Urgency:           req.Urgency,
		Difficulty:        req.Difficulty,
		Status:            req.Status,
		EstimatedDuration: req.EstimatedDuration,
		Tags:              req.Tags,
		Notes:             req.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if task.Priority == "" {
		task.Priority = entities.PriorityMedium
	}
	if task.Status == "" {
		task.Status = entities.TaskStatusPending
	}
	if task.Tags == nil {
		task.Tags = []string{}
	}
	if !task.DueDate.IsSet() {
		task.DueDate = nil
	}

	created, err := s.taskRepo.Insert(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Infow("Task created successfully", "task_id", created.ID, "title", created.Title)

	return created, nil
}

// GetTask retrieves a task by ID
func (s *TaskService) GetTask(ctx context.Context, id string) (*entities.Task, error) {
	return s.taskRepo.Get(ctx, id)
}

// UpdateTask updates a task's information
func (s *TaskService) UpdateTask(ctx context.Context, id string, req ports.UpdateTaskRequest) (*entities.Task, error) {
	updated, err := s.taskRepo.Replace(ctx, id, func(task entities.Task) (entities.Task, error) {
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return task, fmt.Errorf("%w: title cannot be empty", entities.ErrInvalidInput)
			}
			task.Title = title
		}
		if req.Description != nil {
			task.Description = *req.Description
		}
		if req.Subject != nil {
			task.Subject = req.Subject
		}
		if req.DueDate.IsSet() {
			task.DueDate = req.DueDate
		}
		if req.Priority != nil {
			task.Priority = *req.Priority
		}
		if req.Urgency != nil {
			task.Urgency = req.Urgency
		}
		if req.Difficulty != nil {
			task.Difficulty = req.Difficulty
		}
		if req.Status != nil {
			task.Status = *req.Status
		}
		if req.EstimatedDuration != nil {
			task.EstimatedDuration = req.EstimatedDuration
		}
		if req.ActualDuration != nil {
			task.ActualDuration = req.ActualDuration
		}
		if req.Tags != nil {
			task.Tags = req.Tags
		}
		if req.Notes != nil {
			task.Notes = *req.Notes
		}
		task.UpdatedAt = laterOf(task.UpdatedAt, s.clock.Now())
		return task, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Task updated successfully", "task_id", id)

	return updated, nil
}

// CompleteTask marks a task as completed
func (s *TaskService) CompleteTask(ctx context.Context, id string) (*entities.Task, error) {
	status := entities.TaskStatusCompleted
	return s.UpdateTask(ctx, id, ports.UpdateTaskRequest{Status: &status})
}

// DeleteTask deletes a task
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	if err := s.taskRepo.Remove(ctx, id); err != nil {
		return err
	}

	s.logger.Infow("Task deleted successfully", "task_id", id)
	return nil
}

// ListTasks lists tasks with filtering
func (s *TaskService) ListTasks(ctx context.Context, filter ports.TaskFilter) ([]entities.Task, error) {
	tasks, err := s.taskRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	out := tasks[:0]
	for _, t := range tasks {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Subject != nil && (t.Subject == nil || !strings.EqualFold(*t.Subject, *filter.Subject)) {
			continue
		}
		out = append(out, t)
	}

	return out, nil
}
