package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/studyplanner/core/internal/domain/entities"
	"github.com/studyplanner/core/internal/infrastructure/logger"
	"github.com/studyplanner/core/internal/ports"
)

// SubjectService handles subject operations
type SubjectService struct {
	subjectRepo ports.SubjectRepository
	clock       ports.Clock
	ids         ports.IDGenerator
	logger      *logger.Logger
}

// NewSubjectService creates a new subject service
func NewSubjectService(subjectRepo ports.SubjectRepository, clock ports.Clock, ids ports.IDGenerator, logger *logger.Logger) *SubjectService {
	return &SubjectService{
		subjectRepo: subjectRepo,
		clock:       clock,
		ids:         ids,
		logger:      logger,
	}
}

var _ ports.SubjectService = (*SubjectService)(nil)

// CreateSubject creates a new subject
func (s *SubjectService) CreateSubject(ctx context.Context, req ports.CreateSubjectRequest) (*entities.Subject, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", entities.ErrInvalidInput)
	}

	now := s.clock.Now()
	created, err := s.subjectRepo.Insert(ctx, entities.Subject{
		ID:        "s_" + s.ids.New(),
		Name:      name,
		Color:     req.Color,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subject: %w", err)
	}

	s.logger.Infow("Subject created successfully", "subject_id", created.ID, "name", created.Name)
	return created, nil
}

// GetSubject retrieves a subject by ID
func (s *SubjectService) GetSubject(ctx context.Context, id string) (*entities.Subject, error) {
	return s.subjectRepo.Get(ctx, id)
}

// UpdateSubject updates a subject
func (s *SubjectService) UpdateSubject(ctx context.Context, id string, req ports.UpdateSubjectRequest) (*entities.Subject, error) {
	return s.subjectRepo.Replace(ctx, id, func(subject entities.Subject) (entities.Subject, error) {
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return subject, fmt.Errorf("%w: name cannot be empty", entities.ErrInvalidInput)
			}
			subject.Name = name
		}
		if req.Color != nil {
			subject.Color = req.Color
		}
		subject.UpdatedAt = laterOf(subject.UpdatedAt, s.clock.Now())
		return subject, nil
	})
}

// DeleteSubject deletes a subject
func (s *SubjectService) DeleteSubject(ctx context.Context, id string) error {
	if err := s.subjectRepo.Remove(ctx, id); err != nil {
		return err
	}
	s.logger.Infow("Subject deleted successfully", "subject_id", id)
	return nil
}

// ListSubjects lists all subjects
func (s *SubjectService) ListSubjects(ctx context.Context) ([]entities.Subject, error) {
	return s.subjectRepo.List(ctx)
}
