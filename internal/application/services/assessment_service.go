package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/studyplanner/core/internal/domain/entities"
	"github.com/studyplanner/core/internal/infrastructure/logger"
	"github.com/studyplanner/core/internal/ports"
)

// AssessmentService handles assessments and their score history
type AssessmentService struct {
	assessmentRepo ports.AssessmentRepository
	clock          ports.Clock
	ids            ports.IDGenerator
	logger         *logger.Logger
}

// NewAssessmentService creates a new assessment service
func NewAssessmentService(assessmentRepo ports.AssessmentRepository, clock ports.Clock, ids ports.IDGenerator, logger *logger.Logger) *AssessmentService {
	return &AssessmentService{
		assessmentRepo: assessmentRepo,
		clock:          clock,
		ids:            ids,
		logger:         logger,
	}
}

var _ ports.AssessmentService = (*AssessmentService)(nil)

// CreateAssessment creates a new assessment
func (s *AssessmentService) CreateAssessment(ctx context.Context, req ports.CreateAssessmentRequest) (*entities.Assessment, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", entities.ErrInvalidInput)
	}

	now := s.clock.Now()
	a := entities.Assessment{
		ID:           "a_" + s.ids.New(),
		Title:        title,
		Subject:      req.Subject,
		Date:         req.Date,
		Status:       req.Status,
		Weight:       req.Weight,
		ScoreHistory: req.ScoreHistory,
		Resources:    req.Resources,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if a.ScoreHistory == nil {
		a.ScoreHistory = []float64{}
	}
	if a.Resources == nil {
		a.Resources = []entities.Resource{}
	}

	created, err := s.assessmentRepo.Insert(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("failed to create assessment: %w", err)
	}

	s.logger.Infow("Assessment created successfully", "assessment_id", created.ID)
	return created, nil
}

// GetAssessment retrieves an assessment by ID
func (s *AssessmentService) GetAssessment(ctx context.Context, id string) (*entities.Assessment, error) {
	return s.assessmentRepo.Get(ctx, id)
}

// UpdateAssessment updates an assessment
func (s *AssessmentService) UpdateAssessment(ctx context.Context, id string, req ports.UpdateAssessmentRequest) (*entities.Assessment, error) {
	return s.assessmentRepo.Replace(ctx, id, func(a entities.Assessment) (entities.Assessment, error) {
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return a, fmt.Errorf("%w: title cannot be empty", entities.ErrInvalidInput)
			}
			a.Title = title
		}
		if req.Subject != nil {
			a.Subject = req.Subject
		}
		if req.Date.IsSet() {
			a.Date = req.Date
		}
		if req.Status != nil {
			a.Status = *req.Status
		}
		if req.Weight != nil {
			a.Weight = req.Weight
		}
		if req.ScoreHistory != nil {
			a.ScoreHistory = req.ScoreHistory
		}
		if req.Resources != nil {
			a.Resources = req.Resources
		}
		a.UpdatedAt = laterOf(a.UpdatedAt, s.clock.Now())
		return a, nil
	})
}

// DeleteAssessment deletes an assessment
func (s *AssessmentService) DeleteAssessment(ctx context.Context, id string) error {
	if err := s.assessmentRepo.Remove(ctx, id); err != nil {
		return err
	}
	s.logger.Infow("Assessment deleted successfully", "assessment_id", id)
	return nil
}

// ListAssessments filters assessments and sorts them by date, undated last.
// The status filter matches the status derived from the date, not the stored one.
func (s *AssessmentService) ListAssessments(ctx context.Context, filter ports.AssessmentFilter) ([]entities.Assessment, error) {
	all, err := s.assessmentRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	out := make([]entities.Assessment, 0, len(all))
	for _, a := range all {
		if filter.Subject != nil && (a.Subject == nil || !strings.EqualFold(*a.Subject, *filter.Subject)) {
			continue
		}
		if filter.From != nil && (!a.Date.IsSet() || a.Date.Before(*filter.From)) {
			continue
		}
		if filter.To != nil && (!a.Date.IsSet() || a.Date.After(*filter.To)) {
			continue
		}
		if filter.Status != nil && a.EffectiveStatus(now) != entities.AssessmentStatus(strings.ToLower(string(*filter.Status))) {
			continue
		}
		out = append(out, a)
	}

	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Date, out[j].Date
		if !di.IsSet() {
			return false
		}
		if !dj.IsSet() {
			return true
		}
		return di.Before(dj.Time)
	})

	return out, nil
}
