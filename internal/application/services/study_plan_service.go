package services

import (
	"context"
	"fmt"

	"github.com/studyplanner/core/internal/domain/entities"
	"github.com/studyplanner/core/internal/domain/planner"
	"github.com/studyplanner/core/internal/infrastructure/config"
	"github.com/studyplanner/core/internal/infrastructure/logger"
	"github.com/studyplanner/core/internal/ports"
)

// StudyPlanService computes study plans from the current tasks. It never writes.
type StudyPlanService struct {
	taskRepo ports.TaskRepository
	cfg      config.PlannerConfig
	clock    ports.Clock
	logger   *logger.Logger
}

// NewStudyPlanService creates a new study plan service
func NewStudyPlanService(taskRepo ports.TaskRepository, cfg config.PlannerConfig, clock ports.Clock, logger *logger.Logger) *StudyPlanService {
	return &StudyPlanService{
		taskRepo: taskRepo,
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
	}
}

var _ ports.StudyPlanService = (*StudyPlanService)(nil)

// ComputePlan builds a plan over the configured defaults overridden by req.
// A window above the configured maximum is rejected.
func (s *StudyPlanService) ComputePlan(ctx context.Context, req ports.StudyPlanRequest) (*planner.Plan, error) {
	daily := s.cfg.DefaultDailyHours
	if req.DailyHours != nil {
		daily = *req.DailyHours
	}
	window := s.cfg.DefaultWindowDays
	if req.WindowDays != nil {
		window = *req.WindowDays
	}
	if s.cfg.MaxWindowDays > 0 && window > s.cfg.MaxWindowDays {
		return nil, fmt.Errorf("%w: windowDays must be at most %d", entities.ErrInvalidInput, s.cfg.MaxWindowDays)
	}

	tasks, err := s.taskRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	plan := planner.Compute(tasks, planner.Options{
		DailyCapacityHours: daily,
		WindowDays:         window,
		Now:                s.clock.Now(),
	})

	s.logger.Debugw("Study plan computed",
		"tasks", len(plan.RecommendedOrder),
		"window_days", plan.WindowDays,
		"daily_hours", plan.DailyCapacityHours,
	)

	return &plan, nil
}
