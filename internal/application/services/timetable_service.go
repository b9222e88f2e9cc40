package services

import (
	"context"

	"github.com/studyplanner/core/internal/domain/entities"
	"github.com/studyplanner/core/internal/infrastructure/logger"
	"github.com/studyplanner/core/internal/ports"
)

// TimetableService validates and saves the weekly timetable
type TimetableService struct {
	repo     ports.TimetableRepository
	notifier ports.TimetableNotifier
	clock    ports.Clock
	ids      ports.IDGenerator
	logger   *logger.Logger
}

// NewTimetableService creates a new timetable service. notifier may be nil.
func NewTimetableService(repo ports.TimetableRepository, notifier ports.TimetableNotifier, clock ports.Clock, ids ports.IDGenerator, logger *logger.Logger) *TimetableService {
	return &TimetableService{
		repo:     repo,
		notifier: notifier,
		clock:    clock,
		ids:      ids,
		logger:   logger,
	}
}

var _ ports.TimetableService = (*TimetableService)(nil)

// GetTimetable returns the current timetable
func (s *TimetableService) GetTimetable(ctx context.Context) (*entities.Timetable, error) {
	return s.repo.Get(ctx)
}

// SaveTimetable validates the submitted days and saves them against the submitted version.
// Blocks without an id are given one. A stale version is reported in the result, not as an error.
func (s *TimetableService) SaveTimetable(ctx context.Context, req ports.SaveTimetableRequest) (*ports.SaveResult, error) {
	var days map[string][]entities.Block
	if req.Days != nil {
		days = s.withBlockIDs(req.Days)
		candidate := entities.Timetable{Days: days}
		if err := candidate.Validate(); err != nil {
			return nil, err
		}
	}

	var weekStart = req.WeekStart
	if weekStart != nil {
		utc := weekStart.UTC()
		weekStart = &utc
	}

	res, err := s.repo.Save(ctx, ports.TimetableChange{
		Version:   req.Version,
		WeekStart: weekStart,
		Days:      days,
		At:        s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	if !res.Conflict && s.notifier != nil {
		s.notifier.TimetableUpdated(res.Timetable.Version)
	}

	return res, nil
}

// withBlockIDs copies days, giving every block without an id a fresh one.
func (s *TimetableService) withBlockIDs(days map[string][]entities.Block) map[string][]entities.Block {
	out := make(map[string][]entities.Block, len(days))
	for day, blocks := range days {
		copied := make([]entities.Block, len(blocks))
		for i, b := range blocks {
			if b.ID == "" {
				b.ID = "blk_" + s.ids.New()
			}
			copied[i] = b
		}
		out[day] = copied
	}
	return out
}
