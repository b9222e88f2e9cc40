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

// EventService handles calendar events
type EventService struct {
	eventRepo ports.EventRepository
	clock     ports.Clock
	ids       ports.IDGenerator
	logger    *logger.Logger
}

// NewEventService creates a new event service
func NewEventService(eventRepo ports.EventRepository, clock ports.Clock, ids ports.IDGenerator, logger *logger.Logger) *EventService {
	return &EventService{
		eventRepo: eventRepo,
		clock:     clock,
		ids:       ids,
		logger:    logger,
	}
}

var _ ports.EventService = (*EventService)(nil)

// CreateEvent creates a new event
func (s *EventService) CreateEvent(ctx context.Context, req ports.CreateEventRequest) (*entities.Event, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || !req.Date.IsSet() {
		return nil, fmt.Errorf("%w: title and date are required", entities.ErrInvalidInput)
	}

	eventType := req.Type
	if eventType == "" {
		eventType = "event"
	}

	now := s.clock.Now()
	created, err := s.eventRepo.Insert(ctx, entities.Event{
		ID:        "e_" + s.ids.New(),
		Title:     title,
		Date:      entities.Date{Time: req.Date.UTC()},
		Subject:   req.Subject,
		Type:      eventType,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.logger.Infow("Event created successfully", "event_id", created.ID, "type", created.Type)
	return created, nil
}

// GetEvent retrieves an event by ID
func (s *EventService) GetEvent(ctx context.Context, id string) (*entities.Event, error) {
	return s.eventRepo.Get(ctx, id)
}

// DeleteEvent deletes an event
func (s *EventService) DeleteEvent(ctx context.Context, id string) error {
	if err := s.eventRepo.Remove(ctx, id); err != nil {
		return err
	}
	s.logger.Infow("Event deleted successfully", "event_id", id)
	return nil
}

// ListEvents lists events by date
func (s *EventService) ListEvents(ctx context.Context) ([]entities.Event, error) {
	events, err := s.eventRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date.Time)
	})
	return events, nil
}
