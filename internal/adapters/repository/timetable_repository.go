package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/studyplanner/core/internal/domain/entities"
	"github.com/studyplanner/core/internal/infrastructure/datastore"
	"github.com/studyplanner/core/internal/infrastructure/logger"
	"github.com/studyplanner/core/internal/ports"
)

const timetableCollection = "timetable"

// errStaleVersion aborts the update without writing; Save turns it into a conflict result.
var errStaleVersion = errors.New("stale timetable version")

// TimetableRepository persists the timetable singleton with optimistic versioning.
// Each accepted save increments the version by one inside the collection's
// exclusive update, so two saves from the same stale version cannot both win.
type TimetableRepository struct {
	store  *datastore.Store
	logger *logger.Logger
}

// NewTimetableRepository creates a new timetable repository
func NewTimetableRepository(store *datastore.Store, log *logger.Logger) *TimetableRepository {
	return &TimetableRepository{
		store:  store,
		logger: log.WithComponent("timetable-repository"),
	}
}

var _ ports.TimetableRepository = (*TimetableRepository)(nil)

// Get returns the current timetable.
func (r *TimetableRepository) Get(ctx context.Context) (*entities.Timetable, error) {
	tt, err := datastore.Load[entities.Timetable](r.store, timetableCollection)
	if err != nil {
		return nil, fmt.Errorf("get timetable: %w", err)
	}
	return &tt, nil
}

// Save applies change if its version matches the stored one (or it carries none).
// A mismatch writes nothing and returns the latest timetable with Conflict set.
func (r *TimetableRepository) Save(ctx context.Context, change ports.TimetableChange) (*ports.SaveResult, error) {
	var latest entities.Timetable

	next, err := datastore.Mutate(ctx, r.store, timetableCollection, func(current entities.Timetable) (entities.Timetable, error) {
		if change.Version != nil && *change.Version != current.Version {
			latest = current
			return current, errStaleVersion
		}

		next := entities.Timetable{
			Version:   current.Version + 1,
			WeekStart: current.WeekStart,
			Days:      current.Days,
			UpdatedAt: change.At,
		}
		if change.WeekStart != nil {
			next.WeekStart = *change.WeekStart
		}
		if change.Days != nil {
			next.Days = change.Days
		}
		if next.Days == nil {
			next.Days = map[string][]entities.Block{}
		}
		return next, nil
	})

	if errors.Is(err, errStaleVersion) {
		r.store.Metrics().ObserveConflict()
		r.logger.LogConflict(timetableCollection, *change.Version, latest.Version)
		return &ports.SaveResult{Conflict: true, Timetable: latest}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("save timetable: %w", err)
	}

	r.logger.Infow("Timetable saved", "version", next.Version, "blocks", next.BlockCount())
	return &ports.SaveResult{Timetable: next}, nil
}
