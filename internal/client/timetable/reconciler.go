// Package timetable is the client side of the versioned timetable save.
//
// A Reconciler keeps a local copy of the timetable, applies edits to it
// optimistically and saves them with the version it last saw. When the server
// answers 409 the edit is replayed once on top of the server's latest document.
// A second conflict is reported to the caller instead of retrying again.
package timetable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/studyplanner/core/internal/domain/entities"
	"github.com/studyplanner/core/internal/infrastructure/logger"
	"github.com/studyplanner/core/internal/ports"
)

// DefaultUndoWindow is how long a successful save can be undone.
const DefaultUndoWindow = 10 * time.Second

var (
	// ErrConflictPersisted means the retried save conflicted as well.
	ErrConflictPersisted = errors.New("timetable changed again during retry")
	// ErrUndoConflict means the timetable changed since the save being undone.
	ErrUndoConflict = errors.New("timetable changed since the last save")
	// ErrNothingToUndo means there is no save left to undo or its window has passed.
	ErrNothingToUndo = errors.New("nothing to undo")
)

// StatusError is a non-conflict error answer from the server.
type StatusError struct {
	Code      int
	Message   string
	Retryable bool
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("timetable request failed with status %d: %s", e.Code, e.Message)
}

// Edit changes a timetable in place.
type Edit func(tt *entities.Timetable) error

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Reconciler) { r.client = c }
}

// WithClock sets the time source used for the undo window.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithUndoWindow sets how long a save stays undoable.
func WithUndoWindow(d time.Duration) Option {
	return func(r *Reconciler) { r.undoWindow = d }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

type undoEntry struct {
	before  entities.Timetable
	expires time.Time
}

// Reconciler applies local timetable edits against the server.
// Its methods are safe for concurrent use; edits are applied one at a time.
type Reconciler struct {
	endpoint   string
	client     *http.Client
	now        func() time.Time
	undoWindow time.Duration
	logger     *logger.Logger

	mu    sync.Mutex
	local *entities.Timetable
	undo  *undoEntry
}

// New creates a Reconciler for the API at baseURL (for example http://localhost:5000).
func New(baseURL string, opts ...Option) *Reconciler {
	r := &Reconciler{
		endpoint:   strings.TrimRight(baseURL, "/") + "/api/timetable",
		client:     &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
		undoWindow: DefaultUndoWindow,
		logger:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load fetches the server timetable and makes it the local copy.
func (r *Reconciler) Load(ctx context.Context) (*entities.Timetable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tt, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}
	r.local = tt
	out := clone(*tt)
	return &out, nil
}

// Current returns a copy of the local timetable, or nil before the first Load.
func (r *Reconciler) Current() *entities.Timetable {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.local == nil {
		return nil
	}
	out := clone(*r.local)
	return &out
}

// Apply runs edit on the local copy and saves it. On a version conflict the
// server's latest document is adopted and edit is applied to it and saved once
// more. An error from edit leaves the local copy unchanged.
func (r *Reconciler) Apply(ctx context.Context, edit Edit) (*entities.Timetable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.local == nil {
		tt, err := r.fetch(ctx)
		if err != nil {
			return nil, err
		}
		r.local = tt
	}

	before := clone(*r.local)
	working := clone(before)
	if err := edit(&working); err != nil {
		return nil, err
	}
	r.local = &working

	res, err := r.save(ctx, working)
	if err != nil {
		r.local = &before
		return nil, err
	}

	if res.Conflict {
		latest := res.Timetable
		r.logger.Infow("Timetable conflict, replaying edit", "local_version", working.Version, "server_version", latest.Version)

		retry := clone(latest)
		if err := edit(&retry); err != nil {
			r.local = &latest
			return nil, err
		}
		r.local = &retry

		res, err = r.save(ctx, retry)
		if err != nil {
			r.local = &latest
			return nil, err
		}
		if res.Conflict {
			r.local = &res.Timetable
			r.undo = nil
			return nil, ErrConflictPersisted
		}
		before = latest
	}

	r.local = &res.Timetable
	r.undo = &undoEntry{before: before, expires: r.now().Add(r.undoWindow)}

	out := clone(res.Timetable)
	return &out, nil
}

// Undo restores the days and week start from before the last successful Apply.
// It is saved at the current version, so it conflicts if anyone saved since.
func (r *Reconciler) Undo(ctx context.Context) (*entities.Timetable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.undo == nil || r.local == nil || r.now().After(r.undo.expires) {
		r.undo = nil
		return nil, ErrNothingToUndo
	}

	restored := clone(r.undo.before)
	restored.Version = r.local.Version
	r.undo = nil

	res, err := r.save(ctx, restored)
	if err != nil {
		return nil, err
	}
	r.local = &res.Timetable
	if res.Conflict {
		return nil, ErrUndoConflict
	}

	out := clone(res.Timetable)
	return &out, nil
}

// CanUndo reports whether an undo is currently available.
func (r *Reconciler) CanUndo() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.undo != nil && !r.now().After(r.undo.expires)
}

func (r *Reconciler) fetch(ctx context.Context) (*entities.Timetable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch timetable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var tt entities.Timetable
	if err := json.NewDecoder(resp.Body).Decode(&tt); err != nil {
		return nil, fmt.Errorf("decode timetable: %w", err)
	}
	return &tt, nil
}

func (r *Reconciler) save(ctx context.Context, tt entities.Timetable) (*ports.SaveResult, error) {
	version := tt.Version
	weekStart := tt.WeekStart
	body, err := json.Marshal(ports.SaveTimetableRequest{
		Version:   &version,
		WeekStart: &weekStart,
		Days:      tt.Days,
	})
	if err != nil {
		return nil, fmt.Errorf("encode timetable: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("save timetable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var saved entities.Timetable
		if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
			return nil, fmt.Errorf("decode saved timetable: %w", err)
		}
		return &ports.SaveResult{Timetable: saved}, nil

	case http.StatusConflict:
		var res ports.SaveResult
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return nil, fmt.Errorf("decode conflict: %w", err)
		}
		res.Conflict = true
		return &res, nil
	}

	return nil, statusError(resp)
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body ports.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(data))
	}
	return &StatusError{Code: resp.StatusCode, Message: body.Message, Retryable: body.Retryable}
}

func clone(tt entities.Timetable) entities.Timetable {
	out := tt
	if tt.Days != nil {
		out.Days = make(map[string][]entities.Block, len(tt.Days))
		for day, blocks := range tt.Days {
			out.Days[day] = append([]entities.Block(nil), blocks...)
			if blocks != nil && out.Days[day] == nil {
				out.Days[day] = []entities.Block{}
			}
		}
	}
	return out
}
