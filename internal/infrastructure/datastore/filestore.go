package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/studyplanner/core/internal/infrastructure/logger"
)

// FileStore reads and atomically writes one JSON file per collection.
type FileStore struct {
	dir     string
	now     func() time.Time
	logger  *logger.Logger
	metrics *Metrics

	// beforeRename runs after the temp file is complete and before it replaces the target.
	beforeRename func(tmpPath string) error
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string, now func() time.Time, log *logger.Logger, metrics *Metrics) *FileStore {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &FileStore{
		dir:     dir,
		now:     now,
		logger:  log.WithComponent("filestore"),
		metrics: metrics,
	}
}

// Path returns the file path of a collection.
func (f *FileStore) Path(collection string) string {
	return filepath.Join(f.dir, collection+".json")
}

// Read returns the raw document of a collection.
// A missing file yields ErrNotFound. A file that is not valid JSON is moved to
// "<file>.corrupt-<unixms>.bak" and also yields ErrNotFound.
func (f *FileStore) Read(collection string) ([]byte, error) {
	data, err := f.readFile(collection)
	if err != nil {
		return nil, err
	}

	if !json.Valid(data) {
		f.quarantine(collection)
		return nil, ErrNotFound
	}

	return data, nil
}

func (f *FileStore) readFile(collection string) ([]byte, error) {
	data, err := os.ReadFile(f.Path(collection))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read collection %s: %w", collection, err)
	}
	return data, nil
}

func (f *FileStore) quarantine(collection string) {
	path := f.Path(collection)
	backup := fmt.Sprintf("%s.corrupt-%d.bak", path, f.now().UnixMilli())

	log := f.logger.WithCollection(collection)
	if err := os.Rename(path, backup); err != nil {
		log.WithError(err).Errorw("Failed to quarantine corrupt collection file", "path", path)
		return
	}

	f.metrics.observeQuarantine(collection)
	log.Warnw("Corrupt collection file quarantined, reseeding defaults", "backup", backup)
}

// WriteAtomic replaces the collection file with data.
// The data goes to a temp file in the same directory which is renamed over the target,
// so readers see either the previous document or the new one. If ctx is done before
// the rename, WriteAtomic returns at once even when the disk is still busy; the temp
// file is removed and the previous file stays untouched.
func (f *FileStore) WriteAtomic(ctx context.Context, collection string, data []byte) (err error) {
	started := time.Now()
	defer func() {
		f.metrics.observeWrite(collection, started, err)
		f.logger.LogStoreWrite(collection, len(data), time.Since(started), err)
	}()

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, collection, err)
	}

	target := f.Path(collection)
	tmpPath := filepath.Join(f.dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(target), os.Getpid(), f.now().UnixNano()))

	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %s: create temp file: %w", ErrWriteFailed, collection, err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	// A fill still running at the deadline is abandoned and never renamed.
	filled := make(chan error, 1)
	go func() {
		filled <- f.fill(tmp, tmpPath, data)
	}()

	select {
	case err := <-filled:
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrWriteFailed, collection, err)
		}
	case <-ctx.Done():
		go func() {
			<-filled
			_ = os.Remove(tmpPath)
		}()
		return deadlineError(ctx, collection)
	}

	if ctx.Err() != nil {
		return deadlineError(ctx, collection)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("%w: %s: rename: %w", ErrWriteFailed, collection, err)
	}
	committed = true

	return nil
}

// fill writes data to the temp file, syncs and closes it.
func (f *FileStore) fill(tmp *os.File, tmpPath string, data []byte) error {
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if f.beforeRename != nil {
		return f.beforeRename(tmpPath)
	}
	return nil
}

func deadlineError(ctx context.Context, collection string) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, collection, ErrWriteTimeout)
	}
	return fmt.Errorf("%w: %s: %w", ErrWriteFailed, collection, err)
}
