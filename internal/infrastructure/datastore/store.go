package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/studyplanner/core/internal/infrastructure/logger"
)

// Options configures a Store.
type Options struct {
	// DataDir holds one <collection>.json file per collection.
	DataDir string
	// Collections are loaded (and seeded if missing) by Open.
	Collections []string
	// WriteTimeout bounds a single atomic write. Zero means unbounded.
	WriteTimeout time.Duration
	Logger       *logger.Logger
	Metrics      *Metrics
	Clock        func() time.Time
}

// Store is a document store with one JSON document per collection.
// Reads are served from the cache; every write for a collection runs through
// that collection's FIFO queue and reaches the cache only after it is on disk.
type Store struct {
	dir          string
	files        *FileStore
	cache        *Cache
	queue        *Serializer
	logger       *logger.Logger
	metrics      *Metrics
	now          func() time.Time
	writeTimeout time.Duration
}

// Open creates the data directory and loads every known collection plus any
// other collection file already present in it.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.DataDir) == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Store{
		dir:          opts.DataDir,
		files:        NewFileStore(opts.DataDir, opts.Clock, opts.Logger, opts.Metrics),
		cache:        NewCache(),
		queue:        NewSerializer(opts.Metrics),
		logger:       opts.Logger.WithComponent("datastore"),
		metrics:      opts.Metrics,
		now:          opts.Clock,
		writeTimeout: opts.WriteTimeout,
	}

	names, err := s.discover(opts.Collections)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := s.Get(name); err != nil {
			return nil, fmt.Errorf("failed to load collection %s: %w", name, err)
		}
	}

	s.logger.Infow("Document store opened", "data_dir", s.dir, "collections", len(names))

	return s, nil
}

func (s *Store) discover(known []string) ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	for _, name := range known {
		if err := ValidateName(name); err != nil {
			return nil, err
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list data directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name, ok := strings.CutSuffix(entry.Name(), ".json")
		if !ok || ValidateName(name) != nil || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	return names, nil
}

// Get returns a private copy of the collection document, seeding it on first access.
func (s *Store) Get(collection string) (json.RawMessage, error) {
	if err := ValidateName(collection); err != nil {
		return nil, err
	}
	if doc, ok := s.cache.Get(collection); ok {
		return doc, nil
	}

	var doc []byte
	err := s.queue.RunExclusive(collection, func() error {
		var err error
		doc, err = s.current(collection)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Set replaces the collection document with doc.
func (s *Store) Set(ctx context.Context, collection string, doc interface{}) error {
	_, err := s.Update(ctx, collection, func(json.RawMessage) (interface{}, error) {
		return doc, nil
	})
	return err
}

// Update runs fn on a private copy of the current document and persists its result.
// fn runs inside the collection's exclusive section, so concurrent updates never
// lose each other's changes. If fn returns an error nothing is written and the
// error is returned as is. The returned document is the one now stored.
//
// Cancelling ctx does not abandon a queued update; only the write itself is bounded
// by the store write timeout.
func (s *Store) Update(ctx context.Context, collection string, fn func(current json.RawMessage) (interface{}, error)) (json.RawMessage, error) {
	if err := ValidateName(collection); err != nil {
		return nil, err
	}

	var stored []byte
	err := s.queue.RunExclusive(collection, func() error {
		current, err := s.current(collection)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		data, err := encode(next)
		if err != nil {
			return fmt.Errorf("encode collection %s: %w", collection, err)
		}

		if err := s.write(ctx, collection, data); err != nil {
			return err
		}

		stored = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	return json.RawMessage(stored), nil
}

// current returns the cached document, loading or seeding it when absent.
// Callers must hold the collection's exclusive section.
func (s *Store) current(collection string) ([]byte, error) {
	if doc, ok := s.cache.Get(collection); ok {
		return doc, nil
	}

	log := s.logger.WithCollection(collection)

	data, err := s.files.Read(collection)
	if err == nil {
		s.cache.Put(collection, data)
		log.Debugw("Collection loaded", "bytes", len(data))
		return data, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	seeded, err := encode(Seed(collection, s.now()))
	if err != nil {
		return nil, fmt.Errorf("encode seed for %s: %w", collection, err)
	}
	if err := s.write(context.Background(), collection, seeded); err != nil {
		return nil, err
	}
	log.Infow("Collection seeded with defaults")

	return seeded, nil
}

// write persists data and then refreshes the cache.
func (s *Store) write(ctx context.Context, collection string, data []byte) error {
	writeCtx := context.WithoutCancel(ctx)
	if s.writeTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(writeCtx, s.writeTimeout)
		defer cancel()
	}

	if err := s.files.WriteAtomic(writeCtx, collection, data); err != nil {
		return err
	}
	s.cache.Put(collection, data)
	return nil
}

// Reload re-reads a collection file changed outside the store and reports whether
// the cache changed. Missing or unparsable files leave the cache as it is.
func (s *Store) Reload(collection string) (bool, error) {
	if err := ValidateName(collection); err != nil {
		return false, err
	}

	changed := false
	err := s.queue.RunExclusive(collection, func() error {
		data, err := s.files.readFile(collection)
		if err != nil {
			return err
		}
		if !json.Valid(data) || s.cache.Equal(collection, data) {
			return nil
		}
		s.cache.Put(collection, data)
		changed = true
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if changed {
		s.logger.WithCollection(collection).Infow("Collection reloaded from disk")
	}
	return changed, nil
}

// Collections returns the loaded collection names, sorted.
func (s *Store) Collections() []string {
	return s.cache.Names()
}

// DataDir returns the directory holding the collection files.
func (s *Store) DataDir() string {
	return s.dir
}

// Metrics returns the store metrics, which may be nil.
func (s *Store) Metrics() *Metrics {
	return s.metrics
}

// HealthCheck verifies the data directory is still reachable.
func (s *Store) HealthCheck() error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("datastore health check failed: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("datastore health check failed: %s is not a directory", s.dir)
	}
	return nil
}

// Stats returns cache and queue statistics.
func (s *Store) Stats() map[string]interface{} {
	names := s.cache.Names()
	pending := make(map[string]int64, len(names))
	for _, name := range names {
		pending[name] = s.queue.Pending(name)
	}

	return map[string]interface{}{
		"data_dir":     s.dir,
		"collections":  names,
		"cached_bytes": s.cache.Size(),
		"pending_ops":  pending,
	}
}

func encode(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// Load decodes the collection document into T.
func Load[T any](s *Store, collection string) (T, error) {
	var out T
	doc, err := s.Get(collection)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(doc, &out); err != nil {
		return out, fmt.Errorf("decode collection %s: %w", collection, err)
	}
	return out, nil
}

// Mutate is Update for a typed document. A document that does not decode into T
// aborts the mutation without writing.
func Mutate[T any](ctx context.Context, s *Store, collection string, fn func(current T) (T, error)) (T, error) {
	var result T
	_, err := s.Update(ctx, collection, func(raw json.RawMessage) (interface{}, error) {
		var current T
		if err := json.Unmarshal(raw, &current); err != nil {
			return nil, fmt.Errorf("decode collection %s: %w", collection, err)
		}
		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		result = next
		return next, nil
	})
	return result, err
}
