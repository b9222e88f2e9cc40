package datastore

import (
	"sync"
	"sync/atomic"
)

// Serializer runs operations one at a time per key, in arrival order.
// Each key owns a single-slot token channel; goroutines blocked on a channel
// receive are woken first-in first-out, which gives the queue its FIFO order.
type Serializer struct {
	mu      sync.Mutex
	queues  map[string]*queue
	metrics *Metrics
}

type queue struct {
	token   chan struct{}
	pending atomic.Int64
}

// NewSerializer returns a Serializer with no queues.
func NewSerializer(metrics *Metrics) *Serializer {
	return &Serializer{
		queues:  make(map[string]*queue),
		metrics: metrics,
	}
}

func (s *Serializer) queue(key string) *queue {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[key]
	if !ok {
		q = &queue{token: make(chan struct{}, 1)}
		q.token <- struct{}{}
		s.queues[key] = q
	}
	return q
}

// RunExclusive waits for every earlier operation on key, then runs fn.
// A panic in fn is returned as *UpdaterError and the queue keeps going.
// Waiting is not cancellable.
func (s *Serializer) RunExclusive(key string, fn func() error) (err error) {
	q := s.queue(key)
	s.metrics.setQueueDepth(key, q.pending.Add(1))

	<-q.token
	defer func() {
		q.token <- struct{}{}
		s.metrics.setQueueDepth(key, q.pending.Add(-1))
	}()
	defer func() {
		if r := recover(); r != nil {
			err = &UpdaterError{Collection: key, Value: r}
		}
	}()

	return fn()
}

// Pending returns the number of operations queued or running for key.
func (s *Serializer) Pending(key string) int64 {
	s.mu.Lock()
	q, ok := s.queues[key]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return q.pending.Load()
}
