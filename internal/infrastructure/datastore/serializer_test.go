package datastore

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializer_RunsInSubmissionOrder(t *testing.T) {
	s := NewSerializer(nil)

	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.RunExclusive("tasks", func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	var mu sync.Mutex
	var order []int
	const n = 10
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			_ = s.RunExclusive("tasks", func() error {
				mu.Lock()
				order = append(order, v)
				mu.Unlock()
				return nil
			})
		}(i)
		// wait until this one is queued before submitting the next
		want := int64(i + 1)
		require.Eventually(t, func() bool { return s.Pending("tasks") == want }, time.Second, time.Millisecond)
		time.Sleep(2 * time.Millisecond)
	}

	close(release)
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, order)
	assert.Equal(t, int64(0), s.Pending("tasks"))
}

func TestSerializer_KeysAreIndependent(t *testing.T) {
	s := NewSerializer(nil)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = s.RunExclusive("tasks", func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	done := make(chan struct{})
	go func() {
		_ = s.RunExclusive("subjects", func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stalled tasks queue blocked subjects")
	}
}

func TestSerializer_ContainsFailures(t *testing.T) {
	s := NewSerializer(nil)

	sentinel := errors.New("failed")
	assert.ErrorIs(t, s.RunExclusive("k", func() error { return sentinel }), sentinel)

	err := s.RunExclusive("k", func() error { panic("kaboom") })
	var updErr *UpdaterError
	require.ErrorAs(t, err, &updErr)
	assert.Equal(t, "kaboom", updErr.Value)

	ran := false
	require.NoError(t, s.RunExclusive("k", func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}
