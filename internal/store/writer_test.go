package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/typist/internal/model"
)

type gatedSaver struct {
	gate chan struct{}

	mu    sync.Mutex
	order []string
	fail  map[string]error
}

func (s *gatedSaver) Save(_ context.Context, res model.Result) (int64, error) {
	<-s.gate
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[res.SessionID]; err != nil {
		return 0, err
	}
	s.order = append(s.order, res.SessionID)
	return int64(len(s.order)), nil
}

func (s *gatedSaver) saved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

func TestWriterSavesInSubmissionOrder(t *testing.T) {
	saver := &gatedSaver{gate: make(chan struct{})}
	close(saver.gate)
	w := NewWriter(saver, nil)
	defer w.Close()

	var outs []<-chan SaveOutcome
	for i := 1; i <= 5; i++ {
		outs = append(outs, w.Submit(context.Background(), newResult(i, model.TimeMode(15), 50, 90, baseTime)))
	}
	for i, out := range outs {
		outcome := <-out
		require.NoError(t, outcome.Err)
		assert.Equal(t, int64(i+1), outcome.ID)
	}
	assert.Equal(t, []string{"session-001", "session-002", "session-003", "session-004", "session-005"}, saver.saved())
}

func TestWriterCloseDrainsQueue(t *testing.T) {
	saver := &gatedSaver{gate: make(chan struct{})}
	w := NewWriter(saver, nil)

	var outs []<-chan SaveOutcome
	for i := 1; i <= 3; i++ {
		outs = append(outs, w.Submit(context.Background(), newResult(i, model.TimeMode(15), 50, 90, baseTime)))
	}

	closed := make(chan struct{})
	go func() {
		w.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned before queued saves completed")
	case <-time.After(50 * time.Millisecond):
	}

	close(saver.gate)
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after the queue drained")
	}
	for _, out := range outs {
		outcome := <-out
		assert.NoError(t, outcome.Err)
	}
	assert.Len(t, saver.saved(), 3)

	late := <-w.Submit(context.Background(), newResult(9, model.TimeMode(15), 50, 90, baseTime))
	assert.ErrorIs(t, late.Err, ErrWriterClosed)
	assert.Equal(t, "session-009", late.Result.SessionID)
	assert.Len(t, saver.saved(), 3)

	// Closing twice is harmless.
	w.Close()
}

func TestWriterSubmitDoesNotWaitForStalledSaver(t *testing.T) {
	saver := &gatedSaver{gate: make(chan struct{})}
	w := NewWriter(saver, nil)

	const pending = 40
	outs := make(chan []<-chan SaveOutcome, 1)
	go func() {
		var queued []<-chan SaveOutcome
		for i := 1; i <= pending; i++ {
			queued = append(queued, w.Submit(context.Background(), newResult(i, model.TimeMode(15), 50, 90, baseTime)))
		}
		outs <- queued
	}()

	var queued []<-chan SaveOutcome
	select {
	case queued = <-outs:
	case <-time.After(5 * time.Second):
		close(saver.gate)
		t.Fatal("Submit blocked while the saver was stalled")
	}
	require.Len(t, queued, pending)
	assert.Empty(t, saver.saved())

	close(saver.gate)
	for i, out := range queued {
		outcome := <-out
		require.NoError(t, outcome.Err)
		assert.Equal(t, int64(i+1), outcome.ID)
	}
	w.Close()
	assert.Len(t, saver.saved(), pending)
}

func TestWriterSubmitWithEndedContext(t *testing.T) {
	saver := &gatedSaver{gate: make(chan struct{})}
	close(saver.gate)
	w := NewWriter(saver, nil)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := <-w.Submit(ctx, newResult(1, model.TimeMode(15), 50, 90, baseTime))
	assert.ErrorIs(t, outcome.Err, context.Canceled)
	assert.Empty(t, saver.saved())
}

func TestWriterReportsFailureWithResult(t *testing.T) {
	boom := errors.New("disk full")
	saver := &gatedSaver{gate: make(chan struct{}), fail: map[string]error{"session-002": boom}}
	close(saver.gate)
	w := NewWriter(saver, nil)
	defer w.Close()

	first := <-w.Submit(context.Background(), newResult(1, model.TimeMode(15), 50, 90, baseTime))
	require.NoError(t, first.Err)
	failed := <-w.Submit(context.Background(), newResult(2, model.TimeMode(15), 50, 90, baseTime))
	assert.ErrorIs(t, failed.Err, boom)
	assert.Equal(t, "session-002", failed.Result.SessionID)
	third := <-w.Submit(context.Background(), newResult(3, model.TimeMode(15), 50, 90, baseTime))
	assert.NoError(t, third.Err)
}

func TestWriterWithStore(t *testing.T) {
	s := openTestStore(t)
	w := NewWriter(s, nil)
	res := newResult(1, model.TimeMode(30), 66, 97, baseTime)
	outcome := <-w.Submit(context.Background(), res)
	w.Close()
	require.NoError(t, outcome.Err)

	got, err := s.Get(context.Background(), outcome.ID)
	require.NoError(t, err)
	assert.Equal(t, res.SessionID, got.SessionID)
}
