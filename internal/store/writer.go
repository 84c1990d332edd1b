package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/verte-zerg/typist/internal/logging"
	"github.com/verte-zerg/typist/internal/model"
)

// ErrWriterClosed is delivered for saves submitted after Close.
var ErrWriterClosed = errors.New("result writer is closed")

// Saver persists one result.
type Saver interface {
	Save(ctx context.Context, res model.Result) (int64, error)
}

// SaveOutcome is delivered once per submitted result.
type SaveOutcome struct {
	Result model.Result
	ID     int64
	Err    error
}

type saveJob struct {
	ctx context.Context
	res model.Result
	out chan SaveOutcome
}

// Writer saves results on a single background worker, so saves complete in
// submission order. The queue is unbounded and Submit never waits on the
// worker, which keeps a slow database away from the caller's event loop.
type Writer struct {
	saver  Saver
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []saveJob
	closed bool
	done   chan struct{}
}

// NewWriter starts the worker.
func NewWriter(saver Saver, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = logging.Discard()
	}
	w := &Writer{
		saver:  saver,
		logger: logger,
		done:   make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	go w.worker()
	return w
}

// next blocks until a job is queued. It reports false once the writer is
// closed and the queue is drained.
func (w *Writer) next() (saveJob, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for len(w.queue) == 0 && !w.closed {
		w.cond.Wait()
	}
	if len(w.queue) == 0 {
		return saveJob{}, false
	}
	job := w.queue[0]
	w.queue[0] = saveJob{}
	w.queue = w.queue[1:]
	return job, true
}

func (w *Writer) worker() {
	defer close(w.done)
	for {
		job, ok := w.next()
		if !ok {
			return
		}
		id, err := w.saver.Save(job.ctx, job.res)
		if err != nil {
			w.logger.Error("result save failed", "session", job.res.SessionID, "err", err)
		} else {
			w.logger.Info("result saved", "session", job.res.SessionID, "id", id)
		}
		job.out <- SaveOutcome{Result: job.res, ID: id, Err: err}
	}
}

// Submit queues a result for saving and returns immediately. The returned
// channel receives exactly one outcome. If ctx has already ended, the
// outcome carries the context error and nothing is saved.
func (w *Writer) Submit(ctx context.Context, res model.Result) <-chan SaveOutcome {
	out := make(chan SaveOutcome, 1)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		out <- SaveOutcome{Result: res, Err: ErrWriterClosed}
		return out
	}
	if err := ctx.Err(); err != nil {
		out <- SaveOutcome{Result: res, Err: err}
		return out
	}
	w.queue = append(w.queue, saveJob{ctx: ctx, res: res, out: out})
	w.cond.Signal()
	return out
}

// Close stops accepting results and waits until every queued save has
// completed.
func (w *Writer) Close() {
	w.mu.Lock()
	w.closed = true
	w.cond.Broadcast()
	w.mu.Unlock()
	<-w.done
}
