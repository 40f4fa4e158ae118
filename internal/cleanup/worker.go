// Package cleanup deletes images dropped from a listing before the listing itself is
// saved.
package cleanup

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"service-availability-backend/internal/logging"
)

// ErrPoolStopped is reported for deletes the pool can no longer run.
var ErrPoolStopped = errors.New("cleanup pool stopped")

// ImageDeleter removes one confirmed image on the server.
type ImageDeleter interface {
	DeleteImage(ctx context.Context, id string) error
}

type job struct {
	ctx     context.Context
	imageID string
	done    func(error)
}

// WorkerPool runs image deletions on a fixed number of goroutines.
type WorkerPool struct {
	size    int
	jobs    chan job
	deleter ImageDeleter
	logger  *zap.Logger

	stopped  chan struct{}
	stopOnce sync.Once
}

// NewWorkerPool creates a new worker pool. Call Start before dispatching.
func NewWorkerPool(size int, deleter ImageDeleter, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan job, size),
		deleter: deleter,
		logger:  logging.OrNop(logger).Named("cleanup"),
		stopped: make(chan struct{}),
	}
}

// Start launches the worker goroutines; they exit when ctx is cancelled and fail
// whatever is still queued with ErrPoolStopped.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
	go func() {
		<-ctx.Done()
		wp.stopOnce.Do(func() { close(wp.stopped) })
	}()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug("worker started", zap.Int("worker", id))
	for {
		select {
		case j := <-wp.jobs:
			if ctx.Err() != nil {
				j.done(ErrPoolStopped)
				continue
			}
			err := wp.deleter.DeleteImage(j.ctx, j.imageID)
			if err != nil {
				wp.logger.Warn("image delete failed", zap.Int("worker", id), zap.String("image_id", j.imageID), zap.Error(err))
			}
			j.done(err)
		case <-ctx.Done():
			wp.logger.Debug("worker shutting down", zap.Int("worker", id))
			wp.drain()
			return
		}
	}
}

func (wp *WorkerPool) drain() {
	for {
		select {
		case j := <-wp.jobs:
			j.done(ErrPoolStopped)
		default:
			return
		}
	}
}

// DeleteAll deletes every id and waits until each attempt has finished, ctx is done
// or the pool stops. One failure never stops the others; the returned map holds the
// ids that could not be deleted, including those abandoned unfinished.
func (wp *WorkerPool) DeleteAll(ctx context.Context, ids []string) map[string]error {
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		failures  = make(map[string]error)
		pending   = make(map[string]int)
		abandoned bool
	)
	record := func(id string) func(error) {
		return func(err error) {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			if abandoned {
				return
			}
			if pending[id]--; pending[id] == 0 {
				delete(pending, id)
			}
			if err != nil {
				failures[id] = err
			}
		}
	}

	for _, id := range ids {
		wg.Add(1)
		mu.Lock()
		pending[id]++
		mu.Unlock()
		select {
		case wp.jobs <- job{ctx: ctx, imageID: id, done: record(id)}:
		case <-ctx.Done():
			record(id)(ctx.Err())
		case <-wp.stopped:
			record(id)(ErrPoolStopped)
		}
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	var cause error
	select {
	case <-finished:
	case <-ctx.Done():
		cause = ctx.Err()
	case <-wp.stopped:
		cause = ErrPoolStopped
	}

	mu.Lock()
	abandoned = true
	for id := range pending {
		failures[id] = cause
	}
	out := make(map[string]error, len(failures))
	for id, err := range failures {
		out[id] = err
	}
	mu.Unlock()

	if len(out) > 0 {
		wp.logger.Info("image cleanup finished with failures", zap.Int("requested", len(ids)), zap.Int("failed", len(out)))
	}
	return out
}
