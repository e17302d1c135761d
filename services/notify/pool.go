package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-platform-sub005/core"
	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
)

var (
	errPoolClosed = errors.New("notification pool is closed")
	errPoolFull   = errors.New("notification pool is full")
)

// Job is a notification waiting to be dispatched.
type Job struct {
	ID           string                `json:"id"`
	Notification bulletin.Notification `json:"notification"`
	EnqueuedAt   time.Time             `json:"enqueued_at"`
}

func NewJob(n bulletin.Notification) Job {
	return Job{ID: uuid.New().String(), Notification: n, EnqueuedAt: time.Now().UTC()}
}

// DispatchFunc handles one job.
type DispatchFunc func(ctx context.Context, job Job) error

// WorkerPool dispatches notifications in process, on a fixed number of goroutines.
type WorkerPool struct {
	jobs     chan Job
	workers  int
	dispatch DispatchFunc
	logger   core.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ bulletin.Notifier = (*WorkerPool)(nil)

func NewWorkerPool(workers, size int, dispatch DispatchFunc, logger core.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if size < 0 {
		size = 0
	}
	return &WorkerPool{
		jobs:     make(chan Job, size),
		workers:  workers,
		dispatch: dispatch,
		logger:   logger,
	}
}

// Start runs the workers until Stop is called. ctx is handed to every dispatch.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				if err := p.dispatch(ctx, job); err != nil {
					p.logger.Error(
						fmt.Sprintf("dispatching notification %s: %v", job.ID, err),
						errors.Wrap(err, "dispatching notification"),
						map[string]interface{}{"job_id": job.ID, "bulletin_id": job.Notification.BulletinID},
					)
				}
			}
		}()
	}
}

// Notify enqueues the notification without waiting: when the buffer is full the notification is dropped
// and errPoolFull returned for the caller to log.
func (p *WorkerPool) Notify(_ context.Context, n bulletin.Notification) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errPoolClosed
	}
	select {
	case p.jobs <- NewJob(n):
		return nil
	default:
		return errPoolFull
	}
}

// Stop stops accepting jobs and waits for the queued ones to be dispatched.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
