package notify

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
	"github.com/simonmuehling/educafric-platform-sub005/services/queue"
)

// Enqueuer pushes raw jobs onto a queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, data []byte) error
}

// QueueNotifier hands notifications over to an external queue.
type QueueNotifier struct {
	queue Enqueuer
}

var _ bulletin.Notifier = (*QueueNotifier)(nil)

func NewQueueNotifier(q Enqueuer) *QueueNotifier {
	return &QueueNotifier{queue: q}
}

func (qn *QueueNotifier) Notify(ctx context.Context, n bulletin.Notification) error {
	data, err := json.Marshal(NewJob(n))
	if err != nil {
		return errors.Wrap(err, "encoding job")
	}
	return qn.queue.Enqueue(ctx, data)
}

// Source delivers raw jobs to a handler until ctx is done.
type Source interface {
	Consume(ctx context.Context, handle queue.Handler) error
}

// Worker consumes queued notification jobs.
type Worker struct {
	source   Source
	dispatch DispatchFunc
}

func NewWorker(source Source, dispatch DispatchFunc) *Worker {
	return &Worker{source: source, dispatch: dispatch}
}

func (w *Worker) Run(ctx context.Context) error {
	err := w.source.Consume(ctx, w.handle)
	if errors.Cause(err) == context.Canceled {
		return nil
	}
	return err
}

func (w *Worker) handle(ctx context.Context, data []byte) error {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return errors.Wrap(err, "decoding job")
	}
	if job.Notification.BulletinID == "" {
		return errors.New("job without bulletin")
	}
	return w.dispatch(ctx, job)
}

// DispatchJob adapts a Dispatcher to a DispatchFunc.
func DispatchJob(d *Dispatcher) DispatchFunc {
	return func(ctx context.Context, job Job) error {
		_, err := d.Dispatch(ctx, job.Notification)
		return err
	}
}
