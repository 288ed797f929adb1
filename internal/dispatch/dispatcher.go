package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/surge-downloader/ytdlp-remote/internal/core"
	"github.com/surge-downloader/ytdlp-remote/internal/events"
	"github.com/surge-downloader/ytdlp-remote/internal/types"
)

// Service is the subset of the remote queue the dispatcher drives.
type Service interface {
	SubmitDownload(ctx context.Context, req types.DownloadRequest) (types.Ack, error)
	CancelTask(ctx context.Context, id string) (bool, error)
	ClearCompleted(ctx context.Context) error
}

// Recorder persists dispatch outcomes.
type Recorder interface {
	RecordOutcome(o Outcome) error
}

// Outcome is the result of one dispatch: the enqueue acknowledgment, never
// the eventual result of the download itself.
type Outcome struct {
	TaskID  string
	Request types.DownloadRequest
	Ack     types.Ack
	Err     error
	At      time.Time
}

// Succeeded reports whether the remote acknowledged the request.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Task is a dispatched request whose acknowledgment may still be in flight.
type Task struct {
	ID      string
	Request types.DownloadRequest

	done    chan struct{}
	outcome Outcome
}

// Done is closed once the outcome is known.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the outcome is known or ctx is done.
func (t *Task) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Dispatcher validates download commands and submits them to the WebUI.
type Dispatcher struct {
	svc      Service
	logger   *zap.Logger
	bus      *events.Bus
	recorder Recorder

	wg sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger outcomes are reported to.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithBus publishes DownloadQueuedMsg and DownloadErrorMsg on bus.
func WithBus(bus *events.Bus) Option {
	return func(d *Dispatcher) {
		d.bus = bus
	}
}

// WithRecorder stores every outcome.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// New creates a dispatcher for svc.
func New(svc Service, opts ...Option) *Dispatcher {
	d := &Dispatcher{svc: svc, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch validates params and, if they are valid, submits the request in
// the background. Validation errors are returned synchronously and no request
// is made. Submission failures are logged and carried in the task's Outcome;
// they are never returned from Dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, params map[string]any) (*Task, error) {
	req, err := ParseRequest(params)
	if err != nil {
		d.logger.Warn("download request rejected", zap.Error(err))
		return nil, err
	}
	return d.Submit(ctx, req), nil
}

// Submit sends an already validated request in the background. The caller's
// cancellation does not abort the submission; the transport timeout bounds it.
func (d *Dispatcher) Submit(ctx context.Context, req types.DownloadRequest) *Task {
	task := &Task{
		ID:      uuid.NewString(),
		Request: req,
		done:    make(chan struct{}),
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(task.done)
		task.outcome = d.submit(context.WithoutCancel(ctx), task)
	}()
	return task
}

func (d *Dispatcher) submit(ctx context.Context, task *Task) Outcome {
	ack, err := d.svc.SubmitDownload(ctx, task.Request)
	out := Outcome{
		TaskID:  task.ID,
		Request: task.Request,
		Ack:     ack,
		Err:     err,
		At:      time.Now(),
	}

	fields := []zap.Field{
		zap.String("task_id", task.ID),
		zap.String("url", task.Request.URL),
		zap.String("location", task.Request.LocationName()),
		zap.Bool("audio_only", task.Request.AudioOnly),
		zap.Bool("force", task.Request.Force),
	}
	if err != nil {
		d.logger.Error("failed to queue download", append(fields, zap.Error(err))...)
		d.bus.Publish(events.DownloadErrorMsg{TaskID: task.ID, URL: task.Request.URL, Err: err})
	} else {
		d.logger.Info("queued download", append(fields, zap.Strings("remote_ids", ack.TaskIDs))...)
		d.bus.Publish(events.DownloadQueuedMsg{TaskID: task.ID, URL: task.Request.URL, Ack: ack})
	}

	if d.recorder != nil {
		if rerr := d.recorder.RecordOutcome(out); rerr != nil {
			d.logger.Warn("failed to record dispatch", zap.String("task_id", task.ID), zap.Error(rerr))
		}
	}
	return out
}

// Cancel asks the WebUI to cancel a task. Errors are logged and returned.
func (d *Dispatcher) Cancel(ctx context.Context, id string) (bool, error) {
	ok, err := d.svc.CancelTask(ctx, id)
	if err != nil {
		if core.IsValidation(err) {
			return false, err
		}
		d.logger.Error("failed to cancel task", zap.String("id", id), zap.Error(err))
		return false, err
	}
	d.logger.Info("cancel requested", zap.String("id", id), zap.Bool("success", ok))
	d.bus.Publish(events.TaskCancelledMsg{ID: id, Success: ok})
	return ok, nil
}

// ClearCompleted asks the WebUI to drop finished tasks.
func (d *Dispatcher) ClearCompleted(ctx context.Context) error {
	if err := d.svc.ClearCompleted(ctx); err != nil {
		d.logger.Error("failed to clear completed tasks", zap.Error(err))
		return err
	}
	d.logger.Info("cleared completed tasks")
	return nil
}

// Drain waits for in-flight submissions to finish or ctx to end.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
