package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/evidentia/core"
	"github.com/poiesic/evidentia/queue"
)

const (
	defaultIdleDelay    = 100 * time.Millisecond
	defaultErrorBackoff = 5 * time.Second
)

// Dispatcher pulls audit tasks off the queue and hands them to the
// planner. Like the ingest consumer, it only stops between tasks.
type Dispatcher struct {
	tasks      queue.TaskQueue
	planner    *Planner
	logger     *slog.Logger
	idle       time.Duration
	errBackoff time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewDispatcher creates a queue dispatcher for audit tasks.
func NewDispatcher(tasks queue.TaskQueue, planner *Planner, logger *slog.Logger) (*Dispatcher, error) {
	if tasks == nil {
		return nil, ErrTaskQueueRequired
	}
	if planner == nil {
		return nil, ErrJobStoreRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		tasks:      tasks,
		planner:    planner,
		logger:     logger.With("component", "dispatcher"),
		idle:       defaultIdleDelay,
		errBackoff: defaultErrorBackoff,
	}, nil
}

// Start launches the dispatcher loop in its own goroutine.
// Calling Start on a running dispatcher is a no-op.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running = true

	go d.run(runCtx)
}

// Stop signals the loop to exit and waits for the in-flight audit, if
// any, to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	cancel()
	<-done

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	d.logger.Info("dispatcher started")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return
		default:
		}

		env, err := d.tasks.Dequeue(ctx, queue.KindAudit)
		if err != nil {
			d.logger.Error("dequeue failed", "error", err)
			d.sleep(ctx, d.errBackoff)
			continue
		}
		if env == nil {
			d.sleep(ctx, d.idle)
			continue
		}

		d.handle(ctx, env)
	}
}

func (d *Dispatcher) handle(ctx context.Context, env *queue.Envelope) {
	jobID, _ := env.Payload["job_id"].(string)
	if jobID == "" {
		d.logger.Warn("dropping audit task without job_id", "task_id", env.ID)
		if err := d.tasks.SetStatus(ctx, env.ID, core.TaskFailed); err != nil {
			d.logger.Error("setting task status failed", "task_id", env.ID, "error", err)
		}
		return
	}

	status := core.TaskCompleted
	if err := d.planner.Run(ctx, jobID); err != nil {
		// The job record already carries the failure detail.
		status = core.TaskFailed
	}
	if err := d.tasks.SetStatus(ctx, env.ID, status); err != nil {
		d.logger.Error("setting task status failed", "task_id", env.ID, "error", err)
	}
}

func (d *Dispatcher) sleep(ctx context.Context, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
