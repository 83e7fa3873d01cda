package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/NahuelRC/CallCenter/internal/config"
)

// ErrQueueFull is returned when the inbound queue cannot take more
// events. The webhook still acknowledges; the event is dropped.
var ErrQueueFull = errors.New("inbound queue full")

// ErrStopped is returned when the dispatcher is no longer accepting
// events.
var ErrStopped = errors.New("dispatcher stopped")

const (
	defaultQueueSize = 256
	defaultWorkers   = 1
)

// Processor handles one dequeued event. *Pipeline is the production
// implementation.
type Processor interface {
	Process(ctx context.Context, event Event)
}

// Dispatcher decouples the webhook acknowledgment from pipeline
// latency: Enqueue never blocks, dedicated workers drain the queue.
type Dispatcher struct {
	pipeline Processor
	queue    chan Event
	workers  int
	log      *slog.Logger

	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(pipeline Processor, cfg config.DispatchConfig, log *slog.Logger) *Dispatcher {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Dispatcher{
		pipeline: pipeline,
		queue:    make(chan Event, queueSize),
		workers:  workers,
		log:      log.With(slog.String("service", "dispatch")),
	}
}

// Start launches the worker goroutines. Safe to call more than once.
func (d *Dispatcher) Start(ctx context.Context) {
	d.once.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		d.ctx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.runWorker(d.ctx)
		}
	})
}

// Stop cancels the workers and waits for the in-flight events to
// finish. Queued but unstarted events are dropped; there is no retry
// queue.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

// Enqueue hands one event to the workers and returns immediately.
func (d *Dispatcher) Enqueue(event Event) error {
	if d.ctx == nil || d.ctx.Err() != nil {
		return ErrStopped
	}
	select {
	case d.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) runWorker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.queue:
			d.pipeline.Process(ctx, event)
		}
	}
}
