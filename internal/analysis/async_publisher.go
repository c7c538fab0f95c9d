package analysis

import (
	"context"
	"errors"
	"log/slog"
)

// DefaultQueueSize is the number of status events buffered for delivery
const DefaultQueueSize = 256

var ErrQueueFull = errors.New("status event queue is full")

// AsyncPublisher queues status events and delivers them from a single
// goroutine, so a slow or unreachable broker never delays a request.
// Events are dropped when the queue is full.
type AsyncPublisher struct {
	next   StatusPublisher
	logger *slog.Logger
	queue  chan StatusEvent
}

// NewAsyncPublisher wraps next. Run must be started for events to be delivered.
func NewAsyncPublisher(next StatusPublisher, logger *slog.Logger, size int) *AsyncPublisher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &AsyncPublisher{
		next:   next,
		logger: logger,
		queue:  make(chan StatusEvent, size),
	}
}

// PublishStatus enqueues the event without blocking
func (p *AsyncPublisher) PublishStatus(_ context.Context, event StatusEvent) error {
	select {
	case p.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run delivers queued events until ctx is done, then makes one bounded pass
// over whatever is still queued.
func (p *AsyncPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return nil
		case event := <-p.queue:
			p.deliver(context.WithoutCancel(ctx), event)
		}
	}
}

func (p *AsyncPublisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	for {
		select {
		case event := <-p.queue:
			if ctx.Err() != nil {
				p.logger.Warn("Dropping status event on shutdown",
					slog.String("job_id", event.JobID),
					slog.String("status", event.Status.String()),
				)
				continue
			}
			p.deliver(ctx, event)
		default:
			return
		}
	}
}

func (p *AsyncPublisher) deliver(ctx context.Context, event StatusEvent) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.next.PublishStatus(ctx, event); err != nil {
		p.logger.Warn("Failed to deliver status event",
			slog.String("job_id", event.JobID),
			slog.String("status", event.Status.String()),
			slog.String("error", err.Error()),
		)
	}
}
