package usecase

import (
	"context"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"
)

// EventRelay decouples status-change hooks from slow brokers. Broadcast never
// blocks; Run delivers queued events to every publisher in order.
type EventRelay struct {
	publishers []repository.IEventPublisher
	queue      chan model.PostEvent
	timeout    time.Duration
}

func NewEventRelay(buffer int, publishers ...repository.IEventPublisher) *EventRelay {
	if buffer <= 0 {
		buffer = 256
	}
	return &EventRelay{publishers: publishers, queue: make(chan model.PostEvent, buffer), timeout: 10 * time.Second}
}

// Broadcast queues event, dropping it when the buffer is full.
func (r *EventRelay) Broadcast(event model.PostEvent) {
	select {
	case r.queue <- event:
	default:
		logger.GetLogger().WithField("post_id", event.PostID).WithField("status", event.Status).Warn("event relay full; dropping post event")
	}
}

// Run delivers events until ctx is done, then flushes what is already queued.
func (r *EventRelay) Run(ctx context.Context) error {
	for {
		select {
		case event := <-r.queue:
			r.deliver(ctx, event)
		case <-ctx.Done():
			for {
				select {
				case event := <-r.queue:
					r.deliver(context.WithoutCancel(ctx), event)
				default:
					return nil
				}
			}
		}
	}
}

func (r *EventRelay) deliver(ctx context.Context, event model.PostEvent) {
	for _, p := range r.publishers {
		pctx, cancel := context.WithTimeout(ctx, r.timeout)
		if err := p.Publish(pctx, event); err != nil {
			logger.GetLogger().WithField("post_id", event.PostID).WithField("error", err.Error()).Warn("post event publish failed")
		}
		cancel()
	}
}
