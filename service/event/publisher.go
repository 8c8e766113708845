package event

import (
	"context"
	"time"

	"github.com/runbox/runbox/service/messaging"
)

// Publisher publishes typed events; when attached to a service it mirrors
// every event onto the untyped stream so a single listener can observe
// everything.
type Publisher[T any] struct {
	queue    messaging.Queue[Event[T]]
	anyQueue messaging.Queue[Event[any]]
}

func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{queue: queue}
}

func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	event.CreatedAt = time.Now()
	p.mirror(event)
	return p.queue.Publish(ctx, event)
}

// TryPublish publishes without blocking; a full stream drops the event
// rather than stalling the producer.
func (p *Publisher[T]) TryPublish(event *Event[T]) bool {
	event.CreatedAt = time.Now()
	p.mirror(event)
	return p.queue.TryPublish(event)
}

// mirror copies the event onto the untyped stream, best effort.
func (p *Publisher[T]) mirror(event *Event[T]) {
	if p.anyQueue == nil {
		return
	}
	_ = p.anyQueue.TryPublish(&Event[any]{
		Context:   event.Context,
		CreatedAt: event.CreatedAt,
		Metadata:  event.Metadata,
		Data:      event.Data,
	})
}

// Consume blocks for the next event and acknowledges it.
func (p *Publisher[T]) Consume(ctx context.Context) (*Event[T], error) {
	msg, err := p.queue.Consume(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	if err = msg.Ack(); err != nil {
		return nil, err
	}
	return msg.T(), nil
}
