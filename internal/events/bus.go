package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Handler processes an event.
type Handler func(ctx context.Context, event Event) error

// Bus publishes events to subscribers, decoupling the scheduler from
// whatever observes reservation lifecycle transitions.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType string, handler Handler) error
	SubscribeAll(handler Handler) error
	Close() error
}

// Options configures the bus.
type Options struct {
	BufferSize int
	Logger     watermill.LoggerAdapter
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{BufferSize: 256, Logger: watermill.NewStdLogger(false, false)}
}

type bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter

	mu         sync.RWMutex
	handlers   map[string][]Handler
	allHandler []Handler
	closed     bool
}

// NewBus returns a Watermill-backed in-process Bus.
func NewBus(opts Options) Bus {
	if opts.BufferSize == 0 {
		opts.BufferSize = 256
	}
	if opts.Logger == nil {
		opts.Logger = watermill.NewStdLogger(false, false)
	}
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            int64(opts.BufferSize),
		Persistent:                     false,
		BlockPublishUntilSubscriberAck: false,
	}, opts.Logger)

	return &bus{
		pubsub:   pubsub,
		logger:   opts.Logger,
		handlers: map[string][]Handler{},
	}
}

func (b *bus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return fmt.Errorf("events: bus is closed")
	}
	if event == nil {
		return fmt.Errorf("events: event cannot be nil")
	}

	payload, err := event.Payload()
	if err != nil {
		return fmt.Errorf("events: serialize payload: %w", err)
	}

	msg := message.NewMessage(event.GetID().String(), payload)
	msg.Metadata.Set("type", event.GetType())
	msg.Metadata.Set("priority", event.GetPriority().String())
	msg.Metadata.Set("timestamp", event.GetTimestamp().Format(time.RFC3339Nano))

	if err := b.pubsub.Publish(event.GetType(), msg); err != nil {
		return fmt.Errorf("events: publish to topic %s: %w", event.GetType(), err)
	}
	if err := b.pubsub.Publish("all", msg); err != nil {
		b.logger.Error("events: publish to 'all' topic failed", err, nil)
	}

	b.notify(ctx, event)
	return nil
}

func (b *bus) notify(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := append([]Handler{}, b.handlers[event.GetType()]...)
	all := append([]Handler{}, b.allHandler...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			b.logger.Error("events: handler error", err, watermill.LogFields{
				"event_type": event.GetType(),
				"event_id":   event.GetID().String(),
			})
		}
	}
	for _, h := range all {
		if err := h(ctx, event); err != nil {
			b.logger.Error("events: all-handler error", err, watermill.LogFields{
				"event_type": event.GetType(),
				"event_id":   event.GetID().String(),
			})
		}
	}
}

func (b *bus) Subscribe(eventType string, handler Handler) error {
	if eventType == "" {
		return fmt.Errorf("events: event type cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("events: handler cannot be nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

func (b *bus) SubscribeAll(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("events: handler cannot be nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allHandler = append(b.allHandler, handler)
	return nil
}

func (b *bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	return b.pubsub.Close()
}
