package events

import "context"

// Publisher offers convenience methods over Bus for the engine's own
// event vocabulary, so call sites read as domain actions rather than
// raw Publish calls.
type Publisher struct {
	bus Bus
}

// NewPublisher wraps a Bus.
func NewPublisher(bus Bus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) AggregateCompleted(ctx context.Context, aggregateURN string) error {
	return p.bus.Publish(ctx, NewAggregateCompletedEvent(aggregateURN))
}

func (p *Publisher) AggregateRedoTriggered(ctx context.Context, aggregateURN, reason string) error {
	return p.bus.Publish(ctx, NewAggregateRedoTriggeredEvent(aggregateURN, reason))
}

func (p *Publisher) VLANUnavailable(ctx context.Context, aggregateURN, hopID string, vlan int) error {
	return p.bus.Publish(ctx, NewVLANUnavailableEvent(aggregateURN, hopID, vlan))
}

func (p *Publisher) CycleDetected(ctx context.Context, urns []string) error {
	return p.bus.Publish(ctx, NewCycleDetectedEvent(urns))
}
