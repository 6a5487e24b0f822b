// Package events provides a typed event bus over Watermill so the
// scheduler can decouple reservation-lifecycle notifications from
// whatever observes them (audit logging, a UI, a test assertion).
// Subscribed handlers run synchronously inside Publish, on the caller's
// goroutine.
package events

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Priority marks how promptly a subscriber should expect to see an
// event. The stitching engine's own event volume is low (one event per
// aggregate-lifecycle transition, not per-packet telemetry) so, unlike
// a high-volume bus, every priority here is delivered immediately;
// priority is only recorded in the message metadata and is kept for the
// audit trail a reviewer would want per run.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityNormal
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Event is the interface every typed event implements.
type Event interface {
	GetID() ulid.ULID
	GetType() string
	GetPriority() Priority
	GetTimestamp() time.Time
	Payload() ([]byte, error)
}

// BaseEvent is embedded by every concrete event type.
type BaseEvent struct {
	ID        ulid.ULID `json:"id"`
	Type      string    `json:"type"`
	Priority  Priority  `json:"priority"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *BaseEvent) GetID() ulid.ULID        { return e.ID }
func (e *BaseEvent) GetType() string         { return e.Type }
func (e *BaseEvent) GetPriority() Priority   { return e.Priority }
func (e *BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

func newBaseEvent(eventType string, priority Priority) BaseEvent {
	return BaseEvent{ID: ulid.Make(), Type: eventType, Priority: priority, Timestamp: time.Now()}
}

const (
	EventTypeAggregateCompleted     = "aggregate.completed"
	EventTypeAggregateRedoTriggered = "aggregate.redo_triggered"
	EventTypeVLANUnavailable        = "vlan.unavailable_reported"
	EventTypeCycleDetected          = "topology.cycle_detected"
)

// AggregateCompletedEvent reports that an aggregate's reservation
// succeeded and every owned hop now has a manifest.
type AggregateCompletedEvent struct {
	BaseEvent
	AggregateURN string `json:"aggregateUrn"`
}

func NewAggregateCompletedEvent(aggregateURN string) *AggregateCompletedEvent {
	return &AggregateCompletedEvent{
		BaseEvent:    newBaseEvent(EventTypeAggregateCompleted, PriorityNormal),
		AggregateURN: aggregateURN,
	}
}

func (e *AggregateCompletedEvent) Payload() ([]byte, error) { return json.Marshal(e) }

// AggregateRedoTriggeredEvent reports that an upstream change forced a
// reservation to be torn down and rebuilt.
type AggregateRedoTriggeredEvent struct {
	BaseEvent
	AggregateURN string `json:"aggregateUrn"`
	Reason       string `json:"reason"`
}

func NewAggregateRedoTriggeredEvent(aggregateURN, reason string) *AggregateRedoTriggeredEvent {
	return &AggregateRedoTriggeredEvent{
		BaseEvent:    newBaseEvent(EventTypeAggregateRedoTriggered, PriorityCritical),
		AggregateURN: aggregateURN,
		Reason:       reason,
	}
}

func (e *AggregateRedoTriggeredEvent) Payload() ([]byte, error) { return json.Marshal(e) }

// VLANUnavailableEvent reports that an AM rejected a specific VLAN tag,
// the signal the scheduler uses to ask for an SCS rerun excluding that
// hop.
type VLANUnavailableEvent struct {
	BaseEvent
	AggregateURN string `json:"aggregateUrn"`
	HopID        string `json:"hopId"`
	VLAN         int    `json:"vlan"`
}

func NewVLANUnavailableEvent(aggregateURN, hopID string, vlan int) *VLANUnavailableEvent {
	return &VLANUnavailableEvent{
		BaseEvent:    newBaseEvent(EventTypeVLANUnavailable, PriorityCritical),
		AggregateURN: aggregateURN,
		HopID:        hopID,
		VLAN:         vlan,
	}
}

func (e *VLANUnavailableEvent) Payload() ([]byte, error) { return json.Marshal(e) }

// CycleDetectedEvent reports a dependency cycle found before any RPC was
// issued.
type CycleDetectedEvent struct {
	BaseEvent
	URNs []string `json:"urns"`
}

func NewCycleDetectedEvent(urns []string) *CycleDetectedEvent {
	return &CycleDetectedEvent{
		BaseEvent: newBaseEvent(EventTypeCycleDetected, PriorityCritical),
		URNs:      urns,
	}
}

func (e *CycleDetectedEvent) Payload() ([]byte, error) { return json.Marshal(e) }
