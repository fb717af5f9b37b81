package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies a telemetry event on the in-process bus.
type EventType string

const (
	EventMessageRouted    EventType = "message.routed"
	EventRouteFallback    EventType = "message.route_fallback"
	EventQueueDrained     EventType = "queue.drained"
	EventBlueprintMerged  EventType = "blueprint.merged"
	EventCandidateDropped EventType = "blueprint.rejected"
	EventAgentProvisioned EventType = "agent.provisioned"
	EventProcessorFailed  EventType = "message.processor_failed"
)

// Event is published on the bus; Payload carries a JSON-encoded detail struct.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	NicheKey  string          `json:"niche_key,omitempty"`
	AgentID   string          `json:"agent_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventHandler consumes one event. Handlers run on their own goroutines and
// must tolerate concurrent invocation.
type EventHandler func(ctx context.Context, event Event)

// EventBus is the in-process pub/sub seam.
type EventBus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(eventType EventType, handler EventHandler) (unsubscribe func())
}
