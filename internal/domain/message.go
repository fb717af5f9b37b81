package domain

import (
	"context"
	"time"
)

// InboundMessage is a message received from a channel adapter.
type InboundMessage struct {
	Channel   string    `json:"channel"`
	ChatID    string    `json:"chat_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// OutboundMessage is a reply delivered back through a channel adapter.
type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	Text    string `json:"text"`
	IsError bool   `json:"is_error,omitempty"`
}

// MessageHandler is the callback a channel invokes for each inbound message.
type MessageHandler func(ctx context.Context, msg InboundMessage) error

// Channel is the seam to per-platform adapters. The protocol clients
// themselves live outside this core.
type Channel interface {
	Start(ctx context.Context, handler MessageHandler) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg OutboundMessage) error
	Name() string
}

// RouteResult is returned by the swarm manager for a routable message.
type RouteResult struct {
	AgentID string
	Niche   NicheDescriptor
}
