package swarm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"swarmhub/internal/domain"
)

// NicheMatcher classifies messages into niches. Satisfied by niche.Matcher.
type NicheMatcher interface {
	MatchNiche(msg domain.InboundMessage) domain.NicheDescriptor
}

// ProcessFunc handles one dequeued message for one agent. It performs the
// network I/O against the agent-execution collaborator; reasoning carries
// best-effort cross-agent context and may be empty.
type ProcessFunc func(ctx context.Context, agentID string, msg domain.InboundMessage, reasoning string, ch domain.Channel) error

// queuedMessage pairs a message with the channel it arrived on.
type queuedMessage struct {
	msg domain.InboundMessage
	ch  domain.Channel
}

// Manager routes inbound messages to niche agents and drives per-agent FIFO
// queues with bounded concurrency.
type Manager struct {
	store   *Store
	matcher NicheMatcher
	process ProcessFunc

	gateway domain.ReasoningGateway // optional; nil disables context gathering
	bus     domain.EventBus         // optional
	logger  *slog.Logger

	maxConcurrent int

	mu     sync.Mutex
	queues map[string][]queuedMessage // agentID → FIFO
}

// NewManager creates a Manager. maxConcurrent <= 0 means unbounded.
func NewManager(store *Store, matcher NicheMatcher, process ProcessFunc, logger *slog.Logger) *Manager {
	return &Manager{
		store:   store,
		matcher: matcher,
		process: process,
		logger:  logger,
		queues:  make(map[string][]queuedMessage),
	}
}

// SetGateway attaches the reasoning-context collaborator. All gateway calls
// are best-effort and never block or fail message processing.
func (m *Manager) SetGateway(gw domain.ReasoningGateway) { m.gateway = gw }

// SetEventBus attaches the telemetry bus.
func (m *Manager) SetEventBus(bus domain.EventBus) { m.bus = bus }

// SetMaxConcurrent bounds the number of agents processed at once per pass.
func (m *Manager) SetMaxConcurrent(n int) { m.maxConcurrent = n }

// RouteMessage resolves the agent responsible for msg, or nil when no agent
// is bound. A nil return is not an error: the caller decides whether to drop
// the message or trigger provisioning. Counters record every outcome.
func (m *Manager) RouteMessage(msg domain.InboundMessage) (*domain.RouteResult, error) {
	switch mode := m.store.Mode(); mode {
	case domain.ModeSingle:
		agentID, _ := m.store.SingleAgent()
		if agentID == "" {
			return nil, nil
		}
		return &domain.RouteResult{AgentID: agentID}, nil

	case domain.ModeSwarm:
		niche := m.matcher.MatchNiche(msg)
		entry := m.store.GetAgentForNiche(niche.Key)
		if entry == nil {
			m.store.IncrementRouteFallback()
			m.store.IncrementUnservedNiche(niche.Key)
			m.publish(domain.EventRouteFallback, niche.Key, "", nil)
			m.logger.Debug("no agent for niche", "niche", niche.Key, "channel", msg.Channel)
			return nil, nil
		}
		m.store.IncrementRouteSuccess(niche.Key)
		m.publish(domain.EventMessageRouted, niche.Key, entry.AgentID, nil)
		return &domain.RouteResult{AgentID: entry.AgentID, Niche: niche}, nil

	default:
		return nil, domain.NewDomainError("Manager.RouteMessage", domain.ErrInvalidInput,
			fmt.Sprintf("unknown registry mode %q", mode))
	}
}

// EnqueueMessage appends msg to the agent's FIFO queue, creating it lazily.
func (m *Manager) EnqueueMessage(agentID string, msg domain.InboundMessage, ch domain.Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[agentID] = append(m.queues[agentID], queuedMessage{msg: msg, ch: ch})
}

// QueueDepth reports the queued message count for an agent.
func (m *Manager) QueueDepth(agentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[agentID])
}

// ProcessQueues runs one pass: at most one message is dequeued per non-empty
// agent queue and all dequeued messages are processed concurrently. The call
// returns once every agent in the pass has finished, success or caught
// failure; one agent's failure never aborts another's processing, and a slow
// agent never delays a fast agent's completion. Queues are removed once
// drained.
func (m *Manager) ProcessQueues(ctx context.Context) {
	batch, drained := m.dequeueBatch()
	if len(batch) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	if m.maxConcurrent > 0 {
		g.SetLimit(m.maxConcurrent)
	}
	for agentID, item := range batch {
		agentID, item := agentID, item
		g.Go(func() error {
			m.processOne(gctx, agentID, item)
			return nil // errors are caught per agent, never group-fatal
		})
	}
	_ = g.Wait()

	// Only now is a drained queue's work actually done.
	for _, agentID := range drained {
		m.publish(domain.EventQueueDrained, "", agentID, nil)
	}
}

// dequeueBatch pops the head of every queue and drops queues that emptied.
// It also reports which agents' queues emptied in this pass so the drained
// event can be published once their work actually finishes.
func (m *Manager) dequeueBatch() (map[string]queuedMessage, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := make(map[string]queuedMessage, len(m.queues))
	var drained []string
	for agentID, q := range m.queues {
		if len(q) == 0 {
			delete(m.queues, agentID)
			continue
		}
		batch[agentID] = q[0]
		if len(q) == 1 {
			delete(m.queues, agentID)
			drained = append(drained, agentID)
		} else {
			m.queues[agentID] = q[1:]
		}
	}
	return batch, drained
}

func (m *Manager) processOne(ctx context.Context, agentID string, item queuedMessage) {
	reasoning := m.gatherContext(ctx, item.msg)

	if err := m.process(ctx, agentID, item.msg, reasoning, item.ch); err != nil {
		m.logger.Error("message processing failed",
			"agent_id", agentID,
			"channel", item.msg.Channel,
			"error", err,
		)
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		m.publish(domain.EventProcessorFailed, "", agentID, payload)
		return
	}

	m.logTurn(agentID, item.msg)
}

// gatherContext reads recent cross-agent thoughts. Strictly best-effort: any
// failure yields empty context, never an error on the main path.
func (m *Manager) gatherContext(ctx context.Context, msg domain.InboundMessage) string {
	if m.gateway == nil {
		return ""
	}
	gctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	entries, err := m.gateway.ReadThoughts(gctx, domain.ThoughtFilter{Limit: 5})
	if err != nil {
		m.logger.Debug("context gathering skipped", "error", err)
		return ""
	}
	var out string
	for _, e := range entries {
		out += e.Text + "\n"
	}
	return out
}

// logTurn records the completed turn on the reasoning gateway as a detached,
// error-swallowing background task. The critical path never awaits it.
func (m *Manager) logTurn(agentID string, msg domain.InboundMessage) {
	if m.gateway == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		input := fmt.Sprintf("agent %s handled %s message in chat %s", agentID, msg.Channel, msg.ChatID)
		if _, err := m.gateway.Thought(ctx, input); err != nil {
			m.logger.Debug("turn logging skipped", "agent_id", agentID, "error", err)
		}
	}()
}

func (m *Manager) publish(t domain.EventType, nicheKey, agentID string, payload json.RawMessage) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(context.Background(), domain.Event{
		Type:      t,
		Timestamp: time.Now(),
		NicheKey:  nicheKey,
		AgentID:   agentID,
		Payload:   payload,
	})
}
