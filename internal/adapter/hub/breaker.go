package hub

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"swarmhub/internal/domain"
)

const (
	defaultBreakerFailures uint32 = 5
	defaultBreakerTimeout         = 30 * time.Second
	defaultBreakerWindow          = 60 * time.Second
)

// BreakerHub wraps a ConsensusHub with a circuit breaker. When the hub fails
// repeatedly the circuit opens and calls fail fast, so a broken hub cannot
// stall the evolution loop with slow timeouts.
type BreakerHub struct {
	inner   domain.ConsensusHub
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

// NewBreakerHub wraps inner with default breaker settings.
func NewBreakerHub(inner domain.ConsensusHub, logger *slog.Logger) *BreakerHub {
	settings := gobreaker.Settings{
		Name:     "consensus-hub",
		Interval: defaultBreakerWindow,
		Timeout:  defaultBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= defaultBreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("hub circuit state changed", "breaker", name,
				"from", from.String(), "to", to.String())
		},
	}
	return &BreakerHub{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		logger:  logger,
	}
}

func (b *BreakerHub) call(fn func() (any, error)) (any, error) {
	out, err := b.breaker.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return out, domain.NewDomainError("hub", domain.ErrHubUnavailable, "circuit open")
	}
	return out, err
}

func (b *BreakerHub) Register(ctx context.Context, name, role string) (string, error) {
	out, err := b.call(func() (any, error) { return b.inner.Register(ctx, name, role) })
	return asString(out), err
}

func (b *BreakerHub) CreateWorkspace(ctx context.Context, name, description string) (string, error) {
	out, err := b.call(func() (any, error) { return b.inner.CreateWorkspace(ctx, name, description) })
	return asString(out), err
}

func (b *BreakerHub) CreateProblem(ctx context.Context, workspaceID, title, description string) (string, error) {
	out, err := b.call(func() (any, error) { return b.inner.CreateProblem(ctx, workspaceID, title, description) })
	return asString(out), err
}

func (b *BreakerHub) ClaimProblem(ctx context.Context, problemID, branchID string) (string, error) {
	out, err := b.call(func() (any, error) { return b.inner.ClaimProblem(ctx, problemID, branchID) })
	return asString(out), err
}

func (b *BreakerHub) CreateProposal(ctx context.Context, problemID, title, branch string, payload any) (string, error) {
	out, err := b.call(func() (any, error) {
		return b.inner.CreateProposal(ctx, problemID, title, branch, payload)
	})
	return asString(out), err
}

func (b *BreakerHub) ReviewProposal(ctx context.Context, proposalID, verdict, comment string) error {
	_, err := b.call(func() (any, error) {
		return nil, b.inner.ReviewProposal(ctx, proposalID, verdict, comment)
	})
	return err
}

func (b *BreakerHub) MergeProposal(ctx context.Context, proposalID string) error {
	_, err := b.call(func() (any, error) { return nil, b.inner.MergeProposal(ctx, proposalID) })
	return err
}

func (b *BreakerHub) PostMessage(ctx context.Context, channel, text string) error {
	_, err := b.call(func() (any, error) { return nil, b.inner.PostMessage(ctx, channel, text) })
	return err
}

func (b *BreakerHub) ReadChannel(ctx context.Context, channel string, limit int) ([]domain.HubMessage, error) {
	out, err := b.call(func() (any, error) { return b.inner.ReadChannel(ctx, channel, limit) })
	msgs, _ := out.([]domain.HubMessage)
	return msgs, err
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
