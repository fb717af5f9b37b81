package domain

import "context"

// Review verdicts accepted by the consensus hub.
const (
	VerdictApprove        = "approve"
	VerdictComment        = "comment"
	VerdictRequestChanges = "request-changes"
)

type hubSessionKey struct{}

// WithHubSession threads an opaque session continuity token through the
// context; hub calls made with the returned context carry it.
func WithHubSession(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, hubSessionKey{}, token)
}

// HubSessionFromContext returns the threaded session token, or "".
func HubSessionFromContext(ctx context.Context) string {
	token, _ := ctx.Value(hubSessionKey{}).(string)
	return token
}

// HubMessage is one entry read back from a hub channel.
type HubMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// ConsensusHub is the external system of record for accepting an evolved
// blueprint. It offers claim/propose/review/merge primitives; its wire
// protocol is an adapter concern. Session continuity is threaded through
// the context as an opaque header.
type ConsensusHub interface {
	Register(ctx context.Context, name, role string) (agentID string, err error)
	CreateWorkspace(ctx context.Context, name, description string) (workspaceID string, err error)
	CreateProblem(ctx context.Context, workspaceID, title, description string) (problemID string, err error)
	ClaimProblem(ctx context.Context, problemID, branchID string) (branchFromThought string, err error)
	CreateProposal(ctx context.Context, problemID, title, branch string, payload any) (proposalID string, err error)
	ReviewProposal(ctx context.Context, proposalID, verdict, comment string) error
	MergeProposal(ctx context.Context, proposalID string) error
	PostMessage(ctx context.Context, channel, text string) error
	ReadChannel(ctx context.Context, channel string, limit int) ([]HubMessage, error)
}

// ThoughtRef identifies one recorded thought on a reasoning branch.
type ThoughtRef struct {
	ThoughtNumber int    `json:"thought_number"`
	BranchID      string `json:"branch_id"`
}

// ThoughtEntry is one thought read back from the gateway.
type ThoughtEntry struct {
	ThoughtNumber int    `json:"thought_number"`
	BranchID      string `json:"branch_id"`
	Text          string `json:"text"`
	Author        string `json:"author,omitempty"`
}

// ThoughtFilter narrows ReadThoughts results.
type ThoughtFilter struct {
	BranchID string
	Limit    int
}

// ReasoningGateway is the shared, branch-structured scratchpad used to build
// cross-agent context. All calls are best-effort from the router's point of
// view: failures must never block message processing.
type ReasoningGateway interface {
	StartNew(ctx context.Context) (sessionID string, err error)
	LoadContext(ctx context.Context, sessionID string) error
	Cipher(ctx context.Context) (string, error)
	Thought(ctx context.Context, input string) (ThoughtRef, error)
	ReadThoughts(ctx context.Context, filter ThoughtFilter) ([]ThoughtEntry, error)
}

// AgentSession is one live conversation with a hosted agent team.
type AgentSession interface {
	ID() string
	Send(ctx context.Context, text string) (reply string, err error)
	Stream(ctx context.Context, text string) (<-chan string, error)
	Close(ctx context.Context) error
}

// AgentExecutionService creates and resumes hosted agent sessions over a
// blueprint. The runtime itself is external; this core only drives it.
type AgentExecutionService interface {
	CreateSession(ctx context.Context, bp *TeamBlueprint) (AgentSession, error)
	ResumeSession(ctx context.Context, sessionID string) (AgentSession, error)
}

// SwarmProvisioner materializes (or updates) the live agent backing a niche.
// Implementations must be idempotent: a live agent under the deterministic
// niche-derived name is reused rather than duplicated.
type SwarmProvisioner interface {
	ProvisionNicheAgent(ctx context.Context, bp *TeamBlueprint) (agentID string, err error)
}
