package domain

import "fmt"

// Category sentinels — wrap with WrapOp or DomainError for context.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrDuplicate    = fmt.Errorf("duplicate")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrLimitReached = fmt.Errorf("limit reached")
	ErrUnavailable  = fmt.Errorf("unavailable")
)

// Sentinel errors for the swarm core.
var (
	ErrAgentNotFound     = fmt.Errorf("agent not found")
	ErrBlueprintInvalid  = fmt.Errorf("blueprint failed validation")
	ErrRegistryCorrupt   = fmt.Errorf("registry document corrupt")
	ErrHubUnavailable    = fmt.Errorf("consensus hub: %w", ErrUnavailable)
	ErrGatewayClosed     = fmt.Errorf("reasoning gateway session closed")
	ErrProposalRejected  = fmt.Errorf("proposal rejected")
	ErrProvisionFailed   = fmt.Errorf("agent provisioning failed")
	ErrSessionNotFound   = fmt.Errorf("session not found")
	ErrTranscriptMissing = fmt.Errorf("no recorded transcripts for domain")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g., "SwarmStore.Load")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
