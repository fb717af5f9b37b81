// Package hub implements the ConsensusHub collaborator over JSON HTTP.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"swarmhub/internal/domain"
)

// sessionHeader carries the opaque hub session continuity token.
const sessionHeader = "X-Hub-Session"

// WithSession threads an opaque hub session token through the context; every
// call made with the returned context carries it.
func WithSession(ctx context.Context, token string) context.Context {
	return domain.WithHubSession(ctx, token)
}

// Client talks to the consensus hub. Requests are rate limited so a hot
// evolution loop cannot hammer the hub.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a hub client. requestsPerSec <= 0 disables rate limiting;
// burst <= 0 derives a burst from the rate; timeout <= 0 falls back to 30s.
func NewClient(baseURL string, timeout time.Duration, requestsPerSec float64, burst int, logger *slog.Logger) *Client {
	var limiter *rate.Limiter
	if requestsPerSec > 0 {
		if burst <= 0 {
			burst = int(requestsPerSec) + 1
		}
		limiter = rate.NewLimiter(rate.Limit(requestsPerSec), burst)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger,
	}
}

func (c *Client) post(ctx context.Context, path string, req, resp any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.WrapOp("hub: rate wait", err)
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return domain.WrapOp("hub: marshal", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return domain.WrapOp("hub: build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token := domain.HubSessionFromContext(ctx); token != "" {
		httpReq.Header.Set(sessionHeader, token)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("hub: %s: %w", path, domain.ErrHubUnavailable)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return domain.NewDomainError("hub: "+path, domain.ErrHubUnavailable,
			fmt.Sprintf("status %d: %s", httpResp.StatusCode, data))
	}
	if resp == nil {
		return nil
	}
	if err := json.NewDecoder(httpResp.Body).Decode(resp); err != nil {
		return domain.WrapOp("hub: decode "+path, err)
	}
	return nil
}

func (c *Client) Register(ctx context.Context, name, role string) (string, error) {
	var resp struct {
		AgentID string `json:"agent_id"`
	}
	err := c.post(ctx, "/api/agents/register", map[string]string{"name": name, "role": role}, &resp)
	return resp.AgentID, err
}

func (c *Client) CreateWorkspace(ctx context.Context, name, description string) (string, error) {
	var resp struct {
		WorkspaceID string `json:"workspace_id"`
	}
	err := c.post(ctx, "/api/workspaces", map[string]string{"name": name, "description": description}, &resp)
	return resp.WorkspaceID, err
}

func (c *Client) CreateProblem(ctx context.Context, workspaceID, title, description string) (string, error) {
	var resp struct {
		ProblemID string `json:"problem_id"`
	}
	err := c.post(ctx, "/api/problems", map[string]string{
		"workspace_id": workspaceID,
		"title":        title,
		"description":  description,
	}, &resp)
	return resp.ProblemID, err
}

func (c *Client) ClaimProblem(ctx context.Context, problemID, branchID string) (string, error) {
	var resp struct {
		BranchFromThought string `json:"branch_from_thought"`
	}
	err := c.post(ctx, "/api/problems/claim", map[string]string{
		"problem_id": problemID,
		"branch_id":  branchID,
	}, &resp)
	return resp.BranchFromThought, err
}

func (c *Client) CreateProposal(ctx context.Context, problemID, title, branch string, payload any) (string, error) {
	var resp struct {
		ProposalID string `json:"proposal_id"`
	}
	err := c.post(ctx, "/api/proposals", map[string]any{
		"problem_id": problemID,
		"title":      title,
		"branch":     branch,
		"payload":    payload,
	}, &resp)
	return resp.ProposalID, err
}

func (c *Client) ReviewProposal(ctx context.Context, proposalID, verdict, comment string) error {
	return c.post(ctx, "/api/proposals/review", map[string]string{
		"proposal_id": proposalID,
		"verdict":     verdict,
		"comment":     comment,
	}, nil)
}

func (c *Client) MergeProposal(ctx context.Context, proposalID string) error {
	return c.post(ctx, "/api/proposals/merge", map[string]string{"proposal_id": proposalID}, nil)
}

func (c *Client) PostMessage(ctx context.Context, channel, text string) error {
	return c.post(ctx, "/api/channels/post", map[string]string{"channel": channel, "text": text}, nil)
}

func (c *Client) ReadChannel(ctx context.Context, channel string, limit int) ([]domain.HubMessage, error) {
	var resp struct {
		Messages []domain.HubMessage `json:"messages"`
	}
	err := c.post(ctx, "/api/channels/read", map[string]any{"channel": channel, "limit": limit}, &resp)
	return resp.Messages, err
}
