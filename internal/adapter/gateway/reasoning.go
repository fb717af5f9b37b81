// Package gateway implements the ReasoningGateway collaborator over JSON
// HTTP. The gateway is a shared, branch-structured scratchpad; callers treat
// every operation as best-effort.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"swarmhub/internal/domain"
)

// Client talks to the reasoning gateway. A client is bound to at most one
// session at a time; StartNew and LoadContext switch it.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	mu        sync.Mutex
	sessionID string
}

// NewClient creates a gateway client. timeout <= 0 falls back to 15s.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *Client) post(ctx context.Context, path string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.WrapOp("gateway: marshal", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return domain.WrapOp("gateway: build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.WrapOp("gateway: "+path, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return domain.NewDomainError("gateway: "+path, domain.ErrUnavailable,
			fmt.Sprintf("status %d: %s", httpResp.StatusCode, data))
	}
	if resp == nil {
		return nil
	}
	return domain.WrapOp("gateway: decode "+path, json.NewDecoder(httpResp.Body).Decode(resp))
}

func (c *Client) session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// StartNew opens a fresh reasoning session and binds the client to it.
func (c *Client) StartNew(ctx context.Context) (string, error) {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := c.post(ctx, "/api/sessions", map[string]string{}, &resp); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.sessionID = resp.SessionID
	c.mu.Unlock()
	return resp.SessionID, nil
}

// LoadContext rebinds the client to an existing session.
func (c *Client) LoadContext(ctx context.Context, sessionID string) error {
	if err := c.post(ctx, "/api/sessions/load", map[string]string{"session_id": sessionID}, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.sessionID = sessionID
	c.mu.Unlock()
	return nil
}

// BindSession resumes sessionID when one is given, falling back to a fresh
// session if the resume fails (the gateway may have expired it). It returns
// the ID the client ended up bound to, which the caller should persist.
func (c *Client) BindSession(ctx context.Context, sessionID string) (string, error) {
	if sessionID != "" {
		err := c.LoadContext(ctx, sessionID)
		if err == nil {
			return sessionID, nil
		}
		c.logger.Warn("session resume failed, starting fresh", "session_id", sessionID, "error", err)
	}
	return c.StartNew(ctx)
}

// Cipher returns the session continuity token for the bound session.
func (c *Client) Cipher(ctx context.Context) (string, error) {
	sessionID := c.session()
	if sessionID == "" {
		return "", domain.ErrGatewayClosed
	}
	var resp struct {
		Cipher string `json:"cipher"`
	}
	err := c.post(ctx, "/api/sessions/cipher", map[string]string{"session_id": sessionID}, &resp)
	return resp.Cipher, err
}

// Thought records one thought and returns its branch position.
func (c *Client) Thought(ctx context.Context, input string) (domain.ThoughtRef, error) {
	sessionID := c.session()
	if sessionID == "" {
		return domain.ThoughtRef{}, domain.ErrGatewayClosed
	}
	var resp domain.ThoughtRef
	err := c.post(ctx, "/api/thoughts", map[string]string{
		"session_id": sessionID,
		"input":      input,
	}, &resp)
	return resp, err
}

// ReadThoughts fetches recent thoughts matching the filter.
func (c *Client) ReadThoughts(ctx context.Context, filter domain.ThoughtFilter) ([]domain.ThoughtEntry, error) {
	sessionID := c.session()
	if sessionID == "" {
		return nil, domain.ErrGatewayClosed
	}
	var resp struct {
		Entries []domain.ThoughtEntry `json:"entries"`
	}
	err := c.post(ctx, "/api/thoughts/read", map[string]any{
		"session_id": sessionID,
		"branch_id":  filter.BranchID,
		"limit":      filter.Limit,
	}, &resp)
	return resp.Entries, err
}
