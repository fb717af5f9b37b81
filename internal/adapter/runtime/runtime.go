// Package runtime is the JSON HTTP client for the hosted agent execution
// service. The service itself runs elsewhere; this core only creates
// sessions from blueprints and exchanges messages over them.
package runtime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"swarmhub/internal/domain"
)

// Client implements domain.AgentExecutionService.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates an execution service client. timeout <= 0 falls back to
// two minutes: team turns can be slow.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, req, resp any) error {
	var body io.Reader
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return domain.WrapOp("runtime: marshal", err)
		}
		body = bytes.NewReader(data)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return domain.WrapOp("runtime: build request", err)
	}
	if req != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.WrapOp("runtime: "+path, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return domain.NewDomainError("runtime: "+path, domain.ErrUnavailable,
			fmt.Sprintf("status %d: %s", httpResp.StatusCode, data))
	}
	if resp == nil {
		return nil
	}
	return domain.WrapOp("runtime: decode "+path, json.NewDecoder(httpResp.Body).Decode(resp))
}

// CreateSession builds a live team session from a blueprint.
func (c *Client) CreateSession(ctx context.Context, bp *domain.TeamBlueprint) (domain.AgentSession, error) {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/sessions", map[string]any{"blueprint": bp}, &resp)
	if err != nil {
		return nil, err
	}
	return &session{client: c, id: resp.SessionID}, nil
}

// ResumeSession reattaches to an existing session.
func (c *Client) ResumeSession(ctx context.Context, sessionID string) (domain.AgentSession, error) {
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+sessionID, nil, nil); err != nil {
		return nil, domain.NewDomainError("runtime: resume", domain.ErrSessionNotFound, sessionID)
	}
	return &session{client: c, id: sessionID}, nil
}

type session struct {
	client *Client
	id     string
}

func (s *session) ID() string { return s.id }

func (s *session) Send(ctx context.Context, text string) (string, error) {
	var resp struct {
		Reply string `json:"reply"`
	}
	err := s.client.do(ctx, http.MethodPost, "/api/sessions/"+s.id+"/messages",
		map[string]string{"text": text}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Reply, nil
}

// Stream sends text and returns reply chunks as newline-delimited frames.
// The channel closes when the response body ends.
func (s *session) Stream(ctx context.Context, text string) (<-chan string, error) {
	data, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, domain.WrapOp("runtime: marshal", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.client.baseURL+"/api/sessions/"+s.id+"/stream", bytes.NewReader(data))
	if err != nil {
		return nil, domain.WrapOp("runtime: build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := s.client.http.Do(httpReq)
	if err != nil {
		return nil, domain.WrapOp("runtime: stream", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		httpResp.Body.Close()
		return nil, domain.NewDomainError("runtime: stream", domain.ErrUnavailable,
			fmt.Sprintf("status %d", httpResp.StatusCode))
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer httpResp.Body.Close()
		scanner := bufio.NewScanner(httpResp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			s.client.logger.Warn("stream read error", "session", s.id, "error", err)
		}
	}()
	return out, nil
}

func (s *session) Close(ctx context.Context) error {
	return s.client.do(ctx, http.MethodDelete, "/api/sessions/"+s.id, nil, nil)
}
