// Package provisioner materializes live niche agents on the hosted agent
// runtime.
package provisioner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"swarmhub/internal/domain"
)

// AgentName derives the deterministic runtime name for a niche. Idempotent
// provisioning keys on this name.
func AgentName(niche domain.NicheDescriptor) string {
	return "swarm-" + niche.Key
}

// Client provisions agents over the runtime's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a provisioner client.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// ProvisionNicheAgent creates or updates the live agent for the blueprint's
// niche. An existing agent under the niche-derived name is updated in place,
// never duplicated.
func (c *Client) ProvisionNicheAgent(ctx context.Context, bp *domain.TeamBlueprint) (string, error) {
	name := AgentName(bp.Niche)

	if agentID, err := c.findAgent(ctx, name); err != nil {
		return "", domain.WrapOp("provision: lookup", err)
	} else if agentID != "" {
		if err := c.updateAgent(ctx, agentID, bp); err != nil {
			return "", domain.WrapOp("provision: update", err)
		}
		c.logger.Info("reused live agent", "name", name, "agent_id", agentID, "blueprint_id", bp.ID)
		return agentID, nil
	}

	agentID, err := c.createAgent(ctx, name, bp)
	if err != nil {
		return "", domain.WrapOp("provision: create", err)
	}
	c.logger.Info("provisioned agent", "name", name, "agent_id", agentID, "blueprint_id", bp.ID)
	return agentID, nil
}

// findAgent returns the ID of the agent registered under name, or "".
func (c *Client) findAgent(ctx context.Context, name string) (string, error) {
	reqURL := fmt.Sprintf("%s/api/agents?name=%s", c.baseURL, url.QueryEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, domain.ErrProvisionFailed)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return "", nil
	case http.StatusOK:
		var body struct {
			AgentID string `json:"agent_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", err
		}
		return body.AgentID, nil
	default:
		return "", statusError(resp)
	}
}

func (c *Client) createAgent(ctx context.Context, name string, bp *domain.TeamBlueprint) (string, error) {
	body, err := json.Marshal(map[string]any{"name": name, "blueprint": bp})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/agents", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, domain.ErrProvisionFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", statusError(resp)
	}
	var out struct {
		AgentID string `json:"agent_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.AgentID, nil
}

func (c *Client) updateAgent(ctx context.Context, agentID string, bp *domain.TeamBlueprint) error {
	body, err := json.Marshal(map[string]any{"blueprint": bp})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/api/agents/%s", c.baseURL, url.PathEscape(agentID)), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrProvisionFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return domain.NewDomainError("provisioner", domain.ErrProvisionFailed,
		fmt.Sprintf("status %d: %s", resp.StatusCode, data))
}
